package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// GetJWTSecret returns the secret that signs session tokens. It lives in
// the settings table so sessions survive restarts with no extra config
// file; the first caller mints it. INSERT OR IGNORE plus re-SELECT keeps
// two processes starting against a fresh database from racing: exactly
// one candidate wins and both read the winner back.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('jwt_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'jwt_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}

	return secret, nil
}
