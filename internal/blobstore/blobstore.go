// Package blobstore implements the object-storage contract for uploaded
// photos: store bytes with a MIME type, get back an opaque storage id and a
// URL the API serves them under. Blobs live in the same SQLite database as
// everything else, so a single file remains the whole deployment.
package blobstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// URLPrefix is the path blobs are served under by the API.
const URLPrefix = "/api/blobs/"

// StoredBlob identifies a stored object.
type StoredBlob struct {
	StorageID string `json:"storage_id"`
	URL       string `json:"url"`
}

// Store persists blob data and returns its storage id and URL.
func Store(ctx context.Context, db *sql.DB, data []byte, mime string) (*StoredBlob, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO blobs (storage_id, data, mime) VALUES (?, ?, ?)`,
		id, data, mime,
	)
	if err != nil {
		return nil, fmt.Errorf("storing blob: %w", err)
	}
	return &StoredBlob{StorageID: id, URL: URLPrefix + id}, nil
}

// Load returns blob data and MIME type by storage id, or nil data if the
// blob does not exist.
func Load(ctx context.Context, db *sql.DB, storageID string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM blobs WHERE storage_id = ?`, storageID,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading blob: %w", err)
	}
	return data, mime, nil
}

// Delete removes a blob. Unreferenced blobs are the only hard deletes in
// the system.
func Delete(ctx context.Context, db *sql.DB, storageID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM blobs WHERE storage_id = ?`, storageID)
	if err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}
