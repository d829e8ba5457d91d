package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    first_name    TEXT NOT NULL,
    last_name     TEXT NOT NULL,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user'
                  CHECK (role IN ('user', 'securityGuard', 'securityOfficer', 'admin')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id                   INTEGER PRIMARY KEY,
    item_type            TEXT NOT NULL,
    description          TEXT NOT NULL,
    verified_description TEXT,
    unique_marks         TEXT,
    location             TEXT NOT NULL,
    occurred_at          DATETIME NOT NULL,
    status               TEXT NOT NULL
                         CHECK (status IN ('lost', 'submitted', 'received', 'verified', 'claimed', 'rejected')),
    token                TEXT,
    token_verified_at    DATETIME,
    images_public        INTEGER NOT NULL DEFAULT 0,
    is_visible           INTEGER NOT NULL DEFAULT 1,
    questions            TEXT,
    security_notes       TEXT,
    rejection_reason     TEXT,
    reported_by          INTEGER REFERENCES users(id),
    found_by             INTEGER REFERENCES users(id),
    received_by          INTEGER REFERENCES users(id),
    verified_by          INTEGER REFERENCES users(id),
    claimed_by           INTEGER REFERENCES users(id),
    verification_date    DATETIME,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_token
    ON items(token) WHERE token IS NOT NULL;

CREATE TABLE IF NOT EXISTS item_images (
    item_id    INTEGER NOT NULL REFERENCES items(id),
    storage_id TEXT NOT NULL,
    url        TEXT NOT NULL,
    position   INTEGER NOT NULL,
    PRIMARY KEY (item_id, position)
);

CREATE TABLE IF NOT EXISTS item_requests (
    id                       INTEGER PRIMARY KEY,
    item_id                  INTEGER NOT NULL REFERENCES items(id),
    request_type             TEXT NOT NULL DEFAULT 'claim' CHECK (request_type IN ('claim')),
    status                   TEXT NOT NULL DEFAULT 'pending'
                             CHECK (status IN ('pending', 'verified', 'verification_failed', 'cancelled')),
    token                    TEXT,
    answers                  TEXT,
    additional_notes         TEXT,
    preferred_contact_method TEXT NOT NULL DEFAULT 'email'
                             CHECK (preferred_contact_method IN ('email', 'phone')),
    appointment_time_slot    TEXT,
    request_date             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    requested_by             INTEGER NOT NULL REFERENCES users(id),
    requested_to             INTEGER REFERENCES users(id),
    verified_by              INTEGER REFERENCES users(id),
    verification_notes       TEXT,
    verification_date        DATETIME,
    created_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_item_requests_token
    ON item_requests(token) WHERE token IS NOT NULL;

CREATE TABLE IF NOT EXISTS request_images (
    request_id INTEGER NOT NULL REFERENCES item_requests(id),
    storage_id TEXT NOT NULL,
    url        TEXT NOT NULL,
    position   INTEGER NOT NULL,
    PRIMARY KEY (request_id, position)
);

CREATE TABLE IF NOT EXISTS blobs (
    storage_id TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    mime       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
