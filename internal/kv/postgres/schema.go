package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the entry table. Expired rows are invisible to reads and
// reclaimed by Sweep.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	durability TEXT NOT NULL,
	expires_at TIMESTAMPTZ NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS kv_entries_expires_at_idx
	ON kv_entries (expires_at) WHERE expires_at IS NOT NULL;
`

const (
	hasQuery = `
		SELECT EXISTS (
			SELECT 1 FROM kv_entries
			WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
		)`

	getQuery = `
		SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`

	// An expired row is replaced as if it were new; a live row keeps its expiry.
	setQuery = `
		INSERT INTO kv_entries (key, value, durability, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			durability = EXCLUDED.durability,
			updated_at = EXCLUDED.updated_at,
			expires_at = CASE
				WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= EXCLUDED.updated_at
					THEN EXCLUDED.expires_at
				ELSE kv_entries.expires_at
			END`

	removeQuery = `DELETE FROM kv_entries WHERE key = $1`

	extendQuery = `
		UPDATE kv_entries SET expires_at = $2
		WHERE key = $1
			AND expires_at IS NOT NULL
			AND expires_at > $3
			AND expires_at < $4
			AND expires_at < $2`

	sweepQuery = `
		DELETE FROM kv_entries
		WHERE key IN (
			SELECT key FROM kv_entries
			WHERE expires_at IS NOT NULL AND expires_at <= $1
			LIMIT $2
		)`
)

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate kv_entries: %w", err)
	}
	return nil
}
