// Package outbox implements the transactional outbox for registry events.
//
// Store.Append inserts into the outbox inside the caller's SQL transaction,
// so an event is recorded exactly when the registry write commits. Relay
// later forwards pending rows to a notify.Publisher.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"profilereg/internal/notify"
	txcontext "profilereg/pkg/platform/tx"
)

// Schema creates the outbox table.
const Schema = `
CREATE TABLE IF NOT EXISTS notify_outbox (
	id            UUID PRIMARY KEY,
	topic         TEXT NOT NULL,
	aggregate_key TEXT NOT NULL,
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	published_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS notify_outbox_pending_idx
	ON notify_outbox (created_at, id) WHERE published_at IS NULL;
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate notify_outbox: %w", err)
	}
	return nil
}

// Store implements notify.Journal.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes e to the outbox using the transaction bound to ctx when
// there is one.
func (s *Store) Append(ctx context.Context, e notify.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	const query = `
		INSERT INTO notify_outbox (id, topic, aggregate_key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		e.ID,
		e.Topic.String(),
		e.Key(),
		string(payload),
		e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Pending counts rows not yet relayed.
func (s *Store) Pending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM notify_outbox WHERE published_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outbox entries: %w", err)
	}
	return n, nil
}
