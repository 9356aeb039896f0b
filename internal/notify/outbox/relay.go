package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"profilereg/internal/notify"
)

// Relay forwards pending outbox rows to a publisher in creation order.
// Rows are claimed with SKIP LOCKED so several relays can run at once.
type Relay struct {
	db        *sql.DB
	publisher notify.Publisher
	logger    *slog.Logger
	batch     int
	interval  time.Duration
	clock     func() time.Time
}

type RelayOption func(*Relay)

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func NewRelay(db *sql.DB, publisher notify.Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		db:        db,
		publisher: publisher,
		logger:    slog.Default(),
		batch:     100,
		interval:  time.Second,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.WarnContext(ctx, "outbox relay failed", "error", err)
				break
			}
			if n < r.batch {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes up to one batch and returns how many rows it marked
// as published. It stops at the first publish failure so ordering holds.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin relay tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, payload FROM notify_outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batch)
	if err != nil {
		return 0, fmt.Errorf("select outbox entries: %w", err)
	}

	type pending struct {
		id      uuid.UUID
		payload []byte
	}
	var batch []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.payload); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		batch = append(batch, p)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("close outbox rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox rows: %w", err)
	}

	published := 0
	var publishErr error
	for _, p := range batch {
		var e notify.Event
		if err := json.Unmarshal(p.payload, &e); err != nil {
			r.logger.ErrorContext(ctx, "discarding undecodable outbox entry", "id", p.id, "error", err)
		} else if err := r.publisher.Publish(ctx, e); err != nil {
			publishErr = fmt.Errorf("publish outbox entry %s: %w", p.id, err)
			break
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE notify_outbox SET published_at = $2 WHERE id = $1`, p.id, r.clock().UTC()); err != nil {
			return 0, fmt.Errorf("mark outbox entry: %w", err)
		}
		published++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit relay tx: %w", err)
	}
	return published, publishErr
}
