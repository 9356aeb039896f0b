// Package postgres provides a storage host on PostgreSQL. Each unit of work
// is one SERIALIZABLE transaction; serialization failures are retried.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"profilereg/internal/kv"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/sentinel"
	txcontext "profilereg/pkg/platform/tx"
)

const (
	defaultTxTimeout  = 5 * time.Second
	defaultMaxRetries = 8
	retryBackoff      = 2 * time.Millisecond
)

// Host is a kv.Host backed by the kv_entries table.
type Host struct {
	db         *sql.DB
	timeout    time.Duration
	maxRetries int
	lifetime   kv.Lifetime
	clock      func() time.Time
	metrics    *kv.Metrics
	logger     *slog.Logger
}

type Option func(*Host)

func WithTxTimeout(d time.Duration) Option {
	return func(h *Host) { h.timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(h *Host) { h.maxRetries = n }
}

func WithLifetime(l kv.Lifetime) Option {
	return func(h *Host) { h.lifetime = l }
}

func WithClock(clock func() time.Time) Option {
	return func(h *Host) { h.clock = clock }
}

func WithMetrics(m *kv.Metrics) Option {
	return func(h *Host) { h.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// New constructs a host over db. The schema must already exist (see Migrate).
func New(db *sql.DB, opts ...Option) *Host {
	h := &Host{
		db:         db,
		timeout:    defaultTxTimeout,
		maxRetries: defaultMaxRetries,
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RunInTx implements kv.Host.
func (h *Host) RunInTx(ctx context.Context, fn func(ctx context.Context, store kv.Store) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { h.metrics.ObserveTx("postgres", start, err) }()

	for attempt := 0; ; attempt++ {
		err = h.runOnce(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		if attempt >= h.maxRetries {
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		}
		h.metrics.IncRetry("postgres")
		h.logger.DebugContext(ctx, "retrying storage transaction", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted while retrying")
		case <-time.After(time.Duration(attempt+1) * retryBackoff):
		}
	}
}

func (h *Host) runOnce(ctx context.Context, fn func(ctx context.Context, store kv.Store) error) error {
	tx, err := h.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	s := &txStore{host: h, now: h.clock().UTC()}
	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Sweep deletes up to limit expired entries and returns how many it removed.
func (h *Host) Sweep(ctx context.Context, limit int) (int64, error) {
	res, err := h.db.ExecContext(ctx, sweepQuery, h.clock().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("sweep expired entries: %w", err)
	}
	return res.RowsAffected()
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

type txStore struct {
	host *Host
	now  time.Time
}

func (s *txStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Execer(ctx, s.host.db)
}

func (s *txStore) Has(ctx context.Context, key kv.Key) (bool, error) {
	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx, hasQuery, key.Name, s.now).Scan(&exists); err != nil {
		return false, fmt.Errorf("has %s: %w", key.Name, err)
	}
	return exists, nil
}

func (s *txStore) Get(ctx context.Context, key kv.Key) ([]byte, error) {
	var value []byte
	err := s.execer(ctx).QueryRowContext(ctx, getQuery, key.Name, s.now).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key.Name, err)
	}
	return value, nil
}

func (s *txStore) Set(ctx context.Context, key kv.Key, value []byte) error {
	var expiresAt sql.NullTime
	if key.Durability == kv.Persistent {
		expiresAt = sql.NullTime{Time: s.now.Add(s.host.lifetime.InitialOrDefault()), Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, setQuery, key.Name, value, key.Durability.String(), expiresAt, s.now)
	if err != nil {
		return fmt.Errorf("set %s: %w", key.Name, err)
	}
	return nil
}

func (s *txStore) Remove(ctx context.Context, key kv.Key) error {
	if _, err := s.execer(ctx).ExecContext(ctx, removeQuery, key.Name); err != nil {
		return fmt.Errorf("remove %s: %w", key.Name, err)
	}
	return nil
}

func (s *txStore) ExtendLifetime(ctx context.Context, key kv.Key, lowWater, horizon time.Duration) error {
	_, err := s.execer(ctx).ExecContext(ctx, extendQuery,
		key.Name,
		s.now.Add(horizon),
		s.now,
		s.now.Add(lowWater),
	)
	if err != nil {
		return fmt.Errorf("extend %s: %w", key.Name, err)
	}
	return nil
}
