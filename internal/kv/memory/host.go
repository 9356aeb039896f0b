// Package memory provides an in-process storage host. Units of work are
// serialized by a single mutex and buffered until fn returns.
package memory

import (
	"context"
	"sync"
	"time"

	"profilereg/internal/kv"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/sentinel"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero: never expires
}

func (e entry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || e.expiresAt.After(now)
}

// Host is an in-memory kv.Host.
type Host struct {
	mu       sync.Mutex
	entries  map[string]entry
	lifetime kv.Lifetime
	clock    func() time.Time
	metrics  *kv.Metrics
}

type Option func(*Host)

// WithClock overrides the time source used for entry lifetimes.
func WithClock(clock func() time.Time) Option {
	return func(h *Host) { h.clock = clock }
}

func WithLifetime(l kv.Lifetime) Option {
	return func(h *Host) { h.lifetime = l }
}

func WithMetrics(m *kv.Metrics) Option {
	return func(h *Host) { h.metrics = m }
}

// New constructs an empty host.
func New(opts ...Option) *Host {
	h := &Host{
		entries: make(map[string]entry),
		clock:   time.Now,
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
	start := time.Now()
	defer func() { h.metrics.ObserveTx("memory", start, err) }()

	h.mu.Lock()
	defer h.mu.Unlock()

	tx := &txStore{host: h, now: h.clock(), pending: make(map[string]pendingWrite)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for name, w := range tx.pending {
		if w.removed {
			delete(h.entries, name)
			continue
		}
		h.entries[name] = w.entry
	}
	return nil
}

// TTL reports the remaining lifetime of key. ok is false when the key is
// absent or expired; a zero duration with ok means it never expires.
func (h *Host) TTL(key kv.Key) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.clock()
	e, found := h.entries[key.Name]
	if !found || !e.live(now) {
		return 0, false
	}
	if e.expiresAt.IsZero() {
		return 0, true
	}
	return e.expiresAt.Sub(now), true
}

// Len returns the number of live entries.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.clock()
	n := 0
	for _, e := range h.entries {
		if e.live(now) {
			n++
		}
	}
	return n
}

type pendingWrite struct {
	entry
	removed bool
}

type txStore struct {
	host    *Host
	now     time.Time
	pending map[string]pendingWrite
}

func (t *txStore) lookup(key kv.Key) (entry, bool) {
	if w, ok := t.pending[key.Name]; ok {
		if w.removed {
			return entry{}, false
		}
		return w.entry, true
	}
	e, ok := t.host.entries[key.Name]
	if !ok || !e.live(t.now) {
		return entry{}, false
	}
	return e, true
}

func (t *txStore) Has(_ context.Context, key kv.Key) (bool, error) {
	_, ok := t.lookup(key)
	return ok, nil
}

func (t *txStore) Get(_ context.Context, key kv.Key) ([]byte, error) {
	e, ok := t.lookup(key)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (t *txStore) Set(_ context.Context, key kv.Key, value []byte) error {
	next := entry{value: append([]byte(nil), value...)}
	if cur, ok := t.lookup(key); ok {
		next.expiresAt = cur.expiresAt
	} else if key.Durability == kv.Persistent {
		next.expiresAt = t.now.Add(t.host.lifetime.InitialOrDefault())
	}
	t.pending[key.Name] = pendingWrite{entry: next}
	return nil
}

func (t *txStore) Remove(_ context.Context, key kv.Key) error {
	t.pending[key.Name] = pendingWrite{removed: true}
	return nil
}

func (t *txStore) ExtendLifetime(_ context.Context, key kv.Key, lowWater, horizon time.Duration) error {
	cur, ok := t.lookup(key)
	if !ok || cur.expiresAt.IsZero() {
		return nil
	}
	if next, changed := kv.NextExpiry(t.now, cur.expiresAt, lowWater, horizon); changed {
		cur.expiresAt = next
		t.pending[key.Name] = pendingWrite{entry: cur}
	}
	return nil
}
