// Package redis provides a storage host on Redis.
//
// A unit of work holds an exclusive lock key for its whole duration. Reads go
// to Redis directly; writes are buffered and replayed in one MULTI/EXEC that
// only commits while the lock is still ours and bumps a version counter.
// Read-only views skip the lock and retry when the version moved under them.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"profilereg/internal/kv"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/sentinel"
)

const (
	defaultPrefix    = "profilereg:"
	defaultLockTTL   = 10 * time.Second
	defaultLockRetry = 5 * time.Millisecond
	defaultTxTimeout = 5 * time.Second
	defaultViewTries = 8
)

// unlockScript deletes the lock only if it still carries our token.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Host is a kv.Host backed by Redis.
type Host struct {
	client    goredis.UniversalClient
	prefix    string
	lockTTL   time.Duration
	lockRetry time.Duration
	timeout   time.Duration
	lifetime  kv.Lifetime
	metrics   *kv.Metrics
	logger    *slog.Logger
}

type Option func(*Host)

// WithPrefix namespaces every key, including the lock.
func WithPrefix(prefix string) Option {
	return func(h *Host) { h.prefix = prefix }
}

func WithLockTTL(ttl time.Duration) Option {
	return func(h *Host) { h.lockTTL = ttl }
}

func WithTxTimeout(d time.Duration) Option {
	return func(h *Host) { h.timeout = d }
}

func WithLifetime(l kv.Lifetime) Option {
	return func(h *Host) { h.lifetime = l }
}

func WithMetrics(m *kv.Metrics) Option {
	return func(h *Host) { h.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// New constructs a host over client.
func New(client goredis.UniversalClient, opts ...Option) *Host {
	h := &Host{
		client:    client,
		prefix:    defaultPrefix,
		lockTTL:   defaultLockTTL,
		lockRetry: defaultLockRetry,
		timeout:   defaultTxTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) lockKey() string { return h.prefix + "lock" }

func (h *Host) versionKey() string { return h.prefix + "version" }

func (h *Host) key(k kv.Key) string { return h.prefix + k.Name }

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
	defer func() { h.metrics.ObserveTx("redis", start, err) }()

	token := uuid.NewString()
	if err := h.acquire(ctx, token); err != nil {
		return err
	}
	defer h.release(ctx, token)

	tx := newTxStore(h, false)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return h.commit(ctx, token, tx.ops)
}

// View implements kv.Viewer. fn runs without the lock; the result stands
// only if no commit landed between the first and last read. After
// repeated interference the view falls back to a locked unit of work.
func (h *Host) View(ctx context.Context, fn func(ctx context.Context, store kv.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	start := time.Now()
	for range defaultViewTries {
		before, err := h.version(ctx)
		if err != nil {
			return err
		}
		fnErr := fn(ctx, newTxStore(h, true))
		after, err := h.version(ctx)
		if err != nil {
			return err
		}
		if before == after {
			h.metrics.ObserveTx("redis_view", start, fnErr)
			return fnErr
		}
		h.metrics.IncRetry("redis_view")
	}
	return h.RunInTx(ctx, fn)
}

func (h *Host) version(ctx context.Context) (int64, error) {
	v, err := h.client.Get(ctx, h.versionKey()).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version: %w: %w", sentinel.ErrUnavailable, err)
	}
	return v, nil
}

func (h *Host) acquire(ctx context.Context, token string) error {
	start := time.Now()
	ticker := time.NewTicker(h.lockRetry)
	defer ticker.Stop()
	for {
		ok, err := h.client.SetNX(ctx, h.lockKey(), token, h.lockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire lock: %w: %w", sentinel.ErrUnavailable, err)
		}
		if ok {
			h.metrics.ObserveLockWait(time.Since(start))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire lock: %w", sentinel.ErrLockTimeout)
		case <-ticker.C:
		}
	}
}

func (h *Host) release(ctx context.Context, token string) {
	if err := unlockScript.Run(context.WithoutCancel(ctx), h.client, []string{h.lockKey()}, token).Err(); err != nil {
		h.logger.WarnContext(ctx, "failed to release storage lock", "error", err)
	}
}

func (h *Host) commit(ctx context.Context, token string, ops []op) error {
	if len(ops) == 0 {
		return nil
	}
	err := h.client.Watch(ctx, func(rtx *goredis.Tx) error {
		holder, err := rtx.Get(ctx, h.lockKey()).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return fmt.Errorf("check lock: %w", err)
		}
		if holder != token {
			return fmt.Errorf("lock lost before commit: %w", sentinel.ErrConflict)
		}
		_, err = rtx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for _, o := range ops {
				o.apply(ctx, pipe)
			}
			pipe.Incr(ctx, h.versionKey())
			return nil
		})
		return err
	}, h.lockKey())
	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("commit: %w", sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type opKind int

const (
	opSet opKind = iota
	opDel
	opExpire
)

// A zero ttl on opSet stores the key without expiry.
type op struct {
	kind  opKind
	key   string
	value []byte
	ttl   time.Duration
}

func (o op) apply(ctx context.Context, pipe goredis.Pipeliner) {
	switch o.kind {
	case opSet:
		pipe.Set(ctx, o.key, o.value, o.ttl)
	case opDel:
		pipe.Del(ctx, o.key)
	case opExpire:
		pipe.PExpire(ctx, o.key, o.ttl)
	}
}

// keyState caches what this unit of work already knows about a key.
type keyState struct {
	exists  bool
	value   []byte
	hasTTL  bool
	ttl     time.Duration // remaining lifetime at tx start, when hasTTL
	known   bool          // value is authoritative
	ttlRead bool          // hasTTL/ttl are authoritative
}

type txStore struct {
	host     *Host
	now      time.Time
	readOnly bool
	state    map[string]*keyState
	ops      []op
}

func newTxStore(h *Host, readOnly bool) *txStore {
	return &txStore{host: h, now: time.Now(), readOnly: readOnly, state: make(map[string]*keyState)}
}

// readTTL fills in the remaining lifetime of an existing key.
func (t *txStore) readTTL(ctx context.Context, k kv.Key, s *keyState) error {
	if s.ttlRead {
		return nil
	}
	ttl, err := t.host.client.PTTL(ctx, t.host.key(k)).Result()
	if err != nil {
		return fmt.Errorf("pttl %s: %w", k.Name, err)
	}
	// go-redis reports -1 (no expiry) and -2 (missing) as raw durations.
	switch {
	case ttl > 0:
		s.hasTTL, s.ttl = true, ttl
	case ttl == -2*time.Nanosecond && k.Durability == kv.Persistent:
		// Expired since it was read; the rewrite recreates it.
		s.hasTTL, s.ttl = true, t.host.lifetime.InitialOrDefault()
	default:
		s.hasTTL, s.ttl = false, 0
	}
	s.ttlRead = true
	return nil
}

func (t *txStore) load(ctx context.Context, k kv.Key) (*keyState, error) {
	name := t.host.key(k)
	if s, ok := t.state[name]; ok && s.known {
		return s, nil
	}
	v, err := t.host.client.Get(ctx, name).Bytes()
	s := &keyState{known: true}
	switch {
	case errors.Is(err, goredis.Nil):
	case err != nil:
		return nil, fmt.Errorf("get %s: %w", k.Name, err)
	default:
		s.exists = true
		s.value = v
	}
	t.state[name] = s
	return s, nil
}

func (t *txStore) Has(ctx context.Context, k kv.Key) (bool, error) {
	s, err := t.load(ctx, k)
	if err != nil {
		return false, err
	}
	return s.exists, nil
}

func (t *txStore) Get(ctx context.Context, k kv.Key) ([]byte, error) {
	s, err := t.load(ctx, k)
	if err != nil {
		return nil, err
	}
	if !s.exists {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), s.value...), nil
}

func (t *txStore) Set(ctx context.Context, k kv.Key, value []byte) error {
	if t.readOnly {
		return kv.ErrReadOnly
	}
	s, err := t.load(ctx, k)
	if err != nil {
		return err
	}
	name := t.host.key(k)
	o := op{kind: opSet, key: name, value: append([]byte(nil), value...)}
	switch {
	case k.Durability == kv.Instance:
		s.hasTTL, s.ttl, s.ttlRead = false, 0, true
	case s.exists:
		// An explicit TTL survives the key expiring before EXEC.
		if err := t.readTTL(ctx, k, s); err != nil {
			return err
		}
		if s.hasTTL {
			o.ttl = s.ttl
		}
	default:
		o.ttl = t.host.lifetime.InitialOrDefault()
		s.hasTTL, s.ttl, s.ttlRead = true, o.ttl, true
	}
	s.exists = true
	s.value = o.value
	t.ops = append(t.ops, o)
	return nil
}

func (t *txStore) Remove(ctx context.Context, k kv.Key) error {
	if t.readOnly {
		return kv.ErrReadOnly
	}
	name := t.host.key(k)
	t.state[name] = &keyState{known: true, ttlRead: true}
	t.ops = append(t.ops, op{kind: opDel, key: name})
	return nil
}

func (t *txStore) ExtendLifetime(ctx context.Context, k kv.Key, lowWater, horizon time.Duration) error {
	if t.readOnly {
		return kv.ErrReadOnly
	}
	s, err := t.load(ctx, k)
	if err != nil {
		return err
	}
	if !s.exists {
		return nil
	}
	name := t.host.key(k)
	if err := t.readTTL(ctx, k, s); err != nil {
		return err
	}
	if !s.hasTTL {
		return nil
	}
	next, changed := kv.NextExpiry(t.now, t.now.Add(s.ttl), lowWater, horizon)
	if !changed {
		return nil
	}
	s.ttl = next.Sub(t.now)
	t.ops = append(t.ops, op{kind: opExpire, key: name, ttl: s.ttl})
	return nil
}
