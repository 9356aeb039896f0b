package notify

import (
	"context"
	"log/slog"
	"time"

	"profilereg/pkg/platform/circuit"
)

const (
	defaultBatchSize     = 64
	defaultFlushInterval = 50 * time.Millisecond
)

// Async decouples publishing from delivery. Publish only enqueues; Run
// drains the queue into the downstream publisher until ctx is done. A
// circuit breaker sheds events while the downstream keeps failing.
type Async struct {
	next     Publisher
	buffer   *RingBuffer
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *Metrics
	batch    int
	interval time.Duration
	wake     chan struct{}
}

type AsyncOption func(*Async)

func WithBufferSize(n int) AsyncOption {
	return func(a *Async) { a.buffer = NewRingBuffer(n) }
}

func WithBreaker(b *circuit.Breaker) AsyncOption {
	return func(a *Async) { a.breaker = b }
}

func WithLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) { a.logger = logger }
}

func WithMetrics(m *Metrics) AsyncOption {
	return func(a *Async) { a.metrics = m }
}

func WithFlushInterval(d time.Duration) AsyncOption {
	return func(a *Async) {
		if d > 0 {
			a.interval = d
		}
	}
}

// NewAsync wraps next.
func NewAsync(next Publisher, opts ...AsyncOption) *Async {
	a := &Async{
		next:     next,
		buffer:   NewRingBuffer(0),
		breaker:  circuit.New("notify"),
		logger:   slog.Default(),
		batch:    defaultBatchSize,
		interval: defaultFlushInterval,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Publish enqueues e. It never blocks and never fails.
func (a *Async) Publish(_ context.Context, e Event) error {
	if a.buffer.Enqueue(e) {
		a.metrics.dropped(1)
	}
	a.metrics.depth(a.buffer.Len())
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued events.
func (a *Async) Pending() int { return a.buffer.Len() }

// Run delivers queued events until ctx is done, then makes a final
// best-effort flush with a detached context.
func (a *Async) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.Flush(context.WithoutCancel(ctx))
			return nil
		case <-a.wake:
		case <-ticker.C:
		}
		a.Flush(ctx)
	}
}

// Flush delivers everything currently queued.
func (a *Async) Flush(ctx context.Context) {
	for {
		events := a.buffer.DequeueBatch(a.batch)
		if len(events) == 0 {
			a.metrics.depth(0)
			return
		}
		for _, e := range events {
			a.deliver(ctx, e)
		}
		a.metrics.depth(a.buffer.Len())
	}
}

func (a *Async) deliver(ctx context.Context, e Event) {
	if !a.breaker.Allow() {
		a.metrics.dropped(1)
		return
	}
	if err := a.next.Publish(ctx, e); err != nil {
		a.metrics.failed(e.Topic)
		if _, change := a.breaker.RecordFailure(); change.Opened {
			a.metrics.breakerOpened()
			a.logger.WarnContext(ctx, "notification circuit opened", "breaker", a.breaker.Name(), "error", err)
		}
		a.logger.DebugContext(ctx, "notification delivery failed",
			"event_id", e.ID, "topic", e.Topic, "error", err)
		return
	}
	if _, change := a.breaker.RecordSuccess(); change.Closed {
		a.logger.InfoContext(ctx, "notification circuit closed", "breaker", a.breaker.Name())
	}
	a.metrics.delivered(e.Topic)
}
