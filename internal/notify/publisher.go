package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Journal records events inside the storage unit of work. A Journal error
// aborts the operation, so only durable, transactional sinks belong here.
type Journal interface {
	Append(ctx context.Context, event Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

// LogSink writes events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (s LogSink) Publish(ctx context.Context, e Event) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Log(ctx, s.Level, "registry event",
		"event_id", e.ID,
		"topic", e.Topic,
		"principal", e.Principal,
		"username", e.Username,
		"field", e.Field,
		"from", e.From,
		"to", e.To,
		"request_id", e.RequestID,
	)
	return nil
}

// Fanout delivers each event to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Append lets a Recorder stand in for a Journal.
func (r *Recorder) Append(ctx context.Context, e Event) error {
	return r.Publish(ctx, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Topics returns the topics recorded so far, in order.
func (r *Recorder) Topics() []Topic {
	events := r.Events()
	out := make([]Topic, len(events))
	for i, e := range events {
		out[i] = e.Topic
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
