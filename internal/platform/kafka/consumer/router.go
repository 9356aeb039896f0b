package consumer

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Router dispatches records to handlers keyed by event name. Topics are
// named "<prefix>.<event>" so one cluster can carry several deployments;
// records from another prefix are skipped.
type Router struct {
	prefix   string
	handlers map[string]Handler
	fallback Handler
	logger   *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithFallback handles in-prefix events that have no registered handler.
func WithFallback(h Handler) RouterOption {
	return func(r *Router) { r.fallback = h }
}

// NewRouter creates a router for topics under prefix. An empty prefix
// routes bare event names.
func NewRouter(logger *slog.Logger, prefix string, opts ...RouterOption) *Router {
	r := &Router{
		prefix:   strings.TrimSuffix(prefix, "."),
		handlers: make(map[string]Handler),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a handler for an event name.
func (r *Router) Register(event string, handler Handler) {
	r.handlers[event] = handler
}

// Topic returns the Kafka topic carrying event.
func (r *Router) Topic(event string) string {
	if r.prefix == "" {
		return event
	}
	return r.prefix + "." + event
}

// Topics lists the Kafka topics with a registered handler, sorted.
func (r *Router) Topics() []string {
	out := make([]string, 0, len(r.handlers))
	for event := range r.handlers {
		out = append(out, r.Topic(event))
	}
	sort.Strings(out)
	return out
}

func (r *Router) event(topic string) (string, bool) {
	if r.prefix == "" {
		return topic, true
	}
	event, ok := strings.CutPrefix(topic, r.prefix+".")
	return event, ok && event != ""
}

// Handle sets msg.Event and routes the message to its handler.
func (r *Router) Handle(ctx context.Context, msg *Message) error {
	event, ok := r.event(msg.Topic)
	if !ok {
		r.logger.WarnContext(ctx, "topic outside routed prefix, skipping message",
			"topic", msg.Topic,
			"prefix", r.prefix,
		)
		return nil
	}
	msg.Event = event

	handler, ok := r.handlers[event]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, msg)
		}
		r.logger.WarnContext(ctx, "no handler for event, skipping message",
			"topic", msg.Topic,
			"event", event,
			"key", string(msg.Key),
		)
		return nil
	}
	return handler.Handle(ctx, msg)
}
