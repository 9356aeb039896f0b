// Package consumer polls Kafka topics with franz-go and hands each record
// to a Handler.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"profilereg/internal/platform/config"
)

// Message is a transport-neutral view of one record. Event is Topic
// without the deployment prefix and is filled in by Router.
type Message struct {
	Topic     string
	Event     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. Returning an error stops the consumer
// before offsets are committed.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Consumer reads from a fixed set of topics.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	group   string
	logger  *slog.Logger
}

type Option func(*settings)

type settings struct {
	group     string
	fromStart bool
	logger    *slog.Logger
}

// WithGroup joins a consumer group and commits offsets after each batch.
// Without a group the consumer reads ephemerally and commits nothing.
func WithGroup(group string) Option {
	return func(s *settings) { s.group = group }
}

// FromStart begins at the earliest offset instead of the latest.
func FromStart() Option {
	return func(s *settings) { s.fromStart = true }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// New creates a consumer for topics.
func New(cfg config.Kafka, topics []string, handler Handler, opts ...Option) (*Consumer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kafka brokers are required")
	}
	st := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&st)
	}

	offset := kgo.NewOffset().AtEnd()
	if st.fromStart {
		offset = kgo.NewOffset().AtStart()
	}
	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(offset),
	}
	if st.group != "" {
		kopts = append(kopts, kgo.ConsumerGroup(st.group), kgo.DisableAutoCommit())
	}

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, group: st.group, logger: st.logger}, nil
}

// Run polls until ctx is done or the handler fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		var handleErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if handleErr != nil {
				return
			}
			if err := c.handler.Handle(ctx, toMessage(r)); err != nil {
				handleErr = fmt.Errorf("handle %s/%d@%d: %w", r.Topic, r.Partition, r.Offset, err)
			}
		})
		if handleErr != nil {
			return handleErr
		}

		if c.group != "" {
			if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
				c.logger.WarnContext(ctx, "kafka offset commit failed", "error", err)
			}
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}

func toMessage(r *kgo.Record) *Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}
