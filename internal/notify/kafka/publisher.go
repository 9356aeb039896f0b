// Package kafka streams registry events to Kafka, one Kafka topic per
// event topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"profilereg/internal/notify"
)

// Producer is the subset of the platform producer used here.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Header names set on every record.
const (
	HeaderEventID   = "event_id"
	HeaderTopic     = "event_topic"
	HeaderRequestID = "request_id"
)

// Publisher implements notify.Publisher.
type Publisher struct {
	producer Producer
	prefix   string
}

// NewPublisher publishes to "<prefix>.<event topic>".
func NewPublisher(p Producer, prefix string) *Publisher {
	return &Publisher{producer: p, prefix: strings.TrimSuffix(prefix, ".")}
}

// TopicFor returns the Kafka topic carrying t.
func (p *Publisher) TopicFor(t notify.Topic) string {
	return TopicName(p.prefix, t)
}

// TopicName joins prefix and t.
func TopicName(prefix string, t notify.Topic) string {
	if prefix == "" {
		return t.String()
	}
	return prefix + "." + t.String()
}

// AllTopics returns every Kafka topic the publisher writes to.
func AllTopics(prefix string) []string {
	out := make([]string, len(notify.Topics))
	for i, t := range notify.Topics {
		out[i] = TopicName(prefix, t)
	}
	return out
}

func (p *Publisher) Publish(ctx context.Context, e notify.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	headers := map[string]string{
		HeaderEventID: e.ID.String(),
		HeaderTopic:   e.Topic.String(),
	}
	if e.RequestID != "" {
		headers[HeaderRequestID] = e.RequestID
	}
	return p.producer.Produce(ctx, p.TopicFor(e.Topic), []byte(e.Key()), payload, headers)
}

// Decode parses a record value produced by Publish.
func Decode(value []byte) (notify.Event, error) {
	var e notify.Event
	if err := json.Unmarshal(value, &e); err != nil {
		return notify.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
