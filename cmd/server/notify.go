package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	httpapi "profilereg/internal/http"
	"profilereg/internal/notify"
	kafkanotify "profilereg/internal/notify/kafka"
	"profilereg/internal/notify/outbox"
	"profilereg/internal/platform/config"
	"profilereg/internal/platform/kafka/producer"
	"profilereg/pkg/platform/circuit"
)

// notifier bundles the publication path chosen for the configured backends.
type notifier struct {
	publisher notify.Publisher
	journal   notify.Journal
	workers   []func(ctx context.Context) error
	health    map[string]httpapi.HealthCheck
	close     []func()
}

func (n *notifier) Close() {
	for _, c := range n.close {
		c()
	}
}

// openNotify picks the delivery path. With Postgres and Kafka both present,
// events are journaled in the storage transaction and relayed to Kafka.
// Otherwise they are published after commit through an async buffer
// guarded by a circuit breaker.
func openNotify(ctx context.Context, cfg config.Config, log *slog.Logger, st *storage, reg prometheus.Registerer) (*notifier, error) {
	n := &notifier{health: map[string]httpapi.HealthCheck{}}

	var sink notify.Publisher = notify.Discard{}
	if cfg.Notify.LogEvents {
		sink = notify.LogSink{Logger: log, Level: slog.LevelInfo}
	}

	if cfg.Kafka.Enabled() {
		p, err := producer.New(cfg.Kafka, producer.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		n.close = append(n.close, p.Close)
		n.health["kafka"] = p.Ping
		if err := p.EnsureTopics(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor, kafkanotify.AllTopics(cfg.Kafka.TopicPrefix)...); err != nil {
			log.Warn("could not ensure kafka topics", "error", err)
		}
		kafkaPub := kafkanotify.NewPublisher(p, cfg.Kafka.TopicPrefix)

		if st.db != nil {
			if err := outbox.Migrate(ctx, st.db); err != nil {
				return nil, fmt.Errorf("migrate outbox schema: %w", err)
			}
			n.journal = outbox.New(st.db)
			relay := outbox.NewRelay(st.db, kafkaPub,
				outbox.WithRelayLogger(log),
				outbox.WithBatchSize(cfg.Notify.RelayBatch),
				outbox.WithInterval(cfg.Notify.RelayInterval),
			)
			n.workers = append(n.workers, relay.Run)
			n.publisher = sink
			return n, nil
		}

		if cfg.Notify.LogEvents {
			sink = notify.Fanout{kafkaPub, sink}
		} else {
			sink = kafkaPub
		}
	}

	breaker := circuit.New("notify",
		circuit.WithFailureThreshold(cfg.Notify.BreakerThreshold),
		circuit.WithCooldown(cfg.Notify.BreakerCooldown),
	)
	async := notify.NewAsync(sink,
		notify.WithBufferSize(cfg.Notify.BufferSize),
		notify.WithBreaker(breaker),
		notify.WithLogger(log),
		notify.WithMetrics(notify.NewMetrics(reg)),
	)
	n.publisher = async
	n.workers = append(n.workers, async.Run)
	return n, nil
}
