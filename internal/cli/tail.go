package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"profilereg/internal/notify"
	kafkanotify "profilereg/internal/notify/kafka"
	"profilereg/internal/platform/config"
	"profilereg/internal/platform/kafka/consumer"
	"profilereg/internal/platform/logger"
)

func tailCmd() *cobra.Command {
	var (
		topics    []string
		group     string
		fromStart bool
	)

	c := &cobra.Command{
		Use:   "tail",
		Short: "Stream registry events from Kafka as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log)

			selected, err := selectTopics(topics)
			if err != nil {
				return err
			}
			router := newTailRouter(cmd.OutOrStdout(), cfg.Kafka.TopicPrefix, selected, log)
			opts := []consumer.Option{consumer.WithLogger(log)}
			if group != "" {
				opts = append(opts, consumer.WithGroup(group))
			}
			if fromStart {
				opts = append(opts, consumer.FromStart())
			}
			cons, err := consumer.New(cfg.Kafka, router.Topics(), router, opts...)
			if err != nil {
				return err
			}
			defer cons.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cons.Run(ctx)
		},
	}

	c.Flags().StringSliceVar(&topics, "topic", nil, "event topics to follow (default: all)")
	c.Flags().StringVar(&group, "group", "", "consumer group; offsets are committed when set")
	c.Flags().BoolVar(&fromStart, "from-start", false, "start at the earliest retained event")
	return c
}

func selectTopics(raw []string) ([]notify.Topic, error) {
	if len(raw) == 0 {
		return notify.Topics, nil
	}
	known := make(map[notify.Topic]bool, len(notify.Topics))
	for _, t := range notify.Topics {
		known[t] = true
	}
	out := make([]notify.Topic, 0, len(raw))
	for _, r := range raw {
		t := notify.Topic(r)
		if !known[t] {
			return nil, fmt.Errorf("unknown topic %q", r)
		}
		out = append(out, t)
	}
	return out, nil
}

// newTailRouter prints each decoded event on its own line.
func newTailRouter(w io.Writer, prefix string, topics []notify.Topic, log *slog.Logger) *consumer.Router {
	var mu sync.Mutex
	printEvent := consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		e, err := kafkanotify.Decode(msg.Value)
		if err != nil {
			log.WarnContext(ctx, "skipping undecodable event",
				"event", msg.Event,
				"offset", msg.Offset,
				"error", err,
			)
			return nil
		}
		line, err := json.Marshal(e)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		_, err = fmt.Fprintln(w, string(line))
		return err
	})

	router := consumer.NewRouter(log, prefix)
	for _, t := range topics {
		router.Register(string(t), printEvent)
	}
	return router
}
