package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpapi "profilereg/internal/http"
	jwttoken "profilereg/internal/jwt_token"
	"profilereg/internal/kv"
	"profilereg/internal/platform/config"
	"profilereg/internal/platform/httpserver"
	"profilereg/internal/platform/logger"
	"profilereg/internal/platform/metrics"
	"profilereg/internal/profile/authz"
	"profilereg/internal/profile/handler"
	profilemetrics "profilereg/internal/profile/metrics"
	"profilereg/internal/profile/service"
	"profilereg/internal/profile/store"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in internal/profile.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "profilereg:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	backend, err := openStorage(ctx, cfg, log, kv.NewMetrics(m.Registry))
	if err != nil {
		return err
	}
	defer backend.Close()

	notifier, err := openNotify(ctx, cfg, log, backend, m.Registry)
	if err != nil {
		return err
	}
	defer notifier.Close()

	svc := service.New(backend.host, authz.ContextAuthorizer{},
		service.WithLogger(log),
		service.WithMetrics(profilemetrics.New(m.Registry)),
		service.WithPublisher(notifier.publisher),
		service.WithJournal(notifier.journal),
		service.WithExtension(extension(cfg.Lifetime)),
	)

	tokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	router := httpapi.NewRouter(httpapi.Deps{
		Registry:  handler.New(svc, log),
		Validator: jwttoken.NewJWTServiceAdapter(tokens),
		Metrics:   m,
		Logger:    log,
		Health:    mergeHealth(backend.health, notifier.health),
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	for _, worker := range notifier.workers {
		g.Go(func() error { return worker(gctx) })
	}
	g.Go(func() error {
		log.Info("starting profilereg",
			"addr", cfg.Server.Addr,
			"storage", cfg.Storage.Backend,
			"kafka", cfg.Kafka.Enabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func extension(l config.Lifetime) store.Extension {
	ext := store.DefaultExtension()
	if l.LowWater > 0 {
		ext.LowWater = l.LowWater
	}
	if l.Horizon > 0 {
		ext.Horizon = l.Horizon
	}
	return ext
}

func mergeHealth(sets ...map[string]httpapi.HealthCheck) map[string]httpapi.HealthCheck {
	out := map[string]httpapi.HealthCheck{}
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

