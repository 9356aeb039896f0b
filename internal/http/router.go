// Package httpapi assembles the process HTTP router.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"profilereg/internal/platform/metrics"
	"profilereg/internal/profile/handler"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/httputil"
	authmw "profilereg/pkg/platform/middleware/auth"
	"profilereg/pkg/platform/middleware/metadata"
	"profilereg/pkg/platform/middleware/request"
	"profilereg/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces the router mounts.
type Deps struct {
	Registry  *handler.Handler
	Validator authmw.PrincipalValidator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Health    map[string]HealthCheck
}

// NewRouter wires middleware, the registry API, health and metrics.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(d.Health, d.Logger))

	d.Registry.Register(r, authmw.RequireAuth(d.Validator, d.Logger))
	return r
}

func readiness(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
				status[name] = "unavailable"
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "dependencies unavailable"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, status)
	}
}
