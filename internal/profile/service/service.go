// Package service implements the registry: username claims, profile
// lifecycle, per-owner fields and the admin overlay.
//
// Every public operation runs as one unit of work on the storage host.
// Preconditions are checked in a fixed order inside that unit, and
// notifications are handed to the publisher only after it commits.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"profilereg/internal/kv"
	"profilereg/internal/notify"
	"profilereg/internal/profile/metrics"
	"profilereg/internal/profile/store"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/sentinel"
	"profilereg/pkg/requestcontext"
)

// Authorizer proves that a principal authorized the current request.
type Authorizer interface {
	RequireAuth(ctx context.Context, principal id.Principal) error
}

// Deployer replaces the code backing the registry.
type Deployer interface {
	Deploy(ctx context.Context, hash id.CodeHash) error
}

// Service orchestrates registry operations.
type Service struct {
	host      kv.Host
	authz     Authorizer
	deployer  Deployer
	publisher notify.Publisher
	journal   notify.Journal
	extension store.Extension
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher sets the post-commit notification sink.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithJournal records events inside the unit of work. A journal failure
// aborts the operation.
func WithJournal(j notify.Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

func WithDeployer(d Deployer) Option {
	return func(s *Service) {
		s.deployer = d
	}
}

// WithExtension overrides the lifetime refresh window.
func WithExtension(ext store.Extension) Option {
	return func(s *Service) {
		s.extension = ext
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service.
func New(host kv.Host, authz Authorizer, opts ...Option) *Service {
	s := &Service{
		host:      host,
		authz:     authz,
		deployer:  noopDeployer{},
		publisher: notify.Discard{},
		extension: store.DefaultExtension(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("profilereg/internal/profile/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noopDeployer struct{}

func (noopDeployer) Deploy(context.Context, id.CodeHash) error { return nil }

// unit is the state of one operation inside its storage transaction.
type unit struct {
	ledger *store.Ledger
	now    time.Time
	events []notify.Event
	reqID  string
}

func (u *unit) emit(e notify.Event) {
	e.RequestID = u.reqID
	u.events = append(u.events, e)
}

// run executes fn as one unit of work. attrs are attached to the log line
// and span for the operation.
func (s *Service) run(ctx context.Context, op string, attrs []any, fn func(ctx context.Context, u *unit) error) error {
	return s.exec(ctx, op, attrs, s.host.RunInTx, fn)
}

// query is run for operations that never write. Hosts with a read-only
// path serve it without exclusive execution.
func (s *Service) query(ctx context.Context, op string, attrs []any, fn func(ctx context.Context, u *unit) error) error {
	view := func(ctx context.Context, fn func(context.Context, kv.Store) error) error {
		return kv.View(ctx, s.host, fn)
	}
	return s.exec(ctx, op, attrs, view, fn)
}

type txRunner func(ctx context.Context, fn func(ctx context.Context, store kv.Store) error) error

func (s *Service) exec(ctx context.Context, op string, attrs []any, runTx txRunner, fn func(ctx context.Context, u *unit) error) (err error) {
	ctx, span := s.tracer.Start(ctx, "profile."+op, trace.WithAttributes(spanAttrs(attrs)...))
	start := time.Now()
	defer func() { s.finish(ctx, span, op, attrs, start, err) }()

	var committed []notify.Event
	err = runTx(ctx, func(ctx context.Context, st kv.Store) error {
		// Hosts may rerun fn after a serialization conflict; start fresh.
		u := &unit{
			ledger: store.New(st, s.extension),
			now:    requestcontext.Now(ctx).UTC(),
			reqID:  requestcontext.RequestID(ctx),
		}
		if err := fn(ctx, u); err != nil {
			return err
		}
		if s.journal != nil {
			for _, e := range u.events {
				if err := s.journal.Append(ctx, e); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
				}
			}
		}
		committed = u.events
		return nil
	})
	if err != nil {
		return translate(err)
	}

	for _, e := range committed {
		if perr := s.publisher.Publish(ctx, e); perr != nil {
			s.logger.WarnContext(ctx, "notification publish failed",
				"topic", e.Topic, "event_id", e.ID, "error", perr)
		}
	}
	return nil
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, attrs []any, start time.Time, err error) {
	defer span.End()

	outcome := "ok"
	if err != nil {
		code, _ := dErrors.CodeOf(err)
		outcome = string(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.metrics.ObserveOperation(op, outcome, start)

	args := append([]any{"operation", op, "request_id", requestcontext.RequestID(ctx)}, attrs...)
	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "registry operation completed", args...)
	case isClientError(err):
		s.logger.WarnContext(ctx, "registry operation rejected", append(args, "error", err)...)
	default:
		s.logger.ErrorContext(ctx, "registry operation failed", append(args, "error", err)...)
	}
}

// logChange records a successful mutation.
func (s *Service) logChange(ctx context.Context, msg string, args ...any) {
	args = append([]any{"request_id", requestcontext.RequestID(ctx)}, args...)
	s.logger.InfoContext(ctx, msg, args...)
}

func spanAttrs(attrs []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		switch v := attrs[i+1].(type) {
		case string:
			out = append(out, attribute.String(key, v))
		case interface{ String() string }:
			out = append(out, attribute.String(key, v.String()))
		}
	}
	return out
}

// translate maps infrastructure failures to domain codes. Domain errors
// pass through unchanged.
func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update, retry the operation")
	case errors.Is(err, sentinel.ErrLockTimeout):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "storage did not respond in time")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	}
	if _, ok := dErrors.CodeOf(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "storage did not respond in time")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
}

func isClientError(err error) bool {
	code, ok := dErrors.CodeOf(err)
	if !ok {
		return false
	}
	if code.Number() != 0 {
		return true
	}
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput,
		dErrors.CodeInvalidRequest, dErrors.CodeConflict:
		return true
	}
	return false
}

// storageErr wraps a failed ledger call.
func storageErr(err error, msg string) error {
	if _, ok := dErrors.CodeOf(err); ok {
		return err
	}
	if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrLockTimeout) || errors.Is(err, sentinel.ErrUnavailable) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
