// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and the authorizer read them. The
// package stays free of net/http so services can depend on it directly.
//
// Usage in services (read values):
//
//	caller := requestcontext.Caller(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithCaller(ctx, principal)
//	ctx = requestcontext.WithAttested(ctx, cosigner)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"slices"
	"time"

	id "profilereg/pkg/domain"
)

type (
	callerKey      struct{}
	attestedKey    struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyCaller      = callerKey{}
	ContextKeyAttested    = attestedKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Principals
// -----------------------------------------------------------------------------

// Caller returns the principal that authenticated the request, or the zero
// principal when the request is anonymous.
func Caller(ctx context.Context) id.Principal {
	if p, ok := ctx.Value(ContextKeyCaller).(id.Principal); ok {
		return p
	}
	return ""
}

// WithCaller records the authenticated caller. The caller is also attested.
func WithCaller(ctx context.Context, p id.Principal) context.Context {
	ctx = context.WithValue(ctx, ContextKeyCaller, p)
	return WithAttested(ctx, p)
}

// Attested returns every principal whose authorization accompanies the request.
func Attested(ctx context.Context) []id.Principal {
	if ps, ok := ctx.Value(ContextKeyAttested).([]id.Principal); ok {
		return ps
	}
	return nil
}

// IsAttested reports whether p authorized the current request.
func IsAttested(ctx context.Context, p id.Principal) bool {
	if p.IsNil() {
		return false
	}
	return slices.Contains(Attested(ctx), p)
}

// WithAttested adds principals to the attested set.
func WithAttested(ctx context.Context, ps ...id.Principal) context.Context {
	existing := Attested(ctx)
	merged := make([]id.Principal, 0, len(existing)+len(ps))
	merged = append(merged, existing...)
	for _, p := range ps {
		if !p.IsNil() && !slices.Contains(merged, p) {
			merged = append(merged, p)
		}
	}
	return context.WithValue(ctx, ContextKeyAttested, merged)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
