package testutil

import (
	"context"
	"net/http"

	id "profilereg/pkg/domain"
	"profilereg/pkg/requestcontext"
)

// WithCaller marks req as authenticated by principal, the way the bearer
// middleware does. Invalid principals are ignored.
func WithCaller(req *http.Request, principal string) *http.Request {
	p, err := id.ParsePrincipal(principal)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), p))
}

// WithAttested adds cosigning principals to req.
func WithAttested(req *http.Request, principals ...string) *http.Request {
	ps := make([]id.Principal, 0, len(principals))
	for _, raw := range principals {
		if p, err := id.ParsePrincipal(raw); err == nil {
			ps = append(ps, p)
		}
	}
	return req.WithContext(requestcontext.WithAttested(req.Context(), ps...))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
