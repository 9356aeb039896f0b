// Package request assigns every request an id.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"profilereg/pkg/requestcontext"
)

// HeaderRequestID carries the id in both directions.
const HeaderRequestID = "X-Request-ID"

const maxInboundID = 128

// RequestID reuses a reasonable inbound X-Request-ID or generates one, stores
// it in the context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" || len(reqID) > maxInboundID {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id stored by RequestID.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
