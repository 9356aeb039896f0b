package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/httputil"
	request "profilereg/pkg/platform/middleware/request"
	"profilereg/pkg/requestcontext"
)

// HeaderCosign carries one cosign token per value.
const HeaderCosign = "X-Cosign-Token"

// PrincipalValidator turns principal tokens into principals.
type PrincipalValidator interface {
	ValidateBearer(token string) (id.Principal, error)
	ValidateCosign(token string) (id.Principal, error)
}

// RequireAuth authenticates the bearer token as the caller and adds every
// valid cosign token's principal to the attested set. A missing bearer or
// any invalid token rejects the request.
func RequireAuth(validator PrincipalValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}
			caller, err := validator.ValidateBearer(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}
			ctx = requestcontext.WithCaller(ctx, caller)

			for _, cosign := range r.Header.Values(HeaderCosign) {
				p, err := validator.ValidateCosign(cosign)
				if err != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid cosign token",
						"error", err,
						"caller", caller,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired cosign token"))
					return
				}
				ctx = requestcontext.WithAttested(ctx, p)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
