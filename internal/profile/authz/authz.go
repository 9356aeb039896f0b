// Package authz checks principal authorization against the attestations
// carried by the request context.
package authz

import (
	"context"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/requestcontext"
)

// ContextAuthorizer accepts a principal when middleware attested it for the
// current request, either as the bearer or as a co-signer.
type ContextAuthorizer struct{}

func (ContextAuthorizer) RequireAuth(ctx context.Context, p id.Principal) error {
	if p.IsNil() {
		return dErrors.New(dErrors.CodeNotAuthorized, "principal is required")
	}
	if !requestcontext.IsAttested(ctx, p) {
		return dErrors.New(dErrors.CodeNotAuthorized, "authorization from "+p.String()+" is required")
	}
	return nil
}
