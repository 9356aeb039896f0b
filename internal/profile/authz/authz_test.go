package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/requestcontext"
)

func TestContextAuthorizer(t *testing.T) {
	a := ContextAuthorizer{}
	ctx := requestcontext.WithCaller(context.Background(), "GALICE")
	ctx = requestcontext.WithAttested(ctx, "GBOB")

	assert.NoError(t, a.RequireAuth(ctx, "GALICE"))
	assert.NoError(t, a.RequireAuth(ctx, "GBOB"))

	err := a.RequireAuth(ctx, "GCAROL")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotAuthorized))

	err = a.RequireAuth(context.Background(), "GALICE")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotAuthorized))

	err = a.RequireAuth(ctx, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotAuthorized))
}
