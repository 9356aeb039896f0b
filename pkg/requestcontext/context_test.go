package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "profilereg/pkg/domain"
)

func TestCallerIsAttested(t *testing.T) {
	ctx := context.Background()
	assert.True(t, Caller(ctx).IsNil())
	assert.Empty(t, Attested(ctx))

	alice := id.Principal("GALICE")
	ctx = WithCaller(ctx, alice)
	assert.Equal(t, alice, Caller(ctx))
	assert.True(t, IsAttested(ctx, alice))
}

func TestWithAttestedMergesWithoutDuplicates(t *testing.T) {
	alice, bob := id.Principal("GALICE"), id.Principal("GBOB")
	parent := WithCaller(context.Background(), alice)
	ctx := WithAttested(parent, bob, alice, "", bob)

	assert.Equal(t, []id.Principal{alice, bob}, Attested(ctx))
	assert.False(t, IsAttested(ctx, ""), "the zero principal is never attested")
	assert.False(t, IsAttested(parent, bob), "parent context is not modified")
}

func TestRequestMetadata(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithClientMetadata(ctx, "10.0.0.1", "profilectl/1.0")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "profilectl/1.0", UserAgent(ctx))
}

func TestNowPrefersRequestTime(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Minute)
}
