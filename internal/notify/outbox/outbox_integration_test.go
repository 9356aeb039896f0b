//go:build integration

package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kvpostgres "profilereg/internal/kv/postgres"
	"profilereg/internal/notify"
	"profilereg/internal/profile/authz"
	"profilereg/internal/profile/service"
	id "profilereg/pkg/domain"
	"profilereg/pkg/requestcontext"
	"profilereg/pkg/testutil"
	"profilereg/pkg/testutil/containers"
)

type flakyPublisher struct {
	notify.Recorder
	failNext bool
}

func (p *flakyPublisher) Publish(ctx context.Context, e notify.Event) error {
	if p.failNext {
		p.failNext = false
		return errors.New("broker unavailable")
	}
	return p.Recorder.Publish(ctx, e)
}

func as(p id.Principal) context.Context {
	return requestcontext.WithCaller(context.Background(), p)
}

func TestOutboxWithRegistry(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	require.NoError(t, kvpostgres.Migrate(ctx, pg.DB))
	require.NoError(t, Migrate(ctx, pg.DB))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := New(pg.DB)
	svc := service.New(kvpostgres.New(pg.DB), authz.ContextAuthorizer{},
		service.WithJournal(store),
		service.WithLogger(logger),
	)
	require.NoError(t, svc.Init(as("GADMIN"), "GADMIN"))

	testutil.Given(t, "a committed registration", func(t *testing.T) {
		_, err := svc.Register(as("GALICE"), "alice001", "Alice", "GALICE")
		require.NoError(t, err)

		testutil.Then(t, "its event waits in the outbox", func(t *testing.T) {
			pending, err := store.Pending(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, pending)
		})
	})

	testutil.Given(t, "a failed registration", func(t *testing.T) {
		_, err := svc.Register(as("GBOB"), "alice001", "Bob", "GBOB")
		require.Error(t, err)

		testutil.Then(t, "nothing is journaled", func(t *testing.T) {
			pending, err := store.Pending(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, pending)
		})
	})

	testutil.Given(t, "a relay whose publisher fails once", func(t *testing.T) {
		_, err := svc.Register(as("GCAROL"), "carol123", "Carol", "GCAROL")
		require.NoError(t, err)
		pub := &flakyPublisher{failNext: true}
		relay := NewRelay(pg.DB, pub, WithRelayLogger(logger), WithBatchSize(10))

		testutil.When(t, "the relay runs twice", func(t *testing.T) {
			n, err := relay.RelayOnce(ctx)
			require.Error(t, err)
			assert.Zero(t, n)

			n, err = relay.RelayOnce(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			testutil.Then(t, "events arrive in commit order and the outbox drains", func(t *testing.T) {
				events := pub.Events()
				require.Len(t, events, 2)
				assert.Equal(t, "alice001", events[0].Username.String())
				assert.Equal(t, "carol123", events[1].Username.String())

				pending, err := store.Pending(ctx)
				require.NoError(t, err)
				assert.Zero(t, pending)
			})
		})
	})
}
