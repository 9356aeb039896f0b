package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Authorizer,Deployer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"profilereg/internal/kv"
	"profilereg/internal/kv/memory"
	"profilereg/internal/notify"
	"profilereg/internal/profile/authz"
	"profilereg/internal/profile/metrics"
	"profilereg/internal/profile/models"
	"profilereg/internal/profile/store"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/requestcontext"
)

const (
	admin id.Principal = "GADMIN"
	alice id.Principal = "GALICE"
	bob   id.Principal = "GBOB"
	carol id.Principal = "GCAROL"
)

var t0 = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	host     *memory.Host
	events   *notify.Recorder
	metrics  *metrics.Metrics
	service  *Service
	now      time.Time
	quietLog *slog.Logger
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = t0
	s.host = memory.New(memory.WithClock(func() time.Time { return s.now }))
	s.events = &notify.Recorder{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.host, authz.ContextAuthorizer{},
		WithPublisher(s.events),
		WithMetrics(s.metrics),
		WithLogger(s.quietLog),
	)
}

// as returns a request context attested by every principal given. The
// first principal is the caller.
func (s *ServiceSuite) as(ps ...id.Principal) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithRequestID(ctx, "req-test")
	if len(ps) == 0 {
		return ctx
	}
	ctx = requestcontext.WithCaller(ctx, ps[0])
	return requestcontext.WithAttested(ctx, ps[1:]...)
}

func (s *ServiceSuite) initialized() {
	s.Require().NoError(s.service.Init(s.as(admin), admin))
	s.events.Reset()
}

func (s *ServiceSuite) register(u string, owner id.Principal) *models.Profile {
	p, err := s.service.Register(s.as(owner), u, "Display "+u, owner)
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	got, _ := dErrors.CodeOf(err)
	s.Require().Equal(code, got, "error: %v", err)
}

func (s *ServiceSuite) TestAliceLifecycle() {
	s.initialized()
	ctx := s.as(alice)

	p, err := s.service.Register(ctx, "alice001", "Alice", alice)
	s.Require().NoError(err)
	want := &models.Profile{
		Username:    "alice001",
		DisplayName: "Alice",
		Owner:       alice,
		CreatedAt:   t0,
		UpdatedAt:   t0,
		Status:      models.StatusActive,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		s.T().Errorf("registered profile mismatch (-want +got):\n%s", diff)
	}

	count, err := s.service.ProfileCount(ctx)
	s.Require().NoError(err)
	s.EqualValues(1, count)

	s.Require().NoError(s.service.SetStringField(ctx, "bio", "hi", alice))
	v, ok, err := s.service.GetField(ctx, alice, "bio")
	s.Require().NoError(err)
	s.Require().True(ok)
	str, ok := v.AsString()
	s.True(ok)
	s.Equal("hi", str)

	s.Require().NoError(s.service.DeleteProfile(ctx, alice))

	_, ok, err = s.service.GetByOwner(ctx, alice)
	s.Require().NoError(err)
	s.False(ok)
	_, ok, err = s.service.GetByUsername(ctx, "alice001")
	s.Require().NoError(err)
	s.False(ok)

	available, err := s.service.IsUsernameAvailable(ctx, "alice001")
	s.Require().NoError(err)
	s.False(available)

	s.Equal([]notify.Topic{
		notify.TopicProfileRegistered,
		notify.TopicProfileUpdated,
		notify.TopicProfileDeleted,
	}, s.events.Topics())
	s.InDelta(1, testutil.ToFloat64(s.metrics.ProfilesRegistered), 0)
}

func (s *ServiceSuite) TestUsernameTakenByAnotherOwner() {
	s.initialized()
	s.register("alice001", alice)

	_, err := s.service.Register(s.as(bob), "alice001", "Bob", bob)
	s.requireCode(err, dErrors.CodeUsernameTaken)
	s.Equal(dErrors.CodeUsernameTaken.Number(), uint32(5))
}

func (s *ServiceSuite) TestDeletedOwnerCannotRegisterAgain() {
	s.initialized()
	s.register("alice001", alice)
	s.Require().NoError(s.service.DeleteProfile(s.as(alice), alice))

	_, err := s.service.Register(s.as(alice), "alice002", "Alice", alice)
	s.requireCode(err, dErrors.CodeProfileExists)

	count, err := s.service.ProfileCount(s.as())
	s.Require().NoError(err)
	s.EqualValues(1, count)
}

func (s *ServiceSuite) TestTransferMovesProfileAndIndex() {
	s.initialized()
	s.register("alice001", alice)
	s.now = t0.Add(time.Hour)

	s.Require().NoError(s.service.Transfer(s.as(alice, bob), bob, alice))

	_, ok, err := s.service.GetByOwner(s.as(), alice)
	s.Require().NoError(err)
	s.False(ok)

	byOwner, ok, err := s.service.GetByOwner(s.as(), bob)
	s.Require().NoError(err)
	s.Require().True(ok)
	byName, ok, err := s.service.GetByUsername(s.as(), "alice001")
	s.Require().NoError(err)
	s.Require().True(ok)

	for _, p := range []*models.Profile{byOwner, byName} {
		s.Equal(bob, p.Owner)
		s.EqualValues("alice001", p.Username)
		s.Equal(t0, p.CreatedAt)
		s.Equal(t0.Add(time.Hour), p.UpdatedAt)
	}

	events := s.events.Events()
	s.Require().Len(events, 2)
	s.Equal(notify.TopicUsernameTransferred, events[1].Topic)
	s.Equal(alice, events[1].From)
	s.Equal(bob, events[1].To)
	s.Equal("req-test", events[1].RequestID)

	ttl, ok := s.host.TTL(store.ProfileKey(bob))
	s.Require().True(ok)
	s.Greater(ttl, store.DefaultLowWater)
}

func (s *ServiceSuite) TestTransferPreconditions() {
	s.initialized()
	s.register("alice001", alice)
	s.register("carol123", carol)
	s.Require().NoError(s.service.DeleteProfile(s.as(carol), carol))

	s.Run("new owner must authorize", func() {
		err := s.service.Transfer(s.as(alice), bob, alice)
		s.requireCode(err, dErrors.CodeNotAuthorized)
	})
	s.Run("new owner with a deleted profile", func() {
		err := s.service.Transfer(s.as(alice, carol), carol, alice)
		s.requireCode(err, dErrors.CodeProfileExists)
	})
	s.Run("transfer to self", func() {
		err := s.service.Transfer(s.as(alice), alice, alice)
		s.requireCode(err, dErrors.CodeProfileExists)
	})
	s.Run("deleted profile cannot move", func() {
		err := s.service.Transfer(s.as(carol, bob), bob, carol)
		s.requireCode(err, dErrors.CodeProfileDeleted)
	})
	s.Run("caller without profile", func() {
		err := s.service.Transfer(s.as(bob, alice), alice, bob)
		s.requireCode(err, dErrors.CodeProfileNotFound)
	})
}

func (s *ServiceSuite) TestReservationBlocksRegistration() {
	s.initialized()
	adminCtx := s.as(admin)

	s.Require().NoError(s.service.ReserveUsername(adminCtx, "stellar123", admin))
	available, err := s.service.IsUsernameAvailable(s.as(), "stellar123")
	s.Require().NoError(err)
	s.False(available)

	_, err = s.service.Register(s.as(alice), "stellar123", "Alice", alice)
	s.requireCode(err, dErrors.CodeUsernameReserved)

	s.Require().NoError(s.service.UnreserveUsername(adminCtx, "stellar123", admin))
	available, err = s.service.IsUsernameAvailable(s.as(), "stellar123")
	s.Require().NoError(err)
	s.True(available)

	s.Equal([]notify.Topic{notify.TopicUsernameReserved, notify.TopicUsernameUnreserved}, s.events.Topics())
}

func (s *ServiceSuite) TestReservationHoldsUntilUnreserved() {
	s.initialized()
	s.Require().NoError(s.service.ReserveUsername(s.as(admin), "stellar123", admin))

	for _, wait := range []time.Duration{kv.DefaultInitialLifetime + 24*time.Hour, store.DefaultHorizon} {
		s.now = s.now.Add(wait)

		available, err := s.service.IsUsernameAvailable(s.as(), "stellar123")
		s.Require().NoError(err)
		s.False(available, "after %s", wait)

		_, err = s.service.Register(s.as(bob), "stellar123", "Bob", bob)
		s.requireCode(err, dErrors.CodeUsernameReserved)
	}

	s.Require().NoError(s.service.UnreserveUsername(s.as(admin), "stellar123", admin))
	s.register("stellar123", bob)
}

// ttl fails the test when key is absent.
func (s *ServiceSuite) ttl(key kv.Key) time.Duration {
	s.T().Helper()
	ttl, ok := s.host.TTL(key)
	s.Require().True(ok, key.Name)
	return ttl
}

func (s *ServiceSuite) TestRegisterAndSetFieldRefreshLifetime() {
	s.initialized()
	p := s.register("alice001", alice)
	s.Equal(store.DefaultHorizon, s.ttl(store.UsernameKey(p.Username)))
	s.Equal(store.DefaultHorizon, s.ttl(store.ProfileKey(alice)))

	s.now = s.now.Add(store.DefaultHorizon - store.DefaultLowWater/2)
	s.Require().NoError(s.service.SetStringField(s.as(alice), "bio", "hi", alice))
	s.Equal(store.DefaultHorizon, s.ttl(store.FieldKey(alice, models.FieldBio)))

	s.Require().NoError(s.service.SetDisplayName(s.as(alice), "Alice", alice))
	s.Equal(store.DefaultHorizon, s.ttl(store.ProfileKey(alice)))
}

func (s *ServiceSuite) TestDeleteAndBanRefreshProfileLifetime() {
	s.initialized()
	s.register("alice001", alice)
	s.register("bob_xx123", bob)
	nearLowWater := store.DefaultHorizon - store.DefaultLowWater/2

	s.now = s.now.Add(nearLowWater)
	s.Less(s.ttl(store.ProfileKey(alice)), store.DefaultLowWater)
	s.Require().NoError(s.service.DeleteProfile(s.as(alice), alice))
	s.Equal(store.DefaultHorizon, s.ttl(store.ProfileKey(alice)))

	s.Require().NoError(s.service.BanProfile(s.as(admin), bob, admin))
	s.Equal(store.DefaultHorizon, s.ttl(store.ProfileKey(bob)))

	s.now = s.now.Add(nearLowWater)
	s.Require().NoError(s.service.BanProfile(s.as(admin), alice, admin))
	s.Equal(store.DefaultHorizon, s.ttl(store.ProfileKey(alice)), "banning a deleted profile still refreshes it")
}

func (s *ServiceSuite) TestReserveAcceptsTakenNameButRejectsInvalid() {
	s.initialized()
	s.register("alice001", alice)

	s.NoError(s.service.ReserveUsername(s.as(admin), "alice001", admin))
	err := s.service.ReserveUsername(s.as(admin), "Alice001", admin)
	s.requireCode(err, dErrors.CodeInvalidUsername)
}

func (s *ServiceSuite) TestNoOps() {
	s.initialized()
	s.register("alice001", alice)
	s.events.Reset()

	s.NoError(s.service.UnreserveUsername(s.as(admin), "never_reserved1", admin))
	s.NoError(s.service.RemoveField(s.as(alice), "bio", alice))
	s.Empty(s.events.Events())
}

func (s *ServiceSuite) TestAvailabilityRequiresValidSyntax() {
	s.initialized()
	for _, u := range []string{"", "ab1", "ALICE001", "alice_00x", "abcdefghijklmno123"} {
		ok, err := s.service.IsUsernameAvailable(s.as(), u)
		s.Require().NoError(err)
		s.False(ok, u)
	}
	ok, err := s.service.IsUsernameAvailable(s.as(), "bob_builder123")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *ServiceSuite) TestRegisterPreconditionOrder() {
	s.Run("not initialized wins over invalid username", func() {
		_, err := s.service.Register(s.as(alice), "NOPE", "x", alice)
		s.requireCode(err, dErrors.CodeNotInitialized)
	})

	s.initialized()
	s.register("alice001", alice)
	s.Require().NoError(s.service.ReserveUsername(s.as(admin), "alice001", admin))
	s.Require().NoError(s.service.ReserveUsername(s.as(admin), "stellar123", admin))

	s.Run("unauthorized caller is rejected first", func() {
		_, err := s.service.Register(s.as(bob), "NOPE", "x", carol)
		s.requireCode(err, dErrors.CodeNotAuthorized)
	})
	s.Run("invalid username", func() {
		_, err := s.service.Register(s.as(alice), "NOPE", "x", alice)
		s.requireCode(err, dErrors.CodeInvalidUsername)
	})
	s.Run("taken wins over reserved", func() {
		_, err := s.service.Register(s.as(bob), "alice001", "x", bob)
		s.requireCode(err, dErrors.CodeUsernameTaken)
	})
	s.Run("reserved wins over existing profile", func() {
		_, err := s.service.Register(s.as(alice), "stellar123", "x", alice)
		s.requireCode(err, dErrors.CodeUsernameReserved)
	})
	s.Run("existing profile", func() {
		_, err := s.service.Register(s.as(alice), "alice002", "x", alice)
		s.requireCode(err, dErrors.CodeProfileExists)
	})
}

func (s *ServiceSuite) TestMutatorPreconditionOrder() {
	s.initialized()
	s.register("alice001", alice)
	s.register("carol123", carol)
	s.Require().NoError(s.service.DeleteProfile(s.as(carol), carol))

	// A record whose owner does not match its slot can only come from
	// storage written outside the registry.
	s.Require().NoError(s.host.RunInTx(context.Background(), func(ctx context.Context, st kv.Store) error {
		p, err := models.NewProfile("bob_xx123", "Bob", alice, t0)
		if err != nil {
			return err
		}
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return st.Set(ctx, store.ProfileKey(bob), b)
	}))

	ops := map[string]func(ctx context.Context, caller id.Principal) error{
		"set_display_name": func(ctx context.Context, c id.Principal) error { return s.service.SetDisplayName(ctx, "x", c) },
		"set_field":        func(ctx context.Context, c id.Principal) error { return s.service.SetBoolField(ctx, "hiring", true, c) },
		"remove_field":     func(ctx context.Context, c id.Principal) error { return s.service.RemoveField(ctx, "bio", c) },
		"delete_profile":   func(ctx context.Context, c id.Principal) error { return s.service.DeleteProfile(ctx, c) },
	}
	for name, op := range ops {
		s.Run(name, func() {
			s.requireCode(op(s.as(bob), alice), dErrors.CodeNotAuthorized)
			s.requireCode(op(s.as("GNOBODY"), "GNOBODY"), dErrors.CodeProfileNotFound)
			s.requireCode(op(s.as(carol), carol), dErrors.CodeProfileDeleted)
			s.requireCode(op(s.as(bob), bob), dErrors.CodeNotAuthorized)
		})
	}
}

func (s *ServiceSuite) TestSetDisplayNameRefreshesUpdatedAt() {
	s.initialized()
	s.register("alice001", alice)
	s.now = t0.Add(2 * time.Minute)

	s.Require().NoError(s.service.SetDisplayName(s.as(alice), "Alice A.", alice))
	p, ok, err := s.service.GetByOwner(s.as(), alice)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("Alice A.", p.DisplayName)
	s.Equal(t0, p.CreatedAt)
	s.Equal(t0.Add(2*time.Minute), p.UpdatedAt)
	s.Equal([]notify.Topic{notify.TopicProfileRegistered, notify.TopicDisplayNameChanged}, s.events.Topics())
}

func (s *ServiceSuite) TestFieldVariants() {
	s.initialized()
	s.register("alice001", alice)
	ctx := s.as(alice)

	big, err := models.ParseInt128("170141183460469231731687303715884105727")
	s.Require().NoError(err)
	s.Require().NoError(s.service.SetIntField(ctx, "karma", big, alice))
	s.Require().NoError(s.service.SetBoolField(ctx, "hiring", true, alice))
	s.Require().NoError(s.service.SetAddressField(ctx, "wallet", bob, alice))
	s.Require().NoError(s.service.SetBytesField(ctx, "avatar", []byte{0, 1, 2}, alice))

	v, ok, err := s.service.GetField(ctx, alice, "karma")
	s.Require().NoError(err)
	s.Require().True(ok)
	n, isInt := v.AsInt()
	s.True(isInt)
	s.Equal(big.String(), n.String())
	_, isStr := v.AsString()
	s.False(isStr, "no coercion across variants")

	fields, err := s.service.GetFields(ctx, alice, []string{"hiring", "wallet", "hiring", "missing", "avatar"})
	s.Require().NoError(err)
	s.Len(fields, 3)
	addr, _ := fields["wallet"].AsAddress()
	s.Equal(bob, addr)
	raw, _ := fields["avatar"].AsBytes()
	s.Equal([]byte{0, 1, 2}, raw)

	s.Require().NoError(s.service.SetStringField(ctx, "karma", "overwritten", alice))
	v, _, err = s.service.GetField(ctx, alice, "karma")
	s.Require().NoError(err)
	s.Equal(models.KindString, v.Kind())
}

func (s *ServiceSuite) TestInvalidFieldNames() {
	s.initialized()
	s.register("alice001", alice)

	err := s.service.SetStringField(s.as(alice), "no-dashes", "x", alice)
	s.requireCode(err, dErrors.CodeInvalidField)
	err = s.service.SetField(s.as(alice), "bio", models.FieldValue{}, alice)
	s.requireCode(err, dErrors.CodeInvalidField)
	_, _, err = s.service.GetField(s.as(), alice, "")
	s.requireCode(err, dErrors.CodeInvalidField)
	_, err = s.service.GetFields(s.as(), alice, []string{"bio", "way_too_long_for_a_field_name_ok_"})
	s.requireCode(err, dErrors.CodeInvalidField)
}

func (s *ServiceSuite) TestFieldsSurviveSoftDelete() {
	s.initialized()
	s.register("alice001", alice)
	s.Require().NoError(s.service.SetStringField(s.as(alice), "bio", "hi", alice))
	s.Require().NoError(s.service.DeleteProfile(s.as(alice), alice))

	_, ok, err := s.service.GetField(s.as(), alice, "bio")
	s.Require().NoError(err)
	s.True(ok)

	err = s.service.SetStringField(s.as(alice), "bio", "again", alice)
	s.requireCode(err, dErrors.CodeProfileDeleted)
}

func (s *ServiceSuite) TestInit() {
	s.Run("requires the admin's authorization", func() {
		err := s.service.Init(s.as(alice), admin)
		s.requireCode(err, dErrors.CodeNotAuthorized)
		_, err = s.service.Admin(s.as())
		s.requireCode(err, dErrors.CodeNotInitialized)
	})
	s.Run("records admin and zero count", func() {
		s.Require().NoError(s.service.Init(s.as(admin), admin))
		got, err := s.service.Admin(s.as())
		s.Require().NoError(err)
		s.Equal(admin, got)
		n, err := s.service.ProfileCount(s.as())
		s.Require().NoError(err)
		s.Zero(n)
	})
	s.Run("only once", func() {
		err := s.service.Init(s.as(alice), alice)
		s.requireCode(err, dErrors.CodeAlreadyInitialized)
	})
}

func (s *ServiceSuite) TestRegistrationFee() {
	s.initialized()

	fee, err := s.service.RegistrationFee(s.as())
	s.Require().NoError(err)
	s.Equal("0", fee.String())

	neg := models.Int128FromInt64(-5)
	s.Require().NoError(s.service.SetRegistrationFee(s.as(admin), neg, admin))
	fee, err = s.service.RegistrationFee(s.as())
	s.Require().NoError(err)
	s.Equal("-5", fee.String())

	err = s.service.SetRegistrationFee(s.as(alice), models.Int128FromInt64(1), alice)
	s.requireCode(err, dErrors.CodeNotAuthorized)
}

func (s *ServiceSuite) TestBan() {
	s.initialized()
	s.register("alice001", alice)

	s.requireCode(s.service.BanProfile(s.as(alice), alice, alice), dErrors.CodeNotAuthorized)
	s.requireCode(s.service.BanProfile(s.as(admin), bob, admin), dErrors.CodeProfileNotFound)

	s.Require().NoError(s.service.BanProfile(s.as(admin), alice, admin))
	_, ok, err := s.service.GetByOwner(s.as(), alice)
	s.Require().NoError(err)
	s.False(ok)

	s.NoError(s.service.BanProfile(s.as(admin), alice, admin), "ban ignores deleted state")
	s.Equal([]notify.Topic{notify.TopicProfileRegistered, notify.TopicProfileBanned, notify.TopicProfileBanned}, s.events.Topics())
}

func (s *ServiceSuite) TestFailedOperationsEmitNothing() {
	s.initialized()
	s.register("alice001", alice)
	s.events.Reset()

	_, err := s.service.Register(s.as(bob), "alice001", "Bob", bob)
	s.Require().Error(err)
	s.Empty(s.events.Events())

	ok, err := s.service.IsUsernameAvailable(s.as(), "bob_xx123")
	s.Require().NoError(err)
	s.True(ok, "failed registration left no trace")
}

func (s *ServiceSuite) TestJournalFailureAbortsOperation() {
	s.initialized()
	svc := New(s.host, authz.ContextAuthorizer{},
		WithPublisher(s.events),
		WithJournal(failingJournal{}),
		WithLogger(s.quietLog),
	)

	_, err := svc.Register(s.as(alice), "alice001", "Alice", alice)
	s.requireCode(err, dErrors.CodeInternal)

	ok, err := s.service.IsUsernameAvailable(s.as(), "alice001")
	s.Require().NoError(err)
	s.True(ok)
	s.Empty(s.events.Events())
}

func (s *ServiceSuite) TestJournalReceivesEventsInsideUnitOfWork() {
	s.initialized()
	journal := &notify.Recorder{}
	svc := New(s.host, authz.ContextAuthorizer{}, WithJournal(journal), WithLogger(s.quietLog))

	_, err := svc.Register(s.as(alice), "alice001", "Alice", alice)
	s.Require().NoError(err)
	s.Equal([]notify.Topic{notify.TopicProfileRegistered}, journal.Topics())
}

func (s *ServiceSuite) TestConcurrentRegistrationsCommitOnce() {
	s.initialized()
	const workers = 12

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		taken   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := id.Principal("GRACER" + string(rune('A'+i)))
			_, err := s.service.Register(s.as(owner), "racer_001", "Racer", owner)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case dErrors.HasCode(err, dErrors.CodeUsernameTaken):
				taken++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, success)
	s.Equal(workers-1, taken)
	n, err := s.service.ProfileCount(s.as())
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func (s *ServiceSuite) TestPublishFailureDoesNotFailOperation() {
	s.initialized()
	svc := New(s.host, authz.ContextAuthorizer{},
		WithPublisher(failingPublisher{}),
		WithLogger(s.quietLog),
	)
	_, err := svc.Register(s.as(alice), "alice001", "Alice", alice)
	s.NoError(err)
}

func (s *ServiceSuite) TestCancelledContextMapsToTimeout() {
	s.initialized()
	ctx, cancel := context.WithCancel(s.as(alice))
	cancel()
	_, err := s.service.Register(ctx, "alice001", "Alice", alice)
	s.requireCode(err, dErrors.CodeTimeout)
}

type failingJournal struct{}

func (failingJournal) Append(context.Context, notify.Event) error { return errors.New("outbox down") }

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, notify.Event) error { return errors.New("broker down") }

// viewingHost serves read-only units through View and counts them.
type viewingHost struct {
	*memory.Host
	views atomic.Int32
}

func (h *viewingHost) View(ctx context.Context, fn func(ctx context.Context, st kv.Store) error) error {
	h.views.Add(1)
	return h.RunInTx(ctx, fn)
}

func (s *ServiceSuite) TestQueriesUseReadOnlyPath() {
	host := &viewingHost{Host: s.host}
	svc := New(host, authz.ContextAuthorizer{}, WithLogger(s.quietLog))
	s.Require().NoError(svc.Init(s.as(admin), admin))
	_, err := svc.Register(s.as(alice), "alice001", "Alice", alice)
	s.Require().NoError(err)
	s.Zero(host.views.Load(), "mutations never use the read-only path")

	ctx := s.as()
	queries := []func() error{
		func() error { _, err := svc.Admin(ctx); return err },
		func() error { _, err := svc.RegistrationFee(ctx); return err },
		func() error { _, _, err := svc.CodeHash(ctx); return err },
		func() error { _, err := svc.IsUsernameAvailable(ctx, "alice001"); return err },
		func() error { _, _, err := svc.GetByUsername(ctx, "alice001"); return err },
		func() error { _, _, err := svc.GetByOwner(ctx, alice); return err },
		func() error { _, _, err := svc.GetField(ctx, alice, "bio"); return err },
		func() error { _, err := svc.GetFields(ctx, alice, []string{"bio"}); return err },
		func() error { _, err := svc.ProfileCount(ctx); return err },
	}
	for _, q := range queries {
		s.Require().NoError(q())
	}
	s.EqualValues(len(queries), host.views.Load())
}
