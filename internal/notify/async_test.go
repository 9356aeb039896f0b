package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"profilereg/pkg/platform/circuit"
)

type countingPublisher struct {
	calls atomic.Int64
	err   error
}

func (c *countingPublisher) Publish(context.Context, Event) error {
	c.calls.Add(1)
	return c.err
}

type AsyncSuite struct {
	suite.Suite
	metrics *Metrics
}

func TestAsyncSuite(t *testing.T) {
	suite.Run(t, new(AsyncSuite))
}

func (s *AsyncSuite) SetupTest() {
	s.metrics = NewMetrics(prometheus.NewRegistry())
}

func (s *AsyncSuite) TestPublishOnlyEnqueues() {
	rec := &Recorder{}
	a := NewAsync(rec, WithMetrics(s.metrics))

	s.Require().NoError(a.Publish(context.Background(), ProfileDeleted("GA", time.Now())))
	s.Empty(rec.Events())
	s.Equal(1, a.Pending())

	a.Flush(context.Background())
	s.Len(rec.Events(), 1)
	s.Zero(a.Pending())
	s.InDelta(1, testutil.ToFloat64(s.metrics.Delivered.WithLabelValues("profile_deleted")), 0)
}

func (s *AsyncSuite) TestFullQueueDropsOldest() {
	rec := &Recorder{}
	a := NewAsync(rec, WithBufferSize(1), WithMetrics(s.metrics))
	ctx := context.Background()

	s.Require().NoError(a.Publish(ctx, UsernameReserved("aaa111", time.Now())))
	s.Require().NoError(a.Publish(ctx, UsernameReserved("bbb222", time.Now())))
	a.Flush(ctx)

	events := rec.Events()
	s.Require().Len(events, 1)
	s.EqualValues("bbb222", events[0].Username)
	s.InDelta(1, testutil.ToFloat64(s.metrics.Dropped), 0)
}

func (s *AsyncSuite) TestBreakerShedsWhileDownstreamFails() {
	down := &countingPublisher{err: errors.New("broker down")}
	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	a := NewAsync(down, WithBreaker(breaker), WithMetrics(s.metrics))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Require().NoError(a.Publish(ctx, ProfileDeleted("GA", time.Now())))
	}
	a.Flush(ctx)

	s.EqualValues(2, down.calls.Load())
	s.True(breaker.IsOpen())
	s.InDelta(1, testutil.ToFloat64(s.metrics.BreakerOpened), 0)
	s.InDelta(3, testutil.ToFloat64(s.metrics.Dropped), 0)
	s.InDelta(2, testutil.ToFloat64(s.metrics.Failed.WithLabelValues("profile_deleted")), 0)
}

func TestAsyncRunDrainsOnShutdown(t *testing.T) {
	rec := &Recorder{}
	a := NewAsync(rec, WithFlushInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.NoError(t, a.Publish(ctx, ProfileRegistered("GA", "alice001", time.Now())))
	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Publish(ctx, DisplayNameChanged("GA", time.Now())))
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []Topic{TopicProfileRegistered, TopicDisplayNameChanged}, rec.Topics())
}
