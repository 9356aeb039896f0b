// Package kvtest holds a behavioral suite every kv.Host must pass.
package kvtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"profilereg/internal/kv"
	"profilereg/pkg/platform/sentinel"
)

// HostSuite exercises a kv.Host. Embed it and set NewHost, which must
// return a host over empty storage.
type HostSuite struct {
	suite.Suite
	NewHost func() kv.Host
	host    kv.Host
}

func (s *HostSuite) SetupTest() {
	s.Require().NotNil(s.NewHost, "NewHost must be set")
	s.host = s.NewHost()
}

var (
	keyA     = kv.Key{Name: "test:a"}
	keyB     = kv.Key{Name: "test:b"}
	keyCount = kv.Key{Name: "test:count", Durability: kv.Instance}
)

func (s *HostSuite) get(key kv.Key) ([]byte, error) {
	var out []byte
	err := s.host.RunInTx(context.Background(), func(ctx context.Context, st kv.Store) error {
		v, err := st.Get(ctx, key)
		out = v
		return err
	})
	return out, err
}

func (s *HostSuite) TestSetGetHasRemove() {
	ctx := context.Background()
	err := s.host.RunInTx(ctx, func(ctx context.Context, st kv.Store) error {
		has, err := st.Has(ctx, keyA)
		s.Require().NoError(err)
		s.False(has)

		_, err = st.Get(ctx, keyA)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		s.Require().NoError(st.Set(ctx, keyA, []byte("one")))
		v, err := st.Get(ctx, keyA)
		s.Require().NoError(err)
		s.Equal([]byte("one"), v, "writes are visible inside the unit of work")
		return nil
	})
	s.Require().NoError(err)

	v, err := s.get(keyA)
	s.Require().NoError(err)
	s.Equal([]byte("one"), v)

	err = s.host.RunInTx(ctx, func(ctx context.Context, st kv.Store) error {
		s.Require().NoError(st.Remove(ctx, keyA))
		s.Require().NoError(st.Remove(ctx, keyB), "removing an absent entry is not an error")
		has, err := st.Has(ctx, keyA)
		s.Require().NoError(err)
		s.False(has)
		return nil
	})
	s.Require().NoError(err)

	_, err = s.get(keyA)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *HostSuite) TestErrorDiscardsAllWrites() {
	ctx := context.Background()
	s.Require().NoError(s.host.RunInTx(ctx, func(ctx context.Context, st kv.Store) error {
		return st.Set(ctx, keyA, []byte("before"))
	}))

	boom := errors.New("boom")
	err := s.host.RunInTx(ctx, func(ctx context.Context, st kv.Store) error {
		s.Require().NoError(st.Set(ctx, keyA, []byte("after")))
		s.Require().NoError(st.Set(ctx, keyB, []byte("new")))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	v, err := s.get(keyA)
	s.Require().NoError(err)
	s.Equal([]byte("before"), v)
	_, err = s.get(keyB)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *HostSuite) TestMoveWithinUnitOfWork() {
	ctx := context.Background()
	s.Require().NoError(s.host.RunInTx(ctx, func(ctx context.Context, st kv.Store) error {
		return st.Set(ctx, keyA, []byte("record"))
	}))
	s.Require().NoError(s.host.RunInTx(ctx, func(ctx context.Context, st kv.Store) error {
		v, err := st.Get(ctx, keyA)
		if err != nil {
			return err
		}
		if err := st.Remove(ctx, keyA); err != nil {
			return err
		}
		if err := st.Set(ctx, keyB, v); err != nil {
			return err
		}
		return st.ExtendLifetime(ctx, keyB, time.Hour, 2*time.Hour)
	}))

	_, err := s.get(keyA)
	s.ErrorIs(err, sentinel.ErrNotFound)
	v, err := s.get(keyB)
	s.Require().NoError(err)
	s.Equal([]byte("record"), v)
}

func (s *HostSuite) TestExtendLifetimeOnMissingKeyIsNoop() {
	err := s.host.RunInTx(context.Background(), func(ctx context.Context, st kv.Store) error {
		if err := st.ExtendLifetime(ctx, keyA, time.Hour, 2*time.Hour); err != nil {
			return err
		}
		return st.ExtendLifetime(ctx, keyCount, time.Hour, 2*time.Hour)
	})
	s.NoError(err)
}

// Concurrent check-then-write must commit exactly once.
func (s *HostSuite) TestConcurrentClaimsCommitOnce() {
	const workers = 16
	claimed := errors.New("already claimed")

	var wg sync.WaitGroup
	var wins, losses atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.host.RunInTx(context.Background(), func(ctx context.Context, st kv.Store) error {
				has, err := st.Has(ctx, keyA)
				if err != nil {
					return err
				}
				if has {
					return claimed
				}
				return st.Set(ctx, keyA, []byte{byte(i)})
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, claimed):
				losses.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(workers-1), losses.Load())
}

func (s *HostSuite) TestCounterIncrementsAreSerialized() {
	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.host.RunInTx(context.Background(), func(ctx context.Context, st kv.Store) error {
				v, err := st.Get(ctx, keyCount)
				if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
					return err
				}
				n := byte(0)
				if len(v) == 1 {
					n = v[0]
				}
				return st.Set(ctx, keyCount, []byte{n + 1})
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	v, err := s.get(keyCount)
	s.Require().NoError(err)
	s.Equal([]byte{workers}, v)
}

func (s *HostSuite) TestCancelledContextIsRejected() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.host.RunInTx(ctx, func(context.Context, kv.Store) error {
		called = true
		return nil
	})
	s.Error(err)
	s.False(called)
}

func (s *HostSuite) TestViewReadsCommittedStateAndRejectsWrites() {
	s.Require().NoError(s.host.RunInTx(context.Background(), func(ctx context.Context, st kv.Store) error {
		return st.Set(ctx, keyA, []byte("one"))
	}))

	err := kv.View(context.Background(), s.host, func(ctx context.Context, st kv.Store) error {
		v, err := st.Get(ctx, keyA)
		s.Require().NoError(err)
		s.Equal([]byte("one"), v)
		return nil
	})
	s.Require().NoError(err)

	if _, ok := s.host.(kv.Viewer); !ok {
		return
	}
	err = kv.View(context.Background(), s.host, func(ctx context.Context, st kv.Store) error {
		s.ErrorIs(st.Set(ctx, keyB, []byte("x")), kv.ErrReadOnly)
		s.ErrorIs(st.Remove(ctx, keyA), kv.ErrReadOnly)
		s.ErrorIs(st.ExtendLifetime(ctx, keyA, time.Hour, 2*time.Hour), kv.ErrReadOnly)
		return nil
	})
	s.Require().NoError(err)

	_, err = s.get(keyB)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// Writers keep keyA and keyB equal; a view must never observe them apart.
func (s *HostSuite) TestViewSeesConsistentSnapshot() {
	const rounds = 20
	set := func(n byte) error {
		return s.host.RunInTx(context.Background(), func(ctx context.Context, st kv.Store) error {
			if err := st.Set(ctx, keyA, []byte{n}); err != nil {
				return err
			}
			return st.Set(ctx, keyB, []byte{n})
		})
	}
	s.Require().NoError(set(0))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			s.NoError(set(byte(i)))
		}
	}()

	for range rounds {
		// Discarded attempts may see a torn state; only the returned one counts.
		var a, b []byte
		err := kv.View(context.Background(), s.host, func(ctx context.Context, st kv.Store) error {
			var err error
			if a, err = st.Get(ctx, keyA); err != nil {
				return err
			}
			b, err = st.Get(ctx, keyB)
			return err
		})
		s.Require().NoError(err)
		s.Equal(a, b)
	}
	wg.Wait()
}
