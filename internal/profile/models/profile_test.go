package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"profilereg/internal/profile/username"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

type ProfileSuite struct {
	suite.Suite
	now   time.Time
	owner id.Principal
}

func TestProfileSuite(t *testing.T) {
	suite.Run(t, new(ProfileSuite))
}

func (s *ProfileSuite) SetupTest() {
	s.now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.owner = id.Principal("GALICE")
}

func (s *ProfileSuite) newProfile() *Profile {
	p, err := NewProfile(username.Username("alice001"), "Alice", s.owner, s.now)
	s.Require().NoError(err)
	return p
}

func (s *ProfileSuite) TestNewProfile() {
	s.Run("starts active with equal timestamps", func() {
		p := s.newProfile()
		s.True(p.IsActive())
		s.Equal(StatusActive, p.Status)
		s.Equal(p.CreatedAt, p.UpdatedAt)
	})

	s.Run("rejects malformed username", func() {
		_, err := NewProfile(username.Username("Alice"), "Alice", s.owner, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects missing owner", func() {
		_, err := NewProfile(username.Username("alice001"), "Alice", "", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ProfileSuite) TestCanMutate() {
	s.Run("owner may mutate active profile", func() {
		s.NoError(s.newProfile().CanMutate(s.owner))
	})

	s.Run("other principal is not authorized", func() {
		err := s.newProfile().CanMutate("GMALLORY")
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("deleted state is reported before ownership", func() {
		p := s.newProfile()
		s.Require().NoError(p.ApplyDelete(s.now))
		err := p.CanMutate("GMALLORY")
		s.True(dErrors.HasCode(err, dErrors.CodeProfileDeleted))
	})
}

func (s *ProfileSuite) TestLifecycle() {
	s.Run("deleted is terminal", func() {
		p := s.newProfile()
		s.Require().NoError(p.ApplyDelete(s.now.Add(time.Minute)))
		s.False(p.IsActive())
		s.True(dErrors.HasCode(p.ApplyDelete(s.now), dErrors.CodeInvariantViolation))
		s.True(dErrors.HasCode(p.ApplyTransfer("GBOB", s.now), dErrors.CodeInvariantViolation))
		s.False(StatusDeleted.CanTransitionTo(StatusActive))
	})

	s.Run("ban applies to deleted profiles", func() {
		p := s.newProfile()
		s.Require().NoError(p.ApplyDelete(s.now))
		p.ApplyBan(s.now.Add(time.Hour))
		s.Equal(StatusDeleted, p.Status)
		s.Equal(s.now.Add(time.Hour), p.UpdatedAt)
	})

	s.Run("transfer changes owner and stays active", func() {
		p := s.newProfile()
		s.Require().NoError(p.ApplyTransfer("GBOB", s.now.Add(time.Second)))
		s.Equal(id.Principal("GBOB"), p.Owner)
		s.True(p.IsActive())
		s.Equal(username.Username("alice001"), p.Username)
	})

	s.Run("updated_at never moves backwards", func() {
		p := s.newProfile()
		p.ApplyDisplayName("Al", s.now.Add(-time.Hour))
		s.Equal("Al", p.DisplayName)
		s.Equal(s.now, p.UpdatedAt)
		s.Equal(s.now, p.CreatedAt)
	})
}
