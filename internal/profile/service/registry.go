package service

import (
	"context"
	"errors"

	"profilereg/internal/notify"
	"profilereg/internal/profile/models"
	"profilereg/internal/profile/username"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/sentinel"
)

// Register claims rawUsername for caller and creates an Active profile.
// Checks run in order: caller authorization, initialized, username syntax,
// not mapped, not reserved, caller holds no profile.
func (s *Service) Register(ctx context.Context, rawUsername, displayName string, caller id.Principal) (*models.Profile, error) {
	var created *models.Profile
	attrs := []any{"caller", caller, "username", rawUsername}
	err := s.run(ctx, "register", attrs, func(ctx context.Context, u *unit) error {
		if err := s.authz.RequireAuth(ctx, caller); err != nil {
			return err
		}
		if err := requireInitialized(ctx, u); err != nil {
			return err
		}
		name, err := username.Parse(rawUsername)
		if err != nil {
			return err
		}

		mapped, err := u.ledger.UsernameMapped(ctx, name)
		if err != nil {
			return storageErr(err, "failed to check username")
		}
		if mapped {
			return dErrors.New(dErrors.CodeUsernameTaken, "username is already taken")
		}
		reserved, err := u.ledger.IsReserved(ctx, name)
		if err != nil {
			return storageErr(err, "failed to check reservation")
		}
		if reserved {
			return dErrors.New(dErrors.CodeUsernameReserved, "username is reserved")
		}
		exists, err := u.ledger.HasProfile(ctx, caller)
		if err != nil {
			return storageErr(err, "failed to check existing profile")
		}
		if exists {
			return dErrors.New(dErrors.CodeProfileExists, "caller already has a profile")
		}

		p, err := models.NewProfile(name, displayName, caller, u.now)
		if err != nil {
			return err
		}
		if err := u.ledger.BindUsername(ctx, name, caller); err != nil {
			return storageErr(err, "failed to bind username")
		}
		if err := u.ledger.PutProfile(ctx, p); err != nil {
			return storageErr(err, "failed to store profile")
		}
		count, err := u.ledger.ProfileCount(ctx)
		if err != nil {
			return storageErr(err, "failed to read profile count")
		}
		if err := u.ledger.PutProfileCount(ctx, count+1); err != nil {
			return storageErr(err, "failed to update profile count")
		}

		u.emit(notify.ProfileRegistered(caller, name, u.now))
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementRegistered()
	s.logChange(ctx, "profile registered", "caller", caller, "username", created.Username)
	return created, nil
}

// IsUsernameAvailable reports whether rawUsername is valid, unmapped and
// not reserved.
func (s *Service) IsUsernameAvailable(ctx context.Context, rawUsername string) (bool, error) {
	name := username.Username(rawUsername)
	if !username.Validate(name.Bytes()) {
		return false, nil
	}
	var available bool
	err := s.query(ctx, "is_username_available", []any{"username", rawUsername}, func(ctx context.Context, u *unit) error {
		mapped, err := u.ledger.UsernameMapped(ctx, name)
		if err != nil {
			return storageErr(err, "failed to check username")
		}
		if mapped {
			return nil
		}
		reserved, err := u.ledger.IsReserved(ctx, name)
		if err != nil {
			return storageErr(err, "failed to check reservation")
		}
		available = !reserved
		return nil
	})
	return available, err
}

// GetByUsername returns the Active profile bound to rawUsername. ok is
// false when the name is unbound or its profile is Deleted.
func (s *Service) GetByUsername(ctx context.Context, rawUsername string) (p *models.Profile, ok bool, err error) {
	name := username.Username(rawUsername)
	err = s.query(ctx, "get_by_username", []any{"username", rawUsername}, func(ctx context.Context, u *unit) error {
		owner, err := u.ledger.OwnerOf(ctx, name)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return storageErr(err, "failed to resolve username")
		}
		p, ok, err = activeProfile(ctx, u, owner)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return p, ok, nil
}

// GetByOwner returns the Active profile of owner.
func (s *Service) GetByOwner(ctx context.Context, owner id.Principal) (p *models.Profile, ok bool, err error) {
	err = s.query(ctx, "get_by_owner", []any{"owner", owner}, func(ctx context.Context, u *unit) error {
		var lerr error
		p, ok, lerr = activeProfile(ctx, u, owner)
		return lerr
	})
	if err != nil {
		return nil, false, err
	}
	return p, ok, nil
}

// ProfileCount returns the number of successful registrations.
func (s *Service) ProfileCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.query(ctx, "profile_count", nil, func(ctx context.Context, u *unit) error {
		var err error
		n, err = u.ledger.ProfileCount(ctx)
		return storageErr(err, "failed to read profile count")
	})
	return n, err
}

// SetDisplayName replaces the caller's display name.
func (s *Service) SetDisplayName(ctx context.Context, displayName string, caller id.Principal) error {
	err := s.run(ctx, "set_display_name", []any{"caller", caller}, func(ctx context.Context, u *unit) error {
		p, err := s.loadMutable(ctx, u, caller)
		if err != nil {
			return err
		}
		p.ApplyDisplayName(displayName, u.now)
		if err := u.ledger.PutProfile(ctx, p); err != nil {
			return storageErr(err, "failed to store profile")
		}
		u.emit(notify.DisplayNameChanged(caller, u.now))
		return nil
	})
	if err == nil {
		s.logChange(ctx, "display name changed", "caller", caller)
	}
	return err
}

// DeleteProfile soft-deletes the caller's profile. The username stays
// bound and can never be claimed again.
func (s *Service) DeleteProfile(ctx context.Context, caller id.Principal) error {
	err := s.run(ctx, "delete_profile", []any{"caller", caller}, func(ctx context.Context, u *unit) error {
		p, err := s.loadMutable(ctx, u, caller)
		if err != nil {
			return err
		}
		if err := p.ApplyDelete(u.now); err != nil {
			return err
		}
		if err := u.ledger.PutProfile(ctx, p); err != nil {
			return storageErr(err, "failed to store profile")
		}
		u.emit(notify.ProfileDeleted(caller, u.now))
		return nil
	})
	if err == nil {
		s.metrics.IncrementDeleted("owner")
		s.logChange(ctx, "profile deleted", "caller", caller)
	}
	return err
}

// Transfer moves the caller's Active profile and username to newOwner.
// Both parties must authorize, and newOwner must hold no profile at all.
func (s *Service) Transfer(ctx context.Context, newOwner, caller id.Principal) error {
	var moved *models.Profile
	attrs := []any{"caller", caller, "new_owner", newOwner}
	err := s.run(ctx, "transfer", attrs, func(ctx context.Context, u *unit) error {
		if err := s.authz.RequireAuth(ctx, caller); err != nil {
			return err
		}
		if err := s.authz.RequireAuth(ctx, newOwner); err != nil {
			return err
		}
		p, err := loadProfile(ctx, u, caller)
		if err != nil {
			return err
		}
		if err := p.CanMutate(caller); err != nil {
			return err
		}
		taken, err := u.ledger.HasProfile(ctx, newOwner)
		if err != nil {
			return storageErr(err, "failed to check new owner")
		}
		if taken {
			return dErrors.New(dErrors.CodeProfileExists, "new owner already has a profile")
		}

		if err := p.ApplyTransfer(newOwner, u.now); err != nil {
			return err
		}
		if err := u.ledger.BindUsername(ctx, p.Username, newOwner); err != nil {
			return storageErr(err, "failed to rebind username")
		}
		if err := u.ledger.RemoveProfile(ctx, caller); err != nil {
			return storageErr(err, "failed to remove old profile slot")
		}
		if err := u.ledger.PutProfile(ctx, p); err != nil {
			return storageErr(err, "failed to store profile")
		}
		u.emit(notify.UsernameTransferred(p.Username, caller, newOwner, u.now))
		moved = p
		return nil
	})
	if err == nil {
		s.logChange(ctx, "username transferred", "from", caller, "to", newOwner, "username", moved.Username)
	}
	return err
}

// loadMutable applies the owner-side mutation preconditions in order:
// caller authorization, profile present, Active, owned by caller.
func (s *Service) loadMutable(ctx context.Context, u *unit, caller id.Principal) (*models.Profile, error) {
	if err := s.authz.RequireAuth(ctx, caller); err != nil {
		return nil, err
	}
	p, err := loadProfile(ctx, u, caller)
	if err != nil {
		return nil, err
	}
	if err := p.CanMutate(caller); err != nil {
		return nil, err
	}
	return p, nil
}

func loadProfile(ctx context.Context, u *unit, owner id.Principal) (*models.Profile, error) {
	p, err := u.ledger.Profile(ctx, owner)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeProfileNotFound, "profile not found")
	}
	if err != nil {
		return nil, storageErr(err, "failed to load profile")
	}
	return p, nil
}

func activeProfile(ctx context.Context, u *unit, owner id.Principal) (*models.Profile, bool, error) {
	p, err := u.ledger.Profile(ctx, owner)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr(err, "failed to load profile")
	}
	if !p.IsActive() {
		return nil, false, nil
	}
	return p, true, nil
}

func requireInitialized(ctx context.Context, u *unit) error {
	ok, err := u.ledger.Initialized(ctx)
	if err != nil {
		return storageErr(err, "failed to read registry state")
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotInitialized, "registry is not initialized")
	}
	return nil
}
