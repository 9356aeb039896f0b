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

// Init records admin and zeroes the profile count. It can run only once.
func (s *Service) Init(ctx context.Context, admin id.Principal) error {
	err := s.run(ctx, "init", []any{"admin", admin}, func(ctx context.Context, u *unit) error {
		done, err := u.ledger.Initialized(ctx)
		if err != nil {
			return storageErr(err, "failed to read registry state")
		}
		if done {
			return dErrors.New(dErrors.CodeAlreadyInitialized, "registry is already initialized")
		}
		if err := s.authz.RequireAuth(ctx, admin); err != nil {
			return err
		}
		if err := u.ledger.PutAdmin(ctx, admin); err != nil {
			return storageErr(err, "failed to store admin")
		}
		return storageErr(u.ledger.PutProfileCount(ctx, 0), "failed to reset profile count")
	})
	if err == nil {
		s.logChange(ctx, "registry initialized", "admin", admin)
	}
	return err
}

// Admin returns the admin principal.
func (s *Service) Admin(ctx context.Context) (id.Principal, error) {
	var admin id.Principal
	err := s.query(ctx, "admin", nil, func(ctx context.Context, u *unit) error {
		var err error
		admin, err = loadAdmin(ctx, u)
		return err
	})
	return admin, err
}

// ReserveUsername blocks rawUsername from registration. A name that is
// already taken can still be reserved.
func (s *Service) ReserveUsername(ctx context.Context, rawUsername string, caller id.Principal) error {
	attrs := []any{"caller", caller, "username", rawUsername}
	err := s.run(ctx, "reserve_username", attrs, func(ctx context.Context, u *unit) error {
		if err := s.requireAdmin(ctx, u, caller); err != nil {
			return err
		}
		name, err := username.Parse(rawUsername)
		if err != nil {
			return err
		}
		if err := u.ledger.Reserve(ctx, name); err != nil {
			return storageErr(err, "failed to store reservation")
		}
		u.emit(notify.UsernameReserved(name, u.now))
		return nil
	})
	if err == nil {
		s.logChange(ctx, "username reserved", "caller", caller, "username", rawUsername)
	}
	return err
}

// UnreserveUsername releases a reservation. Releasing a name that is not
// reserved succeeds and emits nothing.
func (s *Service) UnreserveUsername(ctx context.Context, rawUsername string, caller id.Principal) error {
	name := username.Username(rawUsername)
	attrs := []any{"caller", caller, "username", rawUsername}
	err := s.run(ctx, "unreserve_username", attrs, func(ctx context.Context, u *unit) error {
		if err := s.requireAdmin(ctx, u, caller); err != nil {
			return err
		}
		reserved, err := u.ledger.IsReserved(ctx, name)
		if err != nil {
			return storageErr(err, "failed to check reservation")
		}
		if !reserved {
			return nil
		}
		if err := u.ledger.Unreserve(ctx, name); err != nil {
			return storageErr(err, "failed to remove reservation")
		}
		u.emit(notify.UsernameUnreserved(name, u.now))
		return nil
	})
	if err == nil {
		s.logChange(ctx, "username unreserved", "caller", caller, "username", rawUsername)
	}
	return err
}

// SetRegistrationFee stores fee. Any value is accepted and nothing is
// charged.
func (s *Service) SetRegistrationFee(ctx context.Context, fee models.Int128, caller id.Principal) error {
	attrs := []any{"caller", caller, "fee", fee}
	err := s.run(ctx, "set_registration_fee", attrs, func(ctx context.Context, u *unit) error {
		if err := s.requireAdmin(ctx, u, caller); err != nil {
			return err
		}
		return storageErr(u.ledger.PutRegistrationFee(ctx, fee), "failed to store registration fee")
	})
	if err == nil {
		s.logChange(ctx, "registration fee set", "caller", caller, "fee", fee.String())
	}
	return err
}

// RegistrationFee returns the stored fee, zero when never set.
func (s *Service) RegistrationFee(ctx context.Context) (models.Int128, error) {
	var fee models.Int128
	err := s.query(ctx, "registration_fee", nil, func(ctx context.Context, u *unit) error {
		var err error
		fee, err = u.ledger.RegistrationFee(ctx)
		return storageErr(err, "failed to read registration fee")
	})
	return fee, err
}

// BanProfile soft-deletes owner's profile whatever its state.
func (s *Service) BanProfile(ctx context.Context, owner, caller id.Principal) error {
	attrs := []any{"caller", caller, "owner", owner}
	err := s.run(ctx, "ban_profile", attrs, func(ctx context.Context, u *unit) error {
		if err := s.requireAdmin(ctx, u, caller); err != nil {
			return err
		}
		p, err := loadProfile(ctx, u, owner)
		if err != nil {
			return err
		}
		p.ApplyBan(u.now)
		if err := u.ledger.PutProfile(ctx, p); err != nil {
			return storageErr(err, "failed to store profile")
		}
		u.emit(notify.ProfileBanned(owner, u.now))
		return nil
	})
	if err == nil {
		s.metrics.IncrementDeleted("ban")
		s.logChange(ctx, "profile banned", "caller", caller, "owner", owner)
	}
	return err
}

// Upgrade records hash as the current code and hands it to the deployer.
// Only the stored admin's authorization is required; a deploy failure
// aborts the whole operation.
func (s *Service) Upgrade(ctx context.Context, hash id.CodeHash) error {
	err := s.run(ctx, "upgrade", []any{"code_hash", hash}, func(ctx context.Context, u *unit) error {
		admin, err := loadAdmin(ctx, u)
		if err != nil {
			return err
		}
		if err := s.authz.RequireAuth(ctx, admin); err != nil {
			return err
		}
		if hash.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "code hash is required")
		}
		if err := u.ledger.PutCodeHash(ctx, hash); err != nil {
			return storageErr(err, "failed to store code hash")
		}
		if err := s.deployer.Deploy(ctx, hash); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "deploy failed")
		}
		return nil
	})
	if err == nil {
		s.logChange(ctx, "registry code upgraded", "code_hash", hash.String())
	}
	return err
}

// CodeHash returns the last upgraded code hash. ok is false before the
// first upgrade.
func (s *Service) CodeHash(ctx context.Context) (id.CodeHash, bool, error) {
	var (
		hash id.CodeHash
		ok   bool
	)
	err := s.query(ctx, "code_hash", nil, func(ctx context.Context, u *unit) error {
		h, err := u.ledger.CodeHash(ctx)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return storageErr(err, "failed to read code hash")
		}
		hash, ok = h, true
		return nil
	})
	return hash, ok, err
}

// requireAdmin compares caller with the stored admin before asking for
// the caller's authorization.
func (s *Service) requireAdmin(ctx context.Context, u *unit, caller id.Principal) error {
	admin, err := loadAdmin(ctx, u)
	if err != nil {
		return err
	}
	if caller != admin {
		return dErrors.New(dErrors.CodeNotAuthorized, "caller is not the admin")
	}
	return s.authz.RequireAuth(ctx, caller)
}

func loadAdmin(ctx context.Context, u *unit) (id.Principal, error) {
	admin, err := u.ledger.Admin(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeNotInitialized, "registry is not initialized")
	}
	if err != nil {
		return "", storageErr(err, "failed to load admin")
	}
	return admin, nil
}
