package models

import (
	"time"

	"profilereg/internal/profile/username"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

// Status is the lifecycle state of a profile record.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusDeleted
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Deleted is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusActive || next == StatusDeleted
	case StatusDeleted:
		return next == StatusDeleted
	default:
		return false
	}
}

// Profile is the record stored per owning account.
type Profile struct {
	Username    username.Username `json:"username"`
	DisplayName string            `json:"display_name"`
	Owner       id.Principal      `json:"owner"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Status      Status            `json:"status"`
}

// NewProfile builds an Active profile. Invariant violations indicate a
// programming error upstream; callers validate input first.
func NewProfile(u username.Username, displayName string, owner id.Principal, now time.Time) (*Profile, error) {
	if !username.Validate(u.Bytes()) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile username must be valid")
	}
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile owner is required")
	}
	return &Profile{
		Username:    u,
		DisplayName: displayName,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      StatusActive,
	}, nil
}

// IsActive reports whether the profile is visible to readers.
func (p *Profile) IsActive() bool {
	return p.Status == StatusActive
}

// CanMutate checks the owner-side mutation preconditions in order:
// the record must be Active, then owned by caller.
func (p *Profile) CanMutate(caller id.Principal) error {
	if !p.IsActive() {
		return dErrors.New(dErrors.CodeProfileDeleted, "profile has been deleted")
	}
	if p.Owner != caller {
		return dErrors.New(dErrors.CodeNotAuthorized, "caller does not own this profile")
	}
	return nil
}

// ApplyDisplayName replaces the display name.
func (p *Profile) ApplyDisplayName(name string, now time.Time) {
	p.DisplayName = name
	p.touch(now)
}

// ApplyDelete soft-deletes an Active profile.
func (p *Profile) ApplyDelete(now time.Time) error {
	if !p.Status.CanTransitionTo(StatusDeleted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid profile status transition")
	}
	p.Status = StatusDeleted
	p.touch(now)
	return nil
}

// ApplyBan marks the profile Deleted whatever its current state.
func (p *Profile) ApplyBan(now time.Time) {
	p.Status = StatusDeleted
	p.touch(now)
}

// ApplyTransfer moves ownership to newOwner. The profile stays Active.
func (p *Profile) ApplyTransfer(newOwner id.Principal, now time.Time) error {
	if !p.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "only active profiles can be transferred")
	}
	if newOwner.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "new owner is required")
	}
	p.Owner = newOwner
	p.touch(now)
	return nil
}

// touch advances UpdatedAt without ever moving it backwards.
func (p *Profile) touch(now time.Time) {
	if now.After(p.UpdatedAt) {
		p.UpdatedAt = now
	}
}
