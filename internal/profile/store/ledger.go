// Package store maps registry records onto the kv storage port.
//
// A Ledger is bound to the kv.Store of a single unit of work. It knows the
// keyspace and the record encoding; it does not enforce registry rules.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"profilereg/internal/kv"
	"profilereg/internal/profile/models"
	"profilereg/internal/profile/username"
	id "profilereg/pkg/domain"
	"profilereg/pkg/platform/sentinel"
)

// Default lifetime extension window.
const (
	DefaultLowWater = 30 * 24 * time.Hour
	DefaultHorizon  = 150 * 24 * time.Hour
)

// Extension is the lifetime refresh applied after successful writes.
type Extension struct {
	LowWater time.Duration
	Horizon  time.Duration
}

// DefaultExtension returns the standard 30/150 day window.
func DefaultExtension() Extension {
	return Extension{LowWater: DefaultLowWater, Horizon: DefaultHorizon}
}

// Ledger reads and writes registry records.
type Ledger struct {
	kv  kv.Store
	ext Extension
}

// New binds a Ledger to s.
func New(s kv.Store, ext Extension) *Ledger {
	if ext.LowWater <= 0 {
		ext.LowWater = DefaultLowWater
	}
	if ext.Horizon <= 0 {
		ext.Horizon = DefaultHorizon
	}
	return &Ledger{kv: s, ext: ext}
}

// -----------------------------------------------------------------------------
// Instance configuration
// -----------------------------------------------------------------------------

// Initialized reports whether an admin has been recorded.
func (l *Ledger) Initialized(ctx context.Context) (bool, error) {
	return l.kv.Has(ctx, AdminKey)
}

// Admin returns the admin principal, or sentinel.ErrNotFound.
func (l *Ledger) Admin(ctx context.Context) (id.Principal, error) {
	b, err := l.kv.Get(ctx, AdminKey)
	if err != nil {
		return "", err
	}
	return id.Principal(b), nil
}

func (l *Ledger) PutAdmin(ctx context.Context, admin id.Principal) error {
	return l.kv.Set(ctx, AdminKey, []byte(admin))
}

// ProfileCount returns the number of registrations, 0 when unset.
func (l *Ledger) ProfileCount(ctx context.Context) (uint64, error) {
	b, err := l.kv.Get(ctx, ProfileCountKey)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode profile count: %w", err)
	}
	return n, nil
}

func (l *Ledger) PutProfileCount(ctx context.Context, n uint64) error {
	return l.kv.Set(ctx, ProfileCountKey, []byte(strconv.FormatUint(n, 10)))
}

// RegistrationFee returns the stored fee, 0 when unset.
func (l *Ledger) RegistrationFee(ctx context.Context) (models.Int128, error) {
	b, err := l.kv.Get(ctx, RegistrationFeeKey)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Int128{}, nil
	}
	if err != nil {
		return models.Int128{}, err
	}
	var fee models.Int128
	if err := fee.UnmarshalText(b); err != nil {
		return models.Int128{}, fmt.Errorf("decode registration fee: %w", err)
	}
	return fee, nil
}

func (l *Ledger) PutRegistrationFee(ctx context.Context, fee models.Int128) error {
	b, _ := fee.MarshalText()
	return l.kv.Set(ctx, RegistrationFeeKey, b)
}

// CodeHash returns the recorded code hash, or sentinel.ErrNotFound.
func (l *Ledger) CodeHash(ctx context.Context) (id.CodeHash, error) {
	b, err := l.kv.Get(ctx, CodeHashKey)
	if err != nil {
		return id.CodeHash{}, err
	}
	var h id.CodeHash
	if err := h.UnmarshalText(b); err != nil {
		return id.CodeHash{}, fmt.Errorf("decode code hash: %w", err)
	}
	return h, nil
}

func (l *Ledger) PutCodeHash(ctx context.Context, h id.CodeHash) error {
	b, _ := h.MarshalText()
	return l.kv.Set(ctx, CodeHashKey, b)
}

// -----------------------------------------------------------------------------
// Username index
// -----------------------------------------------------------------------------

// UsernameMapped reports whether u is bound to an owner.
func (l *Ledger) UsernameMapped(ctx context.Context, u username.Username) (bool, error) {
	return l.kv.Has(ctx, UsernameKey(u))
}

// OwnerOf returns the owner bound to u, or sentinel.ErrNotFound.
func (l *Ledger) OwnerOf(ctx context.Context, u username.Username) (id.Principal, error) {
	b, err := l.kv.Get(ctx, UsernameKey(u))
	if err != nil {
		return "", err
	}
	return id.Principal(b), nil
}

// BindUsername points u at owner and refreshes the entry lifetime.
func (l *Ledger) BindUsername(ctx context.Context, u username.Username, owner id.Principal) error {
	key := UsernameKey(u)
	if err := l.kv.Set(ctx, key, []byte(owner)); err != nil {
		return err
	}
	return l.extend(ctx, key)
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

// HasProfile reports whether owner holds a profile in any state.
func (l *Ledger) HasProfile(ctx context.Context, owner id.Principal) (bool, error) {
	return l.kv.Has(ctx, ProfileKey(owner))
}

// Profile loads the record stored for owner, or sentinel.ErrNotFound.
func (l *Ledger) Profile(ctx context.Context, owner id.Principal) (*models.Profile, error) {
	b, err := l.kv.Get(ctx, ProfileKey(owner))
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// PutProfile stores p under its owner's slot and refreshes its lifetime.
func (l *Ledger) PutProfile(ctx context.Context, p *models.Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	key := ProfileKey(p.Owner)
	if err := l.kv.Set(ctx, key, b); err != nil {
		return err
	}
	return l.extend(ctx, key)
}

func (l *Ledger) RemoveProfile(ctx context.Context, owner id.Principal) error {
	return l.kv.Remove(ctx, ProfileKey(owner))
}

// -----------------------------------------------------------------------------
// Fields
// -----------------------------------------------------------------------------

// Field returns the value of name for owner, or sentinel.ErrNotFound.
func (l *Ledger) Field(ctx context.Context, owner id.Principal, name models.FieldName) (models.FieldValue, error) {
	b, err := l.kv.Get(ctx, FieldKey(owner, name))
	if err != nil {
		return models.FieldValue{}, err
	}
	var v models.FieldValue
	if err := json.Unmarshal(b, &v); err != nil {
		return models.FieldValue{}, fmt.Errorf("decode field %s: %w", name, err)
	}
	return v, nil
}

// PutField overwrites name for owner and refreshes the entry lifetime.
func (l *Ledger) PutField(ctx context.Context, owner id.Principal, name models.FieldName, v models.FieldValue) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode field %s: %w", name, err)
	}
	key := FieldKey(owner, name)
	if err := l.kv.Set(ctx, key, b); err != nil {
		return err
	}
	return l.extend(ctx, key)
}

func (l *Ledger) RemoveField(ctx context.Context, owner id.Principal, name models.FieldName) error {
	return l.kv.Remove(ctx, FieldKey(owner, name))
}

// -----------------------------------------------------------------------------
// Reservations
// -----------------------------------------------------------------------------

func (l *Ledger) IsReserved(ctx context.Context, u username.Username) (bool, error) {
	return l.kv.Has(ctx, ReservedKey(u))
}

func (l *Ledger) Reserve(ctx context.Context, u username.Username) error {
	return l.kv.Set(ctx, ReservedKey(u), []byte("1"))
}

func (l *Ledger) Unreserve(ctx context.Context, u username.Username) error {
	return l.kv.Remove(ctx, ReservedKey(u))
}

func (l *Ledger) extend(ctx context.Context, key kv.Key) error {
	return l.kv.ExtendLifetime(ctx, key, l.ext.LowWater, l.ext.Horizon)
}
