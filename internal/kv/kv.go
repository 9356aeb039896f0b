// Package kv defines the storage port the registry runs against.
//
// A Host executes a unit of work atomically and serializably: either every
// write made through the Store handed to fn lands, or none does. Entries
// carry a lifetime; expired entries read as absent.
package kv

import (
	"context"
	"errors"
	"time"
)

// Durability selects how an entry ages.
type Durability int

const (
	// Persistent entries expire unless their lifetime is extended.
	Persistent Durability = iota
	// Instance entries hold registry-wide configuration and never expire.
	Instance
)

func (d Durability) String() string {
	if d == Instance {
		return "instance"
	}
	return "persistent"
}

// Key addresses one entry.
type Key struct {
	Name       string
	Durability Durability
}

func (k Key) String() string { return k.Name }

// Store is the view of storage available inside a unit of work.
type Store interface {
	Has(ctx context.Context, key Key) (bool, error)
	// Get returns sentinel.ErrNotFound when the entry is absent or expired.
	Get(ctx context.Context, key Key) ([]byte, error)
	// Set creates or overwrites an entry. New persistent entries start with
	// the host's initial lifetime; overwrites keep the remaining lifetime.
	Set(ctx context.Context, key Key, value []byte) error
	// Remove deletes an entry. Removing an absent entry is not an error.
	Remove(ctx context.Context, key Key) error
	// ExtendLifetime raises the remaining lifetime to horizon when it is
	// below lowWater. Missing and instance entries are left alone.
	ExtendLifetime(ctx context.Context, key Key, lowWater, horizon time.Duration) error
}

// Host runs units of work.
type Host interface {
	// RunInTx executes fn atomically. Any error returned by fn discards
	// every write fn made and is returned unchanged.
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Viewer is implemented by hosts that can run read-only units without
// exclusive execution. fn sees a consistent snapshot; any write through the
// Store fails with ErrReadOnly.
type Viewer interface {
	View(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// ErrReadOnly is returned by writes attempted inside a View.
var ErrReadOnly = errors.New("write in read-only unit of work")

// View runs fn through h's read-only path when it has one, and as an
// ordinary unit of work otherwise.
func View(ctx context.Context, h Host, fn func(ctx context.Context, store Store) error) error {
	if v, ok := h.(Viewer); ok {
		return v.View(ctx, fn)
	}
	return h.RunInTx(ctx, fn)
}

// Lifetime configures entry aging for a host.
type Lifetime struct {
	// Initial is the lifetime given to newly created persistent entries.
	Initial time.Duration
}

// DefaultInitialLifetime approximates the host minimum for new entries.
const DefaultInitialLifetime = 7 * 24 * time.Hour

// InitialOrDefault returns the configured initial lifetime.
func (l Lifetime) InitialOrDefault() time.Duration {
	if l.Initial <= 0 {
		return DefaultInitialLifetime
	}
	return l.Initial
}

// NextExpiry computes the expiry after an ExtendLifetime call. ok is false
// when no change is needed.
func NextExpiry(now, expiresAt time.Time, lowWater, horizon time.Duration) (time.Time, bool) {
	if expiresAt.Sub(now) >= lowWater {
		return expiresAt, false
	}
	target := now.Add(horizon)
	if !target.After(expiresAt) {
		return expiresAt, false
	}
	return target, true
}
