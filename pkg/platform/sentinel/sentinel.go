package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Storage hosts and sinks return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entry does not exist (or has expired) in the store
//   - ErrConflict: a concurrent commit invalidated this unit of work
//   - ErrLockTimeout: the host could not acquire exclusive execution in time
//   - ErrUnavailable: backend temporarily unavailable
//   - ErrClosed: component already shut down
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrLockTimeout = errors.New("lock timeout")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
