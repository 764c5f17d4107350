package storage

import (
	"syscall"

	"github.com/pkg/errors"
)

var (
	// ErrStorageIO marks a failed write. It is sticky: once a storage has
	// returned it, every later write fails the same way.
	ErrStorageIO = errors.New("storage write failed")

	// ErrResourceExhaustion marks an out-of-disk-space or mapping failure.
	// It also satisfies errors.Is(err, ErrStorageIO).
	ErrResourceExhaustion = errors.New("storage resources exhausted")

	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("storage is closed")

	// ErrDisposed is returned by every operation after Dispose.
	ErrDisposed = errors.New("storage is disposed")

	// ErrOutOfRange is returned for reads or truncations outside [0, Size).
	ErrOutOfRange = errors.New("storage range out of bounds")

	// ErrLeaseOutstanding is returned when a mutation would invalidate
	// bytes that an unreleased Lease still references.
	ErrLeaseOutstanding = errors.New("storage region is leased")
)

// writeFailure keeps the underlying cause of a failed write reachable
// through errors.Is/As while matching the storage sentinels.
type writeFailure struct {
	kind  error
	cause error
}

func (e *writeFailure) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *writeFailure) Is(target error) bool {
	if target == e.kind || target == ErrStorageIO {
		return true
	}
	return false
}

func (e *writeFailure) Unwrap() error {
	return e.cause
}

// writeError classifies a failed write into the sticky error the storage
// keeps.
func writeError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return &writeFailure{kind: ErrResourceExhaustion, cause: err}
	}
	return &writeFailure{kind: ErrStorageIO, cause: err}
}
