// Package index provides the compact integer indexes the line engine is
// built on: a monotonic list, an unsorted int list, an interpolating sparse
// map and a sparse keyed object map.
package index

import "github.com/pkg/errors"

// ErrInvariantViolation is returned when a caller breaks an ordering
// contract or asks for something out of range. It signals a bug in the
// caller and is never retried.
var ErrInvariantViolation = errors.New("index invariant violation")

func outOfRange(i, size int) error {
	return errors.Wrapf(ErrInvariantViolation, "index %d out of range [0, %d)", i, size)
}
