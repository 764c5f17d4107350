package buffer

import (
	"github.com/peco/outstream/internal/index"
	"github.com/pkg/errors"
)

var (
	// ErrInvariantViolation is returned for out-of-range queries and
	// out-of-order updates.
	ErrInvariantViolation = index.ErrInvariantViolation

	// ErrUnknownFold is returned when closing a fold that is not open.
	ErrUnknownFold = errors.New("unknown fold")
)

func lineOutOfRange(i, n int) error {
	return errors.Wrapf(ErrInvariantViolation, "line %d out of range [0, %d)", i, n)
}

func charOutOfRange(start, end, n int) error {
	return errors.Wrapf(ErrInvariantViolation, "characters [%d, %d) out of range [0, %d]", start, end, n)
}
