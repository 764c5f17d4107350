package outstream

import (
	"github.com/peco/outstream/buffer"
	"github.com/pkg/errors"
)

var (
	// ErrStreamClosed is returned when writing to a stream after Close, or
	// after a storage failure made it read-only.
	ErrStreamClosed = errors.New("stream closed")

	// ErrUnknownFold is returned by EndFold for a fold that is not open.
	ErrUnknownFold = buffer.ErrUnknownFold

	// ErrInvalidListener is returned when printing with a hyperlink handle
	// that cannot be compared, such as a func, map or slice.
	ErrInvalidListener = errors.New("listener is not comparable")
)

type ignorableError struct {
	err error
}

func (e ignorableError) Error() string   { return e.err.Error() }
func (e ignorableError) Unwrap() error   { return e.err }
func (e ignorableError) Ignorable() bool { return true }

// makeIgnorable marks err as one that ends the command successfully.
func makeIgnorable(err error) error {
	return ignorableError{err: err}
}

type exitStatusError struct {
	err    error
	status int
}

func (e exitStatusError) Error() string   { return e.err.Error() }
func (e exitStatusError) Unwrap() error   { return e.err }
func (e exitStatusError) ExitStatus() int { return e.status }

func setExitStatus(err error, status int) error {
	return exitStatusError{err: err, status: status}
}
