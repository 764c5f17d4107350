// Package sig turns termination signals into an error, so that a command
// can clean up its temporary files before it exits.
package sig

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

type ReceivedHandler interface {
	Handle(os.Signal)
}

type ReceivedHandlerFunc func(os.Signal)

// Handle calls the underlying function with the received signal.
func (s ReceivedHandlerFunc) Handle(sig os.Signal) {
	s(sig)
}

// ReceivedError is what Loop returns after a signal arrived.
type ReceivedError struct {
	Signal os.Signal
}

func (e *ReceivedError) Error() string {
	return fmt.Sprintf("received signal: %s", e.Signal)
}

// ExitStatus follows the shell convention of 128 plus the signal number.
func (e *ReceivedError) ExitStatus() int {
	if s, ok := e.Signal.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}

type Handler struct {
	onSignalReceived ReceivedHandler
	sigCh            chan os.Signal
}

// New creates a new signal handler that forwards the specified signals (default: SIGTERM, SIGINT, SIGHUP) to h.
// h may be nil.
func New(h ReceivedHandler, sigs ...os.Signal) *Handler {
	if len(sigs) == 0 {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	return &Handler{
		onSignalReceived: h,
		sigCh:            ch,
	}
}

// Loop waits for a signal or for ctx to be done, then calls cancel and
// returns. A received signal is passed to the handler and returned as a
// *ReceivedError.
func (h *Handler) Loop(ctx context.Context, cancel func()) error {
	defer cancel()
	defer signal.Stop(h.sigCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-h.sigCh:
		if h.onSignalReceived != nil {
			h.onSignalReceived.Handle(sig)
		}
		return &ReceivedError{Signal: sig}
	}
}
