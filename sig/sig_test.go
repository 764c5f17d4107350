package sig

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoopContextCancel verifies that Loop exits when the context is cancelled
// and that signal.Stop is called (the channel no longer receives signals).
func TestLoopContextCancel(t *testing.T) {
	var received os.Signal
	h := New(ReceivedHandlerFunc(func(sig os.Signal) {
		received = sig
	}), syscall.SIGUSR1)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Loop(ctx, cancel)
	}()

	// Cancel the context to make Loop exit
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		require.Fail(t, "Loop did not exit after context cancellation")
	}

	// After Loop returns, the signal channel should be deregistered.
	// Sending SIGUSR1 to ourselves should NOT be received by the handler.
	require.Nil(t, received, "handler should not have been called")

	// Verify the channel is stopped: send a signal and confirm it doesn't
	// arrive on the (now-stopped) channel.
	syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
	require.Never(t, func() bool {
		select {
		case _, ok := <-h.sigCh:
			return ok
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond,
		"signal was delivered to channel after Loop returned: signal.Stop was not called")
}

// TestLoopSignalReceived verifies that Loop calls the handler and exits
// when a signal is received, and that signal.Stop is called afterward.
func TestLoopSignalReceived(t *testing.T) {
	var received os.Signal
	h := New(ReceivedHandlerFunc(func(sig os.Signal) {
		received = sig
	}), syscall.SIGUSR1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Loop(ctx, cancel)
	}()

	// Give Loop a moment to start
	time.Sleep(50 * time.Millisecond)

	// Send SIGUSR1 to ourselves
	syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)

	select {
	case err := <-errCh:
		var re *ReceivedError
		require.ErrorAs(t, err, &re)
		require.Equal(t, syscall.SIGUSR1, re.Signal)
		require.Equal(t, 128+int(syscall.SIGUSR1), re.ExitStatus())
	case <-time.After(5 * time.Second):
		require.Fail(t, "Loop did not exit after signal")
	}
	require.Error(t, ctx.Err(), "Loop must cancel the context on its way out")

	require.Equal(t, syscall.SIGUSR1, received, "handler should have received SIGUSR1")

	// After Loop exits, send another signal — it should NOT be delivered
	syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
	require.Never(t, func() bool {
		select {
		case _, ok := <-h.sigCh:
			return ok
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond,
		"signal was delivered to channel after Loop returned: signal.Stop was not called")
}

func TestLoopWithoutHandler(t *testing.T) {
	h := New(nil, syscall.SIGUSR2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Loop(ctx, cancel)
	}()

	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGUSR2)

	select {
	case err := <-errCh:
		require.EqualError(t, err, "received signal: user defined signal 2")
	case <-time.After(5 * time.Second):
		require.Fail(t, "Loop did not exit after signal")
	}
}
