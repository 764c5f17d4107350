package outstream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/peco/outstream/line"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// delay reading so we can see that
type delayedReader struct {
	io.Reader
	delay time.Duration
	once  sync.Once
}

func addReadDelay(r io.Reader, delay time.Duration) io.Reader {
	return &delayedReader{
		Reader: r,
		delay:  delay,
	}
}

func (r *delayedReader) Read(b []byte) (int, error) {
	r.once.Do(func() { time.Sleep(r.delay) })
	return r.Reader.Read(b)
}

// failingReader returns its data, then err.
type failingReader struct {
	data string
	err  error
}

func (r *failingReader) Read(b []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(b, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestSource(t *testing.T) {
	lines := []string{
		"foo",
		"bar",
		"baz",
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := newTestStream(t)
	r := addReadDelay(strings.NewReader(strings.Join(lines, "\n")), time.Second)
	s := NewSource("-", r, stream)
	require.Equal(t, "-", s.Name())
	go s.Setup(ctx)

	select {
	case <-s.Ready():
		assert.Fail(t, "s.Ready should not be closed before anything was read")
		return
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case <-s.SetupDone():
	case <-time.After(5 * time.Second):
		assert.Fail(t, "timed out waiting for source")
		return
	}

	select {
	case <-s.Ready():
	default:
		assert.Fail(t, "s.Ready should be closed once input was read")
	}

	require.NoError(t, s.Err())
	require.Equal(t, int64(11), s.Read())
	require.Equal(t, lines, allLines(t, stream))
}

func TestSourceCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	stream := newTestStream(t)

	pr, pw := io.Pipe()
	defer pw.Close()
	s := NewSource("pipe", pr, stream)
	go s.Setup(ctx)

	_, err := io.WriteString(pw, "partial output\n")
	require.NoError(t, err)
	<-s.Ready()

	cancel()
	select {
	case <-s.SetupDone():
	case <-time.After(5 * time.Second):
		require.Fail(t, "Setup did not return after ctx was canceled")
	}
	require.ErrorIs(t, s.Err(), context.Canceled)

	_, err = io.WriteString(pw, "more")
	require.ErrorIs(t, err, io.ErrClosedPipe, "the input is closed when reading stops")
	require.Equal(t, []string{"partial output", ""}, allLines(t, stream))
}

func TestSourceReadError(t *testing.T) {
	t.Parallel()

	stream := newTestStream(t)
	boom := errors.New("device gone")
	s := NewSource("device", &failingReader{data: "last words\n", err: boom}, stream)
	s.Setup(context.Background())

	require.ErrorIs(t, s.Err(), boom)
	require.ErrorContains(t, s.Err(), "failed to read device")
	require.Equal(t, []string{"last words", ""}, allLines(t, stream))
}

func TestSourceAnnotations(t *testing.T) {
	t.Parallel()

	stream := newTestStream(t)
	s := NewSource("stderr", strings.NewReader("warning\n"), stream, WithKind(line.KindError))
	s.Setup(context.Background())
	require.NoError(t, s.Err())
	require.NoError(t, stream.Flush())

	info, ok := stream.Lines().Annotation(0)
	require.True(t, ok)
	require.Equal(t, []line.Segment{{End: 7, Kind: line.KindError}}, info.Segments())
}

func TestSourceLargeInput(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for range 20000 {
		b.WriteString("0123456789\n")
	}
	stream := newTestStream(t)
	s := NewSource("big", strings.NewReader(b.String()), stream)
	s.Setup(context.Background())

	require.NoError(t, s.Err())
	require.Equal(t, int64(b.Len()), s.Read())
	require.Equal(t, 20001, stream.Lines().LineCount())
	require.Equal(t, b.Len(), stream.Lines().CharCount())
}
