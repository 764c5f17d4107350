package outstream

import (
	"context"
	"io"
	"sync"
	"syscall"

	"github.com/lestrrat-go/pdebug"
	"github.com/peco/outstream/internal/pool"
	"github.com/peco/outstream/internal/util"
	"github.com/pkg/errors"
)

// NewSource creates a new Source. Does not start reading until you call
// Setup()
func NewSource(name string, in io.Reader, stream *Stream, opts ...PrintOption) *Source {
	return &Source{
		name:      name,
		in:        in, // Note that this may be closed, so do not rely on it
		out:       stream.Writer(opts...),
		stream:    stream,
		ready:     make(chan struct{}),
		setupDone: make(chan struct{}),
	}
}

// Source copies an input into a Stream, flushing after every read so
// readers see the output as it arrives.
type Source struct {
	name      string
	in        io.Reader
	out       io.Writer
	stream    *Stream
	ready     chan struct{}
	setupDone chan struct{}
	setupOnce sync.Once

	mutex sync.Mutex
	read  int64
	err   error
}

func (s *Source) Name() string {
	return s.name
}

// Setup reads the input until it ends or ctx is canceled.
func (s *Source) Setup(ctx context.Context) {
	s.setupOnce.Do(func() {
		// close the done channel so we can tell the consumers
		// we have finished reading everything
		defer close(s.setupDone)

		// ready is closed once there is at least one chunk in the
		// stream, or when we bail out without reading anything
		var notify sync.Once
		notifycb := func() { close(s.ready) }
		defer notify.Do(notifycb)

		defer func() {
			if util.IsTty(s.in) {
				return
			}
			if closer, ok := s.in.(io.Closer); ok {
				closer.Close()
			}
		}()

		chunks := make(chan *[]byte)
		errc := make(chan error, 1)
		go func() {
			defer close(chunks)
			for {
				buf := pool.GetChunk()
				n, err := s.in.Read(*buf)
				if n > 0 {
					*buf = (*buf)[:n]
					select {
					case <-ctx.Done():
						if pdebug.Enabled {
							pdebug.Printf("Bailing out of source reader loop, because ctx was canceled")
						}
						pool.ReleaseChunk(buf)
						return
					case chunks <- buf:
					}
				} else {
					pool.ReleaseChunk(buf)
				}
				if err != nil {
					if err != io.EOF && !isPtyEOF(err) {
						errc <- err
					}
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				if pdebug.Enabled {
					pdebug.Printf("Bailing out of source setup, because ctx was canceled")
				}
				s.setErr(ctx.Err())
				return
			case chunk, ok := <-chunks:
				if !ok {
					select {
					case err := <-errc:
						s.setErr(errors.Wrapf(err, "failed to read %s", s.name))
					default:
					}
					if err := s.stream.Flush(); err != nil {
						s.setErr(err)
					}
					if pdebug.Enabled {
						pdebug.Printf("Source %s: read %d bytes", s.name, s.Read())
					}
					return
				}
				_, err := s.out.Write(*chunk)
				n := len(*chunk)
				pool.ReleaseChunk(chunk)
				if err != nil {
					s.setErr(err)
					return
				}
				if err := s.stream.Flush(); err != nil {
					s.setErr(err)
					return
				}
				s.mutex.Lock()
				s.read += int64(n)
				s.mutex.Unlock()
				notify.Do(notifycb)
			}
		}
	})
}

// isPtyEOF reports the error a pseudo terminal returns once the process
// on the other side exited.
func isPtyEOF(err error) bool {
	return errors.Is(err, syscall.EIO)
}

func (s *Source) setErr(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err returns why reading stopped early, if it did.
func (s *Source) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.err
}

// Read is the number of bytes copied so far.
func (s *Source) Read() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.read
}

// Ready returns the "input ready" channel. It will be closed as soon as
// the first chunk of input is in the stream
func (s *Source) Ready() <-chan struct{} {
	return s.ready
}

// SetupDone returns the "read everything" channel. It will be closed as
// soon as all input has been read
func (s *Source) SetupDone() <-chan struct{} {
	return s.setupDone
}
