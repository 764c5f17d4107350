package outstream

import (
	"bufio"
	"io"
	"os"
	"runtime"

	"github.com/lestrrat-go/pdebug"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

func lineTerminator() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// SaveAs writes every line, each followed by the platform line terminator,
// to path in the configured encoding. An empty current line is left out.
// Characters the encoding cannot represent are replaced. Printing blocks
// until the file is written.
func (s *Stream) SaveAs(path string) (err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("Stream.SaveAs %s", path).BindError(&err)
		defer g.End()
	}

	enc, err := htmlindex.Get(string(s.config.Encoding))
	if err != nil {
		return errors.Wrapf(err, "unknown encoding %q", s.config.Encoding)
	}

	// the producer waits, so no line is evicted while it is written out
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.flushLocked()

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()

	buf := bufio.NewWriter(f)
	w := transform.NewWriter(buf, encoding.ReplaceUnsupported(enc.NewEncoder()))
	if err := s.writeLines(w); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return errors.Wrapf(buf.Flush(), "failed to write %s", path)
}

func (s *Stream) writeLines(w io.Writer) error {
	lines := s.lines
	n := lines.LineCount()
	if n > 0 {
		if length, err := lines.Length(n - 1); err == nil && length == 0 {
			n--
		}
	}
	term := lineTerminator()
	for i := range n {
		text, err := lines.Line(i)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, text); err != nil {
			return err
		}
		if _, err := io.WriteString(w, term); err != nil {
			return err
		}
	}
	return nil
}
