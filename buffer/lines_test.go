package buffer

import (
	"context"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/peco/outstream/line"
	"github.com/peco/outstream/storage"
	"github.com/stretchr/testify/require"
)

// testWriter feeds text into Lines the way the ingestion path does, without
// interpreting anything but tabs and newlines.
type testWriter struct {
	lines *Lines
	col   int
	info  *line.Info
}

func newTestLines(t *testing.T, options ...Option) (*Lines, *testWriter) {
	t.Helper()
	l := New(storage.NewHeap(0), options...)
	t.Cleanup(func() { _ = l.Dispose() })
	return l, &testWriter{lines: l}
}

func (w *testWriter) write(t *testing.T, s string) {
	t.Helper()

	l := w.lines
	start, err := l.LineStart(l.LineCount() - 1)
	require.NoError(t, err)
	lineStart := int64(start) * BytesPerChar
	pos := int64(l.CharCount()) * BytesPerChar

	var data []byte
	var updates []LineUpdate
	for _, r := range s {
		units := utf16.AppendRune(nil, r)
		switch r {
		case '\t':
			width := l.TabWidth() - w.col%l.TabWidth()
			require.NoError(t, l.AddTabAt(int(pos/BytesPerChar), width))
			w.col += width
		case '\n':
		default:
			w.col += len(units)
		}
		data = UnitBytes(data, units)
		pos += int64(len(units)) * BytesPerChar
		if r == '\n' {
			updates = append(updates, LineUpdate{Start: lineStart, Length: pos - lineStart, Logical: w.col, Finished: true, Info: w.info})
			w.info = nil
			lineStart = pos
			w.col = 0
		}
	}
	updates = append(updates, LineUpdate{Start: lineStart, Length: pos - lineStart, Logical: w.col})
	require.NoError(t, l.Append(data, updates...))
}

func TestLineOffsets(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	require.Equal(t, 1, l.LineCount())
	require.Equal(t, 0, l.CharCount())

	const text = "hello\nworld\n\nlast"
	w.write(t, text)

	require.Equal(t, 4, l.LineCount())
	require.Equal(t, len(text), l.CharCount())

	expect := []struct {
		start  int
		length int
		text   string
	}{
		{0, 5, "hello"},
		{6, 5, "world"},
		{12, 0, ""},
		{13, 4, "last"},
	}
	for i, e := range expect {
		start, err := l.LineStart(i)
		require.NoError(t, err)
		require.Equal(t, e.start, start, "start of line %d", i)
		n, err := l.Length(i)
		require.NoError(t, err)
		require.Equal(t, e.length, n, "length of line %d", i)
		s, err := l.Line(i)
		require.NoError(t, err)
		require.Equal(t, e.text, s)

		at, err := l.LineAt(start)
		require.NoError(t, err)
		require.Equal(t, i, at)
		if i+1 < len(expect) {
			require.LessOrEqual(t, start, expect[i+1].start)
		}
	}

	at, err := l.LineAt(5)
	require.NoError(t, err)
	require.Equal(t, 0, at, "the terminator belongs to its line")
	at, err = l.LineAt(l.CharCount())
	require.NoError(t, err)
	require.Equal(t, 3, at)

	all, err := l.Text(0, l.CharCount())
	require.NoError(t, err)
	require.Equal(t, text, all)

	sub, err := l.Text(3, 9)
	require.NoError(t, err)
	require.Equal(t, "lo\nwor", sub)

	_, err = l.LineStart(4)
	require.ErrorIs(t, err, ErrInvariantViolation)
	_, err = l.Line(-1)
	require.ErrorIs(t, err, ErrInvariantViolation)
	_, err = l.Text(10, 100)
	require.ErrorIs(t, err, ErrInvariantViolation)
	_, err = l.LineAt(l.CharCount() + 1)
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestLineOffsetsAcrossWrites(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "par")
	w.write(t, "tial")
	require.Equal(t, 1, l.LineCount())
	n, err := l.Length(0)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	w.write(t, "\nnext")
	require.Equal(t, 2, l.LineCount())
	s, err := l.Line(0)
	require.NoError(t, err)
	require.Equal(t, "partial", s)
	s, err = l.Line(1)
	require.NoError(t, err)
	require.Equal(t, "next", s)
}

func TestSurrogatePairs(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "a😀b\nz")
	require.Equal(t, 6, l.CharCount())
	n, err := l.Length(0)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	s, err := l.Line(0)
	require.NoError(t, err)
	require.Equal(t, "a😀b", s)
}

func TestLineUpdatedRejectsBadUpdates(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "abc\n")

	err := l.LineUpdated(LineUpdate{Start: 0, Length: 2})
	require.ErrorIs(t, err, ErrInvariantViolation, "only the current line can change")

	err = l.LineUpdated(LineUpdate{Start: 8, Length: 100})
	require.ErrorIs(t, err, ErrInvariantViolation, "beyond stored bytes")

	err = l.LineUpdated(LineUpdate{Start: 8, Length: 0, Finished: true})
	require.ErrorIs(t, err, ErrInvariantViolation, "a finished line has a terminator")
}

func TestEraseLine(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "keep\nab\tcd")
	require.Equal(t, 1, l.TabCount())

	require.NoError(t, l.EraseLine())
	w.col = 0
	require.Equal(t, 2, l.LineCount())
	require.Equal(t, 5, l.CharCount())
	require.Equal(t, 0, l.TabCount())
	n, err := l.LengthWithTabs(1)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	w.write(t, "XY\n")
	s, err := l.Line(1)
	require.NoError(t, err)
	require.Equal(t, "XY", s)
}

func TestShrinkLine(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "keep\nabcd")
	info := line.NewInfo()
	info.AddSegment(2, line.KindError, nil, line.ColorDefault, line.ColorDefault, false)
	require.NoError(t, l.Append(nil, LineUpdate{Start: 10, Length: 8, Logical: 4, Info: info}))
	require.Equal(t, 1, l.AnnotatedLineCount())

	require.NoError(t, l.ShrinkLine(LineUpdate{Start: 10, Length: 4, Logical: 2}))
	require.Equal(t, 2, l.LineCount())
	require.Equal(t, 7, l.CharCount())
	require.Equal(t, 0, l.AnnotatedLineCount())
	text, err := l.Line(1)
	require.NoError(t, err)
	require.Equal(t, "ab", text)
	n, err := l.LengthWithTabs(1)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, l.CheckDirty(true))

	for _, u := range []LineUpdate{
		{Start: 0, Length: 2},
		{Start: 10, Length: 6},
		{Start: 10, Length: 3},
		{Start: 10, Length: 2, Finished: true},
	} {
		require.ErrorIs(t, l.ShrinkLine(u), ErrInvariantViolation)
	}

	w.col = 2
	w.write(t, "Z\n")
	text, err = l.Line(1)
	require.NoError(t, err)
	require.Equal(t, "abZ", text)
}

func TestFileStorageRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := storage.NewFile(t.TempDir(), storage.WithWriteThreshold(64), storage.WithRegistry(storage.NewRegistry()))
	require.NoError(t, err)
	l := New(store)
	defer l.Dispose()
	w := &testWriter{lines: l}

	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("line with some text in it\n")
	}
	w.write(t, b.String())

	require.Equal(t, 501, l.LineCount())
	require.NoError(t, l.Flush())
	s, err := l.Line(250)
	require.NoError(t, err)
	require.Equal(t, "line with some text in it", s)
	all, err := l.Text(0, l.CharCount())
	require.NoError(t, err)
	require.Equal(t, b.String(), all)
}

func TestDispose(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "some\ntext")
	require.NoError(t, l.Dispose())
	require.True(t, l.IsDisposed())

	require.Equal(t, 0, l.LineCount())
	require.Equal(t, 0, l.CharCount())
	s, err := l.Text(0, 4)
	require.NoError(t, err)
	require.Empty(t, s)
	s, err = l.Line(0)
	require.NoError(t, err)
	require.Empty(t, s)
	_, found, err := l.Find(context.Background(), 0, queryFor("text"))
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, -1, l.FoldStart(1))

	require.ErrorIs(t, l.Append([]byte{'a', 0}), storage.ErrDisposed)
	require.NoError(t, l.Dispose())
}

func TestDirty(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	require.False(t, l.CheckDirty(false))

	w.write(t, "a")
	w.write(t, "b")
	require.True(t, l.CheckDirty(false))
	require.True(t, l.CheckDirty(true))
	require.False(t, l.CheckDirty(true))

	select {
	case <-l.Changes():
	default:
		require.Fail(t, "expected a change notification")
	}
	select {
	case <-l.Changes():
		require.Fail(t, "notifications should coalesce")
	default:
	}
}

func TestAnnotations(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "plain\n")

	info := line.NewInfo()
	info.AddSegment(3, line.KindError, nil, line.ColorDefault, line.ColorDefault, false)
	w.info = info
	w.write(t, "err\n")

	important := line.NewInfo()
	important.AddSegment(4, line.KindNormal, "link", line.ColorDefault, line.ColorDefault, true)
	w.info = important
	w.write(t, "link\nplain\n")

	require.Equal(t, 2, l.AnnotatedLineCount())
	got, ok := l.Annotation(1)
	require.True(t, ok)
	require.Same(t, info, got)
	_, ok = l.Annotation(0)
	require.False(t, ok)

	next, ok := l.NextAnnotatedLine(0)
	require.True(t, ok)
	require.Equal(t, 1, next)
	next, ok = l.NextImportantLine(0)
	require.True(t, ok)
	require.Equal(t, 2, next)
	prev, ok := l.PrevAnnotatedLine(2)
	require.True(t, ok)
	require.Equal(t, 1, prev)
	_, ok = l.PrevImportantLine(2)
	require.False(t, ok)
	require.Equal(t, []int{2}, l.ImportantLines())

	p := line.DefaultPalette()
	require.Equal(t, p.Error, l.SegmentStyle(1, 0, p))
	require.Equal(t, p.ImportantHyperlink, l.SegmentStyle(2, 1, p))
	require.Equal(t, p.Normal, l.SegmentStyle(0, 1, p))
}
