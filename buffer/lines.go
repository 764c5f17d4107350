package buffer

import (
	"github.com/lestrrat-go/pdebug"
	"github.com/peco/outstream/filter"
	"github.com/peco/outstream/internal/index"
	"github.com/peco/outstream/line"
	"github.com/peco/outstream/storage"
	"github.com/pkg/errors"
)

// DefaultTabWidth is the distance between tab stops.
const DefaultTabWidth = 8

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxLines:          4 << 20,
		MaxChars:          512 << 20,
		RemoveLines:       2 << 20,
		MaxAnnotatedLines: 1 << 20,
	}
}

// Option configures Lines.
type Option func(*Lines)

// WithLimits sets the eviction limits. Zero fields keep their defaults.
func WithLimits(limits Limits) Option {
	return func(l *Lines) {
		if limits.MaxLines > 0 {
			l.limits.MaxLines = limits.MaxLines
		}
		if limits.MaxChars > 0 {
			l.limits.MaxChars = limits.MaxChars
		}
		if limits.RemoveLines > 0 {
			l.limits.RemoveLines = limits.RemoveLines
		}
		if limits.MaxAnnotatedLines > 0 {
			l.limits.MaxAnnotatedLines = limits.MaxAnnotatedLines
		}
	}
}

// WithTabWidth sets the distance between tab stops.
func WithTabWidth(n int) Option {
	return func(l *Lines) {
		if n > 0 {
			l.tabWidth = n
		}
	}
}

// WithCompiler shares a pattern cache between several Lines.
func WithCompiler(c *filter.Compiler) Option {
	return func(l *Lines) {
		if c != nil {
			l.compiler = c
		}
	}
}

// New creates an empty line index over store. The index starts with one
// empty, unfinished line.
func New(store storage.Storage, options ...Option) *Lines {
	l := &Lines{
		store:       store,
		limits:      DefaultLimits(),
		tabWidth:    DefaultTabWidth,
		starts:      index.NewList(1024),
		logical:     index.NewInts(1024),
		tabOffsets:  index.NewList(64),
		tabExtra:    index.NewInts(64),
		foldOffsets: index.NewInts(1024),
		expanded:    index.NewKeyed[bool](),
		openFold:    -1,
		annotations: index.NewKeyed[*line.Info](),
		changes:     make(chan struct{}, 1),
	}
	for _, o := range options {
		o(l)
	}
	if l.compiler == nil {
		l.compiler = filter.NewCompiler()
	}
	_ = l.starts.Add(0)
	l.foldOffsets.Add(0)
	l.realToVisible = []int{0}
	l.visibleToReal = []int{0}
	return l
}

func (l *Lines) TabWidth() int {
	return l.tabWidth
}

func (l *Lines) Limits() Limits {
	return l.limits
}

// LineCount includes the current, unfinished line.
func (l *Lines) LineCount() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return 0
	}
	return l.starts.Size()
}

// CharCount is the number of stored characters, line terminators included.
func (l *Lines) CharCount() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return 0
	}
	return l.chars
}

// LongestLine is the largest tab-expanded line length seen since the last
// eviction.
func (l *Lines) LongestLine() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.longest
}

func (l *Lines) lastLine() int {
	return l.starts.Size() - 1
}

func (l *Lines) lineStartLocked(i int) int {
	return l.starts.At(i) / BytesPerChar
}

// lineEndLocked is the char offset where the next line starts, or the
// stored end for the current line.
func (l *Lines) lineEndLocked(i int) int {
	if i < l.lastLine() {
		return l.lineStartLocked(i + 1)
	}
	return l.chars
}

func (l *Lines) lengthLocked(i int) int {
	if i < l.lastLine() {
		return l.lineEndLocked(i) - l.lineStartLocked(i) - 1
	}
	return int(l.curBytes / BytesPerChar)
}

func (l *Lines) lengthWithTabsLocked(i int) int {
	if i < l.lastLine() {
		return l.logical.Get(i)
	}
	return l.curLogical
}

func (l *Lines) checkLine(i int) error {
	if n := l.starts.Size(); i < 0 || i >= n {
		return lineOutOfRange(i, n)
	}
	return nil
}

// LineStart returns the char offset of line i.
func (l *Lines) LineStart(i int) (int, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return 0, nil
	}
	if err := l.checkLine(i); err != nil {
		return 0, err
	}
	return l.lineStartLocked(i), nil
}

func (l *Lines) lineAtLocked(offset int) int {
	return l.starts.FindNearest(offset * BytesPerChar)
}

// LineAt returns the line containing char offset. The end offset belongs
// to the current line.
func (l *Lines) LineAt(offset int) (int, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return 0, nil
	}
	if offset < 0 || offset > l.chars {
		return 0, charOutOfRange(offset, offset, l.chars)
	}
	return l.lineAtLocked(offset), nil
}

// Length returns the number of characters of line i, without terminator.
func (l *Lines) Length(i int) (int, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return 0, nil
	}
	if err := l.checkLine(i); err != nil {
		return 0, err
	}
	return l.lengthLocked(i), nil
}

// LengthWithTabs returns the tab-expanded length of line i.
func (l *Lines) LengthWithTabs(i int) (int, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return 0, nil
	}
	if err := l.checkLine(i); err != nil {
		return 0, err
	}
	return l.lengthWithTabsLocked(i), nil
}

// Line returns the text of line i without its terminator.
func (l *Lines) Line(i int) (string, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return "", nil
	}
	if err := l.checkLine(i); err != nil {
		return "", err
	}
	return l.readLocked(l.lineStartLocked(i), l.lengthLocked(i))
}

// Text returns the characters in [start, end), line terminators included.
func (l *Lines) Text(start, end int) (string, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return "", nil
	}
	if start < 0 || end < start || end > l.chars {
		return "", charOutOfRange(start, end, l.chars)
	}
	return l.readLocked(start, end-start)
}

func (l *Lines) readLocked(start, n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	lease, err := l.store.Read(int64(start)*BytesPerChar, n*BytesPerChar)
	if err != nil {
		return "", errors.Wrap(err, "failed to read stored text")
	}
	defer lease.Release()
	return decode(lease.Bytes()), nil
}

// Lease gives direct access to the stored code units of [start, end). The
// lease must be released; while it is held the leased range is not
// evicted.
func (l *Lines) Lease(start, end int) (*storage.Lease, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return nil, storage.ErrDisposed
	}
	if start < 0 || end < start || end > l.chars {
		return nil, charOutOfRange(start, end, l.chars)
	}
	return l.store.Read(int64(start)*BytesPerChar, (end-start)*BytesPerChar)
}

// Append stores data and applies updates, in order, as one atomic change.
func (l *Lines) Append(data []byte, updates ...LineUpdate) (err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("Lines.Append (%d bytes, %d updates)", len(data), len(updates)).BindError(&err)
		defer g.End()
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.disposed {
		return storage.ErrDisposed
	}
	if len(data) > 0 {
		if _, err := l.store.Append(data); err != nil {
			return err
		}
	}
	for _, u := range updates {
		if err := l.lineUpdatedLocked(u); err != nil {
			return err
		}
	}
	l.markDirty()
	return nil
}

// LineUpdated records that the current line, starting at byte offset
// u.Start, now has u.Length stored bytes. A finished line is committed and
// a new, empty current line begins after it.
func (l *Lines) LineUpdated(u LineUpdate) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.disposed {
		return storage.ErrDisposed
	}
	if err := l.lineUpdatedLocked(u); err != nil {
		return err
	}
	l.markDirty()
	return nil
}

func (l *Lines) lineUpdatedLocked(u LineUpdate) error {
	last := l.lastLine()
	if start := int64(l.starts.At(last)); u.Start != start {
		return errors.Wrapf(ErrInvariantViolation, "update of line starting at %d, current line starts at %d", u.Start, start)
	}
	end := u.Start + u.Length
	if u.Length < 0 || end%BytesPerChar != 0 || end > l.store.Size() {
		return errors.Wrapf(ErrInvariantViolation, "line end %d outside stored range %d", end, l.store.Size())
	}
	if u.Finished && u.Length < BytesPerChar {
		return errors.Wrap(ErrInvariantViolation, "finished line without terminator")
	}

	l.curBytes = u.Length
	l.curLogical = u.Logical
	l.chars = int(end / BytesPerChar)
	if u.Logical > l.longest {
		l.longest = u.Logical
	}
	if u.Info != nil {
		if err := l.annotations.Put(last, u.Info); err != nil {
			return err
		}
	}
	l.wrapUpdateLast()

	if !u.Finished {
		return nil
	}

	l.logical.Add(u.Logical)
	if err := l.starts.Add(int(end)); err != nil {
		return err
	}
	l.curBytes = 0
	l.curLogical = 0

	next := last + 1
	offset := 0
	if l.openFold >= 0 {
		offset = next - l.openFold
	}
	l.foldOffsets.Add(offset)
	l.appendVisibility(next)
	l.wrapUpdateLast()
	return nil
}

// EraseLine discards the stored text of the current line, along with its
// tabs and annotations.
func (l *Lines) EraseLine() (err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("Lines.EraseLine").BindError(&err)
		defer g.End()
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.disposed {
		return storage.ErrDisposed
	}
	last := l.lastLine()
	start := l.lineStartLocked(last)
	if l.curBytes > 0 {
		if err := l.store.TruncateFromEnd(l.curBytes); err != nil {
			return err
		}
	}
	l.removeTabsFromLocked(start)
	l.chars = start
	l.curBytes = 0
	l.curLogical = 0
	l.annotations.Delete(last)
	l.wrapUpdateLast()
	l.markDirty()
	return nil
}

// ShrinkLine drops stored characters from the end of the current line so
// that u.Length bytes remain. The annotations of the line become u.Info.
func (l *Lines) ShrinkLine(u LineUpdate) (err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("Lines.ShrinkLine (%d)", u.Length).BindError(&err)
		defer g.End()
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.disposed {
		return storage.ErrDisposed
	}
	last := l.lastLine()
	if start := int64(l.starts.At(last)); u.Start != start || u.Finished || u.Length < 0 || u.Length > l.curBytes || u.Length%BytesPerChar != 0 {
		return errors.Wrapf(ErrInvariantViolation, "shrink of line starting at %d to %d bytes", u.Start, u.Length)
	}
	if n := l.curBytes - u.Length; n > 0 {
		if err := l.store.TruncateFromEnd(n); err != nil {
			return err
		}
	}
	l.curBytes = u.Length
	l.curLogical = u.Logical
	l.chars = int((u.Start + u.Length) / BytesPerChar)
	if u.Info != nil {
		if err := l.annotations.Put(last, u.Info); err != nil {
			return err
		}
	} else {
		l.annotations.Delete(last)
	}
	l.wrapUpdateLast()
	l.markDirty()
	return nil
}

// Flush writes batched bytes through to the storage.
func (l *Lines) Flush() error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return nil
	}
	return l.store.Flush()
}

// Close stops accepting writes; the index stays readable.
func (l *Lines) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.disposed {
		return nil
	}
	return l.store.Close()
}

// Err returns the sticky storage error, if any.
func (l *Lines) Err() error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return nil
	}
	return l.store.Err()
}

// Dispose releases the storage and drops every index. Later queries return
// empty results.
func (l *Lines) Dispose() (err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("Lines.Dispose").BindError(&err)
		defer g.End()
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.disposed {
		return nil
	}
	l.disposed = true
	l.wrap = nil
	l.annotations.Clear()
	l.expanded.Clear()
	l.realToVisible = nil
	l.visibleToReal = nil
	l.markDirty()
	return l.store.Dispose()
}

func (l *Lines) IsDisposed() bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.disposed
}
