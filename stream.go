// Package outstream keeps the output of long running processes in a
// compact, searchable line index. A Stream is written to by one producer
// and read concurrently through its Lines.
package outstream

import (
	"encoding/binary"
	"io"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/lestrrat-go/pdebug"
	"github.com/peco/outstream/buffer"
	"github.com/peco/outstream/config"
	"github.com/peco/outstream/filter"
	"github.com/peco/outstream/internal/ansi"
	"github.com/peco/outstream/line"
	"github.com/peco/outstream/storage"
	"github.com/pkg/errors"
)

// batchThreshold is how many characters of a single call are collected
// before they are handed to the line index.
const batchThreshold = 16 << 10

// Stream turns printed text into lines. Text is interpreted as it arrives:
// ANSI colors become annotations, a carriage return or ESC[2K discards
// the current line, a backspace erases the character before it, and tabs
// are expanded to the configured width.
//
// Printed text is visible to readers as soon as Print or Write returns.
// Flush writes batched storage bytes through to the backing file.
type Stream struct {
	mutex    sync.Mutex
	lines    *buffer.Lines
	factory  *storage.Factory
	config   config.Config
	compiler *filter.Compiler
	onError  func(error)
	err      error
	closed   bool

	parser ansi.Parser
	raw    writer

	// text not yet handed to lines, and the updates describing it
	pending    []byte
	updates    []buffer.LineUpdate
	batchStart int64 // byte offset of pending[0]
	changed    bool

	lineStart int64 // byte offset of the current line
	col       int
	lineChars int
	lineTabs  int
	pendingCR bool

	info     *line.Info
	run      attributes
	runStart int
}

// Option configures a Stream.
type Option func(*Stream)

// WithConfig sets limits, tab width, storage and style.
func WithConfig(cfg config.Config) Option {
	return func(s *Stream) {
		s.config = cfg
	}
}

// WithFactory shares a storage factory, so that a failure of file storage
// moves later streams to the heap.
func WithFactory(f *storage.Factory) Option {
	return func(s *Stream) {
		s.factory = f
	}
}

// WithErrorHandler is called once, when a storage failure makes the stream
// read-only. It is called with the stream locked and must not write to it.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Stream) {
		s.onError = fn
	}
}

// WithCompiler shares a pattern cache between streams.
func WithCompiler(c *filter.Compiler) Option {
	return func(s *Stream) {
		s.compiler = c
	}
}

// New creates an empty stream.
func New(options ...Option) (*Stream, error) {
	s := &Stream{}
	_ = s.config.Init()
	for _, o := range options {
		o(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid stream configuration")
	}
	if s.factory == nil {
		s.factory = storage.NewFactory(s.config.Storage, s.config.TempDir, nil)
	}
	store, err := s.factory.New()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create stream storage")
	}

	opts := s.config.BufferOptions()
	if s.compiler != nil {
		opts = append(opts, buffer.WithCompiler(s.compiler))
	}
	s.lines = buffer.New(store, opts...)
	s.raw.stream = s
	return s, nil
}

// Lines gives read access to the stream's text.
func (s *Stream) Lines() *buffer.Lines {
	return s.lines
}

// Palette is the configured palette annotations are painted with.
func (s *Stream) Palette() line.Palette {
	return s.config.Style.Palette()
}

// Changes delivers a coalesced notification after the text changed.
func (s *Stream) Changes() <-chan struct{} {
	return s.lines.Changes()
}

// CheckDirty reports whether the text changed since the flag was last
// cleared, clearing it when clear is set.
func (s *Stream) CheckDirty(clear bool) bool {
	return s.lines.CheckDirty(clear)
}

// Err returns the storage failure that made the stream read-only.
func (s *Stream) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.err
}

func (s *Stream) writableLocked() error {
	if s.closed || s.err != nil {
		return ErrStreamClosed
	}
	return nil
}

// Print appends text, annotated as opts describe.
func (s *Stream) Print(text string, opts ...PrintOption) error {
	c, err := newPrintConfig(opts)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.writableLocked(); err != nil {
		return err
	}
	s.ingestLocked(text, c.attributes)
	if c.lineBreak && s.err == nil {
		s.put('\n')
	}
	s.flushLocked()
	return s.err
}

// Write appends raw output. It never splits a character that arrives in
// two writes.
func (s *Stream) Write(p []byte) (int, error) {
	return s.raw.Write(p)
}

// Writer returns an io.Writer whose output is annotated as opts describe.
// Each writer keeps its own partial characters, so several may feed the
// same stream. When opts are invalid every write fails.
func (s *Stream) Writer(opts ...PrintOption) io.Writer {
	c, err := newPrintConfig(opts)
	return &writer{stream: s, config: c, err: err}
}

type writer struct {
	stream  *Stream
	config  printConfig
	err     error
	partial []byte
}

func (w *writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	s := w.stream
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.writableLocked(); err != nil {
		return 0, err
	}
	data := p
	if len(w.partial) > 0 {
		data = append(w.partial, p...)
		w.partial = nil
	}
	cut := completeUTF8(data)
	if cut < len(data) {
		w.partial = append([]byte(nil), data[cut:]...)
	}
	s.ingestLocked(string(data[:cut]), w.config.attributes)
	s.flushLocked()
	if s.err != nil {
		return 0, s.err
	}
	return len(p), nil
}

// completeUTF8 returns the length of the prefix of b that ends on a
// character boundary.
func completeUTF8(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return i
			}
			break
		}
	}
	return len(b)
}

// Flush writes everything printed so far through to the storage.
func (s *Stream) Flush() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.err != nil {
		return s.err
	}
	s.flushLocked()
	if s.err == nil {
		if err := s.lines.Flush(); err != nil {
			s.fail(err)
		}
	}
	return s.err
}

// Close flushes and stops accepting text. The stream stays readable until
// it is disposed.
func (s *Stream) Close() (err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("Stream.Close").BindError(&err)
		defer g.End()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	if s.err == nil {
		for _, tok := range s.parser.Flush() {
			s.textLocked(tok, s.run)
		}
		if s.pendingCR {
			s.pendingCR = false
			s.discardLine()
		}
		s.flushLocked()
	}
	s.closed = true
	if err := s.lines.Close(); err != nil {
		return err
	}
	return s.err
}

// Dispose releases the stream's storage. Reads afterwards return nothing.
func (s *Stream) Dispose() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closed = true
	return s.lines.Dispose()
}

// Fold identifies a fold opened by StartFold. It stays valid when lines
// before it are evicted.
type Fold struct {
	start   int
	evicted int
}

// foldLine is the current line number of the first line of f.
func (s *Stream) foldLine(f Fold) int {
	return f.start - (s.lines.EvictedLines() - f.evicted)
}

// StartFold opens a fold at the current line, or at the last finished line
// when nothing was printed on the current one yet. Text printed until
// EndFold belongs to it.
func (s *Stream) StartFold(expanded bool) (Fold, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.writableLocked(); err != nil {
		return Fold{}, err
	}
	s.flushLocked()
	if s.err != nil {
		return Fold{}, s.err
	}
	start, err := s.lines.StartFold(expanded)
	if err != nil {
		return Fold{}, err
	}
	return Fold{start: start, evicted: s.lines.EvictedLines()}, nil
}

// EndFold closes f and every fold opened inside it.
func (s *Stream) EndFold(f Fold) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.writableLocked(); err != nil {
		return err
	}
	s.flushLocked()
	if s.err != nil {
		return s.err
	}

	start := s.foldLine(f)
	if start < 0 {
		// the start was evicted, so every fold still open lies inside f
		start = s.lines.OpenFold()
		if start < 0 {
			return nil
		}
		for p := s.lines.ParentFoldStart(start); p >= 0; p = s.lines.ParentFoldStart(start) {
			start = p
		}
	}
	return s.lines.EndFold(start)
}

func (s *Stream) fail(err error) {
	if s.err != nil {
		return
	}
	s.err = err
	s.factory.ReportFailure(err)
	if pdebug.Enabled {
		pdebug.Printf("Stream: write failed, stream is read-only from now on: %s", err)
	}
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Stream) pos() int64 {
	return s.batchStart + int64(len(s.pending))
}

func (s *Stream) charPos() int {
	return int(s.pos() / buffer.BytesPerChar)
}

func (s *Stream) ingestLocked(text string, a attributes) {
	for _, tok := range s.parser.Parse(text) {
		switch tok.Kind {
		case ansi.TokenClearLine:
			s.discardLine()
		case ansi.TokenText:
			s.textLocked(tok, a)
		}
		if s.err != nil {
			return
		}
	}
}

func (s *Stream) textLocked(tok ansi.Token, a attributes) {
	run := a
	if tok.Fg != line.ColorDefault {
		if tok.Fg.IsDefault() {
			run.fg = a.fg | tok.Fg.Flags()
		} else {
			run.fg = tok.Fg
		}
	}
	if tok.Bg != line.ColorDefault {
		if tok.Bg.IsDefault() {
			run.bg = a.bg | tok.Bg.Flags()
		} else {
			run.bg = tok.Bg
		}
	}
	if run != s.run {
		s.markRun()
		s.run = run
	}
	for _, r := range tok.Text {
		s.put(r)
		if s.err != nil {
			return
		}
	}
}

func (s *Stream) put(r rune) {
	if s.pendingCR {
		s.pendingCR = false
		if r == '\n' {
			s.finishLine()
			return
		}
		s.discardLine()
	}

	switch r {
	case '\r':
		s.pendingCR = true
	case '\n':
		s.finishLine()
	case '\b':
		s.backspace()
	case '\t':
		s.tab()
	default:
		s.appendRune(r)
	}
}

// breakLongLine finishes the current line once it reached the maximum
// length.
func (s *Stream) breakLongLine() {
	if s.lineChars >= s.config.MaxLineLength {
		s.finishLine()
	}
}

func (s *Stream) appendUnit(u uint16) {
	s.pending = binary.LittleEndian.AppendUint16(s.pending, u)
	s.changed = true
}

func (s *Stream) appendRune(r rune) {
	s.breakLongLine()
	if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
		s.appendUnit(uint16(r1))
		s.appendUnit(uint16(r2))
		s.lineChars += 2
		s.col += 2
	} else {
		if r > 0xffff || utf16.IsSurrogate(r) {
			r = utf8.RuneError
		}
		s.appendUnit(uint16(r))
		s.lineChars++
		s.col++
	}
	s.checkBatch()
}

func (s *Stream) tab() {
	s.breakLongLine()
	width := s.lines.TabWidth() - s.col%s.lines.TabWidth()
	if err := s.lines.AddTabAt(s.charPos(), width); err != nil {
		s.fail(err)
		return
	}
	s.appendUnit('\t')
	s.col += width
	s.lineChars++
	s.lineTabs++
	s.checkBatch()
}

func (s *Stream) finishLine() {
	s.markRun()
	s.appendUnit('\n')
	pos := s.pos()
	s.updates = append(s.updates, buffer.LineUpdate{
		Start:    s.lineStart,
		Length:   pos - s.lineStart,
		Logical:  s.col,
		Finished: true,
		Info:     s.info,
	})
	s.info = nil
	s.runStart = 0
	s.lineStart = pos
	s.col = 0
	s.lineChars = 0
	s.lineTabs = 0
	s.checkBatch()
}

// backspace erases the character before it on the current line. At the
// start of a line it does nothing.
func (s *Stream) backspace() {
	pos := s.pos()
	if pos <= s.lineStart {
		return
	}
	if pos <= s.batchStart && !s.reopenLine() {
		return
	}
	floor := max(s.lineStart, s.batchStart)

	unit := func(i int) uint16 {
		return binary.LittleEndian.Uint16(s.pending[i:])
	}
	last := len(s.pending) - buffer.BytesPerChar
	n := 1
	if u := unit(last); u >= 0xdc00 && u < 0xe000 && pos-2*buffer.BytesPerChar >= floor {
		if h := unit(last - buffer.BytesPerChar); h >= 0xd800 && h < 0xdc00 {
			n = 2
		}
	}
	if unit(last) == '\t' {
		if width, ok := s.lines.RemoveLastTab(); ok {
			s.col -= width
		}
		s.lineTabs--
	} else {
		s.col -= n
	}
	s.pending = s.pending[:len(s.pending)-n*buffer.BytesPerChar]
	s.lineChars -= n
	s.runStart = min(s.runStart, s.lineChars)
	if s.info != nil {
		s.info.Truncate(s.lineChars)
	}
	s.changed = true
}

// reopenLine takes the stored part of the current line back into pending
// so it can be edited again. It reports false when the line cannot be
// shortened because a reader holds a lease on it.
func (s *Stream) reopenLine() bool {
	lease, err := s.lines.Lease(int(s.lineStart/buffer.BytesPerChar), int(s.batchStart/buffer.BytesPerChar))
	if err != nil {
		s.fail(err)
		return false
	}
	stored := append([]byte(nil), lease.Bytes()...)
	lease.Release()

	err = s.lines.ShrinkLine(buffer.LineUpdate{Start: s.lineStart})
	switch {
	case errors.Is(err, storage.ErrLeaseOutstanding):
		return false
	case err != nil:
		s.fail(err)
		return false
	}
	s.pending = append(stored, s.pending...)
	s.batchStart = s.lineStart
	s.changed = true
	return true
}

// discardLine erases the current line, the part already handed to lines
// included.
func (s *Stream) discardLine() {
	if s.lineStart >= s.batchStart {
		s.pending = s.pending[:s.lineStart-s.batchStart]
		for ; s.lineTabs > 0; s.lineTabs-- {
			s.lines.RemoveLastTab()
		}
	} else {
		// no line finished since the last flush, so pending holds only
		// the rest of the current line
		s.pending = s.pending[:0]
		if err := s.lines.EraseLine(); err != nil {
			s.fail(err)
			return
		}
		s.batchStart = s.lineStart
		s.lineTabs = 0
	}
	s.col = 0
	s.lineChars = 0
	s.runStart = 0
	s.info = nil
	s.changed = true
}

// markRun records the annotations of the text printed since the last
// change of attributes.
func (s *Stream) markRun() {
	if s.lineChars <= s.runStart {
		return
	}
	if s.info == nil {
		if s.run.isDefault() {
			s.runStart = s.lineChars
			return
		}
		s.info = line.NewInfo()
		if s.runStart > 0 {
			s.info.AddSegment(s.runStart, line.KindNormal, nil, line.ColorDefault, line.ColorDefault, false)
		}
	}
	r := s.run
	s.info.AddSegment(s.lineChars, r.kind, r.listener, r.fg, r.bg, r.important)
	s.runStart = s.lineChars
}

func (s *Stream) checkBatch() {
	if len(s.pending) >= batchThreshold*buffer.BytesPerChar {
		s.flushLocked()
	}
}

// flushLocked hands the collected text to lines and applies the limits.
func (s *Stream) flushLocked() {
	if s.err != nil || !s.changed {
		return
	}
	s.markRun()
	pos := s.pos()
	updates := append(s.updates, buffer.LineUpdate{
		Start:   s.lineStart,
		Length:  pos - s.lineStart,
		Logical: s.col,
		Info:    s.info.Clone(),
	})
	if err := s.lines.Append(s.pending, updates...); err != nil {
		s.fail(err)
		return
	}
	clear(updates)
	s.pending = s.pending[:0]
	s.updates = updates[:0]
	s.batchStart = pos
	s.changed = false

	n, err := s.lines.CheckLimits()
	switch {
	case errors.Is(err, storage.ErrLeaseOutstanding):
		// retried at the next flush
	case err != nil:
		s.fail(err)
	case n > 0:
		s.resync()
	}
}

// resync reloads the offsets of the current line after an eviction moved
// them.
func (s *Stream) resync() {
	start, err := s.lines.LineStart(s.lines.LineCount() - 1)
	if err != nil {
		s.fail(err)
		return
	}
	s.lineStart = int64(start) * buffer.BytesPerChar
	s.batchStart = int64(s.lines.CharCount()) * buffer.BytesPerChar
}
