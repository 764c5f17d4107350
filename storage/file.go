package storage

import (
	"io"
	"os"
	"sync"

	"github.com/lestrrat-go/pdebug"
	"github.com/pkg/errors"
)

const (
	// DefaultWriteThreshold is how many bytes are batched before they are
	// written to the backing file.
	DefaultWriteThreshold = 8 * 1024

	// DefaultWindowSize is the minimum size of a mapped read window.
	DefaultWindowSize = 1024 * 1024

	// DefaultCompactThreshold is how much shifted-out prefix the backing
	// file may carry before it is rewritten.
	DefaultCompactThreshold = 64 * 1024 * 1024
)

// region is one mapped window of the backing file. It is unmapped when it
// has been replaced and its last lease is released.
type region struct {
	off    int64 // file offset of data[0]
	data   []byte
	refs   int
	stale  bool
	mapped bool
}

func (r *region) covers(off int64, length int) bool {
	return off >= r.off && off+int64(length) <= r.off+int64(len(r.data))
}

// File is a Storage backed by an append-only temporary file. Writes are
// batched; reads are served from a memory-mapped window around the
// requested range, falling back to positional reads when mapping fails.
type File struct {
	mutex    sync.Mutex
	path     string
	file     *os.File
	registry *Registry

	base    int64 // file offset of logical byte 0
	written int64 // logical bytes already in the file
	size    int64 // logical size including pending bytes
	pending []byte

	window     *region
	windowSize int
	threshold  int
	compactAt  int64
	leases     leaseSet

	mapFile      func(*os.File, int64, int) ([]byte, error)
	unmapFile    func([]byte) error
	onMapFailure func(error)
	mapFailed    bool

	err      error
	closed   bool
	disposed bool
}

// FileOption configures a File.
type FileOption func(*File)

// WithWindowSize overrides DefaultWindowSize.
func WithWindowSize(n int) FileOption {
	return func(f *File) {
		if n > 0 {
			f.windowSize = n
		}
	}
}

// WithWriteThreshold overrides DefaultWriteThreshold.
func WithWriteThreshold(n int) FileOption {
	return func(f *File) {
		if n > 0 {
			f.threshold = n
		}
	}
}

// WithCompactThreshold overrides DefaultCompactThreshold.
func WithCompactThreshold(n int64) FileOption {
	return func(f *File) {
		if n > 0 {
			f.compactAt = n
		}
	}
}

// WithMapFailureHandler is called once, the first time a read window
// cannot be mapped. The error satisfies errors.Is(err,
// ErrResourceExhaustion). Reads keep working without mapping.
func WithMapFailureHandler(fn func(error)) FileOption {
	return func(f *File) {
		f.onMapFailure = fn
	}
}

// WithRegistry registers the storage so Registry.Teardown can delete its
// file if it is never disposed.
func WithRegistry(r *Registry) FileOption {
	return func(f *File) {
		f.registry = r
	}
}

// NewFile creates a file storage in dir (os.TempDir() when empty).
func NewFile(dir string, options ...FileOption) (f *File, err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("storage.NewFile (%s)", dir).BindError(&err)
		defer g.End()
	}

	fh, err := os.CreateTemp(dir, "outstream-*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage file")
	}

	f = &File{
		path:       fh.Name(),
		file:       fh,
		windowSize: DefaultWindowSize,
		threshold:  DefaultWriteThreshold,
		compactAt:  DefaultCompactThreshold,
		mapFile:    mmap,
		unmapFile:  munmap,
	}
	for _, o := range options {
		o(f)
	}
	f.pending = make([]byte, 0, f.threshold*2)
	if f.registry != nil {
		f.registry.add(f)
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

func (f *File) Append(b []byte) (int64, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.disposed {
		return 0, ErrDisposed
	}
	if f.err != nil {
		return 0, f.err
	}
	if f.closed {
		return 0, ErrClosed
	}

	start := f.size
	f.pending = append(f.pending, b...)
	f.size += int64(len(b))
	if len(f.pending) >= f.threshold {
		if err := f.flushLocked(); err != nil {
			return start, err
		}
	}
	return start, nil
}

func (f *File) flushLocked() error {
	if f.err != nil {
		return f.err
	}
	if len(f.pending) == 0 {
		return nil
	}
	n, err := f.file.WriteAt(f.pending, f.base+f.written)
	f.written += int64(n)
	f.pending = f.pending[:copy(f.pending, f.pending[n:])]
	if err != nil {
		f.err = writeError(err)
		if pdebug.Enabled {
			pdebug.Printf("storage.File: write to %s failed: %s", f.path, err)
		}
		return f.err
	}
	return nil
}

func (f *File) Read(start int64, length int) (*Lease, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.disposed {
		return nil, ErrDisposed
	}
	end := start + int64(length)
	if start < 0 || length < 0 || end > f.size {
		return nil, errors.Wrapf(ErrOutOfRange, "read [%d, %d) of %d bytes", start, end, f.size)
	}
	if length == 0 {
		return newLease(nil, nil), nil
	}

	if end > f.written {
		// a failed flush leaves the bytes in pending; they are still readable
		_ = f.flushLocked()
		if end > f.written {
			return f.readCopyLocked(start, length)
		}
	}

	if f.mapFailed {
		return f.readCopyLocked(start, length)
	}

	off := f.base + start
	if w := f.window; w == nil || w.stale || !w.covers(off, length) {
		if err := f.remapLocked(off, length); err != nil {
			f.mapFailureLocked(off, length, err)
			return f.readCopyLocked(start, length)
		}
	}

	w := f.window
	w.refs++
	rel := off - w.off
	l := newLease(w.data[rel:rel+int64(length)], func(l *Lease) {
		f.releaseWindow(l, w)
	})
	f.leases.add(l, start, end)
	return l, nil
}

// mapFailureLocked switches the file to positional reads for good and
// reports the failure as resource exhaustion.
func (f *File) mapFailureLocked(off int64, length int, err error) {
	if pdebug.Enabled {
		pdebug.Printf("storage.File: mapping [%d, +%d) failed, reading directly: %s", off, length, err)
	}
	f.mapFailed = true
	if f.onMapFailure != nil {
		f.onMapFailure(&writeFailure{kind: ErrResourceExhaustion, cause: errors.Wrap(err, "failed to map storage file")})
	}
}

// readCopyLocked serves a read from a heap buffer: file bytes via ReadAt
// followed by any bytes still pending.
func (f *File) readCopyLocked(start int64, length int) (*Lease, error) {
	buf := make([]byte, length)
	n := 0
	if start < f.written {
		fileEnd := min(start+int64(length), f.written)
		m, err := f.file.ReadAt(buf[:fileEnd-start], f.base+start)
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "failed to read storage file")
		}
		n = m
	}
	if n < length {
		pstart := start + int64(n) - f.written
		copy(buf[n:], f.pending[pstart:])
	}
	return newLease(buf, nil), nil
}

func (f *File) remapLocked(off int64, length int) error {
	page := int64(os.Getpagesize())
	mapStart := off &^ (page - 1)
	want := max(f.windowSize, int(float64(length)*1.1))
	mapLen := off - mapStart + int64(want)
	if fileEnd := f.base + f.written; mapStart+mapLen > fileEnd {
		mapLen = fileEnd - mapStart
	}

	data, err := f.mapFile(f.file, mapStart, int(mapLen))
	if err != nil {
		return err
	}
	f.retireWindowLocked()
	f.window = &region{off: mapStart, data: data, mapped: true}
	return nil
}

func (f *File) retireWindowLocked() {
	w := f.window
	if w == nil {
		return
	}
	f.window = nil
	w.stale = true
	if w.refs == 0 {
		f.unmapLocked(w)
	}
}

func (f *File) unmapLocked(w *region) {
	if !w.mapped {
		return
	}
	w.mapped = false
	if err := f.unmapFile(w.data); err != nil && pdebug.Enabled {
		pdebug.Printf("storage.File: munmap failed: %s", err)
	}
	w.data = nil
}

func (f *File) releaseWindow(l *Lease, w *region) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.leases.remove(l)
	w.refs--
	if w.stale && w.refs == 0 {
		f.unmapLocked(w)
	}
}

// TruncateFromEnd drops the last n bytes. The file keeps its length; the
// dropped bytes are overwritten by later appends.
func (f *File) TruncateFromEnd(n int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.disposed {
		return ErrDisposed
	}
	if n < 0 || n > f.size {
		return errors.Wrapf(ErrOutOfRange, "truncate %d of %d bytes", n, f.size)
	}
	if f.leases.overlaps(f.size-n, f.size) {
		return ErrLeaseOutstanding
	}

	f.size -= n
	if p := int64(len(f.pending)); n <= p {
		f.pending = f.pending[:p-n]
		return nil
	}
	f.written = f.size
	f.pending = f.pending[:0]
	return nil
}

func (f *File) ShiftStart(n int64) (err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("storage.File.ShiftStart (%d)", n).BindError(&err)
		defer g.End()
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.disposed {
		return ErrDisposed
	}
	if n < 0 || n > f.size {
		return errors.Wrapf(ErrOutOfRange, "shift %d of %d bytes", n, f.size)
	}
	if f.leases.overlaps(0, n) {
		return ErrLeaseOutstanding
	}

	if n <= f.written {
		f.written -= n
	} else {
		drop := n - f.written
		f.pending = f.pending[:copy(f.pending, f.pending[drop:])]
		f.written = 0
	}
	f.base += n
	f.size -= n
	f.leases.shift(n)

	if f.base >= f.compactAt && f.base > f.written && f.leases.len() == 0 {
		if err := f.compactLocked(); err != nil && pdebug.Enabled {
			pdebug.Printf("storage.File: compaction skipped: %s", err)
		}
	}
	return nil
}

// compactLocked rewrites the live part of the backing file into a fresh
// file so the shifted-out prefix stops occupying disk.
func (f *File) compactLocked() error {
	dir := ""
	if i := lastSeparator(f.path); i >= 0 {
		dir = f.path[:i]
	}
	fh, err := os.CreateTemp(dir, "outstream-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create compacted storage file")
	}
	if _, err := io.Copy(fh, io.NewSectionReader(f.file, f.base, f.written)); err != nil {
		fh.Close()
		os.Remove(fh.Name())
		return errors.Wrap(err, "failed to copy storage file")
	}

	f.retireWindowLocked()
	old, oldPath := f.file, f.path
	f.file, f.path = fh, fh.Name()
	f.base = 0
	old.Close()
	os.Remove(oldPath)
	return nil
}

func lastSeparator(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if os.IsPathSeparator(path[i]) {
			return i
		}
	}
	return -1
}

func (f *File) Size() int64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.size
}

func (f *File) Flush() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.disposed {
		return ErrDisposed
	}
	return f.flushLocked()
}

func (f *File) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.disposed || f.closed {
		return nil
	}
	f.closed = true
	return f.flushLocked()
}

func (f *File) IsClosed() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.closed || f.disposed || f.err != nil
}

func (f *File) Err() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.err
}

// Dispose closes and deletes the backing file. A window still referenced
// by a lease stays mapped until its last lease is released.
func (f *File) Dispose() (err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("storage.File.Dispose (%s)", f.path).BindError(&err)
		defer g.End()
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.disposed {
		return nil
	}
	f.disposed = true
	f.closed = true
	f.retireWindowLocked()
	f.pending = nil
	f.leases = leaseSet{}

	if f.registry != nil {
		f.registry.remove(f)
	}
	cerr := f.file.Close()
	if rerr := os.Remove(f.path); rerr != nil && !os.IsNotExist(rerr) {
		return errors.Wrapf(rerr, "failed to remove storage file %s", f.path)
	}
	if cerr != nil {
		return errors.Wrap(cerr, "failed to close storage file")
	}
	return nil
}
