package storage

import (
	"sync"

	"github.com/pkg/errors"
)

// Heap is a Storage backed by a growable byte slice. It is bounded only by
// process memory and is the fallback when file storage is unavailable.
type Heap struct {
	mutex    sync.RWMutex
	data     []byte
	leases   leaseSet
	closed   bool
	disposed bool
}

// NewHeap creates an empty heap storage with room for capacity bytes.
func NewHeap(capacity int) *Heap {
	return &Heap{data: make([]byte, 0, capacity)}
}

func (h *Heap) Append(b []byte) (int64, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.disposed {
		return 0, ErrDisposed
	}
	if h.closed {
		return 0, ErrClosed
	}
	start := int64(len(h.data))
	h.data = append(h.data, b...)
	return start, nil
}

func (h *Heap) Read(start int64, length int) (*Lease, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.disposed {
		return nil, ErrDisposed
	}
	end := start + int64(length)
	if start < 0 || length < 0 || end > int64(len(h.data)) {
		return nil, errors.Wrapf(ErrOutOfRange, "read [%d, %d) of %d bytes", start, end, len(h.data))
	}
	l := newLease(h.data[start:end:end], h.release)
	h.leases.add(l, start, end)
	return l, nil
}

func (h *Heap) release(l *Lease) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.leases.remove(l)
}

func (h *Heap) TruncateFromEnd(n int64) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.disposed {
		return ErrDisposed
	}
	size := int64(len(h.data))
	if n < 0 || n > size {
		return errors.Wrapf(ErrOutOfRange, "truncate %d of %d bytes", n, size)
	}
	if h.leases.overlaps(size-n, size) {
		return ErrLeaseOutstanding
	}
	h.data = h.data[:size-n]
	return nil
}

func (h *Heap) ShiftStart(n int64) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.disposed {
		return ErrDisposed
	}
	size := int64(len(h.data))
	if n < 0 || n > size {
		return errors.Wrapf(ErrOutOfRange, "shift %d of %d bytes", n, size)
	}
	if h.leases.overlaps(0, n) {
		return ErrLeaseOutstanding
	}

	// Copy to a new slice so the discarded prefix can be collected
	rest := make([]byte, size-n, cap(h.data)-int(n))
	copy(rest, h.data[n:])
	h.data = rest
	h.leases.shift(n)
	return nil
}

func (h *Heap) Size() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return int64(len(h.data))
}

func (h *Heap) Flush() error {
	return nil
}

func (h *Heap) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.closed = true
	return nil
}

func (h *Heap) IsClosed() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.closed || h.disposed
}

func (h *Heap) Err() error {
	return nil
}

func (h *Heap) Dispose() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.disposed = true
	h.closed = true
	h.data = nil
	h.leases = leaseSet{}
	return nil
}
