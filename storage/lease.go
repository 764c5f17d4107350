package storage

import "sync"

// Lease is a borrowed view of a byte range. The bytes stay valid until
// Release is called; releasing more than once is harmless.
type Lease struct {
	data    []byte
	once    sync.Once
	release func(*Lease)
}

func newLease(data []byte, release func(*Lease)) *Lease {
	return &Lease{data: data, release: release}
}

// Bytes returns the leased bytes. They must not be retained past Release.
func (l *Lease) Bytes() []byte {
	return l.data
}

func (l *Lease) Len() int {
	return len(l.data)
}

// Release gives the bytes back to the storage.
func (l *Lease) Release() {
	l.once.Do(func() {
		if f := l.release; f != nil {
			f(l)
		}
		l.data = nil
	})
}

type span struct {
	start, end int64
}

// leaseSet tracks the logical ranges of outstanding leases. Callers hold
// the owning storage's lock.
type leaseSet struct {
	active map[*Lease]span
}

func (s *leaseSet) add(l *Lease, start, end int64) {
	if s.active == nil {
		s.active = make(map[*Lease]span)
	}
	s.active[l] = span{start: start, end: end}
}

func (s *leaseSet) remove(l *Lease) {
	delete(s.active, l)
}

func (s *leaseSet) len() int {
	return len(s.active)
}

func (s *leaseSet) overlaps(start, end int64) bool {
	for _, sp := range s.active {
		if sp.start < end && start < sp.end {
			return true
		}
	}
	return false
}

func (s *leaseSet) shift(n int64) {
	for l, sp := range s.active {
		s.active[l] = span{start: sp.start - n, end: sp.end - n}
	}
}
