// Package storage holds the growable byte stores that back a stream: a heap
// slice and an append-only temporary file read through mapped windows.
package storage

// Storage is an append-only byte range [0, Size) that can also be shrunk
// from the end and have its prefix discarded.
type Storage interface {
	// Append adds b at the end and returns the offset it was stored at.
	Append(b []byte) (int64, error)

	// Read leases length bytes starting at start. The lease must be
	// released when the caller is done with its bytes.
	Read(start int64, length int) (*Lease, error)

	// TruncateFromEnd drops the last n bytes.
	TruncateFromEnd(n int64) error

	// ShiftStart discards the first n bytes. Offsets of the remaining bytes
	// decrease by n.
	ShiftStart(n int64) error

	Size() int64
	Flush() error

	// Close stops accepting writes. The storage stays readable.
	Close() error

	// Dispose releases every resource, deleting any backing file.
	Dispose() error

	IsClosed() bool

	// Err returns the sticky write error, if any.
	Err() error
}

// Compile-time interface checks
var (
	_ Storage = (*Heap)(nil)
	_ Storage = (*File)(nil)
)
