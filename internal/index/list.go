package index

import (
	"sort"

	"github.com/pkg/errors"
)

// List is an append-only sequence of non-decreasing ints.
// Lookups are binary searches.
type List struct {
	values []int
}

// NewList creates a List with room for capacity entries.
func NewList(capacity int) *List {
	return &List{values: make([]int, 0, capacity)}
}

// Add appends v. Adding a value equal to the last one is a no-op, adding a
// smaller one fails.
func (l *List) Add(v int) error {
	if n := len(l.values); n > 0 {
		last := l.values[n-1]
		if v == last {
			return nil
		}
		if v < last {
			return errors.Wrapf(ErrInvariantViolation, "cannot add %d after %d", v, last)
		}
	}
	l.values = append(l.values, v)
	return nil
}

// Get returns the i-th value.
func (l *List) Get(i int) (int, error) {
	if i < 0 || i >= len(l.values) {
		return 0, outOfRange(i, len(l.values))
	}
	return l.values[i], nil
}

// At returns the i-th value without range checking. Callers must have
// validated i against Size.
func (l *List) At(i int) int {
	return l.values[i]
}

// Last returns the last value, or -1 when empty.
func (l *List) Last() int {
	if len(l.values) == 0 {
		return -1
	}
	return l.values[len(l.values)-1]
}

// Size returns the number of entries.
func (l *List) Size() int {
	return len(l.values)
}

// Contains reports whether v is stored.
func (l *List) Contains(v int) bool {
	return l.IndexOf(v) >= 0
}

// IndexOf returns the index of v, or -1. With duplicate-free contents the
// match is unique.
func (l *List) IndexOf(v int) int {
	i := sort.SearchInts(l.values, v)
	if i < len(l.values) && l.values[i] == v {
		return i
	}
	return -1
}

// FindNearest returns the index of the greatest value <= v, or -1.
func (l *List) FindNearest(v int) int {
	// first index with value > v, minus one
	return sort.Search(len(l.values), func(i int) bool { return l.values[i] > v }) - 1
}

// Compact drops the first shift entries and subtracts decrement from the
// remaining ones.
func (l *List) Compact(shift, decrement int) error {
	if shift < 0 || shift > len(l.values) {
		return outOfRange(shift, len(l.values)+1)
	}
	rest := len(l.values) - shift
	copy(l.values, l.values[shift:])
	l.values = l.values[:rest]
	if decrement != 0 {
		for i := range l.values {
			l.values[i] -= decrement
		}
	}
	return nil
}

// Shorten truncates the list to n entries.
func (l *List) Shorten(n int) error {
	if n < 0 || n > len(l.values) {
		return outOfRange(n, len(l.values)+1)
	}
	l.values = l.values[:n]
	return nil
}
