package index

import (
	"math"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

const btreeDegree = 32

type sparseEntry struct {
	key   int
	value int
	// byValue marks a search pivot that positions itself by value.
	byValue bool
}

// Stored keys strictly increase and stored values never decrease, so the
// key order and the (value, key) order of stored entries coincide. That
// lets one tree answer both key and value lookups.
func lessSparse(a, b sparseEntry) bool {
	if a.byValue || b.byValue {
		if a.value != b.value {
			return a.value < b.value
		}
	}
	return a.key < b.key
}

// Sparse is an interpolating key -> value map. Only keys whose value
// departs from "one unit of growth per key" need an entry: an absent key
// k resolves to value(p) + (k - p) where p is the nearest lower stored key,
// or to k itself when nothing is stored below it.
type Sparse struct {
	tree *btree.BTreeG[sparseEntry]
}

// NewSparse creates an empty Sparse.
func NewSparse() *Sparse {
	return &Sparse{tree: btree.NewG[sparseEntry](btreeDegree, lessSparse)}
}

// Size returns the number of stored entries.
func (s *Sparse) Size() int {
	return s.tree.Len()
}

// Clear drops all entries.
func (s *Sparse) Clear() {
	s.tree.Clear(false)
}

// Add stores (key, value). key must exceed every stored key and value must
// be at least every stored value.
func (s *Sparse) Add(key, value int) error {
	if last, ok := s.tree.Max(); ok {
		if key <= last.key {
			return errors.Wrapf(ErrInvariantViolation, "sparse key %d not after %d", key, last.key)
		}
		if value < last.value {
			return errors.Wrapf(ErrInvariantViolation, "sparse value %d below %d", value, last.value)
		}
	}
	s.tree.ReplaceOrInsert(sparseEntry{key: key, value: value})
	return nil
}

// LastKey returns the largest stored key.
func (s *Sparse) LastKey() (int, bool) {
	last, ok := s.tree.Max()
	return last.key, ok
}

// UpdateLast replaces the value of the most recent entry.
func (s *Sparse) UpdateLast(value int) error {
	last, ok := s.tree.Max()
	if !ok {
		return errors.Wrap(ErrInvariantViolation, "sparse index is empty")
	}
	if prev, ok := s.below(last.key); ok && value < prev.value {
		return errors.Wrapf(ErrInvariantViolation, "sparse value %d below %d", value, prev.value)
	}
	last.value = value
	s.tree.ReplaceOrInsert(last)
	return nil
}

// RemoveLast drops the most recent entry.
func (s *Sparse) RemoveLast() {
	s.tree.DeleteMax()
}

// Get returns the value for key k.
func (s *Sparse) Get(k int) int {
	e, ok := s.atOrBelow(k)
	if !ok {
		return k
	}
	return e.value + (k - e.key)
}

// GetKey is the inverse of Get: it returns the greatest key k with
// Get(k) <= v < Get(k+1).
func (s *Sparse) GetKey(v int) int {
	var (
		base  sparseEntry
		found bool
	)
	s.tree.DescendLessOrEqual(sparseEntry{key: math.MaxInt, value: v, byValue: true}, func(e sparseEntry) bool {
		base = e
		found = true
		return false
	})
	k := base.key + (v - base.value)
	after := base.key
	if !found {
		after = math.MinInt + 1
	}
	if next, ok := s.above(after); ok && k > next.key-1 {
		k = next.key - 1
	}
	return k
}

// GetNextKey returns the smallest key k with Get(k) >= v.
func (s *Sparse) GetNextKey(v int) int {
	var (
		next  sparseEntry
		found bool
	)
	s.tree.AscendGreaterOrEqual(sparseEntry{key: math.MinInt, value: v, byValue: true}, func(e sparseEntry) bool {
		next = e
		found = true
		return false
	})

	var prev sparseEntry
	if found {
		prev, _ = s.below(next.key)
	} else {
		prev, _ = s.tree.Max()
	}
	k := prev.key + (v - prev.value)
	if found && k >= next.key {
		return next.key
	}
	return k
}

func (s *Sparse) atOrBelow(k int) (sparseEntry, bool) {
	var (
		res   sparseEntry
		found bool
	)
	s.tree.DescendLessOrEqual(sparseEntry{key: k}, func(e sparseEntry) bool {
		res = e
		found = true
		return false
	})
	return res, found
}

// below returns the entry with the greatest key < k.
func (s *Sparse) below(k int) (sparseEntry, bool) {
	return s.atOrBelow(k - 1)
}

// above returns the entry with the smallest key > k.
func (s *Sparse) above(k int) (sparseEntry, bool) {
	var (
		res   sparseEntry
		found bool
	)
	s.tree.AscendGreaterOrEqual(sparseEntry{key: k + 1}, func(e sparseEntry) bool {
		res = e
		found = true
		return false
	})
	return res, found
}
