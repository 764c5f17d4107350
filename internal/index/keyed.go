package index

import (
	"github.com/google/btree"
	"github.com/pkg/errors"
)

// Direction selects which neighbour Keyed.Nearest looks for.
type Direction int

const (
	Forward Direction = iota
	Backward
)

type keyedItem[T any] struct {
	key   int
	value T
}

func lessKeyed[T any](a, b keyedItem[T]) bool {
	return a.key < b.key
}

// Keyed maps a sparse, strictly increasing set of int keys (line numbers)
// to objects.
type Keyed[T any] struct {
	tree *btree.BTreeG[keyedItem[T]]
}

// NewKeyed creates an empty Keyed.
func NewKeyed[T any]() *Keyed[T] {
	return &Keyed[T]{tree: btree.NewG[keyedItem[T]](btreeDegree, lessKeyed[T])}
}

func (k *Keyed[T]) Len() int {
	return k.tree.Len()
}

// LastKey returns the largest key, or -1 when empty.
func (k *Keyed[T]) LastKey() int {
	last, ok := k.tree.Max()
	if !ok {
		return -1
	}
	return last.key
}

// Add appends a new key. The key must be greater than every stored key.
func (k *Keyed[T]) Add(key int, v T) error {
	if last, ok := k.tree.Max(); ok && key <= last.key {
		return errors.Wrapf(ErrInvariantViolation, "key %d not after %d", key, last.key)
	}
	k.tree.ReplaceOrInsert(keyedItem[T]{key: key, value: v})
	return nil
}

// Put replaces the value of an existing key, or appends a new one.
func (k *Keyed[T]) Put(key int, v T) error {
	if k.tree.Has(keyedItem[T]{key: key}) {
		k.tree.ReplaceOrInsert(keyedItem[T]{key: key, value: v})
		return nil
	}
	return k.Add(key, v)
}

// Get returns the object stored at key.
func (k *Keyed[T]) Get(key int) (T, bool) {
	it, ok := k.tree.Get(keyedItem[T]{key: key})
	return it.value, ok
}

// Delete removes key.
func (k *Keyed[T]) Delete(key int) bool {
	_, ok := k.tree.Delete(keyedItem[T]{key: key})
	return ok
}

// Nearest returns the first key >= key (Forward) or the last key <= key
// (Backward).
func (k *Keyed[T]) Nearest(key int, dir Direction) (int, T, bool) {
	var (
		res   keyedItem[T]
		found bool
	)
	iter := func(it keyedItem[T]) bool {
		res = it
		found = true
		return false
	}
	if dir == Backward {
		k.tree.DescendLessOrEqual(keyedItem[T]{key: key}, iter)
	} else {
		k.tree.AscendGreaterOrEqual(keyedItem[T]{key: key}, iter)
	}
	return res.key, res.value, found
}

// Ascend calls fn for every entry with key in [from, to) in key order,
// stopping when fn returns false.
func (k *Keyed[T]) Ascend(from, to int, fn func(int, T) bool) {
	k.tree.AscendRange(keyedItem[T]{key: from}, keyedItem[T]{key: to}, func(it keyedItem[T]) bool {
		return fn(it.key, it.value)
	})
}

// DecrementKeys drops every key below n and subtracts n from the rest.
func (k *Keyed[T]) DecrementKeys(n int) {
	if n <= 0 {
		return
	}
	kept := make([]keyedItem[T], 0, k.tree.Len())
	k.tree.AscendGreaterOrEqual(keyedItem[T]{key: n}, func(it keyedItem[T]) bool {
		kept = append(kept, keyedItem[T]{key: it.key - n, value: it.value})
		return true
	})
	k.tree.Clear(false)
	for _, it := range kept {
		k.tree.ReplaceOrInsert(it)
	}
}

// Clear drops all entries.
func (k *Keyed[T]) Clear() {
	k.tree.Clear(false)
}
