package index

// Ints is a growable list of unordered ints, kept parallel to a List
// (per-line lengths, fold offsets, cumulative tab widths).
type Ints struct {
	values []int
}

// NewInts creates an Ints with room for capacity entries.
func NewInts(capacity int) *Ints {
	return &Ints{values: make([]int, 0, capacity)}
}

func (l *Ints) Add(v int) {
	l.values = append(l.values, v)
}

// Get returns the i-th value, or 0 when i is out of range.
func (l *Ints) Get(i int) int {
	if i < 0 || i >= len(l.values) {
		return 0
	}
	return l.values[i]
}

// Set replaces the i-th value.
func (l *Ints) Set(i, v int) error {
	if i < 0 || i >= len(l.values) {
		return outOfRange(i, len(l.values))
	}
	l.values[i] = v
	return nil
}

func (l *Ints) Size() int {
	return len(l.values)
}

// Last returns the last value, or 0 when empty.
func (l *Ints) Last() int {
	if len(l.values) == 0 {
		return 0
	}
	return l.values[len(l.values)-1]
}

// Compact drops the first shift entries and subtracts decrement from the
// rest.
func (l *Ints) Compact(shift, decrement int) error {
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

// Shorten truncates to n entries.
func (l *Ints) Shorten(n int) error {
	if n < 0 || n > len(l.values) {
		return outOfRange(n, len(l.values)+1)
	}
	l.values = l.values[:n]
	return nil
}

// Max returns the largest value, or 0 when empty.
func (l *Ints) Max() int {
	m := 0
	for _, v := range l.values {
		if v > m {
			m = v
		}
	}
	return m
}
