package buffer

import (
	"math"
	"strings"

	"github.com/peco/outstream/internal/index"
	"github.com/peco/outstream/line"
	"github.com/pkg/errors"
)

func normalizeWidth(width int) int {
	if width <= 0 {
		return math.MaxInt
	}
	return width
}

// rowsLocked is how many rows line i occupies when wrapped at width.
// Hidden lines occupy none.
func (l *Lines) rowsLocked(i, width int) int {
	if i >= len(l.realToVisible) || l.realToVisible[i] < 0 {
		return 0
	}
	n := l.lengthWithTabsLocked(i)
	if n <= width {
		return 1
	}
	return (n + width - 1) / width
}

func (l *Lines) invalidateWrap() {
	l.wrap = nil
}

// wrapUpdateLast refreshes the cache entry of the current line, whose
// length may have changed since it was computed.
func (l *Lines) wrapUpdateLast() {
	if l.wrap == nil {
		return
	}
	last := l.lastLine()
	key := last + 1
	if k, ok := l.wrap.LastKey(); ok && k == key {
		l.wrap.RemoveLast()
	}
	if rows := l.rowsLocked(last, l.wrapWidth); rows != 1 {
		if err := l.wrap.Add(key, l.wrap.Get(last)+rows); err != nil {
			l.wrap = nil
		}
	}
}

// wrapCacheLocked returns the cache for width, building it when it was
// built for another width or invalidated. The caller holds at least the
// read lock.
func (l *Lines) wrapCacheLocked(width int) *index.Sparse {
	l.wrapMutex.Lock()
	defer l.wrapMutex.Unlock()

	if l.wrap != nil && l.wrapWidth == width {
		return l.wrap
	}
	cache := index.NewSparse()
	rows := 0
	for i, n := 0, l.starts.Size(); i < n; i++ {
		r := l.rowsLocked(i, width)
		rows += r
		if r != 1 {
			_ = cache.Add(i+1, rows)
		}
	}
	l.wrap = cache
	l.wrapWidth = width
	return cache
}

// ToPhysicalLineIndex maps a logical row of the text wrapped at width to
// the line it belongs to.
func (l *Lines) ToPhysicalLineIndex(row, width int) (WrapPosition, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if l.disposed {
		return WrapPosition{}, nil
	}
	width = normalizeWidth(width)
	if width >= l.longest {
		// nothing wraps
		if row < 0 || row >= len(l.visibleToReal) {
			return WrapPosition{}, errors.Wrapf(ErrInvariantViolation, "row %d out of range [0, %d)", row, len(l.visibleToReal))
		}
		return WrapPosition{Line: l.visibleToReal[row], Row: 0, Total: 1}, nil
	}

	cache := l.wrapCacheLocked(width)
	n := l.starts.Size()
	if total := cache.Get(n); row < 0 || row >= total {
		return WrapPosition{}, errors.Wrapf(ErrInvariantViolation, "row %d out of range [0, %d)", row, total)
	}
	i := min(cache.GetKey(row), n-1)
	first := cache.Get(i)
	return WrapPosition{Line: i, Row: row - first, Total: cache.Get(i+1) - first}, nil
}

// LogicalLineCountAbove returns how many rows the lines before line take
// when wrapped at width.
func (l *Lines) LogicalLineCountAbove(line, width int) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if l.disposed {
		return 0
	}
	line = max(0, min(line, l.starts.Size()))
	return l.wrapCacheLocked(normalizeWidth(width)).Get(line)
}

// LogicalLineCountIfWrappedAt returns the total number of rows when the
// visible text is wrapped at width.
func (l *Lines) LogicalLineCountIfWrappedAt(width int) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if l.disposed {
		return 0
	}
	return l.wrapCacheLocked(normalizeWidth(width)).Get(l.starts.Size())
}

// LogicalRow returns the text shown in row of line wrapped at width, with
// tabs expanded to spaces.
func (l *Lines) LogicalRow(i, row, width int) (string, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if l.disposed {
		return "", nil
	}
	var b strings.Builder
	err := l.rowLocked(i, row, width, func(text string, _ int) {
		b.WriteString(text)
	})
	return b.String(), err
}

// StyledRow is LogicalRow split into runs painted alike, each resolved
// against palette.
func (l *Lines) StyledRow(i, row, width int, palette line.Palette) ([]StyledText, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if l.disposed {
		return nil, nil
	}
	info, _ := l.annotations.Get(i)
	var runs []StyledText
	err := l.rowLocked(i, row, width, func(text string, pos int) {
		st := palette.Normal
		if info != nil {
			if seg, ok := info.SegmentAt(pos); ok {
				st = palette.Resolve(seg)
			}
		}
		if n := len(runs); n > 0 && runs[n-1].Style == st {
			runs[n-1].Text += text
			return
		}
		runs = append(runs, StyledText{Text: text, Style: st})
	})
	return runs, err
}

// rowLocked calls emit with the pieces of a wrapped row in order, each
// with the char position within the line it comes from. A tab is one
// piece of spaces.
func (l *Lines) rowLocked(i, row, width int, emit func(string, int)) error {
	if err := l.checkLine(i); err != nil {
		return err
	}
	width = normalizeWidth(width)
	total := l.lengthWithTabsLocked(i)
	colStart := row * width
	if row < 0 || (colStart >= total && row > 0) || (width == math.MaxInt && row > 0) {
		return errors.Wrapf(ErrInvariantViolation, "row %d of line %d out of range", row, i)
	}
	colEnd := total
	if width != math.MaxInt {
		colEnd = min(colStart+width, total)
	}

	start := l.lineStartLocked(i)
	length := l.lengthLocked(i)
	first, shift := l.numPhysicalLocked(start, colStart)
	last, endShift := l.numPhysicalLocked(start, colEnd)
	if endShift > 0 {
		last++ // the tab colEnd cuts through
	}
	last = min(last, length)
	if first >= last {
		return nil
	}
	text, err := l.readLocked(start+first, last-first)
	if err != nil {
		return err
	}

	col := colStart - shift
	pos := first
	for _, r := range text {
		if r == '\t' {
			w := l.tabWidth - col%l.tabWidth
			from, to := max(col, colStart), min(col+w, colEnd)
			if to > from {
				emit(strings.Repeat(" ", to-from), pos)
			}
			col += w
			pos++
			continue
		}
		if col >= colStart && col < colEnd {
			emit(string(r), pos)
		}
		n := utf16Len(r)
		col += n
		pos += n
	}
	return nil
}
