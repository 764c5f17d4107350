package buffer

import (
	"sort"

	"github.com/pkg/errors"
)

// cumExtraLocked is the extra width contributed by every tab before char
// offset x.
func (l *Lines) cumExtraLocked(x int) int {
	i := l.tabOffsets.FindNearest(x - 1)
	if i < 0 {
		return 0
	}
	return l.tabExtra.Get(i)
}

// AddTabAt records a tab at char offset whose expanded width is width.
// Offsets must increase.
func (l *Lines) AddTabAt(offset, width int) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.addTabLocked(offset, width)
}

func (l *Lines) addTabLocked(offset, width int) error {
	if last := l.tabOffsets.Last(); l.tabOffsets.Size() > 0 && offset <= last {
		return errors.Wrapf(ErrInvariantViolation, "tab at %d not after %d", offset, last)
	}
	if width < 1 {
		return errors.Wrapf(ErrInvariantViolation, "tab width %d", width)
	}
	if err := l.tabOffsets.Add(offset); err != nil {
		return err
	}
	l.tabExtra.Add(l.tabExtra.Last() + width - 1)
	return nil
}

// RemoveLastTab forgets the most recent tab and returns its expanded width.
func (l *Lines) RemoveLastTab() (int, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.removeLastTabLocked()
}

func (l *Lines) removeLastTabLocked() (int, bool) {
	n := l.tabOffsets.Size()
	if n == 0 {
		return 0, false
	}
	width := l.tabExtra.Get(n-1) - l.tabExtra.Get(n-2) + 1
	_ = l.tabOffsets.Shorten(n - 1)
	_ = l.tabExtra.Shorten(n - 1)
	return width, true
}

func (l *Lines) removeTabsFromLocked(offset int) {
	for l.tabOffsets.Size() > 0 && l.tabOffsets.Last() >= offset {
		l.removeLastTabLocked()
	}
}

// TabCount is the number of recorded tabs.
func (l *Lines) TabCount() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.tabOffsets.Size()
}

// NumLogicalChars returns the tab-expanded width of the n characters
// starting at char offset.
func (l *Lines) NumLogicalChars(offset, n int) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.numLogicalLocked(offset, n)
}

func (l *Lines) numLogicalLocked(offset, n int) int {
	return n + l.cumExtraLocked(offset+n) - l.cumExtraLocked(offset)
}

// NumPhysicalChars returns how many characters starting at char offset fit
// into logical width n. When n ends inside a tab, the tab is not counted
// and shift is the number of its columns that n covers, so that
// NumLogicalChars(offset, physical) + shift == n.
func (l *Lines) NumPhysicalChars(offset, n int) (physical, shift int) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.numPhysicalLocked(offset, n)
}

func (l *Lines) numPhysicalLocked(offset, n int) (int, int) {
	if n <= 0 {
		return 0, 0
	}
	// largest p with numLogical(offset, p) <= n; logical width is at least p
	p := sort.Search(n+1, func(p int) bool {
		return l.numLogicalLocked(offset, p) > n
	}) - 1
	return p, n - l.numLogicalLocked(offset, p)
}
