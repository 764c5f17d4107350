package buffer

import (
	"github.com/lestrrat-go/pdebug"
)

// EvictedLines is the number of lines evicted so far. Line numbers held
// across an eviction are corrected by the difference.
func (l *Lines) EvictedLines() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.evictedLines
}

func (l *Lines) exceedsLimitsLocked() bool {
	return l.starts.Size() > l.limits.MaxLines ||
		l.chars > l.limits.MaxChars ||
		l.annotations.Len() > l.limits.MaxAnnotatedLines
}

// CheckLimits evicts the oldest lines when a limit is exceeded and returns
// how many were removed. While a lease covers the lines to be evicted
// nothing is removed and storage.ErrLeaseOutstanding is returned; the next
// check tries again.
func (l *Lines) CheckLimits() (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.disposed || !l.exceedsLimitsLocked() {
		return 0, nil
	}
	return l.evictLocked(min(l.limits.RemoveLines, l.starts.Size()/2))
}

// Evict removes the oldest n lines, or as many as possible while keeping
// the current line.
func (l *Lines) Evict(n int) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.disposed {
		return 0, nil
	}
	return l.evictLocked(min(n, l.lastLine()))
}

func (l *Lines) evictLocked(n int) (removed int, err error) {
	if n <= 0 {
		return 0, nil
	}
	if pdebug.Enabled {
		g := pdebug.Marker("Lines.evict (%d of %d lines)", n, l.starts.Size()).BindError(&err)
		defer g.End()
	}

	bytes := l.starts.At(n)
	chars := bytes / BytesPerChar
	if err := l.store.ShiftStart(int64(bytes)); err != nil {
		return 0, err
	}

	// everything below only fails on a broken invariant, which the
	// shift above has already made irreversible
	_ = l.starts.Compact(n, bytes)
	_ = l.logical.Compact(n, 0)
	_ = l.foldOffsets.Compact(n, 0)

	tabs := l.tabOffsets.FindNearest(chars-1) + 1
	_ = l.tabExtra.Compact(tabs, l.tabExtra.Get(tabs-1))
	_ = l.tabOffsets.Compact(tabs, chars)

	l.expanded.DecrementKeys(n)
	l.annotations.DecrementKeys(n)
	if l.openFold >= 0 {
		l.openFold -= n
		if l.openFold < 0 || !l.isFoldStartLocked(l.openFold) {
			l.openFold = -1
		}
	}

	l.chars -= chars
	l.evicted += chars
	l.evictedLines += n
	l.longest = max(l.logical.Max(), l.curLogical)
	l.realToVisible = l.realToVisible[:0]
	l.visibleToReal = l.visibleToReal[:0]
	l.recomputeVisibility(0)
	l.markDirty()
	if pdebug.Enabled {
		pdebug.Printf("Lines.evict: removed %d lines, %d chars", n, chars)
	}
	return n, nil
}
