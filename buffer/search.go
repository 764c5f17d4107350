package buffer

import (
	"context"

	"github.com/lestrrat-go/pdebug"
	"github.com/peco/outstream/filter"
)

const (
	// searchWindow is how many characters (16KiB of storage) one search
	// step reads.
	searchWindow = 8192

	// searchOverlap is how far consecutive windows of a split line
	// overlap, which bounds the longest match found across a split.
	searchOverlap = 1024
)

type window struct {
	start  int
	end    int
	accept int // matches must start before (forward) or at/after (backward) this
}

// forwardWindowLocked picks the window a forward search from pos scans:
// whole lines starting at the line of pos, or a slice of a line too long
// to fit.
func (l *Lines) forwardWindowLocked(pos int) window {
	li := l.lineAtLocked(pos)
	w := window{start: l.lineStartLocked(li)}
	if pos-w.start > searchOverlap {
		w.start = pos - searchOverlap
	}

	end := l.lineEndLocked(li)
	if end-w.start > searchWindow {
		w.end = w.start + searchWindow
		w.accept = w.end - searchOverlap
		return w
	}
	for j, n := li+1, l.starts.Size(); j < n; j++ {
		next := l.lineEndLocked(j)
		if next-w.start > searchWindow {
			break
		}
		end = next
	}
	w.end = end
	w.accept = end
	return w
}

// backwardWindowLocked picks the window a backward search from pos scans.
func (l *Lines) backwardWindowLocked(pos int) window {
	li := l.lineAtLocked(pos - 1)
	var w window
	w.end = l.lineEndLocked(li)
	if w.end-pos > searchOverlap {
		w.end = pos + searchOverlap
	}

	start := l.lineStartLocked(li)
	if w.end-start > searchWindow {
		w.start = w.end - searchWindow
		w.accept = w.start + searchOverlap
		return w
	}
	for j := li - 1; j >= 0; j-- {
		prev := l.lineStartLocked(j)
		if w.end-prev > searchWindow {
			break
		}
		start = prev
	}
	w.start = start
	w.accept = start
	return w
}

// readWindowLocked decodes the window, trimming a surrogate pair cut in
// half at its end.
func (l *Lines) readWindowLocked(w *window) (string, error) {
	lease, err := l.store.Read(int64(w.start)*BytesPerChar, (w.end-w.start)*BytesPerChar)
	if err != nil {
		return "", err
	}
	defer lease.Release()

	b := lease.Bytes()
	if w.end < l.chars && endsInHighSurrogate(b) {
		b = b[:len(b)-BytesPerChar]
		w.end--
		w.accept = min(w.accept, w.end)
	}
	return decode(b), nil
}

// Find returns the first match of q starting at or after char offset
// start. The index is locked one window at a time, so writers make
// progress during a long search. ctx is checked before every window.
func (l *Lines) Find(ctx context.Context, start int, q filter.Query) (Match, bool, error) {
	m, err := l.compiler.Compile(q)
	if err != nil {
		return Match{}, false, err
	}
	if pdebug.Enabled {
		g := pdebug.Marker("Lines.Find (%d, %s)", start, m)
		defer g.End()
	}

	pos := max(start, 0)
	evicted := l.evictedChars()
	for {
		if err := ctx.Err(); err != nil {
			return Match{}, false, err
		}
		res, next, done, err := l.findStep(m, pos, &evicted)
		if err != nil || done {
			return res, err == nil && next < 0, err
		}
		pos = next
	}
}

// findStep scans one window. done is set when the search is over; next is
// -1 when res is a match.
func (l *Lines) findStep(m *filter.Matcher, pos int, evicted *int) (Match, int, bool, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if l.disposed {
		return Match{}, 0, true, nil
	}
	if l.evicted != *evicted {
		pos = max(0, pos-(l.evicted-*evicted))
		*evicted = l.evicted
	}
	if pos >= l.chars {
		return Match{}, 0, true, nil
	}

	w := l.forwardWindowLocked(pos)
	text, err := l.readWindowLocked(&w)
	if err != nil {
		return Match{}, 0, true, err
	}
	if loc := m.First(text, byteIndex(text, pos-w.start)); loc != nil {
		s := w.start + unitCount(text[:loc[0]])
		if s < w.accept || w.accept == w.end {
			return Match{Start: s, End: w.start + unitCount(text[:loc[1]])}, -1, true, nil
		}
	}
	return Match{}, max(w.accept, pos+1), false, nil
}

// RFind returns the last match of q that starts before char offset start.
func (l *Lines) RFind(ctx context.Context, start int, q filter.Query) (Match, bool, error) {
	m, err := l.compiler.Compile(q)
	if err != nil {
		return Match{}, false, err
	}
	if pdebug.Enabled {
		g := pdebug.Marker("Lines.RFind (%d, %s)", start, m)
		defer g.End()
	}

	pos := start
	evicted := l.evictedChars()
	for {
		if err := ctx.Err(); err != nil {
			return Match{}, false, err
		}
		res, next, done, err := l.rfindStep(m, pos, &evicted)
		if err != nil || done {
			return res, err == nil && next < 0, err
		}
		pos = next
	}
}

func (l *Lines) rfindStep(m *filter.Matcher, pos int, evicted *int) (Match, int, bool, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if l.disposed {
		return Match{}, 0, true, nil
	}
	if l.evicted != *evicted {
		pos -= l.evicted - *evicted
		*evicted = l.evicted
	}
	pos = min(pos, l.chars)
	if pos <= 0 {
		return Match{}, 0, true, nil
	}

	w := l.backwardWindowLocked(pos)
	text, err := l.readWindowLocked(&w)
	if err != nil {
		return Match{}, 0, true, err
	}
	limit := byteIndex(text, min(pos, w.end)-w.start)
	if loc := m.Last(text, limit); loc != nil {
		s := w.start + unitCount(text[:loc[0]])
		if s >= w.accept {
			return Match{Start: s, End: w.start + unitCount(text[:loc[1]])}, -1, true, nil
		}
	}
	if w.accept <= 0 {
		return Match{}, 0, true, nil
	}
	return Match{}, min(w.accept, pos-1), false, nil
}

func (l *Lines) evictedChars() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.evicted
}
