package buffer

import (
	"math"
	"sort"

	"github.com/lestrrat-go/pdebug"
	"github.com/pkg/errors"
)

// foldStartLocked returns the start of the innermost fold containing line
// i, or -1. An offset that points outside the index, or at a line that no
// longer starts a fold, means no fold.
func (l *Lines) foldStartLocked(i int) int {
	off := l.foldOffsets.Get(i)
	if off <= 0 {
		return -1
	}
	s := i - off
	if s < 0 {
		return -1
	}
	if _, ok := l.expanded.Get(s); !ok {
		return -1
	}
	return s
}

func (l *Lines) isFoldStartLocked(s int) bool {
	_, ok := l.expanded.Get(s)
	return ok
}

// inFoldLocked reports whether line i lies inside fold s, at any depth.
func (l *Lines) inFoldLocked(i, s int) bool {
	for f := l.foldStartLocked(i); f >= s; f = l.foldStartLocked(f) {
		if f == s {
			return true
		}
	}
	return false
}

func (l *Lines) visibleLocked(i int) bool {
	s := l.foldStartLocked(i)
	if s < 0 {
		return true
	}
	exp, _ := l.expanded.Get(s)
	return exp && s < len(l.realToVisible) && l.realToVisible[s] >= 0
}

func (l *Lines) appendVisibility(i int) {
	if l.visibleLocked(i) {
		l.realToVisible = append(l.realToVisible, len(l.visibleToReal))
		l.visibleToReal = append(l.visibleToReal, i)
		return
	}
	l.realToVisible = append(l.realToVisible, -1)
}

// recomputeVisibility rebuilds the visibility of every line from line
// from onwards. Lines before it keep their numbers.
func (l *Lines) recomputeVisibility(from int) {
	if from < 0 {
		from = 0
	}
	if from > len(l.realToVisible) {
		from = len(l.realToVisible)
	}
	l.visibleToReal = l.visibleToReal[:sort.SearchInts(l.visibleToReal, from)]
	l.realToVisible = l.realToVisible[:from]
	for i, n := from, l.starts.Size(); i < n; i++ {
		l.appendVisibility(i)
	}
	l.invalidateWrap()
}

// FoldStart returns the start of the innermost fold containing line, or -1.
func (l *Lines) FoldStart(line int) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return -1
	}
	return l.foldStartLocked(line)
}

// ParentFoldStart returns the start of the fold enclosing fold s, or -1.
func (l *Lines) ParentFoldStart(s int) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed || !l.isFoldStartLocked(s) {
		return -1
	}
	return l.foldStartLocked(s)
}

// IsFoldStart reports whether a fold begins at line.
func (l *Lines) IsFoldStart(line int) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return !l.disposed && l.isFoldStartLocked(line)
}

// IsFoldExpanded reports whether fold s shows its lines.
func (l *Lines) IsFoldExpanded(s int) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return false
	}
	exp, _ := l.expanded.Get(s)
	return exp
}

// FoldEnd returns the last line of fold s, or -1.
func (l *Lines) FoldEnd(s int) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed || !l.isFoldStartLocked(s) {
		return -1
	}
	end := s
	for i, n := s+1, l.starts.Size(); i < n && l.inFoldLocked(i, s); i++ {
		end = i
	}
	return end
}

// StartFold opens a fold whose first line is the current line, or the
// last finished line when nothing has been written to the current line
// yet. Lines written until EndFold belong to it.
func (l *Lines) StartFold(expanded bool) (s int, err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("Lines.StartFold").BindError(&err)
		defer g.End()
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.disposed {
		return -1, nil
	}
	last := l.lastLine()
	s = last
	if l.curBytes == 0 && last > 0 {
		s = last - 1
	}
	if l.isFoldStartLocked(s) {
		return -1, errors.Wrapf(ErrInvariantViolation, "line %d already starts a fold", s)
	}
	if err := l.expanded.Add(s, expanded); err != nil {
		return -1, err
	}
	for i := s + 1; i <= last; i++ {
		if err := l.foldOffsets.Set(i, i-s); err != nil {
			return -1, err
		}
	}
	l.openFold = s
	l.recomputeVisibility(s + 1)
	l.markDirty()
	return s, nil
}

// EndFold closes fold s and any fold opened inside it. An empty current
// line moves to the enclosing fold.
func (l *Lines) EndFold(s int) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.disposed {
		return nil
	}
	if l.openFold < 0 || (l.openFold != s && !l.inFoldLocked(l.openFold, s)) {
		return errors.Wrapf(ErrUnknownFold, "fold %d is not open", s)
	}
	parent := l.foldStartLocked(s)
	l.openFold = parent

	last := l.lastLine()
	if l.curBytes == 0 && last > s {
		offset := 0
		if parent >= 0 {
			offset = last - parent
		}
		_ = l.foldOffsets.Set(last, offset)
		l.recomputeVisibility(last)
	}
	l.markDirty()
	return nil
}

// OpenFold returns the innermost open fold, or -1.
func (l *Lines) OpenFold() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.openFold
}

func (l *Lines) setExpandedLocked(s int, v bool) bool {
	exp, ok := l.expanded.Get(s)
	if !ok || exp == v {
		return false
	}
	_ = l.expanded.Put(s, v)
	return true
}

func (l *Lines) applyFolds(from int) {
	if from == math.MaxInt {
		return
	}
	l.recomputeVisibility(from + 1)
	l.markDirty()
}

// ShowFold expands fold s. Nested folds keep their own state.
func (l *Lines) ShowFold(s int) {
	l.setFold(s, true)
}

// HideFold collapses fold s.
func (l *Lines) HideFold(s int) {
	l.setFold(s, false)
}

func (l *Lines) setFold(s int, v bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.disposed {
		return
	}
	if l.setExpandedLocked(s, v) {
		l.applyFolds(s)
	}
}

// ShowFoldAndParentFolds expands fold s and every fold enclosing it.
func (l *Lines) ShowFoldAndParentFolds(s int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.disposed || !l.isFoldStartLocked(s) {
		return
	}
	l.showChainLocked(s)
}

// ShowFoldsForLine expands every fold that hides line.
func (l *Lines) ShowFoldsForLine(line int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.disposed {
		return
	}
	if s := l.foldStartLocked(line); s >= 0 {
		l.showChainLocked(s)
	}
}

func (l *Lines) showChainLocked(s int) {
	from := math.MaxInt
	for f := s; f >= 0; f = l.foldStartLocked(f) {
		if l.setExpandedLocked(f, true) {
			from = f
		}
	}
	l.applyFolds(from)
}

// ShowAllFolds expands every fold.
func (l *Lines) ShowAllFolds() {
	l.setAllFolds(true)
}

// HideAllFolds collapses every fold.
func (l *Lines) HideAllFolds() {
	l.setAllFolds(false)
}

func (l *Lines) setAllFolds(v bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.disposed {
		return
	}
	l.setFoldsLocked(l.foldKeysLocked(0, math.MaxInt), v)
}

// ShowFoldTree expands fold s and every fold nested in it.
func (l *Lines) ShowFoldTree(s int) {
	l.setFoldTree(s, true)
}

// HideFoldTree collapses fold s and every fold nested in it.
func (l *Lines) HideFoldTree(s int) {
	l.setFoldTree(s, false)
}

func (l *Lines) setFoldTree(s int, v bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.disposed || !l.isFoldStartLocked(s) {
		return
	}
	keys := []int{s}
	for _, k := range l.foldKeysLocked(s+1, math.MaxInt) {
		if !l.inFoldLocked(k, s) {
			break
		}
		keys = append(keys, k)
	}
	l.setFoldsLocked(keys, v)
}

func (l *Lines) foldKeysLocked(from, to int) []int {
	var keys []int
	l.expanded.Ascend(from, to, func(k int, _ bool) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

func (l *Lines) setFoldsLocked(keys []int, v bool) {
	from := math.MaxInt
	for _, k := range keys {
		if l.setExpandedLocked(k, v) && k < from {
			from = k
		}
	}
	l.applyFolds(from)
}

// RealToVisible returns the visible line number of line, or -1 when it is
// hidden or out of range.
func (l *Lines) RealToVisible(line int) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if line < 0 || line >= len(l.realToVisible) {
		return -1
	}
	return l.realToVisible[line]
}

// VisibleToReal returns the line shown as visible line v, or -1.
func (l *Lines) VisibleToReal(v int) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if v < 0 || v >= len(l.visibleToReal) {
		return -1
	}
	return l.visibleToReal[v]
}

// VisibleLineCount is the number of lines not hidden by a fold.
func (l *Lines) VisibleLineCount() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return len(l.visibleToReal)
}

// HiddenLineCount is the number of lines hidden by a collapsed fold.
func (l *Lines) HiddenLineCount() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return 0
	}
	return l.starts.Size() - len(l.visibleToReal)
}
