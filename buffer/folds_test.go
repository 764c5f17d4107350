package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func visibleLines(l *Lines) []int {
	var lines []int
	for v := range l.VisibleLineCount() {
		lines = append(lines, l.VisibleToReal(v))
	}
	return lines
}

func TestSimpleFold(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "header\n")
	s, err := l.StartFold(true)
	require.NoError(t, err)
	require.Equal(t, 0, s)
	require.Equal(t, 0, l.OpenFold())
	w.write(t, "child1\nchild2\n")
	require.NoError(t, l.EndFold(s))
	require.Equal(t, -1, l.OpenFold())
	w.write(t, "after\n")

	require.True(t, l.IsFoldStart(0))
	require.False(t, l.IsFoldStart(1))
	require.True(t, l.IsFoldExpanded(0))
	require.Equal(t, 0, l.FoldStart(1))
	require.Equal(t, 0, l.FoldStart(2))
	require.Equal(t, -1, l.FoldStart(3))
	require.Equal(t, -1, l.FoldStart(0))
	require.Equal(t, 2, l.FoldEnd(0))
	require.Equal(t, -1, l.FoldEnd(1))
	require.Equal(t, []int{0, 1, 2, 3, 4}, visibleLines(l))

	l.HideFold(0)
	require.False(t, l.IsFoldExpanded(0))
	require.Equal(t, []int{0, 3, 4}, visibleLines(l))
	require.Equal(t, 2, l.HiddenLineCount())
	require.Equal(t, -1, l.RealToVisible(1))
	require.Equal(t, 1, l.RealToVisible(3))

	l.HideFold(0)
	require.Equal(t, []int{0, 3, 4}, visibleLines(l))

	l.ShowFoldsForLine(2)
	require.Equal(t, []int{0, 1, 2, 3, 4}, visibleLines(l))
	require.Equal(t, 0, l.HiddenLineCount())
}

func TestNestedFolds(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "root\n")
	outer, err := l.StartFold(true)
	require.NoError(t, err)
	w.write(t, "a\n")
	inner, err := l.StartFold(true)
	require.NoError(t, err)
	w.write(t, "a1\na2\n")
	require.NoError(t, l.EndFold(inner))
	require.Equal(t, outer, l.OpenFold())
	w.write(t, "b\n")
	require.NoError(t, l.EndFold(outer))
	w.write(t, "tail")

	require.Equal(t, 0, outer)
	require.Equal(t, 1, inner)
	require.Equal(t, 0, l.FoldStart(1))
	require.Equal(t, 1, l.FoldStart(2))
	require.Equal(t, 1, l.FoldStart(3))
	require.Equal(t, 0, l.FoldStart(4))
	require.Equal(t, -1, l.FoldStart(5))
	require.Equal(t, 0, l.ParentFoldStart(inner))
	require.Equal(t, -1, l.ParentFoldStart(outer))
	require.Equal(t, -1, l.ParentFoldStart(2))
	require.Equal(t, 4, l.FoldEnd(outer))
	require.Equal(t, 3, l.FoldEnd(inner))

	l.HideFold(inner)
	require.Equal(t, []int{0, 1, 4, 5}, visibleLines(l))
	l.HideFold(outer)
	require.Equal(t, []int{0, 5}, visibleLines(l))
	l.ShowFold(outer)
	require.Equal(t, []int{0, 1, 4, 5}, visibleLines(l), "nested folds keep their state")
	l.ShowFoldsForLine(3)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, visibleLines(l))

	l.HideAllFolds()
	require.Equal(t, []int{0, 5}, visibleLines(l))
	l.ShowFoldAndParentFolds(inner)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, visibleLines(l))

	l.HideFoldTree(outer)
	require.False(t, l.IsFoldExpanded(inner))
	require.Equal(t, []int{0, 5}, visibleLines(l))
	l.ShowFoldTree(outer)
	require.True(t, l.IsFoldExpanded(inner))
	require.Equal(t, 6, l.VisibleLineCount())

	l.HideFoldTree(inner)
	require.True(t, l.IsFoldExpanded(outer))
	require.Equal(t, []int{0, 1, 4, 5}, visibleLines(l))
	l.ShowAllFolds()
	require.Equal(t, 6, l.VisibleLineCount())
}

func TestFoldOnCurrentLine(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "title")
	s, err := l.StartFold(false)
	require.NoError(t, err)
	require.Equal(t, 0, s)
	w.write(t, "\nhidden\n")

	require.Equal(t, []int{0}, visibleLines(l))
	require.Equal(t, 0, l.FoldStart(2), "the current line belongs to the open fold")

	_, err = l.StartFold(true)
	require.NoError(t, err, "a nested fold on the last finished line")
	_, err = l.StartFold(true)
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestEndFold(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	require.ErrorIs(t, l.EndFold(0), ErrUnknownFold)

	w.write(t, "one\n")
	outer, err := l.StartFold(true)
	require.NoError(t, err)
	w.write(t, "two\n")
	inner, err := l.StartFold(true)
	require.NoError(t, err)
	w.write(t, "three\n")

	require.ErrorIs(t, l.EndFold(2), ErrUnknownFold)

	// closing the outer fold closes the inner one too
	require.NoError(t, l.EndFold(outer))
	require.Equal(t, -1, l.OpenFold())
	require.Equal(t, -1, l.FoldStart(3))
	require.ErrorIs(t, l.EndFold(inner), ErrUnknownFold)
}
