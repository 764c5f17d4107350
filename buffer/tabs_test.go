package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTabExpansion(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "a\tb")

	n, err := l.LengthWithTabs(0)
	require.NoError(t, err)
	require.Equal(t, 9, n)
	require.Equal(t, 9, l.NumLogicalChars(0, 3))

	testcases := []struct {
		logical  int
		physical int
		shift    int
	}{
		{logical: 9, physical: 3, shift: 0},
		{logical: 0, physical: 0, shift: 0},
		{logical: 1, physical: 1, shift: 0},
		{logical: 5, physical: 1, shift: 4},
		{logical: 8, physical: 2, shift: 0},
	}
	for _, tc := range testcases {
		physical, shift := l.NumPhysicalChars(0, tc.logical)
		require.Equal(t, tc.physical, physical, "physical chars for %d", tc.logical)
		require.Equal(t, tc.shift, shift, "shift for %d", tc.logical)
		require.Equal(t, tc.logical, l.NumLogicalChars(0, physical)+shift)
	}
}

func TestTabsOnLaterLines(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "x\t\n1234567\tz\n\t\t")

	// "1234567" ends at column 7, so its tab is one column wide
	n, err := l.LengthWithTabs(1)
	require.NoError(t, err)
	require.Equal(t, 9, n)
	n, err = l.LengthWithTabs(2)
	require.NoError(t, err)
	require.Equal(t, 16, n)

	start, err := l.LineStart(1)
	require.NoError(t, err)
	require.Equal(t, 9, l.NumLogicalChars(start, 9))
	require.Equal(t, 7, l.NumLogicalChars(start, 7))

	start, err = l.LineStart(2)
	require.NoError(t, err)
	physical, shift := l.NumPhysicalChars(start, 12)
	require.Equal(t, 1, physical)
	require.Equal(t, 4, shift)
}

func TestAddRemoveTab(t *testing.T) {
	t.Parallel()

	l, _ := newTestLines(t)
	require.NoError(t, l.AddTabAt(3, 5))
	require.NoError(t, l.AddTabAt(10, 8))
	require.ErrorIs(t, l.AddTabAt(10, 8), ErrInvariantViolation)
	require.ErrorIs(t, l.AddTabAt(4, 8), ErrInvariantViolation)
	require.ErrorIs(t, l.AddTabAt(20, 0), ErrInvariantViolation)
	require.Equal(t, 2, l.TabCount())
	require.Equal(t, 20+4+7, l.NumLogicalChars(0, 20))

	width, ok := l.RemoveLastTab()
	require.True(t, ok)
	require.Equal(t, 8, width)
	width, ok = l.RemoveLastTab()
	require.True(t, ok)
	require.Equal(t, 5, width)
	_, ok = l.RemoveLastTab()
	require.False(t, ok)
	require.Equal(t, 20, l.NumLogicalChars(0, 20))
}
