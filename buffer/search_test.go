package buffer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/peco/outstream/filter"
	"github.com/stretchr/testify/require"
)

func queryFor(p string) filter.Query {
	return filter.Query{Pattern: p, MatchCase: true}
}

func TestFind(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, strings.Repeat("-", 40)+"\n\nneedle and Needle\n")

	m, ok, err := l.Find(context.Background(), 0, queryFor("needle"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 42, End: 48}, m)

	m, ok, err = l.RFind(context.Background(), l.CharCount(), queryFor("needle"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 42, End: 48}, m)

	m, ok, err = l.RFind(context.Background(), l.CharCount(), filter.Query{Pattern: "needle"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 53, End: 59}, m)

	m, ok, err = l.Find(context.Background(), 43, filter.Query{Pattern: "needle"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 53, m.Start)

	m, ok, err = l.Find(context.Background(), 0, filter.Query{Pattern: `-+\n\n`, Regex: true, MatchCase: true})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 0, End: 42}, m)

	_, ok, err = l.Find(context.Background(), 43, queryFor("needle"))
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = l.RFind(context.Background(), 42, queryFor("needle"))
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = l.Find(context.Background(), 0, filter.Query{Pattern: "(", Regex: true})
	require.Error(t, err)
}

func TestFindAcrossWindows(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	var b strings.Builder
	for i := range 3000 {
		fmt.Fprintf(&b, "row %05d\n", i)
	}
	w.write(t, b.String())

	m, ok, err := l.Find(context.Background(), 0, queryFor("row 02500"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 25000, End: 25009}, m)

	m, ok, err = l.RFind(context.Background(), l.CharCount(), queryFor("row 00010"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 100, End: 109}, m)

	m, ok, err = l.RFind(context.Background(), l.CharCount(), queryFor("row"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 29990, m.Start)
}

func TestFindInLongLine(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	// the needle straddles the end of the first window
	w.write(t, strings.Repeat("a", 8190)+"needle"+strings.Repeat("b", 20000))

	m, ok, err := l.Find(context.Background(), 0, queryFor("needle"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 8190, End: 8196}, m)

	m, ok, err = l.RFind(context.Background(), l.CharCount(), queryFor("needle"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 8190, End: 8196}, m)

	_, ok, err = l.Find(context.Background(), 8191, queryFor("needle"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindSurrogates(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	w.write(t, "\U0001F600 smile \U0001F600 again")

	m, ok, err := l.Find(context.Background(), 2, queryFor("\U0001F600"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 9, End: 11}, m)

	m, ok, err = l.Find(context.Background(), 0, queryFor("again"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Match{Start: 12, End: 17}, m)
}

// stepContext is cancelled once it has been checked steps times.
type stepContext struct {
	context.Context
	steps int
}

func (c *stepContext) Err() error {
	if c.steps == 0 {
		return context.Canceled
	}
	c.steps--
	return nil
}

func TestFindHonorsContext(t *testing.T) {
	t.Parallel()

	l, w := newTestLines(t)
	var b strings.Builder
	for i := range 3000 {
		fmt.Fprintf(&b, "row %05d\n", i)
	}
	w.write(t, b.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := l.Find(ctx, 0, queryFor("row 00000"))
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ok)

	ctx2 := &stepContext{Context: context.Background(), steps: 2}
	_, ok, err = l.Find(ctx2, 0, queryFor("row 02999"))
	require.ErrorIs(t, err, context.Canceled, "the search stops after two windows")
	require.False(t, ok)

	ctx2 = &stepContext{Context: context.Background(), steps: 2}
	_, ok, err = l.RFind(ctx2, l.CharCount(), queryFor("row 00000"))
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ok)

	ctx2 = &stepContext{Context: context.Background(), steps: 2}
	m, ok, err := l.Find(ctx2, 0, queryFor("row 00100"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1000, m.Start)
}
