package outstream

import (
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/peco/outstream/buffer"
)

// splitCells breaks a row into rows at most width terminal cells wide.
// Wide characters take two cells; a character wider than width gets a row
// of its own.
func splitCells(runs []buffer.StyledText, width int) [][]buffer.StyledText {
	if width <= 0 {
		return [][]buffer.StyledText{runs}
	}

	var rows [][]buffer.StyledText
	var cur []buffer.StyledText
	cells := 0
	for _, run := range runs {
		start := 0
		for i, r := range run.Text {
			w := runewidth.RuneWidth(r)
			if cells > 0 && cells+w > width {
				if i > start {
					cur = append(cur, buffer.StyledText{Text: run.Text[start:i], Style: run.Style})
				}
				rows = append(rows, cur)
				cur, cells, start = nil, 0, i
			}
			cells += w
		}
		if start < len(run.Text) {
			cur = append(cur, buffer.StyledText{Text: run.Text[start:], Style: run.Style})
		}
	}
	return append(rows, cur)
}

// paint renders a row, preceding each run with the SGR sequence of its
// style when color is set.
func paint(row []buffer.StyledText, color bool) string {
	var b strings.Builder
	for _, run := range row {
		if color {
			b.WriteString(sgr(run.Style.Tcell()))
		}
		b.WriteString(run.Text)
	}
	if color && len(row) > 0 {
		b.WriteString("\x1b[0m")
	}
	return b.String()
}

func sgr(st tcell.Style) string {
	fg, bg, attrs := st.Decompose()
	codes := []string{"0"}
	if attrs&tcell.AttrBold != 0 {
		codes = append(codes, "1")
	}
	if attrs&tcell.AttrUnderline != 0 {
		codes = append(codes, "4")
	}
	if attrs&tcell.AttrReverse != 0 {
		codes = append(codes, "7")
	}
	codes = appendColor(codes, fg, "38")
	codes = appendColor(codes, bg, "48")
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func appendColor(codes []string, c tcell.Color, base string) []string {
	switch {
	case !c.Valid():
		return codes
	case c.IsRGB():
		r, g, b := c.RGB()
		return append(codes, base, "2", strconv.Itoa(int(r)), strconv.Itoa(int(g)), strconv.Itoa(int(b)))
	default:
		return append(codes, base, "5", strconv.Itoa(int(c-tcell.ColorValid)))
	}
}
