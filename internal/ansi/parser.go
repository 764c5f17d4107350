// Package ansi interprets the ANSI escape sequences found in captured
// process output. SGR color sequences and the clear-line sequence are
// consumed; every other sequence is passed through as literal text.
package ansi

import (
	"strconv"
	"strings"

	"github.com/peco/outstream/line"
)

// maxPending bounds how much of an unterminated sequence is carried over to
// the next call before it is given up on and treated as text.
const maxPending = 64

const styleFlags = line.AttrBold | line.AttrUnderline | line.AttrReverse

// basicColors maps SGR codes 30-37 (and 40-47) to palette colors.
var basicColors = [8]line.Attribute{
	line.ColorBlack, line.ColorRed, line.ColorGreen, line.ColorYellow,
	line.ColorBlue, line.ColorMagenta, line.ColorCyan, line.ColorWhite,
}

// TokenKind distinguishes the tokens produced by a Parser.
type TokenKind int

const (
	// TokenText is a run of text sharing the same colors.
	TokenText TokenKind = iota
	// TokenClearLine is ESC[2K: the current line is to be erased.
	TokenClearLine
)

// Token is one unit of parsed output.
type Token struct {
	Kind TokenKind
	Text string
	Fg   line.Attribute
	Bg   line.Attribute
}

// Parser is a streaming escape sequence interpreter. Colors persist across
// calls until reset, and a sequence split between two calls is completed by
// the second one. A Parser is not safe for concurrent use.
type Parser struct {
	fg      line.Attribute
	bg      line.Attribute
	pending string
	text    strings.Builder
	tokens  []Token
}

// Colors returns the current foreground and background.
func (p *Parser) Colors() (line.Attribute, line.Attribute) {
	return p.fg, p.bg
}

// Reset clears colors and any partial sequence.
func (p *Parser) Reset() {
	p.fg, p.bg = line.ColorDefault, line.ColorDefault
	p.pending = ""
}

// Pending reports whether a partial sequence is waiting for more input.
func (p *Parser) Pending() bool {
	return p.pending != ""
}

func (p *Parser) emitText() {
	if p.text.Len() == 0 {
		return
	}
	p.tokens = append(p.tokens, Token{Kind: TokenText, Text: p.text.String(), Fg: p.fg, Bg: p.bg})
	p.text.Reset()
}

// Parse consumes input and returns the resulting tokens. The returned slice
// is only valid until the next call.
func (p *Parser) Parse(input string) []Token {
	p.tokens = p.tokens[:0]
	if p.pending != "" {
		input = p.pending + input
		p.pending = ""
	}

	// Fast path: nothing to interpret
	if strings.IndexByte(input, '\x1b') < 0 {
		if input != "" {
			p.tokens = append(p.tokens, Token{Kind: TokenText, Text: input, Fg: p.fg, Bg: p.bg})
		}
		return p.tokens
	}

	for len(input) > 0 {
		i := strings.IndexByte(input, '\x1b')
		if i < 0 {
			p.text.WriteString(input)
			break
		}
		p.text.WriteString(input[:i])
		input = input[i:]

		n, complete := p.sequence(input)
		if !complete {
			if len(input) <= maxPending {
				p.pending = input
				break
			}
			// give up on it: the ESC is literal, the rest is rescanned
			p.text.WriteByte('\x1b')
			input = input[1:]
			continue
		}
		input = input[n:]
	}
	p.emitText()
	return p.tokens
}

// Flush returns any partial sequence as literal text.
func (p *Parser) Flush() []Token {
	p.tokens = p.tokens[:0]
	if p.pending != "" {
		p.text.WriteString(p.pending)
		p.pending = ""
		p.emitText()
	}
	return p.tokens
}

// sequence handles the escape sequence at the start of input and returns
// how many bytes it consumed. complete is false when input ends before the
// sequence does.
func (p *Parser) sequence(input string) (int, bool) {
	if len(input) < 2 {
		return 0, false
	}
	if input[1] != '[' {
		p.text.WriteByte('\x1b')
		return 1, true
	}

	// Scan for the terminating byte (0x40-0x7E)
	j := 2
	for j < len(input) && input[j] >= 0x20 && input[j] <= 0x3F {
		j++
	}
	if j >= len(input) {
		return 0, false
	}

	params, terminator := input[2:j], input[j]
	switch {
	case terminator < 0x40 || terminator > 0x7E:
		// malformed: keep what was scanned as text
		p.text.WriteString(input[:j])
		return j, true
	case terminator == 'm' && isSGRParams(params):
		p.emitText()
		parseSGR(params, &p.fg, &p.bg)
	case terminator == 'K' && params == "2":
		p.emitText()
		p.tokens = append(p.tokens, Token{Kind: TokenClearLine, Fg: p.fg, Bg: p.bg})
	default:
		p.text.WriteString(input[:j+1])
	}
	return j + 1, true
}

func isSGRParams(params string) bool {
	for i := 0; i < len(params); i++ {
		if c := params[i]; (c < '0' || c > '9') && c != ';' {
			return false
		}
	}
	return true
}

// parseSGR interprets SGR parameters (the part between ESC[ and m).
// It modifies fg and bg in place based on the parameter codes.
func parseSGR(params string, fg, bg *line.Attribute) {
	if params == "" || params == "0" {
		*fg = line.ColorDefault
		*bg = line.ColorDefault
		return
	}

	setFg := func(c line.Attribute) {
		*fg = c | (*fg & styleFlags)
	}

	parts := strings.Split(params, ";")
	for i := 0; i < len(parts); i++ {
		code, err := strconv.Atoi(parts[i])
		if err != nil {
			// an empty parameter means 0
			if parts[i] != "" {
				continue
			}
			code = 0
		}

		switch {
		case code == 0:
			*fg = line.ColorDefault
			*bg = line.ColorDefault
		case code == 1:
			*fg |= line.AttrBold
		case code == 4:
			*fg |= line.AttrUnderline
		case code == 7:
			*fg |= line.AttrReverse
		case code == 22:
			*fg &^= line.AttrBold
		case code == 24:
			*fg &^= line.AttrUnderline
		case code == 27:
			*fg &^= line.AttrReverse

		case code >= 30 && code <= 37:
			setFg(basicColors[code-30])
		case code >= 40 && code <= 47:
			*bg = basicColors[code-40]
		case code >= 90 && code <= 97:
			setFg(line.PaletteColor(8 + code - 90))
		case code >= 100 && code <= 107:
			*bg = line.PaletteColor(8 + code - 100)

		// 256-color or truecolor: 38;5;N or 38;2;R;G;B (48 for background)
		case code == 38 || code == 48:
			c, n, ok := extendedColor(parts[i+1:])
			i += n
			if !ok {
				continue
			}
			if code == 38 {
				setFg(c)
			} else {
				*bg = c
			}

		case code == 39:
			setFg(line.ColorDefault)
		case code == 49:
			*bg = line.ColorDefault
		}
	}
}

// extendedColor decodes the parameters following 38 or 48 and returns how
// many of them it consumed.
func extendedColor(parts []string) (line.Attribute, int, bool) {
	if len(parts) == 0 {
		return 0, 0, false
	}
	mode, _ := strconv.Atoi(parts[0])
	switch mode {
	case 5:
		if len(parts) < 2 {
			return 0, len(parts), false
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 || n > 255 {
			return 0, 2, false
		}
		return line.PaletteColor(n), 2, true
	case 2:
		if len(parts) < 4 {
			return 0, len(parts), false
		}
		var rgb [3]uint8
		for k := range rgb {
			v, err := strconv.Atoi(parts[1+k])
			if err != nil || v < 0 || v > 255 {
				return 0, 4, false
			}
			rgb[k] = uint8(v)
		}
		return line.RGB(rgb[0], rgb[1], rgb[2]), 4, true
	default:
		return 0, 1, false
	}
}

// Strip returns s with every SGR and clear-line sequence removed.
func Strip(s string) string {
	var p Parser
	var b strings.Builder
	for _, tok := range p.Parse(s) {
		b.WriteString(tok.Text)
	}
	for _, tok := range p.Flush() {
		b.WriteString(tok.Text)
	}
	return b.String()
}
