package line

import "github.com/gdamore/tcell/v2"

// Attribute represents terminal display attributes such as colors
// and text styling (bold, underline, reverse). It is a uint32 bitfield:
//
//	Bits 0-8:   Palette color index (0=default, 1-256 for 256-color palette)
//	Bits 0-23:  RGB color value (when AttrTrueColor flag is set)
//	Bit 24:     AttrTrueColor flag, distinguishes true color from palette
//	Bit 25:     AttrBold
//	Bit 26:     AttrUnderline
//	Bit 27:     AttrReverse
//	Bits 28-31: Reserved
type Attribute uint32

// Named palette color constants (values 0-8).
const (
	ColorDefault Attribute = 0x0000
	ColorBlack   Attribute = 0x0001
	ColorRed     Attribute = 0x0002
	ColorGreen   Attribute = 0x0003
	ColorYellow  Attribute = 0x0004
	ColorBlue    Attribute = 0x0005
	ColorMagenta Attribute = 0x0006
	ColorCyan    Attribute = 0x0007
	ColorWhite   Attribute = 0x0008
)

const (
	AttrTrueColor Attribute = 0x01000000
	AttrBold      Attribute = 0x02000000
	AttrUnderline Attribute = 0x04000000
	AttrReverse   Attribute = 0x08000000

	attrFlags = AttrBold | AttrUnderline | AttrReverse
)

// PaletteColor returns the attribute for entry n (0-255) of the 256-color
// palette.
func PaletteColor(n int) Attribute {
	return Attribute(n + 1)
}

// RGB returns a true color attribute.
func RGB(r, g, b uint8) Attribute {
	return Attribute(uint32(r)<<16|uint32(g)<<8|uint32(b)) | AttrTrueColor
}

// Color strips the styling flags.
func (a Attribute) Color() Attribute {
	if a&AttrTrueColor != 0 {
		return a &^ attrFlags
	}
	return a & 0x1ff
}

// Flags returns only the styling flags.
func (a Attribute) Flags() Attribute {
	return a & attrFlags
}

// IsDefault reports whether a carries no color of its own.
func (a Attribute) IsDefault() bool {
	return a.Color() == ColorDefault
}

func (a Attribute) tcellColor() tcell.Color {
	switch {
	case a&AttrTrueColor != 0:
		return tcell.NewHexColor(int32(a & 0xffffff))
	case a.Color() == ColorDefault:
		return tcell.ColorDefault
	default:
		return tcell.PaletteColor(int(a.Color()) - 1)
	}
}

// Style describes display attributes for foreground and background.
type Style struct {
	Fg Attribute
	Bg Attribute
}

// Tcell converts the style for a tcell based renderer.
func (s Style) Tcell() tcell.Style {
	st := tcell.StyleDefault.
		Foreground(s.Fg.tcellColor()).
		Background(s.Bg.tcellColor())
	flags := s.Fg.Flags() | s.Bg.Flags()
	if flags&AttrBold != 0 {
		st = st.Bold(true)
	}
	if flags&AttrUnderline != 0 {
		st = st.Underline(true)
	}
	if flags&AttrReverse != 0 {
		st = st.Reverse(true)
	}
	return st
}
