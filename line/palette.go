package line

// DefaultPalette returns the colors used when a stream does not configure
// its own.
func DefaultPalette() Palette {
	return Palette{
		Normal:             Style{Fg: ColorDefault, Bg: ColorDefault},
		Error:              Style{Fg: ColorRed, Bg: ColorDefault},
		Input:              Style{Fg: ColorGreen, Bg: ColorDefault},
		Hyperlink:          Style{Fg: ColorBlue | AttrUnderline, Bg: ColorDefault},
		ImportantHyperlink: Style{Fg: ColorRed | AttrBold | AttrUnderline, Bg: ColorDefault},
	}
}

func (p Palette) base(seg Segment) Style {
	if seg.Listener != nil {
		if seg.Important {
			return p.ImportantHyperlink
		}
		return p.Hyperlink
	}
	switch seg.Kind {
	case KindError:
		return p.Error
	case KindInput:
		return p.Input
	default:
		return p.Normal
	}
}

// Resolve returns the style a segment is painted with. Custom colors win
// over the palette; styling flags of both are combined.
func (p Palette) Resolve(seg Segment) Style {
	st := p.base(seg)
	if !seg.Fg.IsDefault() {
		st.Fg = seg.Fg.Color() | st.Fg.Flags()
	}
	st.Fg |= seg.Fg.Flags()
	if !seg.Bg.IsDefault() {
		st.Bg = seg.Bg.Color() | st.Bg.Flags()
	}
	st.Bg |= seg.Bg.Flags()
	return st
}
