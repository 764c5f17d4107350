package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/peco/outstream/line"
)

// StyleSet holds the style of each kind of output
type StyleSet struct {
	Normal             Style `json:"Normal" yaml:"Normal"`
	Error              Style `json:"Error" yaml:"Error"`
	Input              Style `json:"Input" yaml:"Input"`
	Hyperlink          Style `json:"Hyperlink" yaml:"Hyperlink"`
	ImportantHyperlink Style `json:"ImportantHyperlink" yaml:"ImportantHyperlink"`
}

// Style describes display attributes for foreground and background.
type Style struct {
	Fg line.Attribute
	Bg line.Attribute
}

var (
	StringToFg = map[string]line.Attribute{
		"default": line.ColorDefault,
		"black":   line.ColorBlack,
		"red":     line.ColorRed,
		"green":   line.ColorGreen,
		"yellow":  line.ColorYellow,
		"blue":    line.ColorBlue,
		"magenta": line.ColorMagenta,
		"cyan":    line.ColorCyan,
		"white":   line.ColorWhite,
	}
	StringToBg = map[string]line.Attribute{
		"on_default": line.ColorDefault,
		"on_black":   line.ColorBlack,
		"on_red":     line.ColorRed,
		"on_green":   line.ColorGreen,
		"on_yellow":  line.ColorYellow,
		"on_blue":    line.ColorBlue,
		"on_magenta": line.ColorMagenta,
		"on_cyan":    line.ColorCyan,
		"on_white":   line.ColorWhite,
	}
	StringToFgAttr = map[string]line.Attribute{
		"bold":      line.AttrBold,
		"underline": line.AttrUnderline,
		"reverse":   line.AttrReverse,
	}
	StringToBgAttr = map[string]line.Attribute{
		"on_bold": line.AttrBold,
	}
)

// NewStyleSet creates a new StyleSet struct
func NewStyleSet() *StyleSet {
	ss := &StyleSet{}
	ss.Init()
	return ss
}

// Init sets every style to the default palette.
func (ss *StyleSet) Init() {
	p := line.DefaultPalette()
	ss.Normal = fromLine(p.Normal)
	ss.Error = fromLine(p.Error)
	ss.Input = fromLine(p.Input)
	ss.Hyperlink = fromLine(p.Hyperlink)
	ss.ImportantHyperlink = fromLine(p.ImportantHyperlink)
}

// Palette converts the set into the palette segments are resolved against.
func (ss StyleSet) Palette() line.Palette {
	return line.Palette{
		Normal:             ss.Normal.Line(),
		Error:              ss.Error.Line(),
		Input:              ss.Input.Line(),
		Hyperlink:          ss.Hyperlink.Line(),
		ImportantHyperlink: ss.ImportantHyperlink.Line(),
	}
}

func fromLine(s line.Style) Style {
	return Style{Fg: s.Fg, Bg: s.Bg}
}

// Line returns s as a line style.
func (s Style) Line() line.Style {
	return line.Style{Fg: s.Fg, Bg: s.Bg}
}

// UnmarshalJSON satisfies json.RawMessage.
func (s *Style) UnmarshalJSON(buf []byte) error {
	raw := []string{}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal Style: %w", err)
	}
	return StringsToStyle(s, raw)
}

// UnmarshalYAML decodes a YAML array of strings into a Style.
func (s *Style) UnmarshalYAML(unmarshal func(any) error) error {
	var raw []string
	if err := unmarshal(&raw); err != nil {
		return fmt.Errorf("failed to unmarshal Style from YAML: %w", err)
	}
	return StringsToStyle(s, raw)
}

// StringsToStyle parses color and attribute names such as "red",
// "on_blue", "bold", "214" or "#ff00ff" into a Style.
func StringsToStyle(style *Style, raw []string) error {
	style.Fg = line.ColorDefault
	style.Bg = line.ColorDefault

	for _, s := range raw {
		if fg, ok := StringToFg[s]; ok {
			style.Fg = fg
		} else if strings.HasPrefix(s, "#") && len(s) == 7 {
			if rgb, err := strconv.ParseUint(s[1:], 16, 32); err == nil {
				style.Fg = line.RGB(uint8(rgb>>16), uint8(rgb>>8), uint8(rgb))
			}
		} else if n, err := strconv.ParseUint(s, 10, 8); err == nil {
			style.Fg = line.PaletteColor(int(n))
		}

		if bg, ok := StringToBg[s]; ok {
			style.Bg = bg
		} else if strings.HasPrefix(s, "on_#") && len(s) == 10 {
			if rgb, err := strconv.ParseUint(s[4:], 16, 32); err == nil {
				style.Bg = line.RGB(uint8(rgb>>16), uint8(rgb>>8), uint8(rgb))
			}
		} else if strings.HasPrefix(s, "on_") {
			if n, err := strconv.ParseUint(s[3:], 10, 8); err == nil {
				style.Bg = line.PaletteColor(int(n))
			}
		}
	}

	for _, s := range raw {
		if fgAttr, ok := StringToFgAttr[s]; ok {
			style.Fg |= fgAttr
		}

		if bgAttr, ok := StringToBgAttr[s]; ok {
			style.Bg |= bgAttr
		}
	}

	return nil
}
