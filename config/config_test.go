package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/peco/outstream/buffer"
	"github.com/peco/outstream/line"
	"github.com/peco/outstream/storage"
	"github.com/stretchr/testify/require"
)

func expectedConfig() Config {
	var cfg Config
	_ = cfg.Init()
	cfg.Limits = buffer.Limits{MaxLines: 1000, MaxChars: 50000, RemoveLines: 100, MaxAnnotatedLines: 10}
	cfg.TabWidth = 4
	cfg.Storage = storage.ModeHeap
	cfg.Encoding = "windows-1252"
	cfg.Style.Error = Style{Fg: line.ColorMagenta | line.AttrBold, Bg: line.ColorBlack}
	cfg.Style.Hyperlink = Style{Fg: line.ColorCyan | line.AttrUnderline, Bg: line.ColorDefault}
	return cfg
}

func TestReadRC(t *testing.T) {
	txt := `
{
	"Limits": {"MaxLines": 1000, "MaxChars": 50000, "RemoveLines": 100, "MaxAnnotatedLines": 10},
	"TabWidth": 4,
	"Storage": "heap",
	"Encoding": "latin1",
	"Style": {
		"Error": ["bold", "magenta", "on_black"],
		"Hyperlink": ["underline", "cyan"]
	}
}
`
	var cfg Config
	require.NoError(t, cfg.Init(), "Config.Init should succeed")
	require.NoError(t, json.Unmarshal([]byte(txt), &cfg), "Unmarshalling config should succeed")
	require.Equal(t, expectedConfig(), cfg, "configuration matches expected")
}

func TestReadRCYAML(t *testing.T) {
	txt := `
Limits:
  MaxLines: 1000
  MaxChars: 50000
  RemoveLines: 100
  MaxAnnotatedLines: 10
TabWidth: 4
Storage: heap
Encoding: latin1
Style:
  Error:
    - bold
    - magenta
    - on_black
  Hyperlink:
    - underline
    - cyan
`
	var cfg Config
	require.NoError(t, cfg.Init(), "Config.Init should succeed")
	require.NoError(t, yaml.Unmarshal([]byte(txt), &cfg), "Unmarshalling YAML config should succeed")
	require.Equal(t, expectedConfig(), cfg, "YAML configuration matches expected")
}

func TestDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Init())
	require.NoError(t, cfg.Validate())
	require.Equal(t, buffer.DefaultLimits(), cfg.Limits)
	require.Equal(t, storage.ModeAuto, cfg.Storage)
	require.Equal(t, DefaultEncoding, cfg.Encoding)
	require.Equal(t, line.DefaultPalette(), cfg.Style.Palette())
	require.Len(t, cfg.BufferOptions(), 2)

	cfg.TabWidth = 0
	require.Error(t, cfg.Validate())
	require.NoError(t, cfg.Init())
	cfg.Limits.MaxLines = 1
	require.Error(t, cfg.Validate())
}

type stringsToStyleTest struct {
	strings []string
	style   *Style
}

func TestStringsToStyle(t *testing.T) {
	tests := []stringsToStyleTest{
		{
			strings: []string{"on_default", "default"},
			style:   &Style{Fg: line.ColorDefault, Bg: line.ColorDefault},
		},
		{
			strings: []string{"bold", "on_blue", "yellow"},
			style:   &Style{Fg: line.ColorYellow | line.AttrBold, Bg: line.ColorBlue},
		},
		{
			strings: []string{"underline", "on_cyan", "black"},
			style:   &Style{Fg: line.ColorBlack | line.AttrUnderline, Bg: line.ColorCyan},
		},
		{
			strings: []string{"reverse", "on_red", "white"},
			style:   &Style{Fg: line.ColorWhite | line.AttrReverse, Bg: line.ColorRed},
		},
		{
			strings: []string{"on_bold", "on_magenta", "green"},
			style:   &Style{Fg: line.ColorGreen, Bg: line.ColorMagenta | line.AttrBold},
		},
		{
			strings: []string{"underline", "on_240", "214"},
			style:   &Style{Fg: line.PaletteColor(214) | line.AttrUnderline, Bg: line.PaletteColor(240)},
		},
		{
			strings: []string{"#ff8800", "on_#0088ff"},
			style:   &Style{Fg: line.RGB(0xff, 0x88, 0x00), Bg: line.RGB(0x00, 0x88, 0xff)},
		},
		{
			strings: []string{"bold", "#00ff00", "on_#000000"},
			style:   &Style{Fg: line.RGB(0, 0xff, 0) | line.AttrBold, Bg: line.RGB(0, 0, 0)},
		},
	}

	t.Logf("Checking strings -> color mapping...")
	var a Style
	for _, test := range tests {
		t.Logf("    checking %s...", test.strings)
		require.NoError(t, StringsToStyle(&a, test.strings), "StringsToStyle should succeed")
		require.Equal(t, test.style, &a, "Expected '%s' to be '%#v', but got '%#v'", test.strings, test.style, a)
	}
}

func TestLocateRcfile(t *testing.T) {
	dir := t.TempDir()

	homedirFunc = func() (string, error) {
		return dir, nil
	}

	expected := []string{
		filepath.Join(dir, "outstream"),
		filepath.Join(dir, "1", "outstream"),
		filepath.Join(dir, "2", "outstream"),
		filepath.Join(dir, "3", "outstream"),
		filepath.Join(dir, ".outstream"),
	}

	i := 0
	locater := LocatorFunc(func(dir string) (string, error) {
		t.Logf("looking for file in %s", dir)
		require.True(t, i <= len(expected)-1, "Got %d directories, only have %d", i+1, len(expected))
		require.Equal(t, expected[i], dir, "Expected %s, got %s", expected[i], dir)
		i++
		return "", errors.New("error: Not found")
	})

	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CONFIG_DIRS", strings.Join(
		[]string{
			filepath.Join(dir, "1"),
			filepath.Join(dir, "2"),
			filepath.Join(dir, "3"),
		},
		fmt.Sprintf("%c", filepath.ListSeparator),
	))

	_, err := LocateRcfile(locater)
	require.Error(t, err)
	expected[0] = filepath.Join(dir, ".config", "outstream")
	t.Setenv("XDG_CONFIG_HOME", "")
	i = 0
	_, err = LocateRcfile(locater)
	require.Error(t, err)
	require.Equal(t, len(expected), i)
}

func TestLocateRcfileYAML(t *testing.T) {
	dir := t.TempDir()

	rcDir := filepath.Join(dir, ".outstream")
	require.NoError(t, os.MkdirAll(rcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rcDir, "config.yaml"), []byte("{}"), 0o644))

	homedirFunc = func() (string, error) {
		return dir, nil
	}

	// falls through to ~/.outstream/
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_CONFIG_DIRS", "")

	file, err := LocateRcfile(DefaultConfigLocator)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(rcDir, "config.yaml"), file)
}

func TestStorageMode(t *testing.T) {
	t.Run("valid values via JSON", func(t *testing.T) {
		for _, tc := range []struct {
			input    string
			expected storage.Mode
		}{
			{`{"Storage":"file"}`, storage.ModeFile},
			{`{"Storage":"heap"}`, storage.ModeHeap},
			{`{"Storage":"auto"}`, storage.ModeAuto},
			{`{}`, storage.ModeAuto},
		} {
			var cfg Config
			require.NoError(t, cfg.Init())
			require.NoError(t, json.Unmarshal([]byte(tc.input), &cfg))
			require.Equal(t, tc.expected, cfg.Storage)
		}
	})

	t.Run("invalid value via YAML", func(t *testing.T) {
		var cfg Config
		require.NoError(t, cfg.Init())
		err := yaml.Unmarshal([]byte("Storage: bogus"), &cfg)
		require.Error(t, err)
		require.Contains(t, err.Error(), "bogus")
	})
}

func TestEncoding(t *testing.T) {
	t.Run("valid values via JSON", func(t *testing.T) {
		for _, tc := range []struct {
			input    string
			expected Encoding
		}{
			{`{"Encoding":"UTF-8"}`, "utf-8"},
			{`{"Encoding":"shift_jis"}`, "shift_jis"},
			{`{"Encoding":"utf-16le"}`, "utf-16le"},
			{`{"Encoding":""}`, DefaultEncoding},
		} {
			var cfg Config
			require.NoError(t, cfg.Init())
			require.NoError(t, json.Unmarshal([]byte(tc.input), &cfg))
			require.Equal(t, tc.expected, cfg.Encoding)
		}
	})

	t.Run("invalid value via YAML", func(t *testing.T) {
		var cfg Config
		require.NoError(t, cfg.Init())
		err := yaml.Unmarshal([]byte("Encoding: bogus"), &cfg)
		require.Error(t, err)
		require.Contains(t, err.Error(), "bogus")
	})

	t.Run("UnmarshalFlag", func(t *testing.T) {
		var e Encoding
		require.NoError(t, e.UnmarshalFlag("iso-8859-1"))
		require.Equal(t, Encoding("windows-1252"), e)

		err := e.UnmarshalFlag("bogus")
		require.Error(t, err)
		require.Contains(t, err.Error(), "bogus")
	})
}

func TestReadFilenameYAML(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte(`
Limits:
  MaxLines: 1000
  MaxChars: 50000
  RemoveLines: 100
  MaxAnnotatedLines: 10
TabWidth: 4
Storage: heap
Encoding: latin1
Style:
  Error: [bold, magenta, on_black]
  Hyperlink: [underline, cyan]
`), 0o644))

	var cfg Config
	require.NoError(t, cfg.Init())
	require.NoError(t, cfg.ReadFilename(yamlFile))
	require.Equal(t, expectedConfig(), cfg)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"TabWidth": -1}`), 0o644))
	require.NoError(t, cfg.Init())
	require.Error(t, cfg.ReadFilename(bad))
}
