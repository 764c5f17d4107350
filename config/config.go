package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/peco/outstream/buffer"
	"github.com/peco/outstream/internal/util"
	"github.com/peco/outstream/storage"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultMaxLineLength is the number of characters after which a line is
// broken.
const DefaultMaxLineLength = 1 << 20

// DefaultEncoding is the charset SaveAs writes.
const DefaultEncoding Encoding = "utf-8"

// Encoding names the charset a stream is saved in. Any name from the WHATWG
// encoding list is accepted.
type Encoding string

func (e *Encoding) unmarshal(s string) error {
	if s == "" {
		*e = DefaultEncoding
		return nil
	}
	enc, err := htmlindex.Get(s)
	if err != nil {
		return fmt.Errorf("invalid Encoding value %q: %w", s, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return fmt.Errorf("invalid Encoding value %q: %w", s, err)
	}
	*e = Encoding(name)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler (used by JSON/YAML decoders).
func (e *Encoding) UnmarshalText(b []byte) error {
	return e.unmarshal(string(b))
}

// UnmarshalFlag implements go-flags Unmarshaler (used by CLI flag parsing).
func (e *Encoding) UnmarshalFlag(s string) error {
	return e.unmarshal(s)
}

// Config holds all the data that can be configured in the
// external configuration file
type Config struct {
	Limits        buffer.Limits `json:"Limits" yaml:"Limits"`
	TabWidth      int           `json:"TabWidth" yaml:"TabWidth"`
	MaxLineLength int           `json:"MaxLineLength" yaml:"MaxLineLength"`
	Storage       storage.Mode  `json:"Storage" yaml:"Storage"`

	// TempDir is where file storage creates its backing files. Empty
	// means the system temporary directory.
	TempDir  string   `json:"TempDir" yaml:"TempDir"`
	Encoding Encoding `json:"Encoding" yaml:"Encoding"`
	Style    StyleSet `json:"Style" yaml:"Style"`
}

var homedirFunc = util.Homedir

// Init initializes the Config with default values
func (c *Config) Init() error {
	c.Limits = buffer.DefaultLimits()
	c.TabWidth = buffer.DefaultTabWidth
	c.MaxLineLength = DefaultMaxLineLength
	c.Storage = storage.ModeAuto
	c.Encoding = DefaultEncoding
	c.Style.Init()
	return nil
}

// Validate reports values no stream can work with.
func (c *Config) Validate() error {
	if c.TabWidth < 1 {
		return fmt.Errorf("invalid TabWidth %d: must be positive", c.TabWidth)
	}
	if c.MaxLineLength < 1 {
		return fmt.Errorf("invalid MaxLineLength %d: must be positive", c.MaxLineLength)
	}
	l := c.Limits
	if l.MaxLines < 2 || l.MaxChars < 1 || l.RemoveLines < 1 || l.MaxAnnotatedLines < 1 {
		return fmt.Errorf("invalid Limits %+v: MaxLines must be at least 2, the rest positive", l)
	}
	return nil
}

// BufferOptions returns the options a line index is created with.
func (c *Config) BufferOptions() []buffer.Option {
	return []buffer.Option{
		buffer.WithLimits(c.Limits),
		buffer.WithTabWidth(c.TabWidth),
	}
}

// ReadFilename reads the config from the given file, and
// does the appropriate processing, if any
func (c *Config) ReadFilename(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer f.Close()

	switch ext := filepath.Ext(filename); ext {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(c)
		if err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
	default:
		err = json.NewDecoder(f).Decode(c)
		if err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	}

	return c.Validate()
}

// Locator locates a config file in a given directory.
type Locator interface {
	Locate(string) (string, error)
}

// LocatorFunc is a function that implements Locator.
type LocatorFunc func(string) (string, error)

// Locate calls the underlying function.
func (f LocatorFunc) Locate(dir string) (string, error) {
	return f(dir)
}

var configFilenames = []string{"config.json", "config.yaml", "config.yml"}

// DefaultConfigLocator searches for a config file with one of the known
// filenames (config.json, config.yaml, config.yml) in the given directory.
var DefaultConfigLocator = LocatorFunc(func(dir string) (string, error) {
	for _, basename := range configFilenames {
		file := filepath.Join(dir, basename)
		if _, err := os.Stat(file); err == nil {
			return file, nil
		}
	}
	return "", fmt.Errorf("config file not found in %s", dir)
})

// LocateRcfile attempts to find the config file in various locations
func LocateRcfile(locater Locator) (string, error) {
	// http://standards.freedesktop.org/basedir-spec/basedir-spec-latest.html
	//
	// Try in this order:
	//	  $XDG_CONFIG_HOME/outstream/config.{json,yaml,yml}
	//    $XDG_CONFIG_DIR/outstream/config.{json,yaml,yml} (where XDG_CONFIG_DIR is listed in $XDG_CONFIG_DIRS)
	//	  ~/.outstream/config.{json,yaml,yml}

	home, uErr := homedirFunc()

	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		if file, err := locater.Locate(filepath.Join(dir, "outstream")); err == nil {
			return file, nil
		}
	} else if uErr == nil { // silently ignore failure for homedir()
		if file, err := locater.Locate(filepath.Join(home, ".config", "outstream")); err == nil {
			return file, nil
		}
	}

	// the basedir spec says ":", filepath.ListSeparator also covers windows
	if dirs := os.Getenv("XDG_CONFIG_DIRS"); dirs != "" {
		for dir := range strings.SplitSeq(dirs, fmt.Sprintf("%c", filepath.ListSeparator)) {
			if file, err := locater.Locate(filepath.Join(dir, "outstream")); err == nil {
				return file, nil
			}
		}
	}

	if uErr == nil { // silently ignore failure for homedir()
		if file, err := locater.Locate(filepath.Join(home, ".outstream")); err == nil {
			return file, nil
		}
	}

	return "", errors.New("config file not found")
}
