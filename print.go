package outstream

import (
	"reflect"

	"github.com/peco/outstream/line"
	"github.com/pkg/errors"
)

// PrintOption sets how printed text is annotated.
type PrintOption func(*printConfig)

type printConfig struct {
	attributes
	lineBreak bool
}

func newPrintConfig(opts []PrintOption) (printConfig, error) {
	var c printConfig
	for _, o := range opts {
		o(&c)
	}
	if l := c.listener; l != nil && !reflect.TypeOf(l).Comparable() {
		return c, errors.Wrapf(ErrInvalidListener, "listener of type %T", l)
	}
	return c, nil
}

// attributes are what a run of printed text is annotated with.
type attributes struct {
	kind      line.Kind
	listener  line.Listener
	important bool
	fg        line.Attribute
	bg        line.Attribute
}

func (a attributes) isDefault() bool {
	return a == attributes{}
}

// WithKind marks the text as coming from the given output kind.
func WithKind(k line.Kind) PrintOption {
	return func(c *printConfig) {
		c.kind = k
	}
}

// WithListener attaches a hyperlink handle to the text. The handle is
// handed back unchanged by the annotation queries. Printing with a handle
// of a non-comparable type fails with ErrInvalidListener.
func WithListener(l line.Listener) PrintOption {
	return func(c *printConfig) {
		c.listener = l
	}
}

// Important marks a hyperlink as one to navigate to.
func Important() PrintOption {
	return func(c *printConfig) {
		c.important = true
	}
}

// WithColors prints the text in the given colors. ANSI colors inside the
// text take precedence.
func WithColors(fg, bg line.Attribute) PrintOption {
	return func(c *printConfig) {
		c.fg = fg
		c.bg = bg
	}
}

// WithLineBreak finishes the current line after the text.
func WithLineBreak() PrintOption {
	return func(c *printConfig) {
		c.lineBreak = true
	}
}
