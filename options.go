package outstream

import (
	"bytes"
	"fmt"
	"io"
	"reflect"

	"github.com/jessevdk/go-flags"
	"github.com/peco/outstream/config"
	"github.com/peco/outstream/storage"
	"github.com/pkg/errors"
)

// CLIOptions are the command line options of outstream.
type CLIOptions struct {
	OptHelp       bool            `short:"h" long:"help" description:"show this help message and exit"`
	OptVersion    bool            `long:"version" description:"print the version and exit"`
	OptRcfile     string          `long:"rcfile" description:"path to the settings file"`
	OptExec       string          `short:"e" long:"exec" description:"run the command via '/bin/sh -c' under a pseudo terminal and capture its output"`
	OptFind       []string        `short:"f" long:"find" description:"print every match of the pattern (may be repeated)"`
	OptRFind      []string        `long:"rfind" description:"print the last match of the pattern (may be repeated)"`
	OptRegex      bool            `short:"r" long:"regex" description:"treat patterns as regular expressions"`
	OptIgnoreCase bool            `short:"i" long:"ignore-case" description:"match patterns regardless of case"`
	OptWrap       int             `short:"w" long:"wrap" description:"print lines wrapped at N columns"`
	OptTail       int             `short:"n" long:"tail" description:"print only the last N visible rows"`
	OptSaveAs     string          `long:"save-as" description:"save the captured text to the file"`
	OptStats      bool            `long:"stats" description:"print line and character counts to stderr"`
	OptStorage    storage.Mode    `long:"storage" description:"where text is kept: 'auto' (default), 'file' or 'heap'"`
	OptEncoding   config.Encoding `long:"encoding" description:"encoding used by --save-as (default: utf-8)"`
	OptTabWidth   int             `long:"tab-width" description:"distance between tab stops"`
	OptMaxLines   int             `long:"max-lines" description:"number of lines kept before the oldest are evicted"`
	OptColor      string          `long:"color" default:"auto" choice:"auto" choice:"always" choice:"never" description:"paint printed rows in their colors: 'auto' (on a terminal), 'always' or 'never'"`

	storageSet bool
}

// queries reports whether any option asks for output other than the
// captured text itself.
func (options CLIOptions) queries() bool {
	return len(options.OptFind) > 0 || len(options.OptRFind) > 0
}

func (options *CLIOptions) parse(s []string, stderr io.Writer) ([]string, error) {
	p := flags.NewParser(options, flags.PrintErrors)
	p.Options &^= flags.PrintErrors
	args, err := p.ParseArgs(s)
	if err != nil {
		stderr.Write(options.help())
		return nil, errors.Wrap(err, "invalid command line options")
	}
	options.storageSet = p.FindOptionByLongName("storage").IsSet()

	if err := options.Validate(args); err != nil {
		return nil, errors.Wrap(err, "invalid command line arguments")
	}

	return args, nil
}

func (options CLIOptions) Validate(args []string) error {
	if options.OptWrap < 0 {
		return errors.Errorf("--wrap must not be negative: %d", options.OptWrap)
	}
	if options.OptTail < 0 {
		return errors.Errorf("--tail must not be negative: %d", options.OptTail)
	}
	if options.OptExec != "" && len(args) > 0 {
		return errors.New("--exec and an input file are mutually exclusive")
	}
	if len(args) > 1 {
		return errors.New("only one input file may be given")
	}
	return nil
}

func (options CLIOptions) help() []byte {
	buf := bytes.Buffer{}

	fmt.Fprintf(&buf, `
Usage: outstream [options] [FILE]

Options:
`)

	t := reflect.TypeOf(options)
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag
		if tag.Get("long") == "" {
			continue
		}

		var o string
		if s := tag.Get("short"); s != "" {
			o = fmt.Sprintf("-%s, --%s", tag.Get("short"), tag.Get("long"))
		} else {
			o = fmt.Sprintf("--%s", tag.Get("long"))
		}

		fmt.Fprintf(
			&buf,
			"  %-21s %s\n",
			o,
			tag.Get("description"),
		)
	}

	return buf.Bytes()
}
