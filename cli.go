package outstream

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/creack/pty"
	"github.com/lestrrat-go/pdebug"
	"github.com/peco/outstream/buffer"
	"github.com/peco/outstream/config"
	"github.com/peco/outstream/filter"
	"github.com/peco/outstream/internal/util"
	"github.com/peco/outstream/line"
	"github.com/peco/outstream/sig"
	"github.com/peco/outstream/storage"
	"github.com/pkg/errors"
)

const version = "v0.1.0"

// CLI captures a file, stdin or the output of a command into a Stream and
// answers queries about it.
type CLI struct {
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Registry *storage.Registry

	// Signals are the signals that abort a capture. Defaults to SIGTERM,
	// SIGINT and SIGHUP.
	Signals []os.Signal

	options CLIOptions
	config  config.Config
}

// NewCLI returns a CLI bound to the process's standard streams.
func NewCLI() *CLI {
	return &CLI{
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Registry: storage.DefaultRegistry,
	}
}

// Run parses args, captures the input and prints what was asked for.
// The returned error may carry an exit status, see util.GetExitStatus.
func (c *CLI) Run(ctx context.Context, args []string) (err error) {
	if pdebug.Enabled {
		g := pdebug.Marker("CLI.Run").BindError(&err)
		defer g.End()
	}

	rest, err := c.options.parse(args, c.Stderr)
	if err != nil {
		return err
	}

	if c.options.OptHelp {
		c.Stdout.Write(c.options.help())
		return makeIgnorable(errors.New("user asked to show help message"))
	}

	if c.options.OptVersion {
		fmt.Fprintf(c.Stdout, "outstream version %s (built with %s)\n", version, runtime.Version())
		return makeIgnorable(errors.New("user asked to show version"))
	}

	if err := c.loadConfig(); err != nil {
		return err
	}

	captureCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigErr := make(chan error, 1)
	registry := c.Registry
	// temporary files go away even if the stream never gets to Dispose
	sigh := sig.New(sig.ReceivedHandlerFunc(func(os.Signal) {
		if registry != nil {
			registry.Teardown()
		}
	}), c.Signals...)
	go func() {
		sigErr <- sigh.Loop(captureCtx, cancel)
	}()

	s, err := New(
		WithConfig(c.config),
		WithFactory(storage.NewFactory(c.config.Storage, c.config.TempDir, registry)),
		WithErrorHandler(func(err error) {
			fmt.Fprintf(c.Stderr, "outstream: %s\n", err)
		}),
	)
	if err != nil {
		return err
	}
	defer s.Dispose()

	captureErr := c.capture(captureCtx, s, rest)

	cancel()
	if err := <-sigErr; err != nil {
		var received *sig.ReceivedError
		if errors.As(err, &received) {
			return err
		}
	}

	if _, ok := util.GetExitStatus(captureErr); captureErr != nil && !ok {
		return captureErr
	}

	if err := c.report(ctx, s); err != nil {
		return err
	}
	return captureErr
}

func (c *CLI) loadConfig() error {
	if err := c.config.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}

	rcfile := c.options.OptRcfile
	if rcfile == "" {
		if file, err := config.LocateRcfile(config.DefaultConfigLocator); err == nil {
			rcfile = file
		}
	}
	if rcfile != "" {
		if err := c.config.ReadFilename(rcfile); err != nil {
			return errors.Wrap(err, "failed to setup configuration")
		}
	}

	if c.options.storageSet {
		c.config.Storage = c.options.OptStorage
	}
	if c.options.OptEncoding != "" {
		c.config.Encoding = c.options.OptEncoding
	}
	if c.options.OptTabWidth > 0 {
		c.config.TabWidth = c.options.OptTabWidth
	}
	if c.options.OptMaxLines > 0 {
		c.config.Limits.MaxLines = c.options.OptMaxLines
		c.config.Limits.RemoveLines = max(1, min(c.config.Limits.RemoveLines, c.options.OptMaxLines/2))
	}
	return errors.Wrap(c.config.Validate(), "invalid configuration")
}

// capture reads the selected input into s and closes it. A command run
// with --exec that exits unsuccessfully yields an error with its status.
func (c *CLI) capture(ctx context.Context, s *Stream, args []string) error {
	var (
		name string
		in   io.Reader
		cmd  *exec.Cmd
	)

	switch {
	case c.options.OptExec != "":
		cmd = util.Shell(ctx, c.options.OptExec)
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return errors.Wrapf(err, "failed to start %q", c.options.OptExec)
		}
		defer ptmx.Close()
		name, in = c.options.OptExec, ptmx
	case len(args) > 0:
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", args[0])
		}
		name, in = args[0], f
	case !util.IsTty(c.Stdin):
		name, in = "-", c.Stdin
	default:
		return errors.New("you must supply something to work with via filename, stdin or --exec")
	}

	src := NewSource(name, in, s)
	src.Setup(ctx)

	if err := s.Close(); err != nil {
		return errors.Wrap(err, "failed to close stream")
	}
	if err := src.Err(); err != nil {
		return err
	}

	if cmd != nil {
		if err := cmd.Wait(); err != nil {
			var ee *exec.ExitError
			if errors.As(err, &ee) {
				return setExitStatus(errors.Errorf("%q exited with status %d", c.options.OptExec, ee.ExitCode()), ee.ExitCode())
			}
			return errors.Wrapf(err, "failed to wait for %q", c.options.OptExec)
		}
	}
	return nil
}

func (c *CLI) report(ctx context.Context, s *Stream) error {
	lines := s.Lines()

	if c.options.queries() {
		for _, p := range c.options.OptFind {
			if err := c.findAll(ctx, lines, c.query(p)); err != nil {
				return err
			}
		}
		for _, p := range c.options.OptRFind {
			if err := c.findLast(ctx, lines, c.query(p)); err != nil {
				return err
			}
		}
	} else if c.options.OptSaveAs == "" || c.options.OptTail > 0 || c.options.OptWrap > 0 {
		if err := c.printRows(lines, s.Palette()); err != nil {
			return err
		}
	}

	if path := c.options.OptSaveAs; path != "" {
		if err := s.SaveAs(path); err != nil {
			return err
		}
	}

	if c.options.OptStats {
		fmt.Fprintf(c.Stderr, "lines:           %d\n", lines.LineCount())
		fmt.Fprintf(c.Stderr, "chars:           %d\n", lines.CharCount())
		fmt.Fprintf(c.Stderr, "evicted lines:   %d\n", lines.EvictedLines())
		fmt.Fprintf(c.Stderr, "longest line:    %d\n", lines.LongestLine())
		fmt.Fprintf(c.Stderr, "annotated lines: %d\n", lines.AnnotatedLineCount())
	}
	return nil
}

func (c *CLI) query(pattern string) filter.Query {
	if c.options.OptIgnoreCase {
		return filter.Query{Pattern: pattern, Regex: c.options.OptRegex}
	}
	return filter.SmartCase(pattern, c.options.OptRegex)
}

// printMatch prints line i, numbered from the first line ever written.
func (c *CLI) printMatch(lines *buffer.Lines, i int) error {
	text, err := lines.Line(i)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout, "%d:%s\n", lines.EvictedLines()+i+1, text)
	return nil
}

func (c *CLI) findAll(ctx context.Context, lines *buffer.Lines, q filter.Query) error {
	last := -1
	for pos := 0; pos < lines.CharCount(); {
		m, ok, err := lines.Find(ctx, pos, q)
		if err != nil {
			return errors.Wrapf(err, "failed to search for %q", q.Pattern)
		}
		if !ok {
			return nil
		}
		i, err := lines.LineAt(m.Start)
		if err != nil {
			return err
		}
		if i != last {
			if err := c.printMatch(lines, i); err != nil {
				return err
			}
			last = i
		}
		pos = max(m.End, m.Start+1)
	}
	return nil
}

func (c *CLI) findLast(ctx context.Context, lines *buffer.Lines, q filter.Query) error {
	m, ok, err := lines.RFind(ctx, lines.CharCount(), q)
	if err != nil {
		return errors.Wrapf(err, "failed to search for %q", q.Pattern)
	}
	if !ok {
		return nil
	}
	i, err := lines.LineAt(m.Start)
	if err != nil {
		return err
	}
	return c.printMatch(lines, i)
}

// printRows prints the visible text, wrapped at --wrap cells when given,
// limited to the last --tail rows when given.
func (c *CLI) printRows(lines *buffer.Lines, palette line.Palette) error {
	width := c.options.OptWrap
	total := lines.LogicalLineCountIfWrappedAt(width)

	// a trailing empty line is where the next output would go
	last := lines.LineCount() - 1
	if n, err := lines.Length(last); err == nil && n == 0 {
		total--
	}

	rows := func(row int) ([][]buffer.StyledText, error) {
		pos, err := lines.ToPhysicalLineIndex(row, width)
		if err != nil {
			return nil, err
		}
		runs, err := lines.StyledRow(pos.Line, pos.Row, width, palette)
		if err != nil {
			return nil, err
		}
		return splitCells(runs, width), nil
	}

	color := c.colored()
	if tail := c.options.OptTail; tail > 0 {
		var out [][]buffer.StyledText
		for row := total - 1; row >= 0 && len(out) < tail; row-- {
			r, err := rows(row)
			if err != nil {
				return err
			}
			out = append(r, out...)
		}
		if len(out) > tail {
			out = out[len(out)-tail:]
		}
		return c.writeRows(out, color)
	}

	for row := 0; row < total; row++ {
		r, err := rows(row)
		if err != nil {
			return err
		}
		if err := c.writeRows(r, color); err != nil {
			return err
		}
	}
	return nil
}

func (c *CLI) colored() bool {
	switch c.options.OptColor {
	case "always":
		return true
	case "never":
		return false
	default:
		return util.IsTty(c.Stdout)
	}
}

func (c *CLI) writeRows(rows [][]buffer.StyledText, color bool) error {
	for _, row := range rows {
		if _, err := fmt.Fprintln(c.Stdout, paint(row, color)); err != nil {
			return errors.Wrap(err, "failed to write output")
		}
	}
	return nil
}
