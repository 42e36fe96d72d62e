// Package logging builds the structured logger shared by the commands.
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"
)

// Options selects the logger level and output.
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json
	Writer io.Writer
}

// New returns a logger writing to opts.Writer, or stderr when nil.
func New(opts Options) *log.Logger {
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	var writer log.Writer
	if opts.Format == "json" {
		writer = &log.IOWriter{Writer: out}
	} else {
		writer = &log.ConsoleWriter{
			Writer:      out,
			ColorOutput: isTerminal(out),
			QuoteString: true,
		}
	}

	level := log.InfoLevel
	if opts.Level != "" {
		level = log.ParseLevel(opts.Level)
	}
	return &log.Logger{
		Level:      level,
		TimeFormat: "15:04:05",
		Writer:     writer,
	}
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
