// Package logger configures the process-wide zerolog logger.
//
// Initialize once at startup:
//
//	if err := logger.Init(logger.Options{Level: "info", Format: "console"}); err != nil {
//		...
//	}
//
// and then either use the package helpers
//
//	logger.Info().Str("folder", name).Msg("Saving folder")
//
// or hand a scoped logger to a component:
//
//	log := logger.With("account", acc.Name)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options selects the level and output format of the global logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is "console" (human readable, the default) or "json".
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// NoColor disables ANSI colors in console output. Color is also off when
	// Output is not a terminal.
	NoColor bool
}

var global = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init replaces the global logger.
func Init(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(opts.Format) {
	case "", "console", "text":
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.DateTime,
			NoColor:    opts.NoColor || !isTerminal(out),
		}
	case "json":
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}

	global = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return nil
}

// ParseLevel converts a textual level to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// Get returns a pointer to the global logger.
func Get() *zerolog.Logger {
	return &global
}

// With returns a child of the global logger carrying the given string fields,
// passed as alternating keys and values.
func With(kv ...string) *zerolog.Logger {
	ctx := global.With()
	for i := 0; i+1 < len(kv); i += 2 {
		ctx = ctx.Str(kv[i], kv[i+1])
	}
	l := ctx.Logger()
	return &l
}

func Debug() *zerolog.Event { return global.Debug() }
func Info() *zerolog.Event  { return global.Info() }
func Warn() *zerolog.Event  { return global.Warn() }
func Error() *zerolog.Event { return global.Error() }

// Nop returns a logger that discards everything. Components fall back to it
// when no logger was configured.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
