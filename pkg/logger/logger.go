// Package logger builds the structured zerolog logger used by the CLI.
//
// Logs go to stderr so stdout stays reserved for tracking output.
//
//	TRACE (-1) → DEBUG (0) → INFO (1) → WARN (2) → ERROR (3) → DISABLED
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLevel keeps retry notices visible while hiding request detail.
const DefaultLevel = zerolog.WarnLevel

// Options controls logger construction.
type Options struct {
	// Level is the minimum log level: trace, debug, info, warn, error or
	// disabled. Defaults to "warn" when empty or unrecognised.
	Level string
	// Pretty enables human-friendly console output (coloured, text-based).
	// Use false to emit JSON lines.
	Pretty bool
	// NoColor disables colours in pretty output.
	NoColor bool
	// Output is the writer logs are sent to. Defaults to os.Stderr.
	Output io.Writer
}

// New builds a logger writing to opts.Output. Each call returns an
// independent logger.
func New(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: opts.NoColor}
	}

	return zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a string to a zerolog.Level.
//
//	"trace"    → TraceLevel (-1)
//	"debug"    → DebugLevel ( 0)
//	"info"     → InfoLevel  ( 1)
//	"warn"     → WarnLevel  ( 2)  ← default
//	"error"    → ErrorLevel ( 3)
//	"disabled" → Disabled
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return DefaultLevel
	}
}
