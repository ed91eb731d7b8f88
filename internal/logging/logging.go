// Package logging provides railyard's structured logging, a thin wrapper
// around zerolog (spec.md §1's ambient-concerns carve-out: logging is
// carried regardless of any feature Non-goal). Grounded in cuemby-warren's
// pkg/log: a package-level Logger initialized once via Init, per-component
// child loggers, JSON output in production and a human console writer
// otherwise.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, set by Init. Components that run
// before Init (or in tests) get a sane default: info level, console
// output to stderr.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(zerolog.InfoLevel).With().Timestamp().Logger()

// Level names railyard's supported log levels.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init (re)configures the global Logger. Call once at process startup
// (cmd/railyard's main calls it when --json is on the command line).
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr // stdout is reserved for --json response envelopes
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagging every entry with component,
// e.g. logging.WithComponent("queue"), logging.WithComponent("vcsadapter").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithSession returns a child logger tagging every entry with the session
// name it concerns.
func WithSession(name string) zerolog.Logger {
	return Logger.With().Str("session", name).Logger()
}
