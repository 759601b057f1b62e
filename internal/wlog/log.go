// Package wlog is the logging facade every other package in this module
// uses instead of reaching for zerolog directly. It mirrors the
// zerolog-based logger other tools in this stack ship: a package-level
// configured logger, cheap child-logger derivation, and level parsed
// from config rather than hardcoded.
package wlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is a logging verbosity threshold.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level  Level
	JSON   bool
	Output io.Writer
}

// Logger wraps zerolog.Logger so call sites depend on this package's
// narrower surface rather than zerolog's full API.
type Logger struct {
	z zerolog.Logger
}

var global Logger

// Init configures the package-level global logger. Call once at process
// startup, before any component logger is derived from Default().
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
		output = os.Stdout
	}

	if cfg.JSON {
		global = Logger{z: zerolog.New(output).With().Timestamp().Logger()}
		return
	}
	global = Logger{z: zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()}
}

// Default returns the configured global logger. Safe to call before
// Init, returning a disabled no-op logger so packages can hold a Logger
// field before startup wiring runs.
func Default() Logger { return global }

// With returns a child logger with an additional string field. Chain
// calls to attach several fields, e.g. log.With("component",
// "jobmanager").With("job_id", id).
func (l Logger) With(key, value string) Logger {
	return Logger{z: l.z.With().Str(key, value).Logger()}
}

// WithInt returns a child logger with an additional integer field.
func (l Logger) WithInt(key string, value int) Logger {
	return Logger{z: l.z.With().Int(key, value).Logger()}
}

func (l Logger) Debug(msg string)             { l.z.Debug().Msg(msg) }
func (l Logger) Info(msg string)              { l.z.Info().Msg(msg) }
func (l Logger) Warn(msg string)              { l.z.Warn().Msg(msg) }
func (l Logger) Error(msg string)             { l.z.Error().Msg(msg) }
func (l Logger) ErrorErr(err error, msg string) { l.z.Error().Err(err).Msg(msg) }
