// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, fatal, panic
	// or disabled. Unknown values mean info.
	Level string

	// Format is json (default) or console.
	Format string

	Caller    bool
	Timestamp bool

	// Service is attached to every event as "service" when set, so the server
	// and bridge can share a log sink.
	Service string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the production logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	mu     sync.RWMutex
	global zerolog.Logger
)

//nolint:gochecknoinits // packages log before main calls Init
func init() {
	global = build(DefaultConfig())
}

// Init reconfigures the global logger. Safe to call more than once.
func Init(cfg Config) {
	l := build(cfg)
	mu.Lock()
	global = l
	mu.Unlock()
}

func build(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return ctx.Logger()
}

func parseLevel(level string) zerolog.Level {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "warning":
		return zerolog.WarnLevel
	case "disabled":
		return zerolog.Disabled
	default:
		parsed, err := zerolog.ParseLevel(l)
		if err != nil || l == "" || parsed == zerolog.NoLevel {
			return zerolog.InfoLevel
		}
		return parsed
	}
}

// current returns a copy of the global logger.
func current() *zerolog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	return &l
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *current()
}

// SetLogger replaces the global logger. Tests use it to capture output.
//
//nolint:gocritic // zerolog.Logger is a value type
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

// With starts a child logger context.
//
//	stationLog := logging.With().Str("station", key).Logger()
func With() zerolog.Context { return current().With() }

// Debug starts a debug event.
func Debug() *zerolog.Event { return current().Debug() }

// Info starts an info event.
func Info() *zerolog.Event { return current().Info() }

// Warn starts a warn event.
func Warn() *zerolog.Event { return current().Warn() }

// Error starts an error event.
func Error() *zerolog.Event { return current().Error() }

// Fatal starts a fatal event; Msg exits the process with status 1.
func Fatal() *zerolog.Event { return current().Fatal() }

// Err starts an error event carrying err, or an info event when err is nil.
//
//	logging.Err(err).Str("topic", topic).Msg("publish failed")
func Err(err error) *zerolog.Event { return current().Err(err) }
