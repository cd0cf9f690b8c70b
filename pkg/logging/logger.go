// Package logging configures zerolog for fetchkit and hands out the
// component-scoped loggers the core packages log through.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel selects the minimum level emitted.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty switches from JSON to human-readable console output.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup configures the global zerolog logger and returns it. Component
// loggers created afterwards inherit the output and level set here.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// parseLevel maps a LogLevel onto zerolog's levels. Unknown or empty input
// falls back to info rather than failing.
func parseLevel(level LogLevel) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(string(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// Component returns a logger tagged with a fetchkit component name. The core
// packages log through this so every line names its origin.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Queue operations (add, dedup, promotion)
//   - Cache operations (writes, GC sweeps, revalidation triggers)
//   - Retry scheduling and backoff delays
//
// Info: Normal operation events
//   - Connectivity transitions
//   - Startup/shutdown of consumers
//
// Warn: Warning conditions that don't prevent operation
//   - Retry exhaustion
//   - Backing store errors (degrade to cache miss)
//
// Error: Error conditions requiring attention
//   - Panicking event handlers
//   - Configuration errors
//
// Context Fields:
//   - queue_key: queue identity of a request
//   - cache_key: cache identity of a request
//   - request_id: generated id of one storage element
//   - error_class: failure classification (transport, timeout, offline, canceled)
//   - attempt: retry attempt number
//   - backoff: delay before the next attempt
