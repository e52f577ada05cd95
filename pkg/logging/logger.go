// Package logging configures structured logging for the heroes client using
// zerolog. Packages obtain component loggers through NewLogger once Setup
// has installed the global logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ParseLevel validates a level name as found in LOG_LEVEL. "warning" is
// accepted for LevelWarn; the empty string means LevelInfo.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// zerologLevel converts LogLevel to zerolog.Level. Unknown levels log at info.
func zerologLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page requests and applied pages (offset, total, has_more)
//   - Skipped load-more requests and the guard that rejected them
//   - Debounced searches (query, matched)
//   - Discarded results of superseded fetches
//
// Info: Normal operation events
//   - Requests that succeeded after a retry
//   - Bulk export progress
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed page fetches surfaced to the user
//   - Retry attempts
//   - Quota throttling, quota backend unavailable
//
// Error: Error conditions requiring attention
//   - Retries exhausted
//   - Quota exhausted or critical, requests blocked
//   - Configuration errors
//
// Context Fields:
//   - component: marvel-client, quota-tracker, hero-list, hero-detail, heroes-cli
//   - session: list controller session id
//   - endpoint: catalog endpoint path
//   - status_code: HTTP status code
//   - error_kind: catalog error kind (network, invalid_response, decode, auth, ...)
//   - offset, limit, total: pagination position
//   - hero_id: catalog hero id
