// Package observability sets up process-wide logging and call metrics.
package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogLevel overrides the configured log level.
const EnvLogLevel = "HQLRPC_LOG_LEVEL"

// InitLogger builds a console logger on stderr, installs it as the global
// zerolog logger and returns it. The level comes from HQLRPC_LOG_LEVEL when
// set, else from level, else info.
func InitLogger(app, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if l, ok := ParseLevel(level); ok {
		lvl = l
	}
	if l, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		lvl = l
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ParseLevel accepts the usual level names plus a few aliases for "off".
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
