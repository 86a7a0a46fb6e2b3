// Package logging configures the process-wide zerolog logger used by
// cmd/internexd. The rewrite packages do not log.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It starts usable before Configure
// runs so that package-level init code can log safely.
var Logger zerolog.Logger

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Configure sets the global log level and switches between pretty
// console output (for interactive use) and structured JSON (for
// production, where logs are typically collected and parsed).
func Configure(level Level, pretty bool) {
	zerolog.SetGlobalLevel(parseLevel(level))

	var writer io.Writer = os.Stderr
	if pretty {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	Logger = zerolog.New(writer).With().Timestamp().Logger()
}

func parseLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
