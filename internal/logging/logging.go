// Package logging initializes the process-wide zerolog logger used by
// every other package via the github.com/rs/zerolog/log global.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger: a human-readable console writer on
// stderr, plus a JSON writer on logFile when one is given so collected
// logs remain machine-parseable.
func Init(level string, logFile string) {
	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Error().Err(err).Str("path", logFile).Msg("logging: could not open log file, using stderr only")
		} else {
			writers = append(writers, f)
		}
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(parseLevel(level))

	log.Info().Str("level", zerolog.GlobalLevel().String()).Msg("logging initialized")
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
