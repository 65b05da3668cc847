// Package logging builds the process-wide structured logger from
// LOG_LEVEL/LOG_FILE/LOG_CONSOLE, in the style of
// Trader2050-price-diff-alerts' internal/logging package.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Options configures the logger. Zero value is a sane default: info level,
// JSON output, no file tee.
type Options struct {
	Level   string
	File    string
	Console bool
}

// New builds a zerolog.Logger per opts. Every orchestrator stage is expected
// to log through the returned logger with a "perf:<stage>" event name.
func New(opts Options) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if opts.Console {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		w = io.MultiWriter(w, f)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, nil
}

// Perf returns an event pre-tagged "perf:<stage>", the structured log line
// expected from every orchestrator stage.
func Perf(logger *zerolog.Logger, stage string) *zerolog.Event {
	return logger.Info().Str("perf", stage)
}
