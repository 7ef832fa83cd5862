// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/can1357/retro/internal/config"
)

// New returns a logger writing to w. An unknown level falls back to info.
// Format "console" selects human-readable output; anything else is JSON.
func New(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
