package internal

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a JSON logger in prod and a console logger otherwise.
func NewLogger(w io.Writer, env string, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	if env != "prod" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	if err != nil {
		logger.Warn().Str("value", level).Msg("Invalid log level. Using default level: info")
	}
	return logger
}
