package logger

import (
	"io"
	"os"
	"time"

	"github.com/kidandcat/sprintboard/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func New(cfg config.Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter builds the process logger and installs it as the zerolog
// global. dev gets a human console writer, everything else JSON lines.
func NewWithWriter(cfg config.Config, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	var logger zerolog.Logger
	if cfg.Env == "dev" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(out).With().Timestamp().Logger()
	}
	log.Logger = logger
	return logger
}
