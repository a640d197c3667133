package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/config"
)

// newLogger builds the process logger. extra, when set, receives every
// event as a JSON line.
func newLogger(cfg *config.Config, extra io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.Log.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	if extra != nil {
		out = zerolog.MultiLevelWriter(out, extra)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
