// Package logging wires up the process-wide structured logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Config controls where and how verbosely the server logs.
type Config struct {
	Debug   bool
	LogFile string // empty disables file output
}

// New builds a zerolog.Logger per cfg. Console output always goes to
// stderr; a file sink is added when cfg.LogFile is set.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	var w io.Writer = console

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			w = zerolog.MultiLevelWriter(console, f)
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
