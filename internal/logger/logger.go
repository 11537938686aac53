// Package logger builds the process logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level  string // trace, debug, info, warn, error, disabled
	File   string // log file path; stderr when empty
	Pretty bool   // human readable console format
	// Writer overrides the destination. File is ignored when set.
	Writer io.Writer
}

// DefaultConfig logs warnings and errors to stderr in console format.
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Pretty: true,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger and installs it as the global zerolog logger. The
// returned Closer releases the log file, if any.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.WarnLevel
	}

	var (
		writer io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	switch {
	case cfg.Writer != nil:
		writer = cfg.Writer
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer, closer = f, f
	}

	// A file never gets color codes.
	if cfg.Pretty && cfg.File == "" {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.Writer != nil,
		}
	}

	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = logger
	return logger, closer, nil
}
