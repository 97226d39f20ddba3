// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, encoding, and destination.
type Config struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=trace debug info warn error disabled"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json console"`
	Output string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stderr stdout file"`
	File   string `yaml:"file" envconfig:"FILE" validate:"required_if=Output file"`
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger for cfg. The closer releases the log file, if any.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		out = os.Stdout
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
		}
		out, closer = f, f
	default:
		out = os.Stderr
	}

	log, err := NewWriter(cfg, out)
	if err != nil {
		_ = closer.Close()
		return zerolog.Nop(), nil, err
	}
	return log, closer, nil
}

// NewWriter returns a logger writing to w, ignoring cfg.Output.
func NewWriter(cfg Config, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	if strings.ToLower(cfg.Format) == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
