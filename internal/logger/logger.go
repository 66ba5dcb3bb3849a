// Package logger builds the structured logger shared by distroshift components.
//
// JSON format goes to the log file for later inspection, console format is
// for interactive debugging with --verbose.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger's level, encoding and sinks.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	File   string // empty disables file output
	Stderr bool
}

// New builds a logger. At least one sink is always configured; with no file
// and Stderr unset, output goes to stderr.
func New(opts Options) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, level, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
	}

	var cfg zap.Config
	switch opts.Format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = level
	cfg.DisableStacktrace = true

	var outputs []string
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, level, fmt.Errorf("create log directory: %w", err)
		}
		outputs = append(outputs, opts.File)
	}
	if opts.Stderr || len(outputs) == 0 {
		outputs = append(outputs, "stderr")
	}
	cfg.OutputPaths = outputs
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, level, fmt.Errorf("build logger: %w", err)
	}
	return logger, level, nil
}
