package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the backend and output of a logger built by NewFromOptions.
type Options struct {
	// Level is one of trace, debug, info, warn or error.
	Level string
	// Format is "text" or "json" (slog), or "zerolog".
	Format string
	// File switches output to a size-rotated file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Output overrides stdout when File is empty.
	Output io.Writer
}

// NewFromOptions builds a ServiceLogger. The returned closer releases the
// rotating file, if any.
func NewFromOptions(opts Options) (ServiceLogger, io.Closer, error) {
	out, closer := outputFor(opts)

	switch strings.ToLower(opts.Format) {
	case "zerolog":
		level, err := zerolog.ParseLevel(strings.ToLower(defaultLevel(opts.Level)))
		if err != nil {
			return nil, nil, fmt.Errorf("parse log level: %w", err)
		}
		return NewZerologServiceLogger(zerolog.New(out).Level(level).With().Timestamp().Logger()), closer, nil
	case "", "text", "json":
		var level slog.Level
		if err := level.UnmarshalText([]byte(slogLevelName(opts.Level))); err != nil {
			return nil, nil, fmt.Errorf("parse log level: %w", err)
		}
		handlerOpts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler = slog.NewTextHandler(out, handlerOpts)
		if strings.EqualFold(opts.Format, "json") {
			handler = slog.NewJSONHandler(out, handlerOpts)
		}
		return NewSlogServiceLogger(slog.New(handler)), closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
}

func outputFor(opts Options) (io.Writer, io.Closer) {
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		return rotating, rotating
	}
	if opts.Output != nil {
		return opts.Output, nopCloser{}
	}
	return os.Stdout, nopCloser{}
}

func defaultLevel(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

// slog has no trace level; trace maps to debug.
func slogLevelName(level string) string {
	level = defaultLevel(level)
	if strings.EqualFold(level, "trace") {
		return "debug"
	}
	return level
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
