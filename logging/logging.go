// Package logging builds the structured logger shared by every component
// and carries it through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/Xangel0s/docqr-Flex-sub000/config"
)

// TimeFormat is the timestamp layout of text output, e.g. "14:32:01.45".
const TimeFormat = "15:04:05.00"

// NewWriter creates a logger writing to w at level in the given format
// (text, json or logfmt).
func NewWriter(w io.Writer, level log.Level, format string) (*log.Logger, error) {
	var formatter log.Formatter
	switch format {
	case "", "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      TimeFormat,
		Level:           level,
		Formatter:       formatter,
	}), nil
}

// New creates the logger described by cfg. The returned close function
// releases the output file, if any.
func New(cfg config.LoggingConfig) (*log.Logger, func() error, error) {
	cfg.SetDefaults()
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging level: %w", err)
	}

	var w io.Writer
	closer := func() error { return nil }
	switch cfg.Output {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log output: %w", err)
		}
		w, closer = f, f.Close
	}

	logger, err := NewWriter(w, level, cfg.Format)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return logger, closer, nil
}

type ctxKey int

const loggerKey ctxKey = 0

// WithContext returns a copy of ctx carrying l.
func WithContext(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger in ctx, or log.Default() when there is
// none.
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
