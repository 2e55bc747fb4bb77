// Package logging builds the *slog.Logger used across christopher.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Option configures a logger created with New.
type Option func(*options)

type options struct {
	level  slog.Level
	format string
	writer io.Writer
}

// WithLevel sets the minimum level.
func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithFormat selects the handler: "pretty" (charmbracelet/log), "text" or "json".
func WithFormat(format string) Option {
	return func(o *options) { o.format = format }
}

// WithWriter overrides the output writer. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// New returns a logger writing in the selected format.
func New(opts ...Option) *slog.Logger {
	o := options{level: slog.LevelInfo, format: "pretty", writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	hopts := &slog.HandlerOptions{Level: o.level}
	switch o.format {
	case "json":
		return slog.New(slog.NewJSONHandler(o.writer, hopts))
	case "text":
		return slog.New(slog.NewTextHandler(o.writer, hopts))
	default:
		h := log.NewWithOptions(o.writer, log.Options{
			Level:           log.Level(o.level),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          "christopher",
		})
		return slog.New(h)
	}
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
