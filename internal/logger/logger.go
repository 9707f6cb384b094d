// Package logger builds the structured slog logger shared by the portal and the CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format (production default)
	FormatJSON LogFormat = "json"
	// FormatText outputs logs in human-readable text format (development default)
	FormatText LogFormat = "text"
)

// Options controls how a logger is built.
type Options struct {
	Level  string
	Format LogFormat
	// Component is attached to every record when set (e.g. "portal", "billingctl").
	Component string
}

// OptionsFromEnv reads LOG_LEVEL and LOG_FORMAT.
func OptionsFromEnv(component string) Options {
	return Options{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    parseFormat(os.Getenv("LOG_FORMAT")),
		Component: component,
	}
}

// New creates a logger writing to stdout, configured from the environment.
//
// LOG_LEVEL options: debug, info, warn, error (default: info)
// LOG_FORMAT options: json, text (default: json)
func New(component string) *slog.Logger {
	return Build(os.Stdout, OptionsFromEnv(component))
}

// Build creates a logger writing to w.
func Build(w io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch opts.Format {
	case FormatText:
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	log := slog.New(handler)
	if opts.Component != "" {
		log = log.With("component", opts.Component)
	}
	return log
}

// Discard returns a logger that drops everything. Used by tests and optional dependencies.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseFormat(s string) LogFormat {
	if strings.ToLower(strings.TrimSpace(s)) == "text" {
		return FormatText
	}
	return FormatJSON
}

// SetDefault sets the given logger as the default slog logger
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
