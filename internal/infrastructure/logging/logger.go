package logging

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-http/internal/infrastructure/config"
)

// Logger wraps slog.Logger with Gray Logic-specific functionality.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return NewWithWriter(output, cfg, version)
}

// NewWithWriter is New with an explicit destination. Output in cfg is ignored.
func NewWithWriter(output io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "graylogic-http"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	banLogger := logger.With("component", "ban")
//	banLogger.Info("loaded") // Includes component=ban
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// WithRedaction returns a Logger that masks every occurrence of the given
// secrets in messages and string attributes, in plain and URL-encoded form.
// Empty secrets are ignored, so the result is l itself when nothing needs
// hiding.
func (l *Logger) WithRedaction(secrets ...string) *Logger {
	var keep []string
	for _, s := range secrets {
		if s == "" {
			continue
		}
		keep = append(keep, s)
		for _, enc := range []string{url.QueryEscape(s), url.PathEscape(s)} {
			if enc != s && !slices.Contains(keep, enc) {
				keep = append(keep, enc)
			}
		}
	}
	if len(keep) == 0 {
		return l
	}
	return &Logger{
		Logger: slog.New(&redactHandler{next: l.Logger.Handler(), secrets: keep}),
	}
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
