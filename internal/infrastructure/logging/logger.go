package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/hydrogate/internal/infrastructure/config"
)

const (
	// serviceName is attached to every log entry.
	serviceName = "hydrogate"

	// redacted replaces the value of any secret-bearing attribute.
	redacted = "[REDACTED]"
)

// secretKeys are attribute keys whose values never reach the log output.
// Login bodies and connection settings both carry credentials.
var secretKeys = map[string]bool{
	"password": true,
	"token":    true,
	"dsn":      true,
	"secret":   true,
}

// Logger is the gateway's structured logger. Entries carry the service name
// and build version; secret attributes are masked.
type Logger struct {
	*slog.Logger
}

// New builds a Logger writing to stdout or stderr per cfg.Output.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return NewWithWriter(cfg, version, output)
}

// NewWithWriter builds a Logger writing to w, ignoring cfg.Output.
// Format "text" selects key=value output; anything else is JSON.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler).With(
			slog.String("service", serviceName),
			slog.String("version", version),
		),
	}
}

// redactSecrets masks attributes named in secretKeys, at any group depth.
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel maps debug, info, warn and error onto slog levels.
// Unknown values fall back to info.
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

// With returns a child Logger carrying args on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the JSON info-level logger used until configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}
