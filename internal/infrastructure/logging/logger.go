package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger with the daemon's default fields and
// level-based filtering. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from config: JSON or text handler, parsed level,
// chosen output stream, and service/version default fields.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	level := parseLevel(cfg.Level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "hearth"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel maps debug/info/warn/error onto slog levels, defaulting
// to info for anything unrecognised.
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

// With returns a new Logger carrying additional default attributes:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default returns a stdout/JSON/info logger for early startup, before
// configuration has been loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
