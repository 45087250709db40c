// Package logging wraps log/slog with a process-wide logger for scorebot and
// helpers that carry Telegram request values through a context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

type contextKey string

const (
	userIDKey        contextKey = "user_id"
	chatIDKey        contextKey = "chat_id"
	commandKey       contextKey = "command"
	correlationIDKey contextKey = "correlation_id"
)

var (
	mu      sync.RWMutex
	current *slog.Logger
	logFile io.Closer // set when output goes to a rotated file
)

func init() {
	current = slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// Config is the logging section of the bot config. Level is one of debug,
// info, warn or error; Format is text or json; Output is stdout, stderr or a
// file path.
type Config struct {
	Level    string          `yaml:"level"`
	Format   string          `yaml:"format"`
	Output   string          `yaml:"output"`
	Rotation *RotationConfig `yaml:"rotation"`
}

// RotationConfig bounds a file log. Sizes use humanize units ("10MB"), ages
// take a day or week suffix ("7d", "2w").
type RotationConfig struct {
	MaxSize    string `yaml:"max_size"`
	MaxAge     string `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
}

// DefaultConfig logs text at info level to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "text",
		Output: "stdout",
	}
}

// Init swaps the process logger for one built from cfg. A file opened by a
// previous Init is closed.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := levelOf(cfg.Level)
	writer, err := openOutput(cfg)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	mu.Lock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if c, ok := writer.(io.Closer); ok && writer != os.Stdout && writer != os.Stderr {
		logFile = c
	}
	current = slog.New(handler)
	mu.Unlock()

	return nil
}

// Close releases the log file opened by Init, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Suppress discards all log output. Used by tests and offline CLI commands.
func Suppress() {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	mu.Lock()
	current = discard
	mu.Unlock()

	slog.SetDefault(discard)
}

func levelOf(level string) slog.Level {
	switch level {
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

func openOutput(cfg *Config) (io.Writer, error) {
	switch cfg.Output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return newRotatingWriter(cfg.Output, cfg.Rotation)
	}
}

// Logger returns the logger installed by the last Init or Suppress.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// WithComponent tags log lines with the subsystem that wrote them.
func WithComponent(component string) *slog.Logger {
	return Logger().With(slog.String("component", component))
}

// WithContext adds the correlation ID, sender and command found in ctx.
func WithContext(ctx context.Context) *slog.Logger {
	logger := Logger()

	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		logger = logger.With(slog.String("correlation_id", v))
	}
	if v, ok := ctx.Value(userIDKey).(int64); ok {
		logger = logger.With(slog.Int64("user_id", v))
	}
	if v, ok := ctx.Value(chatIDKey).(int64); ok {
		logger = logger.With(slog.Int64("chat_id", v))
	}
	if v, ok := ctx.Value(commandKey).(string); ok {
		logger = logger.With(slog.String("command", v))
	}

	return logger
}

// ContextWithCorrelationID marks ctx with the ID shared by every line of one update.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// ContextWithSender records who sent the update and where.
func ContextWithSender(ctx context.Context, userID, chatID int64) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, chatIDKey, chatID)
}

// ContextWithCommand records the command name without its slash.
func ContextWithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, commandKey, command)
}
