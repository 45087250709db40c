package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelOf(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := levelOf(tt.input); got != tt.expected {
				t.Errorf("levelOf(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInitFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "bot.log")

	err := Init(&Config{Level: "debug", Format: "json", Output: logFile})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() {
		_ = Close()
		_ = Init(DefaultConfig())
	})

	WithComponent("test").Info("hello", slog.Int("n", 1))

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("expected component attribute in %q", out)
	}
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("expected message in %q", out)
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	mu.Lock()
	prev := current
	current = slog.New(slog.NewTextHandler(&buf, nil))
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		current = prev
		mu.Unlock()
	})

	ctx := ContextWithCorrelationID(context.Background(), "abc-123")
	ctx = ContextWithSender(ctx, 42, -100)
	ctx = ContextWithCommand(ctx, "set_result")

	WithContext(ctx).Info("dispatch")

	out := buf.String()
	for _, want := range []string{"correlation_id=abc-123", "user_id=42", "chat_id=-100", "command=set_result"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestWithContextEmpty(t *testing.T) {
	if WithContext(context.Background()) == nil {
		t.Fatal("WithContext returned nil logger")
	}
}

func TestSuppress(t *testing.T) {
	prev := Logger()
	prevDefault := slog.Default()
	t.Cleanup(func() {
		mu.Lock()
		current = prev
		mu.Unlock()
		slog.SetDefault(prevDefault)
	})

	Suppress()
	if Logger() == prev {
		t.Fatal("Suppress did not replace the global logger")
	}
	Logger().Info("nothing to see")
}
