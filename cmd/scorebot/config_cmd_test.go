package main

import (
	"os"
	"strings"
	"testing"

	"github.com/is57/scorebot/internal/config"
	"github.com/is57/scorebot/internal/testutil"
)

func TestConfigInit(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, newConfigCmd(), "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, cfgFile) {
		t.Errorf("output = %q, want path", out)
	}

	info, err := os.Stat(cfgFile)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config mode = %o, want 600", perm)
	}

	if _, err := execute(t, newConfigCmd(), "init"); err == nil {
		t.Error("expected error when config exists")
	}
	if _, err := execute(t, newConfigCmd(), "init", "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}
}

func TestConfigShow_MasksBotToken(t *testing.T) {
	setupCLI(t)
	t.Setenv(config.EnvBotToken, testutil.FakeTelegramBotToken)

	out, err := execute(t, newConfigCmd(), "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "test-telegram") {
		t.Errorf("bot token not masked:\n%s", out)
	}
	if !strings.Contains(out, "*oken") {
		t.Errorf("masked token suffix missing:\n%s", out)
	}
	if !strings.Contains(out, "admin_user_id: 1") {
		t.Errorf("admin override missing:\n%s", out)
	}
}

func TestConfigValidate(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, newConfigCmd(), "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "valid") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, newConfigCmd(), "validate", "--polling"); err == nil {
		t.Error("expected --polling to require the bot token")
	}

	t.Setenv(config.EnvBotToken, testutil.FakeTelegramBotToken)
	if _, err := execute(t, newConfigCmd(), "validate", "--polling"); err != nil {
		t.Errorf("validate --polling with token: %v", err)
	}
}

func TestConfigPathCommand(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, newConfigCmd(), "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != cfgFile {
		t.Errorf("path = %q, want %q", out, cfgFile)
	}
}
