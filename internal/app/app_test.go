package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"remindline/internal/config"
	"remindline/internal/notify"
)

func TestOpenWithDefaults(t *testing.T) {
	dir := t.TempDir()
	env, err := Open(Options{Workspace: dir, Override: func(c *config.Config) {
		c.Hierarchy.DeveloperID = "dev"
	}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()

	if env.Config.Timezone != "Europe/Moscow" {
		t.Fatalf("timezone = %q", env.Config.Timezone)
	}
	if _, ok := env.Engine.Notifier.(*notify.LogNotifier); !ok {
		t.Fatalf("notifier = %T, want log notifier", env.Engine.Notifier)
	}
	u, err := env.Engine.EnsureUser(context.Background(), "dev", "Dev")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if u.Role != "developer" {
		t.Fatalf("role = %q, want developer", u.Role)
	}
	if _, err := os.Stat(filepath.Join(dir, ".remindline", "remindline.db")); err != nil {
		t.Fatalf("db not created: %v", err)
	}
}

func TestOpenRejectsBadOverride(t *testing.T) {
	_, err := Open(Options{Workspace: t.TempDir(), Override: func(c *config.Config) {
		c.Notifier.Kind = "carrier-pigeon"
	}})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestOpenWebhookNotifierFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	data := []byte("notifier:\n  kind: webhook\n  url: http://127.0.0.1:1/gw\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env, err := Open(Options{Workspace: dir, ConfigPath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()
	if _, ok := env.Engine.Notifier.(*notify.WebhookNotifier); !ok {
		t.Fatalf("notifier = %T, want webhook notifier", env.Engine.Notifier)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("debug", "console"); err != nil {
		t.Fatalf("console logger: %v", err)
	}
	if _, err := NewLogger("info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
	if _, err := NewLogger("loud", "json"); err == nil {
		t.Fatalf("expected level error")
	}
}
