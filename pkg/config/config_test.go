package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sketchsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CLIENT_URL", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "localhost:3001" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Board.QueueSize != 256 || cfg.Board.ClearRedoOnLeave {
		t.Fatalf("unexpected board defaults %+v", cfg.Board)
	}
	if cfg.Archive.Path != "" {
		t.Fatal("archive should be disabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CLIENT_URL", "")
	t.Setenv("SKETCH_ARCHIVE", "/tmp/boards.sqlite3")
	path := writeConfig(t, `
server:
  addr: 0.0.0.0:9000
  allowed_origins: [http://localhost:3000]
  pong_wait: 30s
  ping_interval: 10s
board:
  queue_size: 8
  palette: ["#ff0000", "#00ff00"]
  clear_redo_on_leave: true
archive:
  path: ${SKETCH_ARCHIVE}
  interval: 1m
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" || cfg.Server.PongWait != 30*time.Second {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if len(cfg.Board.Palette) != 2 || !cfg.Board.ClearRedoOnLeave || cfg.Board.QueueSize != 8 {
		t.Fatalf("unexpected board config %+v", cfg.Board)
	}
	if cfg.Archive.Path != "/tmp/boards.sqlite3" || cfg.Archive.Interval != time.Minute {
		t.Fatalf("unexpected archive config %+v", cfg.Archive)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: localhost:1
  extra: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadValidates(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "ping after pong", content: "server:\n  ping_interval: 1m\n  pong_wait: 10s\n", want: "ping_interval"},
		{name: "bad level", content: "logging:\n  level: loud\n", want: "logging.level"},
		{name: "bad format", content: "logging:\n  format: xml\n", want: "logging.format"},
		{name: "empty color", content: "board:\n  palette: [\"\"]\n", want: "palette"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %s error, got %v", tt.want, err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("CLIENT_URL", "http://example.test")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":4000" {
		t.Fatalf("expected PORT to set addr, got %q", cfg.Server.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://example.test" {
		t.Fatalf("expected CLIENT_URL origin, got %v", cfg.Server.AllowedOrigins)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LoggingConfig{Level: "warn", Format: "json"}.Logger(&buf)
	if err != nil {
		t.Fatalf("Logger() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}
}
