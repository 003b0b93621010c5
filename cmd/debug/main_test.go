package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astromechza/sketchsync/pkg/archive"
	"github.com/astromechza/sketchsync/pkg/history"
)

func seedArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boards.sqlite3")
	arch, err := archive.Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer arch.Close()
	strokes := []history.Stroke{{Owner: "alice", Color: "#123456", Width: 2, Points: []history.Point{{X: 1, Y: 1}}}}
	if _, err := arch.Save(context.Background(), "default", 1, strokes); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDebugPrintsDot(t *testing.T) {
	path := seedArchive(t)
	var out bytes.Buffer
	cmd := buildRootCmd(&out)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), `label="#0 alice #123456 1pts"`) {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestDebugList(t *testing.T) {
	path := seedArchive(t)
	var out bytes.Buffer
	cmd := buildRootCmd(&out)
	cmd.SetArgs([]string{"--list", path})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "default" {
		t.Fatalf("unexpected list %q", out.String())
	}
}

func TestDebugMissingArchive(t *testing.T) {
	cmd := buildRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.sqlite3")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing archive")
	}
}
