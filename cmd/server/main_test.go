package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/astromechza/sketchsync/pkg/archive"
	"github.com/astromechza/sketchsync/pkg/board"
	"github.com/astromechza/sketchsync/pkg/history"
	"github.com/astromechza/sketchsync/pkg/protocol"
)

func TestLoadConfigFlagsOverride(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CLIENT_URL", "")
	t.Setenv("SKETCHSYNC_CONFIG", "")
	cmd := buildRootCmd()
	if err := cmd.ParseFlags([]string{"--addr", "127.0.0.1:0", "--mdns", "--log-level", "debug"}); err != nil {
		t.Fatal(err)
	}
	f := &flags{}
	f.addr, _ = cmd.Flags().GetString("addr")
	f.mdns, _ = cmd.Flags().GetBool("mdns")
	f.logLevel, _ = cmd.Flags().GetString("log-level")

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:0" || !cfg.Discovery.MDNS || cfg.Logging.Level != "debug" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Archive.Path != "" {
		t.Fatal("archive flag was not set and should stay empty")
	}
}

func TestArchiveAll(t *testing.T) {
	arch, err := archive.Open(filepath.Join(t.TempDir(), "boards.sqlite3"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer arch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	registry := board.NewRegistry(ctx, board.Options{})
	defer func() {
		cancel()
		registry.Wait()
	}()

	b, err := registry.Get("room")
	if err != nil {
		t.Fatal(err)
	}
	s, err := b.Join(ctx)
	if err != nil {
		t.Fatal(err)
	}
	<-s.Outbound()
	commit := protocol.Inbound{Kind: protocol.KindStrokeCommit, Stroke: &protocol.StrokeData{
		Points: []history.Point{{X: 1, Y: 1}}, Color: "#000000", Width: 1,
	}}
	if err := b.Handle(ctx, s, commit); err != nil {
		t.Fatal(err)
	}
	b.Leave(s)

	if n := archiveAll(ctx, registry, arch); n != 1 {
		t.Fatalf("expected one board archived, got %d", n)
	}
	if n := archiveAll(ctx, registry, arch); n != 0 {
		t.Fatalf("unchanged board archived again (%d)", n)
	}
	rec, err := arch.Load(ctx, "room")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Strokes) != 1 || rec.Strokes[0].Owner != s.ID {
		t.Fatalf("unexpected archived strokes %+v", rec.Strokes)
	}
}
