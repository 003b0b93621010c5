package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/astromechza/sketchsync/pkg/archive"
	"github.com/astromechza/sketchsync/pkg/board"
	"github.com/astromechza/sketchsync/pkg/config"
	"github.com/astromechza/sketchsync/pkg/discovery"
	"github.com/astromechza/sketchsync/pkg/metrics"
	"github.com/astromechza/sketchsync/pkg/relay"
	"github.com/astromechza/sketchsync/pkg/server"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

type flags struct {
	configPath  string
	addr        string
	archivePath string
	mdns        bool
	logLevel    string
}

func buildRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "sketchsync-server",
		Short:         "Serve shared drawing boards over websockets",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return mainInner(cfg)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", os.Getenv("SKETCHSYNC_CONFIG"), "Path to YAML configuration file")
	cmd.Flags().StringVar(&f.addr, "addr", "", "the address to listen on")
	cmd.Flags().StringVar(&f.archivePath, "archive", "", "sqlite file to archive board histories into")
	cmd.Flags().BoolVar(&f.mdns, "mdns", false, "advertise the server over mDNS")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = f.addr
	}
	if cmd.Flags().Changed("archive") {
		cfg.Archive.Path = f.archivePath
	}
	if cmd.Flags().Changed("mdns") {
		cfg.Discovery.MDNS = f.mdns
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

func mainInner(cfg *config.Config) error {
	logger, err := cfg.Logging.Logger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	var arch *archive.Archive
	if cfg.Archive.Path != "" {
		slog.Info("Opening archive", "path", cfg.Archive.Path)
		if arch, err = archive.Open(cfg.Archive.Path, logger); err != nil {
			return err
		}
		defer arch.Close()
	}

	m := metrics.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := board.NewRegistry(ctx, board.Options{
		Logger:           logger,
		Metrics:          m,
		Palette:          board.NewPalette(cfg.Board.Palette),
		QueueSize:        cfg.Board.QueueSize,
		ClearRedoOnLeave: cfg.Board.ClearRedoOnLeave,
	})
	if _, err := registry.Get(board.DefaultBoardID); err != nil {
		return err
	}

	srv := server.New(registry, server.Options{
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Relay: relay.Options{
			Logger:       logger,
			Metrics:      m,
			ReadLimit:    cfg.Server.ReadLimit,
			PongWait:     cfg.Server.PongWait,
			PingInterval: cfg.Server.PingInterval,
			WriteWait:    cfg.Server.WriteWait,
		},
	})

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Info("listening", "addr", ln.Addr().String())

	if cfg.Discovery.MDNS {
		port := ln.Addr().(*net.TCPAddr).Port
		advert, err := discovery.Advertise(port, discovery.Info{
			Instance: cfg.Discovery.Instance,
			Version:  version,
			Boards:   []string{board.DefaultBoardID},
		})
		if err != nil {
			slog.Error("failed to advertise", "err", err)
		} else {
			defer advert.Close()
			slog.Info("advertising", "service", discovery.ServiceType, "instance", cfg.Discovery.Instance)
		}
	}

	wg := new(sync.WaitGroup)

	if arch != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(cfg.Archive.Interval)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					archiveAll(ctx, registry, arch)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	httpServer := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
			cancel()
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		slog.Info("Signal caught", "sig", sig)
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown cleanly", "err", err)
		_ = httpServer.Close()
	}
	registry.Wait()
	wg.Wait()

	if arch != nil {
		archiveAll(shutdownCtx, registry, arch)
	}
	return nil
}

// archiveAll writes every board whose history changed since the last save.
func archiveAll(ctx context.Context, registry *board.Registry, arch *archive.Archive) int {
	written := 0
	registry.Range(func(b *board.Board) bool {
		strokes, v := b.Snapshot()
		ok, err := arch.Save(ctx, b.ID(), v, strokes)
		if err != nil {
			slog.Error("failed to archive board", "board", b.ID(), "err", err)
			return true
		}
		if ok {
			written++
			slog.Info("archived", "board", b.ID(), "version", v, "strokes", len(strokes))
		}
		return true
	})
	return written
}
