package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/astromechza/sketchsync/pkg/archive"
	"github.com/astromechza/sketchsync/pkg/board"
	"github.com/astromechza/sketchsync/pkg/viz"
)

func main() {
	if err := buildRootCmd(os.Stdout).Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func buildRootCmd(out io.Writer) *cobra.Command {
	var (
		boardID     string
		svgPath     string
		timelineSvg string
		list        bool
	)
	cmd := &cobra.Command{
		Use:           "sketchsync-debug <archive.sqlite3>",
		Short:         "Inspect a board archive",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))
			return mainInner(cmd.Context(), out, args[0], boardID, list, svgPath, timelineSvg)
		},
	}
	cmd.Flags().StringVar(&boardID, "board", board.DefaultBoardID, "the board to inspect")
	cmd.Flags().BoolVar(&list, "list", false, "list archived boards and exit")
	cmd.Flags().StringVar(&svgPath, "svg", "", "render the stroke history to this svg file")
	cmd.Flags().StringVar(&timelineSvg, "timeline-svg", "", "render the archive change timeline to this svg file")
	return cmd
}

func mainInner(ctx context.Context, out io.Writer, path, boardID string, list bool, svgPath, timelineSvg string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	arch, err := archive.Open(path, nil)
	if err != nil {
		return err
	}
	defer arch.Close()

	if list {
		ids, err := arch.Boards(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	rec, err := arch.Load(ctx, boardID)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", boardID, err)
	}
	slog.Info("loaded board", "board", rec.Board, "version", rec.Version, "archived_at", rec.ArchivedAt, "strokes", len(rec.Strokes))
	slog.Info("loaded heads", "heads", rec.Doc.Heads())

	changes, err := rec.Doc.Changes()
	if err != nil {
		return fmt.Errorf("failed to generate changes: %w", err)
	}
	for i, change := range changes {
		slog.Info("change", "i", fmt.Sprintf("%4d", i), "hash", change.Hash(), "actor", change.ActorID(), "dep", change.Dependencies())
	}
	for i, s := range rec.Strokes {
		slog.Info("stroke", "i", fmt.Sprintf("%4d", i), "owner", s.Owner, "color", s.Color, "width", s.Width, "eraser", s.IsEraser, "points", len(s.Points))
	}

	fmt.Fprint(out, viz.HistoryDot(rec.Strokes))

	if svgPath != "" {
		if err := viz.RenderToFile(svgPath, func(w io.Writer) error {
			return viz.RenderHistorySvg(rec.Strokes, w)
		}); err != nil {
			return err
		}
		slog.Info("rendered", "path", "file://"+svgPath)
	}
	if timelineSvg != "" {
		if err := viz.RenderToFile(timelineSvg, func(w io.Writer) error {
			return viz.RenderTimelineSvg(rec.Doc, w)
		}); err != nil {
			return err
		}
		slog.Info("rendered", "path", "file://"+timelineSvg)
	}
	return nil
}
