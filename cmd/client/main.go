package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/astromechza/sketchsync/pkg/board"
	"github.com/astromechza/sketchsync/pkg/discovery"
	"github.com/astromechza/sketchsync/pkg/history"
	"github.com/astromechza/sketchsync/pkg/protocol"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		addr     string
		boardID  string
		discover bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:           "sketchsync-client",
		Short:         "Headless bot that draws random strokes on a board",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := board.ValidateID(boardID); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if discover {
				found, err := discovery.Browse(ctx, 3*time.Second)
				if err != nil {
					return err
				}
				if len(found) == 0 {
					return fmt.Errorf("no %s servers found", discovery.ServiceType)
				}
				slog.Info("discovered servers", "servers", found)
				addr = found[0]
			}
			return mainInner(ctx, addr, boardID, interval)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3001", "the address to request on")
	cmd.Flags().StringVar(&boardID, "board", board.DefaultBoardID, "the board to draw on")
	cmd.Flags().BoolVar(&discover, "discover", false, "find the server over mDNS instead of using --addr")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "mean delay between actions")
	return cmd
}

func mainInner(ctx context.Context, addr, boardID string, interval time.Duration) error {
	baseURL, err := url.Parse("http://" + addr)
	if err != nil {
		return err
	}
	c := &client{
		baseURL:  baseURL,
		board:    boardID,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.connectContinuously(ctx)
	return nil
}

type client struct {
	baseURL  *url.URL
	board    string
	interval time.Duration
	rng      *rand.Rand

	writeMu sync.Mutex
}

func (c *client) connectContinuously(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		if err := c.connectAndDraw(ctx); err != nil {
			slog.Error("connection ended", "err", err)
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			slog.Info("stopping")
			return
		}
	}
}

func (c *client) connectAndDraw(ctx context.Context) error {
	u := c.baseURL.JoinPath("boards", c.board, "sync")
	u.Scheme = "ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		defer cancel()
		readErr <- c.readContinuously(conn)
	}()

	c.drawContinuously(ctx, conn)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = conn.Close()
	if err := <-readErr; err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *client) readContinuously(conn *websocket.Conn) error {
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("failed to read: %w", err)
		}
		switch env.Type {
		case protocol.KindJoin:
			var j protocol.Join
			if err := json.Unmarshal(env.Data, &j); err != nil {
				return fmt.Errorf("failed to decode join: %w", err)
			}
			slog.Info("joined", "user", j.UserID, "color", j.Color, "strokes", len(j.History))
		case protocol.KindHistoryReplace:
			var strokes []history.Stroke
			if err := json.Unmarshal(env.Data, &strokes); err != nil {
				return fmt.Errorf("failed to decode history: %w", err)
			}
			slog.Info("history replaced", "strokes", len(strokes))
		case protocol.KindUserLeft:
			slog.Info("user left", "data", string(env.Data))
		default:
			slog.Debug("received", "type", env.Type)
		}
	}
}

func (c *client) send(conn *websocket.Conn, kind protocol.Kind, data any) error {
	raw, err := protocol.Encode(kind, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *client) drawContinuously(ctx context.Context, conn *websocket.Conn) {
	for {
		t := time.NewTimer(c.interval/2 + time.Duration(c.rng.Int63n(int64(c.interval)+1)))
		select {
		case <-t.C:
			if err := c.act(conn); err != nil {
				slog.Error("failed to act", "err", err)
				return
			}
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func (c *client) act(conn *websocket.Conn) error {
	switch roll := c.rng.Intn(10); {
	case roll < 2:
		slog.Info("requesting undo")
		return c.send(conn, protocol.KindUndo, nil)
	case roll < 3:
		slog.Info("requesting redo")
		return c.send(conn, protocol.KindRedo, nil)
	default:
		stroke := randomStroke(c.rng)
		for i := 1; i <= len(stroke.Points); i++ {
			step := stroke
			step.Points = stroke.Points[:i]
			if err := c.send(conn, protocol.KindDrawStep, step); err != nil {
				return err
			}
			last := stroke.Points[i-1]
			if err := c.send(conn, protocol.KindPointerMove, protocol.PointerData{X: last.X, Y: last.Y}); err != nil {
				return err
			}
		}
		slog.Info("committing stroke", "points", len(stroke.Points), "eraser", stroke.IsEraser)
		return c.send(conn, protocol.KindStrokeCommit, stroke)
	}
}

// randomStroke walks from a random start point inside an 800x600 canvas.
func randomStroke(rng *rand.Rand) protocol.StrokeData {
	n := 3 + rng.Intn(10)
	x, y := rng.Float64()*800, rng.Float64()*600
	points := make([]history.Point, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, history.Point{X: x, Y: y})
		x += rng.Float64()*40 - 20
		y += rng.Float64()*40 - 20
	}
	d := protocol.StrokeData{
		Points: points,
		Color:  fmt.Sprintf("#%06x", rng.Intn(0x1000000)),
		Width:  1 + float64(rng.Intn(8)),
	}
	if rng.Intn(8) == 0 {
		d.IsEraser = true
		d.Width *= 3
	}
	return d
}
