package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astromechza/sketchsync/pkg/board"
	"github.com/astromechza/sketchsync/pkg/metrics"
	"github.com/astromechza/sketchsync/pkg/protocol"
)

const (
	DefaultReadLimit    = 1 << 20
	DefaultPongWait     = 60 * time.Second
	DefaultPingInterval = 25 * time.Second
	DefaultWriteWait    = 10 * time.Second
)

type Options struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	ReadLimit    int64
	PongWait     time.Duration
	PingInterval time.Duration
	WriteWait    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = DefaultWriteWait
	}
	return o
}

func readAndDispatch(
	ctx context.Context,
	conn *websocket.Conn,
	b *board.Board,
	s *board.Session,
	opts Options,
) error {
	mt, p, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}
	switch mt {
	case websocket.TextMessage:
		msg, err := protocol.Decode(p)
		if err != nil {
			opts.Metrics.RecordRejected("malformed")
			opts.Logger.Warn("dropping message", "user", s.ID, "err", err)
			return nil
		}
		if err := b.Handle(ctx, s, msg); err != nil {
			return fmt.Errorf("failed to handle message: %w", err)
		}
	default:
		opts.Metrics.RecordRejected("binary")
	}
	return nil
}

func writeFrame(conn *websocket.Conn, raw []byte, opts Options) error {
	_ = conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Sync pumps frames between conn and the board on behalf of session s until either side stops. The
// caller still owns the session and must Leave the board afterwards.
func Sync(
	ctx context.Context,
	conn *websocket.Conn,
	b *board.Board,
	s *board.Session,
	opts Options,
) error {
	opts = opts.withDefaults()
	logger := opts.Logger.With("board", b.ID(), "user", s.ID)
	logger.Info("syncing")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var readErr error
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		defer conn.Close()

		conn.SetReadLimit(opts.ReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		})
		for {
			if err := readAndDispatch(ctx, conn, b, s, opts); err != nil {
				readErr = err
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer conn.Close()

		t := time.NewTicker(opts.PingInterval)
		defer t.Stop()
		for {
			select {
			case raw, ok := <-s.Outbound():
				if !ok {
					_ = conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
						time.Now().Add(opts.WriteWait),
					)
					return
				}
				if err := writeFrame(conn, raw, opts); err != nil {
					logger.Error(err.Error())
					return
				}
			case <-t.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteWait)); err != nil {
					logger.Error("failed to ping", "err", err)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	if readErr != nil && !isClosure(readErr) && s.State() != board.StateDisconnected {
		return readErr
	}
	logger.Info("finished sync")
	return nil
}

func isClosure(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
	}
	return errors.Is(err, board.ErrClosed) || errors.Is(err, context.Canceled)
}
