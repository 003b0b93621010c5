package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/astromechza/sketchsync/pkg/history"
	"github.com/astromechza/sketchsync/pkg/metrics"
	"github.com/astromechza/sketchsync/pkg/presence"
	"github.com/astromechza/sketchsync/pkg/protocol"
)

var ErrClosed = errors.New("board closed")

const DefaultQueueSize = 256

type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Palette *Palette
	// QueueSize bounds the outbound frames buffered per session. A session that falls this far behind
	// is disconnected.
	QueueSize int
	// ClearRedoOnLeave drops a user's redo stack when they disconnect.
	ClearRedoOnLeave bool
}

type joinRequest struct {
	reply chan joinResult
}

type joinResult struct {
	session *Session
	err     error
}

type inbound struct {
	session *Session
	msg     protocol.Inbound
}

// Board is one shared canvas. Every mutation of its history and sessions happens on the goroutine
// running Run, one message at a time.
type Board struct {
	id       string
	store    *history.Store
	presence *presence.Tracker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	palette  *Palette
	opts     Options

	sessions    map[string]*Session
	connections atomic.Int64

	join    chan joinRequest
	leave   chan *Session
	inbound chan inbound
	done    chan struct{}
}

func New(id string, opts Options) *Board {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Palette == nil {
		opts.Palette = NewPalette(nil)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Board{
		id:       id,
		store:    history.NewStore(),
		presence: presence.NewTracker(),
		logger:   opts.Logger.With("component", "board", "board", id),
		metrics:  opts.Metrics,
		palette:  opts.Palette,
		opts:     opts,
		sessions: make(map[string]*Session),
		join:     make(chan joinRequest),
		leave:    make(chan *Session),
		inbound:  make(chan inbound),
		done:     make(chan struct{}),
	}
}

func (b *Board) ID() string {
	return b.id
}

// Snapshot returns the committed history and its version.
func (b *Board) Snapshot() ([]history.Stroke, uint64) {
	return b.store.SnapshotWithVersion()
}

func (b *Board) Cursors() []presence.Cursor {
	return b.presence.List()
}

func (b *Board) Connections() int {
	return int(b.connections.Load())
}

// Done is closed once Run has returned.
func (b *Board) Done() <-chan struct{} {
	return b.done
}

// Run processes joins, leaves, and messages until ctx is cancelled. Remaining sessions are closed on
// return.
func (b *Board) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case req := <-b.join:
			s, err := b.handleJoin()
			req.reply <- joinResult{session: s, err: err}
		case s := <-b.leave:
			b.drop(s, false)
		case in := <-b.inbound:
			b.apply(in.session, in.msg)
		case <-ctx.Done():
			for _, s := range b.sessions {
				b.remove(s)
			}
			b.logger.Info("board stopped")
			return
		}
	}
}

// Join registers a new session. Its first outbound frame is the join payload carrying the history as
// of the moment it became active.
func (b *Board) Join(ctx context.Context) (*Session, error) {
	req := joinRequest{reply: make(chan joinResult, 1)}
	select {
	case b.join <- req:
	case <-b.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	res := <-req.reply
	return res.session, res.err
}

// Handle submits a decoded message from s. It returns once the board has applied it.
func (b *Board) Handle(ctx context.Context, s *Session, msg protocol.Inbound) error {
	select {
	case b.inbound <- inbound{session: s, msg: msg}:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave disconnects s. It is safe to call for a session that was already evicted.
func (b *Board) Leave(s *Session) {
	select {
	case b.leave <- s:
	case <-b.done:
	}
}

func (b *Board) handleJoin() (*Session, error) {
	s := newSession(uuid.NewString(), b.palette.Next(), b.opts.QueueSize)
	strokes := b.store.Snapshot()
	raw, err := protocol.EncodeJoin(s.ID, s.Color, strokes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode join: %w", err)
	}
	s.send <- raw
	s.setState(StateActive)
	b.sessions[s.ID] = s
	b.connections.Add(1)
	b.metrics.Connected()
	b.logger.Info("user joined", "user", s.ID, "color", s.Color, "strokes", len(strokes))
	return s, nil
}

func (b *Board) apply(s *Session, msg protocol.Inbound) {
	if current, ok := b.sessions[s.ID]; !ok || current != s || s.State() != StateActive {
		b.metrics.RecordRejected("inactive")
		return
	}
	switch msg.Kind {
	case protocol.KindDrawStep:
		if msg.Stroke == nil {
			return
		}
		raw, err := protocol.EncodeDrawStep(s.ID, *msg.Stroke)
		b.deliverEncoded(raw, err, s)
	case protocol.KindPointerMove:
		if msg.Pointer == nil {
			return
		}
		p := *msg.Pointer
		if p.Color == "" {
			p.Color = s.Color
		}
		b.presence.Upsert(s.ID, p.X, p.Y, p.Color)
		raw, err := protocol.EncodeCursor(s.ID, p)
		b.deliverEncoded(raw, err, s)
	case protocol.KindStrokeCommit:
		if msg.Stroke == nil {
			return
		}
		version := b.store.Append(msg.Stroke.Stroke(s.ID))
		b.metrics.RecordCommit()
		b.logger.Debug("stroke committed", "user", s.ID, "points", len(msg.Stroke.Points), "version", version)
	case protocol.KindUndo:
		ok := b.store.Undo(s.ID)
		b.metrics.RecordHistoryOp("undo", ok)
		if ok {
			b.resync()
		}
	case protocol.KindRedo:
		ok := b.store.Redo(s.ID)
		b.metrics.RecordHistoryOp("redo", ok)
		if ok {
			b.resync()
		}
	default:
		b.metrics.RecordRejected("unknown")
	}
}

func (b *Board) resync() {
	b.metrics.RecordResync()
	raw, err := protocol.EncodeHistory(b.store.Snapshot())
	b.deliverEncoded(raw, err, nil)
}

func (b *Board) deliverEncoded(raw []byte, err error, except *Session) {
	if err != nil {
		b.logger.Error("failed to encode broadcast", "err", err)
		return
	}
	b.deliver(raw, except)
}

func (b *Board) deliver(raw []byte, except *Session) {
	var slow []*Session
	for _, s := range b.sessions {
		if s == except {
			continue
		}
		select {
		case s.send <- raw:
		default:
			slow = append(slow, s)
		}
	}
	for _, s := range slow {
		b.drop(s, true)
	}
}

// drop removes s from the board and tells the remaining sessions it left.
func (b *Board) drop(s *Session, evicted bool) {
	if current, ok := b.sessions[s.ID]; !ok || current != s {
		return
	}
	b.remove(s)
	if evicted {
		b.metrics.RecordEviction()
		b.logger.Warn("evicted slow user", "user", s.ID)
	} else {
		b.logger.Info("user left", "user", s.ID)
	}
	raw, err := protocol.EncodeUserLeft(s.ID)
	b.deliverEncoded(raw, err, nil)
}

func (b *Board) remove(s *Session) {
	delete(b.sessions, s.ID)
	s.setState(StateDisconnected)
	close(s.send)
	b.presence.Remove(s.ID)
	if b.opts.ClearRedoOnLeave {
		b.store.ForgetRedo(s.ID)
	}
	b.connections.Add(-1)
	b.metrics.Disconnected()
}
