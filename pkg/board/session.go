package board

import (
	"sync/atomic"
)

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the board's record of one connected user. The transport only sees the outbound queue;
// all other fields are owned by the board goroutine.
type Session struct {
	ID    string
	Color string

	state atomic.Int32
	send  chan []byte
}

func newSession(id, color string, queueSize int) *Session {
	s := &Session{ID: id, Color: color, send: make(chan []byte, queueSize)}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Outbound yields encoded frames for this session. It is closed once the session has left the board
// or was evicted.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}
