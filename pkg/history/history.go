package history

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var ErrInvalidStroke = errors.New("invalid stroke")

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one committed freehand drawing action. Its fields are never modified once it is in a Store.
type Stroke struct {
	Owner    string  `json:"owner"`
	Points   []Point `json:"points"`
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	IsEraser bool    `json:"isEraser"`
}

// Validate checks the render attributes of a stroke. The owner is not checked because it is always
// assigned by the server.
func (s Stroke) Validate() error {
	if len(s.Points) == 0 {
		return fmt.Errorf("%w: no points", ErrInvalidStroke)
	}
	for i, p := range s.Points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("%w: point %d is not finite", ErrInvalidStroke, i)
		}
	}
	if !finite(s.Width) || s.Width <= 0 {
		return fmt.Errorf("%w: width must be positive", ErrInvalidStroke)
	}
	if !s.IsEraser && s.Color == "" {
		return fmt.Errorf("%w: color is required", ErrInvalidStroke)
	}
	return nil
}

func (s Stroke) clone() Stroke {
	s.Points = append([]Point(nil), s.Points...)
	return s
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Store holds the shared stroke history of a board and the per user redo stacks.
//
// Undo only ever touches the strokes of the requesting user, and redo re-appends at the end of the
// history rather than restoring the original position.
type Store struct {
	mu      sync.Mutex
	history []Stroke
	redo    map[string][]Stroke
	version uint64
}

func NewStore() *Store {
	return &Store{redo: make(map[string][]Stroke)}
}

// Append commits a stroke to the end of the history and clears the owner's redo stack.
func (s *Store) Append(stroke Stroke) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, stroke.clone())
	delete(s.redo, stroke.Owner)
	s.version++
	return s.version
}

// Undo moves the most recent stroke owned by user from the history onto the user's redo stack. It
// returns false when the user has no stroke in the history.
func (s *Store) Undo(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Owner != user {
			continue
		}
		removed := s.history[i]
		s.history = append(s.history[:i], s.history[i+1:]...)
		s.redo[user] = append(s.redo[user], removed)
		s.version++
		return true
	}
	return false
}

// Redo re-appends the stroke most recently undone by user to the end of the history. It returns false
// when the user's redo stack is empty.
func (s *Store) Redo(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.redo[user]
	if len(stack) == 0 {
		return false
	}
	restored := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(s.redo, user)
	} else {
		s.redo[user] = stack[:len(stack)-1]
	}
	s.history = append(s.history, restored)
	s.version++
	return true
}

// ForgetRedo drops the redo stack of user.
func (s *Store) ForgetRedo(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.redo, user)
}

// Snapshot returns a copy of the history in order. The result is never nil.
func (s *Store) Snapshot() []Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stroke, len(s.history))
	copy(out, s.history)
	return out
}

// SnapshotWithVersion returns the history together with the version it was taken at.
func (s *Store) SnapshotWithVersion() ([]Stroke, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stroke, len(s.history))
	copy(out, s.history)
	return out, s.version
}

func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func (s *Store) RedoDepth(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo[user])
}
