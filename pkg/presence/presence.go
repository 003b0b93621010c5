package presence

import (
	"sort"
	"sync"
	"time"
)

// Cursor is the last reported pointer position of a user.
type Cursor struct {
	UserID    string    `json:"userId"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Color     string    `json:"color"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tracker keeps the last known cursor of every connected user. Nothing here outlives the process.
type Tracker struct {
	mu      sync.RWMutex
	cursors map[string]Cursor
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{cursors: make(map[string]Cursor), now: time.Now}
}

func (t *Tracker) Upsert(userID string, x, y float64, color string) Cursor {
	c := Cursor{UserID: userID, X: x, Y: y, Color: color, UpdatedAt: t.now()}
	t.mu.Lock()
	t.cursors[userID] = c
	t.mu.Unlock()
	return c
}

func (t *Tracker) Remove(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.cursors[userID]; !ok {
		return false
	}
	delete(t.cursors, userID)
	return true
}

func (t *Tracker) Get(userID string) (Cursor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.cursors[userID]
	return c, ok
}

// List returns all cursors ordered by user id.
func (t *Tracker) List() []Cursor {
	t.mu.RLock()
	out := make([]Cursor, 0, len(t.cursors))
	for _, c := range t.cursors {
		out = append(out, c)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cursors)
}
