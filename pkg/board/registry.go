package board

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

const DefaultBoardID = "default"

var boardIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID checks that id is usable as a board name in urls and archive rows.
func ValidateID(id string) error {
	if !boardIDPattern.MatchString(id) {
		return fmt.Errorf("invalid board id %q", id)
	}
	return nil
}

// Registry lazily creates boards and runs each one until the registry context is cancelled.
type Registry struct {
	ctx  context.Context
	opts Options

	mu     sync.Mutex
	boards map[string]*Board
	wg     sync.WaitGroup
}

func NewRegistry(ctx context.Context, opts Options) *Registry {
	if opts.Palette == nil {
		opts.Palette = NewPalette(nil)
	}
	return &Registry{ctx: ctx, opts: opts, boards: make(map[string]*Board)}
}

// Get returns the board with the given id, starting it if needed.
func (r *Registry) Get(id string) (*Board, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.boards[id]; ok {
		return b, nil
	}
	if err := r.ctx.Err(); err != nil {
		return nil, ErrClosed
	}
	b := New(id, r.opts)
	r.boards[id] = b
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		b.Run(r.ctx)
	}()
	return b, nil
}

func (r *Registry) Lookup(id string) (*Board, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boards[id]
	return b, ok
}

// Range calls fn for every board in id order until fn returns false.
func (r *Registry) Range(fn func(*Board) bool) {
	r.mu.Lock()
	boards := make([]*Board, 0, len(r.boards))
	for _, b := range r.boards {
		boards = append(boards, b)
	}
	r.mu.Unlock()
	sort.Slice(boards, func(i, j int) bool {
		return boards[i].id < boards[j].id
	})
	for _, b := range boards {
		if !fn(b) {
			return
		}
	}
}

// Wait blocks until every board goroutine has stopped.
func (r *Registry) Wait() {
	r.wg.Wait()
}
