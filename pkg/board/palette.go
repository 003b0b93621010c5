package board

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Palette hands out display colors to joining users. With a fixed list it cycles through it,
// otherwise it picks a random #rrggbb.
type Palette struct {
	mu     sync.Mutex
	colors []string
	next   int
	rnd    *rand.Rand
}

func NewPalette(colors []string) *Palette {
	return &Palette{
		colors: append([]string(nil), colors...),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Palette) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.colors) > 0 {
		c := p.colors[p.next%len(p.colors)]
		p.next++
		return c
	}
	return fmt.Sprintf("#%06x", p.rnd.Intn(0x1000000))
}
