// Package workgroup runs a resizable set of goroutines that all execute the
// same function in a loop until stopped. The daemon uses a group of one to
// drive the timer wheel's tick.
package workgroup

import (
	"context"
	"sync"
)

// Group is a resizable set of looping goroutines.
type Group struct {
	fn      func()
	mu      sync.Mutex
	cancels []context.CancelFunc
	done    []context.Context
}

// New starts size goroutines, each calling fn repeatedly.
func New(size int, fn func()) *Group {
	g := &Group{fn: fn}
	g.Resize(size)
	return g
}

func (g *Group) loop(ctx context.Context, finished context.CancelFunc) {
	defer finished()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			g.fn()
		}
	}
}

// Resize grows or shrinks the group to n goroutines, waiting for any stopped
// goroutine to finish its current iteration.
func (g *Group) Resize(n int) int {
	if n < 0 {
		n = 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	size := len(g.cancels)
	for i := size; i < n; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		doneCtx, finished := context.WithCancel(context.Background())
		g.cancels = append(g.cancels, cancel)
		g.done = append(g.done, doneCtx)
		go g.loop(ctx, finished)
	}
	for i := n; i < size; i++ {
		g.cancels[i]()
		<-g.done[i].Done()
	}
	if n < size {
		g.cancels = g.cancels[:n]
		g.done = g.done[:n]
	}
	return size
}

// Close stops every goroutine and waits for them to exit.
func (g *Group) Close() {
	g.Resize(0)
}
