// Package gate implements the cooperative pause used by the probers: a closed
// gate holds back probes that have not started yet, probes already in flight
// are left alone.
package gate

import (
	"context"
	"sync"
)

// Waiter blocks until probing may continue.
type Waiter interface {
	Wait(ctx context.Context) error
}

type Gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func New() *Gate {
	return &Gate{}
}

// Set pauses or resumes the gate and returns the new state.
func (g *Gate) Set(paused bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if paused == g.paused {
		return g.paused
	}
	if paused {
		g.resume = make(chan struct{})
	} else {
		close(g.resume)
		g.resume = nil
	}
	g.paused = paused
	return g.paused
}

func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait returns immediately when the gate is open. Otherwise it blocks until
// the gate is reopened or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.resume
	g.mu.Unlock()

	if ch == nil {
		return ctx.Err()
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait is a nil-safe helper for optional gates.
func Wait(ctx context.Context, w Waiter) error {
	if w == nil {
		return ctx.Err()
	}
	return w.Wait(ctx)
}
