// Package limiter provides the two admission controls used before every
// outbound language-service call: a concurrency gate and a rate gate.
package limiter

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of in-flight operations.
type Gate struct {
	sem  *semaphore.Weighted
	size int
}

// NewGate allows up to n concurrent holders; n < 1 is treated as 1.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Size is the configured number of slots.
func (g *Gate) Size() int { return g.size }

// Acquire blocks until a slot is free or ctx is done. The returned release
// func is safe to call more than once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return g.releaser(), nil
}

// TryAcquire reserves a slot without blocking.
func (g *Gate) TryAcquire() (func(), bool) {
	if !g.sem.TryAcquire(1) {
		return func() {}, false
	}
	return g.releaser(), true
}

func (g *Gate) releaser() func() {
	var once sync.Once
	return func() { once.Do(func() { g.sem.Release(1) }) }
}
