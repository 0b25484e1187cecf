package engine

import (
	"context"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"golang.org/x/sync/semaphore"
)

// Guard admits one engine operation at a time.
type Guard struct {
	sem *semaphore.Weighted
}

// NewGuard creates an idle guard.
func NewGuard() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

// Do runs fn if nothing else holds the guard, and fails with
// common.ErrCycleInFlight otherwise.
func (g *Guard) Do(fn func() error) error {
	if !g.sem.TryAcquire(1) {
		return common.ErrCycleInFlight
	}
	defer g.sem.Release(1)
	return fn()
}

// Wait runs fn once the guard is free, or returns the context error.
func (g *Guard) Wait(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn()
}
