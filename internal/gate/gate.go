// Package gate provides the shared admission control limiting concurrent
// outbound model and search API calls. A single Gate is created at pipeline
// construction and passed down the call tree rather than held as a hidden
// process-global, so tests and callers control its scope.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultLimit is the default number of concurrent outbound API calls.
const DefaultLimit = 5

// Gate is a counting admission gate over outbound API calls.
type Gate struct {
	sem   *semaphore.Weighted
	limit int
}

// New creates a gate admitting up to limit concurrent calls. A non-positive
// limit falls back to DefaultLimit.
func New(limit int) *Gate {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// Limit returns the configured concurrency limit.
func (g *Gate) Limit() int {
	return g.limit
}

// Do runs fn once a slot is available, releasing the slot when fn returns.
// It returns ctx.Err() if the context is cancelled while waiting.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn()
}
