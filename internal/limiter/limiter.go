package limiter

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"media-cache/internal/metrics"
)

// DefaultCapacity is the default number of concurrent generation slots.
const DefaultCapacity = 4

// Limiter is a counting admission gate with FIFO fairness. Acquire grants a
// slot immediately when capacity is available, otherwise the caller blocks
// until a slot frees; releasing a slot admits exactly the longest-waiting
// caller.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
}

// New creates a limiter with the given capacity. Non-positive capacities
// fall back to DefaultCapacity.
func New(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Capacity returns the configured slot count.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// Acquire obtains a slot, blocking until one is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	metrics.LimiterInUse.Inc()
	return nil
}

// TryAcquire obtains a slot without blocking.
func (l *Limiter) TryAcquire() bool {
	ok := l.sem.TryAcquire(1)
	if ok {
		metrics.LimiterInUse.Inc()
	}
	return ok
}

// Release frees a slot, waking the longest-waiting Acquire if any.
func (l *Limiter) Release() {
	metrics.LimiterInUse.Dec()
	l.sem.Release(1)
}

// Do runs op while holding a slot. The slot is released even when op
// panics or returns an error.
func (l *Limiter) Do(ctx context.Context, op func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return op()
}
