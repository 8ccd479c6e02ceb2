package httputil

import (
	"context"
	"sync/atomic"
)

// Semaphore bounds concurrent deliveries. Callbacks are fire-and-forget;
// without a bound a slow receiver could pile up goroutines indefinitely.
type Semaphore struct {
	slots   chan struct{}
	dropped atomic.Int64
}

// NewSemaphore creates a semaphore with the given capacity. Non-positive
// capacities fall back to 100.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 100
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// TryAcquire takes a slot without blocking and reports whether it got one.
// A refusal is counted as a drop.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Acquire blocks for a slot until the context is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot. Safe to call even if nothing was acquired.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
	}
}

// Dropped returns how many acquisitions were refused at capacity.
func (s *Semaphore) Dropped() int64 {
	return s.dropped.Load()
}

// InUse returns the number of held slots.
func (s *Semaphore) InUse() int {
	return len(s.slots)
}

// SemaphoreStats is a snapshot for the metrics endpoint.
type SemaphoreStats struct {
	Capacity int   `json:"capacity"`
	InUse    int   `json:"in_use"`
	Dropped  int64 `json:"dropped"`
}

// Stats returns current usage.
func (s *Semaphore) Stats() SemaphoreStats {
	return SemaphoreStats{
		Capacity: cap(s.slots),
		InUse:    len(s.slots),
		Dropped:  s.dropped.Load(),
	}
}
