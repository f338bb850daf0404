package core

// limiter.go bounds concurrent ingestions with a semaphore. Each upload
// holds one slot for its whole pipeline (parse, provision, load). When
// all slots are taken a new request waits up to maxWait, then fails with
// ErrTooManyUploads. WaitForDrain supports graceful shutdown.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyUploads is returned when no ingest slot frees up within the
// wait window. Clients should retry after a short delay.
var ErrTooManyUploads = errors.New("too many concurrent uploads, please try again later")

const (
	// DefaultMaxConcurrentUploads bounds parallel ingestions.
	DefaultMaxConcurrentUploads = 5

	// DefaultMaxWaitTime is how long a request waits for a slot.
	DefaultMaxWaitTime = 30 * time.Second
)

// IngestLimiter restricts how many uploads run at once. One limiter is
// shared by all tenants.
type IngestLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewIngestLimiter creates a limiter allowing maxConcurrent simultaneous
// ingestions. Non-positive arguments fall back to the defaults.
func NewIngestLimiter(maxConcurrent int, maxWait time.Duration) *IngestLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentUploads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &IngestLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, the wait window expires, or ctx is
// cancelled. The caller must Release exactly once per successful Acquire.
func (l *IngestLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyUploads
	}
}

// Release frees a slot taken by Acquire.
func (l *IngestLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.slots
}

// ActiveCount returns the number of ingestions currently holding a slot.
func (l *IngestLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *IngestLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until every active ingestion completes or ctx is
// cancelled. Used during shutdown so in-flight uploads finish.
func (l *IngestLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}
