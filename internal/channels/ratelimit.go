package channels

import (
	"sync"
	"time"
)

// maxTrackedSenders caps the number of tracked senders so a flood of distinct
// IDs cannot grow the table without bound.
const maxTrackedSenders = 4096

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

// SenderRateLimiter allows at most maxHits events per sender within a fixed
// window. Safe for concurrent use. A nil limiter allows everything.
type SenderRateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	maxHits int
	entries map[string]*rateLimitEntry
	now     func() time.Time
}

// NewSenderRateLimiter creates a bounded per-sender limiter.
// maxHits <= 0 returns nil (unlimited).
func NewSenderRateLimiter(maxHits int, window time.Duration) *SenderRateLimiter {
	if maxHits <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SenderRateLimiter{
		window:  window,
		maxHits: maxHits,
		entries: make(map[string]*rateLimitEntry),
		now:     time.Now,
	}
}

// Allow returns true if the sender is within limits and records the hit.
func (r *SenderRateLimiter) Allow(sender string) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if len(r.entries) >= maxTrackedSenders {
		for k, e := range r.entries {
			if now.Sub(e.windowStart) >= r.window {
				delete(r.entries, k)
			}
		}
		// Still full: drop an arbitrary entry.
		for len(r.entries) >= maxTrackedSenders {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[sender]
	if !ok || now.Sub(e.windowStart) >= r.window {
		r.entries[sender] = &rateLimitEntry{windowStart: now, count: 1}
		return true
	}

	e.count++
	return e.count <= r.maxHits
}
