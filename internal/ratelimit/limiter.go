// Package ratelimit implements the per-caller fixed-window counter used by
// the control and assist endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// Default housekeeping bounds.
const (
	// purgeThreshold is the map size above which stale entries are purged.
	purgeThreshold = 1000
	// staleFactor is how many windows old an entry must be to be purged.
	staleFactor = 2
)

type window struct {
	count int
	start time.Time
}

// Limiter is a fixed-window counter keyed by caller identity (IP). The
// window resets on expiry rather than sliding, so a caller can burst up to
// twice the nominal limit across a window boundary; that matches the
// documented contract and is deliberately not "fixed".
//
// Requests arrive on real OS threads here, so the map is mutex guarded.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]window

	max    int
	window time.Duration
	now    func() time.Time
}

// New creates a limiter allowing max requests per window length.
func New(max int, length time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string]window),
		max:     max,
		window:  length,
		now:     time.Now,
	}
}

// SetClock overrides the limiter's clock. Test hook.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow records one request for key and reports whether it is within the
// limit. The first request of a fresh or expired window always counts 1.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.entries[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.entries[key] = window{count: 1, start: now}
		l.purgeLocked(now)
		return true
	}

	w.count++
	l.entries[key] = w
	return w.count <= l.max
}

// purgeLocked drops entries more than staleFactor windows old once the map
// grows past purgeThreshold. Caller holds the lock.
func (l *Limiter) purgeLocked(now time.Time) {
	if len(l.entries) <= purgeThreshold {
		return
	}
	cutoff := time.Duration(staleFactor) * l.window
	for key, w := range l.entries {
		if now.Sub(w.start) > cutoff {
			delete(l.entries, key)
		}
	}
}
