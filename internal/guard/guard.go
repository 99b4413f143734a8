// Package guard implements the in-memory idempotency window for webhook
// updates. The window is a best-effort fast path: the unique index on the
// interaction ledger remains the durable duplicate backstop across restarts.
package guard

import (
	"sync"
	"time"
)

// Window remembers recently seen update IDs for a bounded time and size.
type Window struct {
	mu      sync.Mutex
	seen    map[int64]time.Time
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// NewWindow builds a Window holding IDs for ttl, capped at maxSize entries.
func NewWindow(ttl time.Duration, maxSize int) *Window {
	return &Window{
		seen:    make(map[int64]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Seen records updateID and reports whether it was already inside the
// window. The first sighting returns false; repeats within the TTL return
// true. The sighting time is not refreshed by repeats, so an ID ages out
// relative to its first arrival.
func (w *Window) Seen(updateID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if at, ok := w.seen[updateID]; ok {
		if now.Sub(at) < w.ttl {
			return true
		}
		// Expired entry: treat as new and restart its window.
	}

	if len(w.seen) >= w.maxSize {
		w.evict(now)
	}
	w.seen[updateID] = now
	return false
}

// evict drops expired entries; if the map is still full it sheds the oldest
// entries until a quarter of the capacity is free. Called with mu held.
func (w *Window) evict(now time.Time) {
	for id, at := range w.seen {
		if now.Sub(at) >= w.ttl {
			delete(w.seen, id)
		}
	}
	target := w.maxSize - w.maxSize/4
	for len(w.seen) > target {
		var (
			oldestID int64
			oldestAt time.Time
			found    bool
		)
		for id, at := range w.seen {
			if !found || at.Before(oldestAt) {
				oldestID, oldestAt, found = id, at, true
			}
		}
		delete(w.seen, oldestID)
	}
}

// Len reports the current number of tracked IDs.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
