package ratelimit

import (
	"context"
	"sync"
	"time"
)

// entry tracks request counts for a single client within a time window.
type entry struct {
	count       int
	windowStart time.Time
}

// FixedWindow is the in-process fixed-window limiter: a mutex-guarded map
// of client id to {count, windowStart}. Entries persist for the process
// lifetime; a background sweep prunes long-idle clients as hygiene, not
// as a correctness requirement.
type FixedWindow struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewFixedWindow creates a fixed-window limiter allowing limit requests per
// window per client. It starts a background goroutine that prunes entries
// idle for more than two windows.
func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	fw := &FixedWindow{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}

	go func() {
		for {
			time.Sleep(time.Minute)
			fw.mu.Lock()
			now := fw.now()
			for id, e := range fw.entries {
				if now.Sub(e.windowStart) > window*2 {
					delete(fw.entries, id)
				}
			}
			fw.mu.Unlock()
		}
	}()

	return fw
}

// Allow applies the fixed-window rule: first request from a client (or
// first after the window elapsed) resets the counter and is allowed;
// within the window, requests are allowed while the count is below the
// limit. A request at the limit is rejected without incrementing.
func (fw *FixedWindow) Allow(_ context.Context, clientID string) (bool, error) {
	now := fw.now()

	fw.mu.Lock()
	defer fw.mu.Unlock()

	e, exists := fw.entries[clientID]
	if !exists || now.Sub(e.windowStart) > fw.window {
		fw.entries[clientID] = &entry{count: 1, windowStart: now}
		return true, nil
	}

	if e.count >= fw.limit {
		return false, nil
	}
	e.count++
	return true, nil
}
