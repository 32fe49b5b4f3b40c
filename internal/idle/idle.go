package idle

import (
	"sync"
	"time"
)

var defaultTracker Tracker

// RecordRequest counts a weather lookup toward idle detection. Call from
// handlers for user-driven traffic only; health probes and cache warming
// should not keep the service looking busy.
func RecordRequest() {
	defaultTracker.RecordRequest()
}

// RequestCount returns the number of lookups within the window ending now.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// Reset clears all recorded lookups. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker keeps a sliding window of lookup timestamps.
type Tracker struct {
	mu     sync.Mutex
	stamps []time.Time
}

// RecordRequest records a lookup at the current time.
func (t *Tracker) RecordRequest() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.stamps = append(t.stamps, now)
	t.dropExpiredLocked(now)
}

// RequestCount returns the number of lookups within the window ending now.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.dropExpiredLocked(now)
	cutoff := now.Add(-window)
	n := 0
	for _, ts := range t.stamps {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// Reset clears all recorded lookups.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stamps = nil
}

// dropExpiredLocked discards timestamps older than any window the health
// handler asks about. 30 minutes comfortably exceeds the configured idle window.
func (t *Tracker) dropExpiredLocked(now time.Time) {
	cutoff := now.Add(-30 * time.Minute)
	i := 0
	for i < len(t.stamps) && t.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		t.stamps = append(t.stamps[:0], t.stamps[i:]...)
	}
}
