package service

import (
	"sync"
)

// stampedeTracker tracks concurrent cache misses per city to detect cache
// stampede. Detection only: the pipeline deliberately performs duplicate
// upstream fetches rather than coalescing them, so this feeds metrics and
// nothing else.
type stampedeTracker struct {
	mu           sync.Mutex     // protects activeMisses
	activeMisses map[string]int // city -> number of concurrent misses in progress
}

// newStampedeTracker returns a new stampedeTracker.
func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		activeMisses: make(map[string]int),
	}
}

// RecordMiss records a cache miss for city and returns the concurrent miss count after incrementing.
// Caller should defer RecordHit(city) when the miss is resolved (upstream fetch completed).
func (st *stampedeTracker) RecordMiss(city string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.activeMisses[city]++
	return st.activeMisses[city]
}

// RecordHit records completion of a miss for city (decrements concurrent count).
func (st *stampedeTracker) RecordHit(city string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if count, ok := st.activeMisses[city]; ok && count > 0 {
		st.activeMisses[city]--
		if st.activeMisses[city] == 0 {
			delete(st.activeMisses, city)
		}
	}
}
