package cache

import "sync"

// stampedeTracker counts concurrent misses per key. It only feeds metrics;
// concurrent misses still each call fetch.
type stampedeTracker struct {
	mu           sync.Mutex
	activeMisses map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{activeMisses: make(map[string]int)}
}

// RecordMiss increments the in-progress miss count for key and returns it.
// Callers must RecordDone(key) when the fetch finishes.
func (st *stampedeTracker) RecordMiss(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.activeMisses[key]++
	return st.activeMisses[key]
}

// RecordDone decrements the in-progress miss count for key.
func (st *stampedeTracker) RecordDone(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if n, ok := st.activeMisses[key]; ok {
		if n <= 1 {
			delete(st.activeMisses, key)
			return
		}
		st.activeMisses[key] = n - 1
	}
}
