package billing

import "sync"

// =============================================================================
// KEYED MUTEX - Single writer per entity
// =============================================================================

// keyedMutex serializes writers per string key. The engine assumes at
// most one in-flight allocation per utility entry and one billing-period
// mutation per (property, month, year); in a multi-goroutine server that
// assumption has to be enforced, not hoped for.
//
// Locks are never removed from the map. The key space (utility entries,
// property-months under active mutation) is small and bounded in
// practice.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (km *keyedMutex) Lock(key string) func() {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = &sync.Mutex{}
		km.locks[key] = l
	}
	km.mu.Unlock()

	l.Lock()
	return l.Unlock
}
