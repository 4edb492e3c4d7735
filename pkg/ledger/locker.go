package ledger

import "sync"

// keyLocker serializes operations per string key. Repoints of the same
// (chronicle, label) queue behind each other while unrelated labels
// proceed concurrently. Entries are dropped once no holder or waiter
// remains, so the map does not grow with the label population.
type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the key's mutex and returns its release func.
func (l *keyLocker) lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*lockEntry{}
	}
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
