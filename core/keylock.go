package core

import "sync"

// keyLocks serializes writers per identifier without blocking other
// identifiers. Entries are reference counted and dropped when unused.
type keyLocks struct {
	mu    sync.Mutex
	locks map[ID]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[ID]*keyLock)}
}

// lock acquires the lock for id and returns its release function.
func (k *keyLocks) lock(id ID) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
