package state

import "sync"

// KeyedMutex serializes work per Key. Every key in use owns a mutex of its
// own, so distinct keys never wait on each other. The entry is dropped once
// its last holder or waiter releases it.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[Key]*keyLock)}
}

// Lock acquires the mutex of key and returns its unlock function, which must
// be called exactly once.
func (k *KeyedMutex) Lock(key Key) func() {
	k.mu.Lock()
	l := k.locks[key]
	if l == nil {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Busy reports whether key is held or awaited.
func (k *KeyedMutex) Busy(key Key) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.locks[key]
	return ok
}

// Len is the number of keys held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
