package state

import (
	"sync"
	"time"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[Key]Session
}

// NewMemoryManager constructs an in-memory Manager.
func NewMemoryManager() Manager {
	return &memoryManager{sessions: make(map[Key]Session)}
}

func (m *memoryManager) Get(key Key) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sess, ok := m.sessions[key]; ok {
		return sess, true
	}
	return Session{State: StateIdle}, false
}

// Put stores sess; storing an idle session removes the key instead.
func (m *memoryManager) Put(key Key, sess Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess.State == StateIdle || sess.State == "" {
		delete(m.sessions, key)
		return
	}
	m.sessions[key] = sess
}

func (m *memoryManager) Delete(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

func (m *memoryManager) Sweep(now time.Time, skip func(Key) bool) []Key {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []Key
	for key, sess := range m.sessions {
		if sess.Expired(now) && (skip == nil || !skip(key)) {
			delete(m.sessions, key)
			expired = append(expired, key)
		}
	}
	return expired
}

func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
