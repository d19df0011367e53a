package state

import "time"

// State identifies a finite-state-machine step used in conversations.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = "idle"

// Key identifies one conversation: the same user in two chats has two sessions.
type Key struct {
	ChatID int64
	UserID int64
}

// Session stores where a conversation is and when it goes stale.
type Session struct {
	State     State
	StartedAt time.Time
	Deadline  time.Time
}

// Expired reports whether the idle deadline has passed at now.
// A zero deadline never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.Deadline.IsZero() && !now.Before(s.Deadline)
}

// Manager stores sessions. Implementations must be safe for concurrent use.
type Manager interface {
	// Get returns a copy of the session; missing keys report StateIdle and false.
	Get(key Key) (Session, bool)
	Put(key Key, sess Session)
	Delete(key Key)
	// Sweep removes sessions expired at now and returns their keys. Keys for
	// which skip reports true are left in place; skip may be nil.
	Sweep(now time.Time, skip func(Key) bool) []Key
	Len() int
}
