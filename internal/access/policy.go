// Package access decides which Telegram users may run lookups.
package access

import "sync"

// Policy is an optional allow-list. A Policy built from nil IDs lets
// everyone through; a Policy built from a non-nil list, even an empty one,
// admits only its members.
type Policy struct {
	mu         sync.RWMutex
	restricted bool
	ids        map[int64]struct{}
}

// NewPolicy builds a Policy from configured ids.
func NewPolicy(ids []int64) *Policy {
	p := &Policy{ids: make(map[int64]struct{}, len(ids))}
	if ids != nil {
		p.restricted = true
	}
	for _, id := range ids {
		p.ids[id] = struct{}{}
	}
	return p
}

// IsAuthorized reports whether userID may use the bot.
func (p *Policy) IsAuthorized(userID int64) bool {
	if p == nil {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.restricted {
		return true
	}
	_, ok := p.ids[userID]
	return ok
}

// Restricted reports whether an allow-list is in force.
func (p *Policy) Restricted() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.restricted
}

// Merge adds ids to the allow-list and makes the policy restricted.
func (p *Policy) Merge(ids []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restricted = true
	for _, id := range ids {
		p.ids[id] = struct{}{}
	}
}

// Len returns the number of allowed ids.
func (p *Policy) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ids)
}
