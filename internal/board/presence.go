package board

import "sync"

// PresenceRecord is one connected user's live cursor state within a room.
type PresenceRecord struct {
	UserID string  `json:"userId"`
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// PresenceTracker maps connected user -> cursor state for one room.
// It has no effect on document state: a reset here never touches elements.
type PresenceTracker struct {
	mu    sync.RWMutex
	users map[string]PresenceRecord
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{users: make(map[string]PresenceRecord)}
}

// Upsert inserts or overwrites the record for its userId. Latest wins.
func (t *PresenceTracker) Upsert(rec PresenceRecord) {
	if rec.UserID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.users[rec.UserID] = rec
}

// Remove deletes a user's record. No-op if absent.
func (t *PresenceTracker) Remove(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.users, userID)
}

// Snapshot returns a copy of the full presence map, keyed by userId.
func (t *PresenceTracker) Snapshot() map[string]PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]PresenceRecord, len(t.users))
	for id, rec := range t.users {
		out[id] = rec
	}
	return out
}

// Len returns the number of tracked users.
func (t *PresenceTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.users)
}
