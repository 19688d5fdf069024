package board

import (
	"sync"
	"time"
)

// Session owns the live in-memory state of one open board: the element store,
// its history log, the presence map, and the autosave bookkeeping. Sessions
// are constructed per room and injected where needed — there is no process-wide
// shared state, so multiple boards (and tests) run fully isolated.
//
// Every mutation goes through the validation gate before touching the store,
// regardless of whether it originated locally, from a peer, or from storage.
type Session struct {
	RoomID string

	store    *Store
	history  *History
	presence *PresenceTracker

	mu       sync.Mutex
	cond     *sync.Cond // signaled when an in-flight save finishes
	dirty    bool
	saving   bool
	openedAt time.Time
}

// NewSession creates a session seeded with the given raw elements. The seed is
// run through the gate (rows from storage are not trusted either) and becomes
// the single initial history entry.
func NewSession(roomID string, raws []Element) *Session {
	elements := ValidateAll(raws)

	s := &Session{
		RoomID:   roomID,
		store:    NewStore(),
		history:  NewHistory(elements),
		presence: NewPresenceTracker(),
		openedAt: time.Now(),
	}
	s.cond = sync.NewCond(&s.mu)
	s.store.ReplaceAll(elements)
	return s
}

// AddElement admits a raw element through the gate and appends it.
// Returns the canonical element for broadcast/persistence. Rejected payloads
// and duplicate ids fail without partial admission.
func (s *Session) AddElement(raw Element) (Element, error) {
	e, err := Validate(raw)
	if err != nil {
		return Element{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Add(e); err != nil {
		return Element{}, err
	}
	s.history.Commit(s.store.Elements())
	s.dirty = true
	return e, nil
}

// UpdateElement admits a raw element and replaces the stored one with the same
// id. Last delivered update wins. ErrNotFound if the id is absent.
func (s *Session) UpdateElement(raw Element) (Element, error) {
	e, err := Validate(raw)
	if err != nil {
		return Element{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Update(e); err != nil {
		return Element{}, err
	}
	s.history.Commit(s.store.Elements())
	s.dirty = true
	return e, nil
}

// RemoveElement deletes by id. Idempotent: removing an absent id changes
// nothing and pushes no history entry.
func (s *Session) RemoveElement(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Get(id); !ok {
		return
	}
	s.store.Remove(id)
	s.history.Commit(s.store.Elements())
	s.dirty = true
}

// ReplaceAll bulk-sets the collection (full save from a client) and resets
// history to a single entry. Returns the admitted canonical elements.
func (s *Session) ReplaceAll(raws []Element) []Element {
	elements := ValidateAll(raws)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.ReplaceAll(elements)
	s.history.Reset(elements)
	s.dirty = true
	return CloneElements(elements)
}

// Undo steps the board back one committed mutation. Local-only: the caller
// must not broadcast the result to peers. No-op at the oldest snapshot.
func (s *Session) Undo() []Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.history.CanUndo() {
		return s.store.Elements()
	}
	elements := s.history.Undo()
	s.store.ReplaceAll(elements)
	s.dirty = true
	return elements
}

// Redo steps forward after an undo. No-op at the tip.
func (s *Session) Redo() []Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.history.CanRedo() {
		return s.store.Elements()
	}
	elements := s.history.Redo()
	s.store.ReplaceAll(elements)
	s.dirty = true
	return elements
}

// CanUndo reports whether an undo would change state.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether a redo would change state.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// Elements returns a deep-copied snapshot of the current collection.
func (s *Session) Elements() []Element {
	return s.store.Elements()
}

// Presence returns the room's presence tracker.
func (s *Session) Presence() *PresenceTracker {
	return s.presence
}

// Dirty reports whether there are unsaved changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// BeginSave claims the autosave slot. It returns the snapshot to persist and
// true when there are unsaved changes and no save is already in flight;
// otherwise false, and the caller must skip this sweep (saves are bounded to
// one in flight per board — skipped, never queued).
func (s *Session) BeginSave() ([]Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty || s.saving {
		return nil, false
	}
	s.saving = true
	s.dirty = false
	return s.store.Elements(), true
}

// BeginFlush is the teardown counterpart of BeginSave: instead of skipping
// when a save is in flight, it blocks until that save finishes and then
// re-checks dirty. Edits made after the in-flight snapshot was taken (undo
// included, which has no incremental write backing it) are therefore still
// captured before the session is discarded.
func (s *Session) BeginFlush() ([]Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.saving {
		s.cond.Wait()
	}
	if !s.dirty {
		return nil, false
	}
	s.saving = true
	s.dirty = false
	return s.store.Elements(), true
}

// EndSave releases the autosave slot. A failed save re-marks the session dirty
// so the next sweep retries with the then-current full state — self-healing,
// no per-op retry bookkeeping.
func (s *Session) EndSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saving = false
	if err != nil {
		s.dirty = true
	}
	s.cond.Broadcast()
}

// OpenedAt returns when this session was created.
func (s *Session) OpenedAt() time.Time {
	return s.openedAt
}
