package board

import (
	"errors"
	"sync"
)

var (
	// ErrDuplicateID is returned when adding an element whose id already exists.
	ErrDuplicateID = errors.New("element id already exists")
	// ErrNotFound is returned when updating an element that is not in the store.
	ErrNotFound = errors.New("element not found")
)

// Store holds the ordered element collection for one board.
// Insertion order is z-order for rendering. Pure in-memory, no I/O;
// callers are expected to admit elements through Validate first.
type Store struct {
	mu       sync.RWMutex
	elements []Element
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add appends an element. A second add with a colliding id fails with
// ErrDuplicateID and leaves the original untouched, which makes duplicate
// network delivery of element:add harmless.
func (s *Store) Add(e Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.elements {
		if s.elements[i].ID == e.ID {
			return ErrDuplicateID
		}
	}
	s.elements = append(s.elements, e.Clone())
	return nil
}

// Update replaces the element with a matching id, keeping its z-position.
func (s *Store) Update(e Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.elements {
		if s.elements[i].ID == e.ID {
			s.elements[i] = e.Clone()
			return nil
		}
	}
	return ErrNotFound
}

// Remove deletes the element with the given id. Removing an absent id is a
// no-op, not an error, so the eraser stays idempotent under duplicate delivery.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.elements {
		if s.elements[i].ID == id {
			s.elements = append(s.elements[:i], s.elements[i+1:]...)
			return
		}
	}
}

// ReplaceAll bulk-sets the collection. Used on initial load.
func (s *Store) ReplaceAll(elements []Element) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elements = CloneElements(elements)
}

// Get returns the element with the given id, if present.
func (s *Store) Get(id string) (Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.elements {
		if s.elements[i].ID == id {
			return s.elements[i].Clone(), true
		}
	}
	return Element{}, false
}

// Elements returns a deep-copied snapshot in z-order.
func (s *Store) Elements() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return CloneElements(s.elements)
}

// Len returns the current element count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.elements)
}
