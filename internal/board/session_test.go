package board

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSeedsThroughGate(t *testing.T) {
	s := NewSession("room-1", []Element{
		lineElement("a"),
		{ID: "junk", Type: "scribble"},
		lineElement("a"), // duplicate id in storage
	})

	assert.Equal(t, []string{"a"}, ids(s.Elements()))
	assert.False(t, s.Dirty(), "loading is not a mutation")
	assert.False(t, s.CanUndo(), "the seed is the history floor")
}

func TestSessionAddReturnsCanonicalElement(t *testing.T) {
	s := NewSession("room-1", nil)

	e, err := s.AddElement(Element{Type: KindRectangle, X: 10, Y: 10, Width: -4, Height: 6})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 6.0, e.X, "origin flipped for the negative width")
	assert.Equal(t, 4.0, e.Width)
	assert.True(t, s.Dirty())
}

func TestSessionAddDuplicateID(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.AddElement(lineElement("a"))
	require.NoError(t, err)

	_, err = s.AddElement(rectElement("a"))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Len(t, s.Elements(), 1)
}

func TestSessionRejectedAddLeavesNoTrace(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.AddElement(lineElement("a"))
	require.NoError(t, err)

	_, err = s.AddElement(Element{ID: "bad", Type: KindLine, Points: []float64{1, 2}})
	require.Error(t, err)

	assert.Len(t, s.Elements(), 1)
	assert.False(t, s.CanRedo())
	// History gained nothing: one undo reaches the empty seed.
	s.Undo()
	assert.Empty(t, s.Elements())
}

func TestSessionUpdateLastDeliveredWins(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.AddElement(rectElement("a"))
	require.NoError(t, err)

	first := rectElement("a")
	first.X = 100
	second := rectElement("a")
	second.X = 200

	_, err = s.UpdateElement(first)
	require.NoError(t, err)
	_, err = s.UpdateElement(second)
	require.NoError(t, err)

	elements := s.Elements()
	require.Len(t, elements, 1)
	assert.Equal(t, 200.0, elements[0].X)
}

func TestSessionUpdateUnknownID(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.UpdateElement(rectElement("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRemoveIdempotent(t *testing.T) {
	s := NewSession("room-1", []Element{lineElement("a")})

	s.RemoveElement("a")
	assert.Empty(t, s.Elements())
	assert.True(t, s.CanUndo())

	// Re-delivered remove pushes no second history entry.
	s.RemoveElement("a")
	s.Undo()
	assert.Equal(t, []string{"a"}, ids(s.Elements()))
	assert.False(t, s.CanUndo())
}

func TestSessionUndoRedoRestoresStore(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.AddElement(lineElement("a"))
	require.NoError(t, err)
	_, err = s.AddElement(rectElement("b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, ids(s.Undo()))
	assert.Equal(t, []string{"a"}, ids(s.Elements()), "store follows history")

	assert.Equal(t, []string{"a", "b"}, ids(s.Redo()))
	assert.Equal(t, []string{"a", "b"}, ids(s.Elements()))
}

func TestSessionMutationAfterUndoDropsRedo(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.AddElement(lineElement("a"))
	require.NoError(t, err)
	_, err = s.AddElement(rectElement("b"))
	require.NoError(t, err)

	s.Undo()
	require.True(t, s.CanRedo())

	_, err = s.AddElement(rectElement("c"))
	require.NoError(t, err)
	assert.False(t, s.CanRedo())
	assert.Equal(t, []string{"a", "c"}, ids(s.Elements()))
}

func TestSessionReplaceAllResetsHistory(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.AddElement(lineElement("a"))
	require.NoError(t, err)

	elements := s.ReplaceAll([]Element{rectElement("x"), {ID: "junk", Type: "nope"}})
	assert.Equal(t, []string{"x"}, ids(elements))
	assert.Equal(t, []string{"x"}, ids(s.Elements()))
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())
	assert.True(t, s.Dirty())
}

func TestSessionConvergenceRegardlessOfOrder(t *testing.T) {
	// Two sessions receiving the same operations in different interleavings
	// settle on the same collection.
	opsA := func(s *Session) {
		s.AddElement(lineElement("l1"))
		s.AddElement(rectElement("r1"))
		s.RemoveElement("l1")
	}
	opsB := func(s *Session) {
		s.AddElement(rectElement("r1"))
		s.RemoveElement("l1") // remove arrives before the add it erases
		s.AddElement(lineElement("l1"))
		s.RemoveElement("l1")
	}

	s1 := NewSession("room-1", nil)
	s2 := NewSession("room-2", nil)
	opsA(s1)
	opsB(s2)

	assert.Equal(t, ids(s1.Elements()), ids(s2.Elements()))
}

func TestSessionBeginSaveSkipsWhenClean(t *testing.T) {
	s := NewSession("room-1", []Element{lineElement("a")})

	_, ok := s.BeginSave()
	assert.False(t, ok, "nothing changed since load")
}

func TestSessionBeginSaveClaimsSingleFlight(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.AddElement(lineElement("a"))
	require.NoError(t, err)

	snapshot, ok := s.BeginSave()
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, ids(snapshot))

	// A tick landing while the save is in flight is skipped, not queued.
	_, ok = s.BeginSave()
	assert.False(t, ok)

	// Changes made during the save keep the next sweep armed.
	_, err = s.AddElement(rectElement("b"))
	require.NoError(t, err)
	s.EndSave(nil)

	snapshot, ok = s.BeginSave()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids(snapshot))
	s.EndSave(nil)

	_, ok = s.BeginSave()
	assert.False(t, ok, "everything persisted")
}

func TestSessionFlushWaitsOutInFlightSave(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.AddElement(lineElement("a"))
	require.NoError(t, err)

	// An autosave claims the slot with the current snapshot...
	_, ok := s.BeginSave()
	require.True(t, ok)

	// ...then the user undoes; nothing persists this new state incrementally.
	s.Undo()
	require.True(t, s.Dirty())

	saveDone := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.EndSave(nil)
		close(saveDone)
	}()

	// Teardown flush must not skip: it waits for the in-flight save and then
	// captures the undone state.
	snapshot, ok := s.BeginFlush()
	require.True(t, ok)
	<-saveDone
	assert.Empty(t, snapshot)
	s.EndSave(nil)

	_, ok = s.BeginFlush()
	assert.False(t, ok, "everything persisted, nothing left to flush")
}

func TestSessionFlushSkipsWhenClean(t *testing.T) {
	s := NewSession("room-1", []Element{lineElement("a")})
	_, ok := s.BeginFlush()
	assert.False(t, ok)
}

func TestSessionFailedSaveRearmsDirty(t *testing.T) {
	s := NewSession("room-1", nil)
	_, err := s.AddElement(lineElement("a"))
	require.NoError(t, err)

	_, ok := s.BeginSave()
	require.True(t, ok)
	s.EndSave(errors.New("db down"))

	assert.True(t, s.Dirty())
	snapshot, ok := s.BeginSave()
	require.True(t, ok, "next sweep retries with current state")
	assert.Equal(t, []string{"a"}, ids(snapshot))
}
