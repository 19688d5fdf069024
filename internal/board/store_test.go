package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAddRejectsDuplicateID(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(lineElement("a")))

	err := s.Add(rectElement("a"))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, s.Len())

	// The original element survives the collision untouched.
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, KindLine, got.Type)
}

func TestStoreUpdateKeepsZOrder(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(lineElement("a")))
	require.NoError(t, s.Add(rectElement("b")))
	require.NoError(t, s.Add(lineElement("c")))

	updated := rectElement("b")
	updated.Width = 42
	require.NoError(t, s.Update(updated))

	elements := s.Elements()
	require.Len(t, elements, 3)
	assert.Equal(t, "b", elements[1].ID)
	assert.Equal(t, 42.0, elements[1].Width)
}

func TestStoreUpdateUnknownID(t *testing.T) {
	s := NewStore()
	err := s.Update(lineElement("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(lineElement("a")))
	require.NoError(t, s.Add(rectElement("b")))

	s.Remove("a")
	assert.Equal(t, 1, s.Len())

	// Duplicate delivery of the same remove changes nothing.
	s.Remove("a")
	s.Remove("never-existed")
	assert.Equal(t, 1, s.Len())
}

func TestStoreElementsReturnsIsolatedSnapshot(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(lineElement("a")))

	snapshot := s.Elements()
	snapshot[0].Points[0] = 999
	snapshot[0].Color = "#123456"

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 0.0, got.Points[0])
	assert.Equal(t, "#ff0000", got.Color)
}

func TestStoreReplaceAll(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(lineElement("old")))

	s.ReplaceAll([]Element{rectElement("x"), rectElement("y")})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("old")
	assert.False(t, ok)
}
