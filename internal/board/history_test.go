package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(elements []Element) []string {
	out := make([]string, len(elements))
	for i, e := range elements {
		out[i] = e.ID
	}
	return out
}

func TestHistoryUndoRedoRoundTrip(t *testing.T) {
	h := NewHistory(nil)

	h.Commit([]Element{lineElement("a")})
	h.Commit([]Element{lineElement("a"), rectElement("b")})

	assert.Equal(t, []string{"a"}, ids(h.Undo()))
	assert.Equal(t, []string{}, ids(h.Undo()))
	assert.Equal(t, []string{"a"}, ids(h.Redo()))
	assert.Equal(t, []string{"a", "b"}, ids(h.Redo()))
}

func TestHistoryBoundariesAreNoOps(t *testing.T) {
	h := NewHistory([]Element{lineElement("a")})

	// At the oldest snapshot undo returns it unchanged.
	assert.Equal(t, []string{"a"}, ids(h.Undo()))
	assert.False(t, h.CanUndo())

	// At the tip redo returns the tip unchanged.
	assert.Equal(t, []string{"a"}, ids(h.Redo()))
	assert.False(t, h.CanRedo())
}

func TestHistoryCommitTruncatesRedoBranch(t *testing.T) {
	h := NewHistory(nil)
	h.Commit([]Element{lineElement("a")})
	h.Commit([]Element{lineElement("a"), rectElement("b")})

	h.Undo()
	require.True(t, h.CanRedo())

	// A new mutation after undo discards the redo branch.
	h.Commit([]Element{lineElement("a"), rectElement("c")})
	assert.False(t, h.CanRedo())
	assert.Equal(t, []string{"a", "c"}, ids(h.Current()))
	assert.Equal(t, 3, h.Len())
}

func TestHistorySnapshotsAreIsolated(t *testing.T) {
	h := NewHistory(nil)
	snapshot := []Element{lineElement("a")}
	h.Commit(snapshot)

	// Mutating the committed slice must not rewrite history.
	snapshot[0].Points[0] = 999
	assert.Equal(t, 0.0, h.Current()[0].Points[0])

	// Nor may mutating a returned snapshot.
	h.Current()[0].Points[0] = 777
	assert.Equal(t, 0.0, h.Current()[0].Points[0])
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory(nil)
	h.Commit([]Element{lineElement("a")})
	h.Commit([]Element{lineElement("a"), rectElement("b")})

	h.Reset([]Element{rectElement("z")})

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 0, h.Step())
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
	assert.Equal(t, []string{"z"}, ids(h.Current()))
}
