package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceUpsertLatestWins(t *testing.T) {
	p := NewPresenceTracker()

	p.Upsert(PresenceRecord{UserID: "u1", Name: "Ann", Color: "#f00", X: 1, Y: 2})
	p.Upsert(PresenceRecord{UserID: "u1", Name: "Ann", Color: "#f00", X: 30, Y: 40})

	require.Equal(t, 1, p.Len())
	rec := p.Snapshot()["u1"]
	assert.Equal(t, 30.0, rec.X)
	assert.Equal(t, 40.0, rec.Y)
}

func TestPresenceIgnoresEmptyUserID(t *testing.T) {
	p := NewPresenceTracker()
	p.Upsert(PresenceRecord{Name: "nobody"})
	assert.Equal(t, 0, p.Len())
}

func TestPresenceRemove(t *testing.T) {
	p := NewPresenceTracker()
	p.Upsert(PresenceRecord{UserID: "u1"})
	p.Upsert(PresenceRecord{UserID: "u2"})

	p.Remove("u1")
	assert.Equal(t, 1, p.Len())

	// Absent removals are no-ops.
	p.Remove("u1")
	p.Remove("u3")
	assert.Equal(t, 1, p.Len())
}

func TestPresenceSnapshotIsACopy(t *testing.T) {
	p := NewPresenceTracker()
	p.Upsert(PresenceRecord{UserID: "u1", X: 5})

	snap := p.Snapshot()
	snap["u1"] = PresenceRecord{UserID: "u1", X: 999}
	snap["intruder"] = PresenceRecord{UserID: "intruder"}

	assert.Equal(t, 5.0, p.Snapshot()["u1"].X)
	assert.Equal(t, 1, p.Len())
}
