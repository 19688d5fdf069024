package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard-backend/internal/board"
	"collabboard-backend/internal/cache"
)

func TestDocFromCacheKeepsAllMetadata(t *testing.T) {
	creator := int64(7)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	doc := docFromCache(&cache.CachedBoard{
		RoomID:    "room-1",
		Name:      "Sprint plan",
		CreatorID: &creator,
		CreatedAt: created,
		UpdatedAt: updated,
		Elements:  []board.Element{{ID: "e1", Type: board.KindRectangle, Width: 10, Height: 10}},
	})

	// A cache hit must be indistinguishable from a database load; the
	// creator reference in particular must survive the round trip.
	require.NotNil(t, doc.CreatorID)
	assert.Equal(t, int64(7), *doc.CreatorID)
	assert.Equal(t, "room-1", doc.RoomID)
	assert.Equal(t, "Sprint plan", doc.Name)
	assert.Equal(t, created, doc.CreatedAt)
	assert.Equal(t, updated, doc.UpdatedAt)
	require.Len(t, doc.Elements, 1)
	assert.Equal(t, "e1", doc.Elements[0].ID)
}

func TestDocFromCacheGuestBoard(t *testing.T) {
	doc := docFromCache(&cache.CachedBoard{RoomID: "room-2", Name: "Scratch"})
	assert.Nil(t, doc.CreatorID)
}
