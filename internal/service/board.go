package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"collabboard-backend/internal/board"
	"collabboard-backend/internal/cache"
	"collabboard-backend/internal/model"
)

var (
	// ErrBoardNotFound is returned when a roomId has no board.
	ErrBoardNotFound = errors.New("board not found")
	// ErrRoomExists is returned when creating a board with a taken roomId.
	ErrRoomExists = errors.New("room id already exists")
)

// BoardSummary is the list-view shape: no elements, only metadata.
type BoardSummary struct {
	RoomID       string    `json:"roomId"`
	Name         string    `json:"name"`
	CreatorID    *int64    `json:"creatorId,omitempty"`
	ElementCount int64     `json:"elementCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BoardDocument is the full authoritative document served on load.
type BoardDocument struct {
	RoomID    string          `json:"roomId"`
	Name      string          `json:"name"`
	CreatorID *int64          `json:"creatorId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Elements  []board.Element `json:"elements"`
}

// BoardService is the persistence gateway: it owns every durable read and
// write of board documents. The sync hub and the REST handlers both consume
// it; neither touches GORM directly. Load goes through the Redis cache when
// one is configured; every write invalidates the room's cache entry.
type BoardService struct {
	db    *gorm.DB
	cache *cache.RedisClient // optional, nil-safe
}

// NewBoardService creates the gateway. cacheClient may be nil.
func NewBoardService(db *gorm.DB, cacheClient *cache.RedisClient) *BoardService {
	return &BoardService{db: db, cache: cacheClient}
}

// List returns board summaries for a user, most recently updated first.
// Elements are not loaded; only a count per board.
func (s *BoardService) List(ctx context.Context, userID int64) ([]BoardSummary, error) {
	var boards []model.Board
	if err := s.db.WithContext(ctx).
		Where("creator_id = ?", userID).
		Order("updated_at DESC").
		Find(&boards).Error; err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	counts := make(map[int64]int64, len(boards))
	if len(boards) > 0 {
		ids := make([]int64, len(boards))
		for i, b := range boards {
			ids[i] = b.ID
		}
		var rows []struct {
			BoardID int64
			N       int64
		}
		if err := s.db.WithContext(ctx).
			Model(&model.BoardElement{}).
			Select("board_id, count(*) as n").
			Where("board_id IN ?", ids).
			Group("board_id").
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to count elements: %w", err)
		}
		for _, r := range rows {
			counts[r.BoardID] = r.N
		}
	}

	summaries := make([]BoardSummary, 0, len(boards))
	for _, b := range boards {
		summaries = append(summaries, BoardSummary{
			RoomID:       b.RoomID,
			Name:         b.Name,
			CreatorID:    b.CreatorID,
			ElementCount: counts[b.ID],
			CreatedAt:    b.CreatedAt,
			UpdatedAt:    b.UpdatedAt,
		})
	}
	return summaries, nil
}

// Load returns the full document for a room. Rows coming back from storage
// re-enter the validation gate like any other ingress, so a corrupt row is
// dropped rather than admitted.
func (s *BoardService) Load(ctx context.Context, roomID string) (*BoardDocument, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetBoard(ctx, roomID); err == nil && cached != nil {
			return docFromCache(cached), nil
		}
	}

	b, err := s.findBoard(ctx, roomID)
	if err != nil {
		return nil, err
	}

	var rows []model.BoardElement
	if err := s.db.WithContext(ctx).
		Where("board_id = ?", b.ID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load elements: %w", err)
	}

	raws := make([]board.Element, 0, len(rows))
	for _, row := range rows {
		var e board.Element
		if err := json.Unmarshal([]byte(row.Data), &e); err != nil {
			log.Printf("[Board] Dropping unreadable element %s in room %s: %v", row.ElementID, roomID, err)
			continue
		}
		raws = append(raws, e)
	}
	elements := board.ValidateAll(raws)
	if dropped := len(raws) - len(elements); dropped > 0 {
		log.Printf("[Board] Dropped %d invalid stored elements in room %s", dropped, roomID)
	}

	doc := &BoardDocument{
		RoomID:    b.RoomID,
		Name:      b.Name,
		CreatorID: b.CreatorID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		Elements:  elements,
	}

	if s.cache != nil {
		// Best effort; a cache write failure never fails a load.
		_ = s.cache.SetBoard(ctx, &cache.CachedBoard{
			RoomID:    doc.RoomID,
			Name:      doc.Name,
			CreatorID: doc.CreatorID,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
			Elements:  doc.Elements,
		})
	}
	return doc, nil
}

// docFromCache rebuilds the gateway document from its cached form. The two
// must stay field-for-field equivalent: callers cannot tell a cache hit from
// a database load.
func docFromCache(cached *cache.CachedBoard) *BoardDocument {
	return &BoardDocument{
		RoomID:    cached.RoomID,
		Name:      cached.Name,
		CreatorID: cached.CreatorID,
		CreatedAt: cached.CreatedAt,
		UpdatedAt: cached.UpdatedAt,
		Elements:  cached.Elements,
	}
}

// Create makes a new empty board. An empty roomID gets a generated uuid.
func (s *BoardService) Create(ctx context.Context, roomID, name string, creatorID *int64) (*BoardDocument, error) {
	if roomID == "" {
		roomID = uuid.New().String()
	}
	if name == "" {
		name = "Untitled board"
	}

	b := model.Board{
		RoomID:    roomID,
		Name:      name,
		CreatorID: creatorID,
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		var existing model.Board
		if lookupErr := s.db.WithContext(ctx).Where("room_id = ?", roomID).First(&existing).Error; lookupErr == nil {
			return nil, ErrRoomExists
		}
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	return &BoardDocument{
		RoomID:    b.RoomID,
		Name:      b.Name,
		CreatorID: b.CreatorID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		Elements:  []board.Element{},
	}, nil
}

// SaveAll idempotently overwrites the whole element set (and optionally the
// name). This is the autosave sweep's write path: it persists current full
// state, which makes earlier failed incremental writes irrelevant.
func (s *BoardService) SaveAll(ctx context.Context, roomID string, raws []board.Element, name string) (*BoardDocument, error) {
	elements := board.ValidateAll(raws)

	b, err := s.findBoard(ctx, roomID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", b.ID).Delete(&model.BoardElement{}).Error; err != nil {
			return err
		}
		for _, e := range elements {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			row := model.BoardElement{
				BoardID:   b.ID,
				ElementID: e.ID,
				Kind:      string(e.Type),
				Data:      string(data),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		updates := map[string]interface{}{"updated_at": time.Now()}
		if name != "" {
			updates["name"] = name
		}
		return tx.Model(&model.Board{}).Where("id = ?", b.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save board %s: %w", roomID, err)
	}

	s.invalidate(ctx, roomID)
	return s.Load(ctx, roomID)
}

// SaveIncremental upserts a single element, keyed by (board, element id).
// Used for low-latency persistence of each completed stroke; duplicate
// delivery of the same element converges on one row.
func (s *BoardService) SaveIncremental(ctx context.Context, roomID string, raw board.Element) (board.Element, error) {
	e, err := board.Validate(raw)
	if err != nil {
		return board.Element{}, err
	}

	b, err := s.findBoard(ctx, roomID)
	if err != nil {
		return board.Element{}, err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return board.Element{}, fmt.Errorf("failed to marshal element: %w", err)
	}

	var row model.BoardElement
	lookup := s.db.WithContext(ctx).
		Where("board_id = ? AND element_id = ?", b.ID, e.ID).
		First(&row)
	switch {
	case lookup.Error == nil:
		if err := s.db.WithContext(ctx).Model(&row).Updates(map[string]interface{}{
			"kind": string(e.Type),
			"data": string(data),
		}).Error; err != nil {
			return board.Element{}, fmt.Errorf("failed to update element: %w", err)
		}
	case errors.Is(lookup.Error, gorm.ErrRecordNotFound):
		row = model.BoardElement{
			BoardID:   b.ID,
			ElementID: e.ID,
			Kind:      string(e.Type),
			Data:      string(data),
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return board.Element{}, fmt.Errorf("failed to insert element: %w", err)
		}
	default:
		return board.Element{}, fmt.Errorf("failed to look up element: %w", lookup.Error)
	}

	s.db.WithContext(ctx).Model(&model.Board{}).Where("id = ?", b.ID).Update("updated_at", time.Now())
	s.invalidate(ctx, roomID)
	return e, nil
}

// RemoveElement deletes one element row. Absent rows are a no-op so the
// eraser stays idempotent across the persistence boundary too.
func (s *BoardService) RemoveElement(ctx context.Context, roomID, elementID string) error {
	b, err := s.findBoard(ctx, roomID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).
		Where("board_id = ? AND element_id = ?", b.ID, elementID).
		Delete(&model.BoardElement{}).Error; err != nil {
		return fmt.Errorf("failed to delete element: %w", err)
	}

	s.invalidate(ctx, roomID)
	return nil
}

// Remove deletes the board and all its elements. Irreversible.
func (s *BoardService) Remove(ctx context.Context, roomID string) error {
	b, err := s.findBoard(ctx, roomID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", b.ID).Delete(&model.BoardElement{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Board{}, b.ID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete board %s: %w", roomID, err)
	}

	s.invalidate(ctx, roomID)
	return nil
}

// Clear empties the element set but keeps the board row.
func (s *BoardService) Clear(ctx context.Context, roomID string) error {
	b, err := s.findBoard(ctx, roomID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).
		Where("board_id = ?", b.ID).
		Delete(&model.BoardElement{}).Error; err != nil {
		return fmt.Errorf("failed to clear board %s: %w", roomID, err)
	}

	s.db.WithContext(ctx).Model(&model.Board{}).Where("id = ?", b.ID).Update("updated_at", time.Now())
	s.invalidate(ctx, roomID)
	return nil
}

// Duplicate deep-copies a board's elements under a fresh roomId.
func (s *BoardService) Duplicate(ctx context.Context, roomID, newName string, creatorID *int64) (*BoardDocument, error) {
	src, err := s.Load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if newName == "" {
		newName = src.Name + " (copy)"
	}

	doc, err := s.Create(ctx, "", newName, creatorID)
	if err != nil {
		return nil, err
	}

	if len(src.Elements) > 0 {
		copied, err := s.SaveAll(ctx, doc.RoomID, board.CloneElements(src.Elements), "")
		if err != nil {
			return nil, err
		}
		return copied, nil
	}
	return doc, nil
}

// findBoard resolves a roomId to its board row.
func (s *BoardService) findBoard(ctx context.Context, roomID string) (*model.Board, error) {
	var b model.Board
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to find board %s: %w", roomID, err)
	}
	return &b, nil
}

func (s *BoardService) invalidate(ctx context.Context, roomID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBoard(ctx, roomID); err != nil {
		log.Printf("[Board] Cache invalidation failed for room %s: %v", roomID, err)
	}
}
