package handler

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"collabboard-backend/internal/board"
	"collabboard-backend/internal/service"
)

// BoardHandler serves the board REST API. Reads prefer the live session when
// the room is open (it is ahead of storage between autosave ticks); writes go
// through both the live session and the persistence gateway so connected
// clients and storage stay consistent.
type BoardHandler struct {
	boards BoardStore
	hub    *BoardHub
}

// NewBoardHandler BoardHandler 생성
func NewBoardHandler(boards BoardStore, hub *BoardHub) *BoardHandler {
	return &BoardHandler{boards: boards, hub: hub}
}

// CreateBoardRequest 보드 생성 요청
type CreateBoardRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// SaveBoardRequest 보드 전체 저장 요청
type SaveBoardRequest struct {
	Name     string          `json:"name"`
	Elements []board.Element `json:"elements"`
}

// DuplicateBoardRequest 보드 복제 요청
type DuplicateBoardRequest struct {
	Name string `json:"name"`
}

// ListBoards GET /api/boards
func (h *BoardHandler) ListBoards(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(int64)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	summaries, err := h.boards.List(c.Context(), userID)
	if err != nil {
		log.Printf("[BoardAPI] Failed to list boards for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list boards",
		})
	}

	return c.JSON(fiber.Map{"boards": summaries})
}

// CreateBoard POST /api/boards
func (h *BoardHandler) CreateBoard(c *fiber.Ctx) error {
	var req CreateBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	doc, err := h.boards.Create(c.Context(), req.RoomID, req.Name, currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrRoomExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "room id already exists",
			})
		}
		log.Printf("[BoardAPI] Failed to create board: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create board",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

// GetBoard GET /api/boards/:roomId
func (h *BoardHandler) GetBoard(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	doc, err := h.boards.Load(c.Context(), roomID)
	if err != nil {
		if errors.Is(err, service.ErrBoardNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "board not found",
			})
		}
		log.Printf("[BoardAPI] Failed to load board %s: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load board",
		})
	}

	// An open room is ahead of storage between autosave ticks.
	if room, ok := h.hub.GetRoom(roomID); ok {
		doc.Elements = room.Session.Elements()
	}

	return c.JSON(doc)
}

// SaveBoard POST /api/boards/:roomId/save — full-document overwrite.
func (h *BoardHandler) SaveBoard(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	var req SaveBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	doc, err := h.boards.SaveAll(c.Context(), roomID, req.Elements, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrBoardNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "board not found",
			})
		}
		log.Printf("[BoardAPI] Failed to save board %s: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save board",
		})
	}

	// Connected clients adopt the saved document as the new shared state.
	if room, ok := h.hub.GetRoom(roomID); ok {
		elements := room.Session.ReplaceAll(doc.Elements)
		room.BroadcastEvent(nil, "board:sync", elements)
	}

	return c.JSON(doc)
}

// DrawElement POST /api/boards/:roomId/draw — append one element.
func (h *BoardHandler) DrawElement(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	var raw board.Element
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	// With an open room the session is authoritative: admit there first so
	// the REST write and the live channel cannot disagree on the id.
	if room, ok := h.hub.GetRoom(roomID); ok {
		e, err := room.Session.AddElement(raw)
		if err != nil {
			if errors.Is(err, board.ErrDuplicateID) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "element id already exists",
				})
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		room.BroadcastEvent(nil, "element:add", e)

		if _, err := h.boards.SaveIncremental(c.Context(), roomID, e); err != nil {
			// Session stays dirty; autosave re-persists.
			log.Printf("[BoardAPI] Failed to persist drawn element %s: %v", e.ID, err)
		}
		return c.Status(fiber.StatusCreated).JSON(e)
	}

	e, err := h.boards.SaveIncremental(c.Context(), roomID, raw)
	if err != nil {
		if errors.Is(err, service.ErrBoardNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "board not found",
			})
		}
		if errors.Is(err, board.ErrUnknownKind) || errors.Is(err, board.ErrBadGeometry) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		log.Printf("[BoardAPI] Failed to draw on board %s: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save element",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(e)
}

// DeleteBoard DELETE /api/boards/:roomId
func (h *BoardHandler) DeleteBoard(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	notify, _ := json.Marshal(WSMessage{Type: "board:delete"})
	h.hub.CloseRoom(roomID, notify)

	if err := h.boards.Remove(c.Context(), roomID); err != nil {
		if errors.Is(err, service.ErrBoardNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "board not found",
			})
		}
		log.Printf("[BoardAPI] Failed to delete board %s: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete board",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// ClearBoard DELETE /api/boards/:roomId/clear — empty the canvas.
func (h *BoardHandler) ClearBoard(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	if err := h.boards.Clear(c.Context(), roomID); err != nil {
		if errors.Is(err, service.ErrBoardNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "board not found",
			})
		}
		log.Printf("[BoardAPI] Failed to clear board %s: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to clear board",
		})
	}

	if room, ok := h.hub.GetRoom(roomID); ok {
		room.Session.ReplaceAll(nil)
		room.BroadcastEvent(nil, "board:clear", nil)
	}

	return c.JSON(fiber.Map{"success": true})
}

// DuplicateBoard POST /api/boards/:roomId/duplicate
func (h *BoardHandler) DuplicateBoard(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	var req DuplicateBoardRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
	}

	doc, err := h.boards.Duplicate(c.Context(), roomID, req.Name, currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrBoardNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "board not found",
			})
		}
		log.Printf("[BoardAPI] Failed to duplicate board %s: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to duplicate board",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

// UndoBoard POST /api/boards/:roomId/undo
func (h *BoardHandler) UndoBoard(c *fiber.Ctx) error {
	return h.stepHistory(c, true)
}

// RedoBoard POST /api/boards/:roomId/redo
func (h *BoardHandler) RedoBoard(c *fiber.Ctx) error {
	return h.stepHistory(c, false)
}

// stepHistory applies an undo or redo to the live session. History lives only
// in the open session, so a closed board has nothing to step through. The
// result is not broadcast: only forward edits are synchronized, and peers
// converge on the stepped state via autosave and their next load.
func (h *BoardHandler) stepHistory(c *fiber.Ctx, undo bool) error {
	roomID := c.Params("roomId")

	room, ok := h.hub.GetRoom(roomID)
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "board is not open",
		})
	}

	var elements []board.Element
	if undo {
		elements = room.Session.Undo()
	} else {
		elements = room.Session.Redo()
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"elements": elements,
		"canUndo":  room.Session.CanUndo(),
		"canRedo":  room.Session.CanRedo(),
	})
}

// currentUserID returns the authenticated user id, or nil for guests.
func currentUserID(c *fiber.Ctx) *int64 {
	if userID, ok := c.Locals("userID").(int64); ok {
		return &userID
	}
	return nil
}
