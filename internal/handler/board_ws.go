package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"

	"collabboard-backend/internal/board"
	"collabboard-backend/internal/service"
)

// WSMessage WebSocket 메시지
type WSMessage struct {
	Type    string      `json:"type"` // element:add, element:update, element:remove, presence:update, join, leave
	Payload interface{} `json:"payload,omitempty"`
}

// RemovePayload identifies an element to erase.
type RemovePayload struct {
	ID string `json:"id"`
}

// ErrorPayload is sent to a single client when its message was rejected.
type ErrorPayload struct {
	Message string `json:"message"`
}

// BoardWSHandler handles the realtime sync channel of a board room.
type BoardWSHandler struct {
	hub *BoardHub
}

// NewBoardWSHandler BoardWSHandler 생성
func NewBoardWSHandler(hub *BoardHub) *BoardWSHandler {
	return &BoardWSHandler{hub: hub}
}

// HandleWebSocket drives one client connection: join, dispatch loop, leave.
func (h *BoardWSHandler) HandleWebSocket(c *websocket.Conn) {
	roomIDInterface := c.Locals("roomId")
	userIDInterface := c.Locals("wsUserId")
	nicknameInterface := c.Locals("wsNickname")

	roomID, ok1 := roomIDInterface.(string)
	userID, ok2 := userIDInterface.(string)
	nickname, ok3 := nicknameInterface.(string)

	if !ok1 || !ok2 || !ok3 {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"invalid session"}}`))
		c.Close()
		return
	}

	// A room can be torn down between resolving it and joining (the last
	// client leaving races the next one in); on rejection re-resolve so the
	// join lands on the fresh room, not the discarded one.
	var room *BoardRoom
	var client *BoardClient
	for attempt := 0; attempt < 3; attempt++ {
		loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		candidate, err := h.hub.GetOrCreateRoom(loadCtx, roomID)
		cancel()
		if err != nil {
			if errors.Is(err, service.ErrBoardNotFound) {
				c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"board not found"}}`))
			} else {
				log.Printf("[BoardWS] Failed to open room %s: %v", roomID, err)
				c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"failed to open board"}}`))
			}
			c.Close()
			return
		}

		if joined, ok := candidate.AddClient(userID, nickname, c); ok {
			room, client = candidate, joined
			break
		}
	}
	if room == nil {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"board is closing"}}`))
		c.Close()
		return
	}

	// Joining does not replay the document: the client fetches the
	// authoritative board over REST on (re)connect. It does get the current
	// presence map so existing cursors render immediately.
	h.sendTo(client, WSMessage{
		Type:    "presence:update",
		Payload: room.Session.Presence().Snapshot(),
	})

	defer func() {
		room.RemoveClient(c)
		room.BroadcastEvent(nil, "presence:update", room.Session.Presence().Snapshot())
		c.Close()
	}()

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "element:add":
			h.handleElementAdd(room, client, msg.Payload)
		case "element:update":
			h.handleElementUpdate(room, client, msg.Payload)
		case "element:remove":
			h.handleElementRemove(room, client, msg.Payload)
		case "presence:update":
			h.handlePresence(room, client, msg.Payload)
		case "leave":
			return
		}
	}
}

// handleElementAdd admits a new element and fans the canonical form out.
func (h *BoardWSHandler) handleElementAdd(room *BoardRoom, client *BoardClient, payload interface{}) {
	raw, ok := decodeElement(payload)
	if !ok {
		return
	}

	e, err := room.Session.AddElement(raw)
	if err != nil {
		// A duplicate id means the element already arrived (re-delivery or a
		// concurrent add); rejecting it silently keeps the op idempotent.
		if !errors.Is(err, board.ErrDuplicateID) {
			log.Printf("[Board %s] Rejected add from %s: %v", room.ID, client.UserID, err)
			h.sendTo(client, WSMessage{Type: "error", Payload: ErrorPayload{Message: err.Error()}})
		}
		return
	}

	room.BroadcastEvent(client.Conn, "element:add", e)
	h.persistElement(room, e)
}

// handleElementUpdate replaces an existing element; last delivered wins.
func (h *BoardWSHandler) handleElementUpdate(room *BoardRoom, client *BoardClient, payload interface{}) {
	raw, ok := decodeElement(payload)
	if !ok {
		return
	}

	e, err := room.Session.UpdateElement(raw)
	if err != nil {
		// Updating an unknown id usually races a remove; drop it.
		if !errors.Is(err, board.ErrNotFound) {
			log.Printf("[Board %s] Rejected update from %s: %v", room.ID, client.UserID, err)
			h.sendTo(client, WSMessage{Type: "error", Payload: ErrorPayload{Message: err.Error()}})
		}
		return
	}

	room.BroadcastEvent(client.Conn, "element:update", e)
	h.persistElement(room, e)
}

// handleElementRemove erases by id. Re-delivery is a no-op but is still
// re-broadcast so every peer converges regardless of delivery order.
func (h *BoardWSHandler) handleElementRemove(room *BoardRoom, client *BoardClient, payload interface{}) {
	var p RemovePayload
	if !decodePayload(payload, &p) || p.ID == "" {
		return
	}

	room.Session.RemoveElement(p.ID)
	room.BroadcastEvent(client.Conn, "element:remove", RemovePayload{ID: p.ID})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.hub.boards.RemoveElement(ctx, room.ID, p.ID); err != nil {
			log.Printf("[Board %s] Failed to persist remove of %s: %v", room.ID, p.ID, err)
		}
	}()
}

// handlePresence updates one cursor and broadcasts the full presence map.
func (h *BoardWSHandler) handlePresence(room *BoardRoom, client *BoardClient, payload interface{}) {
	var rec board.PresenceRecord
	if !decodePayload(payload, &rec) {
		return
	}

	// Identity comes from the connection, never the payload.
	rec.UserID = client.UserID
	if rec.Name == "" {
		rec.Name = client.Nickname
	}

	room.Session.Presence().Upsert(rec)
	room.BroadcastEvent(client.Conn, "presence:update", room.Session.Presence().Snapshot())
}

// persistElement writes one element through the gateway off the hot path.
// A failure is only logged: the session stays dirty, so the autosave sweep
// re-persists the full state on its next tick.
func (h *BoardWSHandler) persistElement(room *BoardRoom, e board.Element) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := h.hub.boards.SaveIncremental(ctx, room.ID, e); err != nil {
			log.Printf("[Board %s] Failed to persist element %s: %v", room.ID, e.ID, err)
		}
	}()
}

func (h *BoardWSHandler) sendTo(client *BoardClient, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := client.send(data); err != nil {
		log.Printf("[BoardWS] Failed to send to %s: %v", client.UserID, err)
	}
}

func decodeElement(payload interface{}) (board.Element, bool) {
	var e board.Element
	if !decodePayload(payload, &e) {
		return board.Element{}, false
	}
	return e, true
}

func decodePayload(payload interface{}, out interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}
