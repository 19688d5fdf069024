package handler

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"collabboard-backend/internal/board"
	"collabboard-backend/internal/config"
	"collabboard-backend/internal/service"
)

// =============================================================================
// Board Hub - Room 단위 WebSocket 및 세션 관리
// =============================================================================

// BoardStore is the persistence surface the hub and the REST handlers consume.
// *service.BoardService is the production implementation.
type BoardStore interface {
	List(ctx context.Context, userID int64) ([]service.BoardSummary, error)
	Load(ctx context.Context, roomID string) (*service.BoardDocument, error)
	Create(ctx context.Context, roomID, name string, creatorID *int64) (*service.BoardDocument, error)
	SaveAll(ctx context.Context, roomID string, raws []board.Element, name string) (*service.BoardDocument, error)
	SaveIncremental(ctx context.Context, roomID string, raw board.Element) (board.Element, error)
	RemoveElement(ctx context.Context, roomID, elementID string) error
	Remove(ctx context.Context, roomID string) error
	Clear(ctx context.Context, roomID string) error
	Duplicate(ctx context.Context, roomID, newName string, creatorID *int64) (*service.BoardDocument, error)
}

// BoardHub manages all open board rooms and their connections.
type BoardHub struct {
	rooms  map[string]*BoardRoom
	mu     sync.RWMutex
	boards BoardStore
	cfg    *config.Config
}

// BoardRoom is one live board: its session plus the connected clients.
// The session is created when the first client joins (loading the document
// through the gateway) and flushed and discarded when the last client leaves.
type BoardRoom struct {
	ID        string
	Session   *board.Session
	clients   map[*websocket.Conn]*BoardClient
	broadcast chan *OutboundMessage
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	hub       *BoardHub
	isRunning bool
	closed    bool
}

// BoardClient is one websocket participant.
type BoardClient struct {
	UserID   string
	Nickname string
	Conn     *websocket.Conn
	writeMu  sync.Mutex
}

// OutboundMessage is a pre-marshaled frame queued for fan-out. Sender is
// excluded from delivery; nil means deliver to everyone.
type OutboundMessage struct {
	Sender *websocket.Conn
	Data   []byte
}

// NewBoardHub creates a new BoardHub instance.
func NewBoardHub(boards BoardStore, cfg *config.Config) *BoardHub {
	return &BoardHub{
		rooms:  make(map[string]*BoardRoom),
		boards: boards,
		cfg:    cfg,
	}
}

// GetOrCreateRoom returns the live room for roomID, loading the board
// document and building its session on first join. The document load runs
// outside the hub lock so one slow load cannot stall every other room
// lookup; concurrent first joiners race the insert and the loser adopts the
// winner's room. A load failure is surfaced so the connection can be refused
// instead of opening an empty board over an existing document.
func (h *BoardHub) GetOrCreateRoom(ctx context.Context, roomID string) (*BoardRoom, error) {
	h.mu.RLock()
	room, exists := h.rooms[roomID]
	h.mu.RUnlock()
	if exists {
		return room, nil
	}

	doc, err := h.boards.Load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		return room, nil
	}

	roomCtx, cancel := context.WithCancel(context.Background())
	room = &BoardRoom{
		ID:        roomID,
		Session:   board.NewSession(roomID, doc.Elements),
		clients:   make(map[*websocket.Conn]*BoardClient),
		broadcast: make(chan *OutboundMessage, h.cfg.WebSocket.BroadcastBuffer),
		ctx:       roomCtx,
		cancel:    cancel,
		hub:       h,
	}

	h.rooms[roomID] = room
	log.Printf("[BoardHub] Opened room: %s (%d elements)", roomID, len(doc.Elements))

	return room, nil
}

// RoomCount returns the number of open rooms.
func (h *BoardHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// GetRoom returns the live room if one is open.
func (h *BoardHub) GetRoom(roomID string) (*BoardRoom, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[roomID]
	return room, ok
}

// RemoveRoom flushes unsaved changes and tears the room down. A client that
// joined again since the last-leave that scheduled this call aborts the
// removal; a client still holding the room pointer afterwards is rejected by
// AddClient via the closed flag.
func (h *BoardHub) RemoveRoom(roomID string) {
	h.mu.Lock()
	room, exists := h.rooms[roomID]
	if exists {
		room.mu.Lock()
		if len(room.clients) > 0 {
			room.mu.Unlock()
			h.mu.Unlock()
			return
		}
		room.closed = true
		room.mu.Unlock()
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	if !exists {
		return
	}

	room.flushSave()
	room.Shutdown()
	log.Printf("[BoardHub] Closed room: %s", roomID)
}

// CloseRoom force-disconnects every client without saving. Used when the
// board itself is deleted; notify is sent to clients before the close.
func (h *BoardHub) CloseRoom(roomID string, notify []byte) {
	h.mu.Lock()
	room, exists := h.rooms[roomID]
	if exists {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	if !exists {
		return
	}

	room.mu.Lock()
	room.closed = true
	clients := make([]*BoardClient, 0, len(room.clients))
	for _, c := range room.clients {
		clients = append(clients, c)
	}
	room.mu.Unlock()

	for _, c := range clients {
		if notify != nil {
			c.send(notify)
		}
		c.Conn.Close()
	}

	room.Shutdown()
	log.Printf("[BoardHub] Force-closed room: %s", roomID)
}

// Shutdown flushes and closes every open room. Called on server stop.
func (h *BoardHub) Shutdown() {
	h.mu.Lock()
	rooms := make([]*BoardRoom, 0, len(h.rooms))
	for id, room := range h.rooms {
		room.mu.Lock()
		room.closed = true
		room.mu.Unlock()
		rooms = append(rooms, room)
		delete(h.rooms, id)
	}
	h.mu.Unlock()

	for _, room := range rooms {
		room.flushSave()
		room.Shutdown()
	}
	log.Printf("[BoardHub] Shutdown complete (%d rooms flushed)", len(rooms))
}

// =============================================================================
// Room Methods
// =============================================================================

// AddClient registers a connection and starts the room goroutines on first
// join. It reports false when the room is already torn down; the caller must
// re-resolve the room through the hub.
func (r *BoardRoom) AddClient(userID, nickname string, conn *websocket.Conn) (*BoardClient, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}

	client := &BoardClient{
		UserID:   userID,
		Nickname: nickname,
		Conn:     conn,
	}
	r.clients[conn] = client

	log.Printf("[Board %s] Client joined: %s (%s), total: %d",
		r.ID, userID, nickname, len(r.clients))

	if !r.isRunning {
		r.isRunning = true
		go r.runBroadcaster()
		go r.runAutosave()
	}

	return client, true
}

// RemoveClient drops a connection; the last one out closes the room.
func (r *BoardRoom) RemoveClient(conn *websocket.Conn) {
	r.mu.Lock()
	client, exists := r.clients[conn]
	if exists {
		delete(r.clients, conn)
	}
	remaining := len(r.clients)
	r.mu.Unlock()

	if !exists {
		return
	}

	r.Session.Presence().Remove(client.UserID)
	log.Printf("[Board %s] Client left: %s, remaining: %d", r.ID, client.UserID, remaining)

	if remaining == 0 {
		go r.hub.RemoveRoom(r.ID)
	}
}

// ClientCount returns the number of connected clients.
func (r *BoardRoom) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast queues a frame for fan-out to everyone but sender.
func (r *BoardRoom) Broadcast(sender *websocket.Conn, data []byte) {
	select {
	case r.broadcast <- &OutboundMessage{Sender: sender, Data: data}:
	default:
		log.Printf("[Board %s] Broadcast buffer full, dropping frame", r.ID)
	}
}

// BroadcastEvent marshals a typed event and queues it.
func (r *BoardRoom) BroadcastEvent(sender *websocket.Conn, event string, payload any) {
	data, err := json.Marshal(WSMessage{Type: event, Payload: payload})
	if err != nil {
		log.Printf("[Board %s] Failed to marshal %s event: %v", r.ID, event, err)
		return
	}
	r.Broadcast(sender, data)
}

// Shutdown stops the room goroutines.
func (r *BoardRoom) Shutdown() {
	r.cancel()

	r.mu.Lock()
	r.isRunning = false
	r.mu.Unlock()

	log.Printf("[Board %s] Shutdown complete", r.ID)
}

// flushSave persists outstanding changes synchronously before teardown.
// BeginFlush waits out any in-flight autosave and re-checks dirty, so edits
// made after that save's snapshot (an undo has no incremental write backing
// it) still reach storage before the session is discarded.
func (r *BoardRoom) flushSave() {
	snapshot, ok := r.Session.BeginFlush()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := r.hub.boards.SaveAll(ctx, r.ID, snapshot, "")
	r.Session.EndSave(err)
	if err != nil {
		log.Printf("[Board %s] Final save failed: %v", r.ID, err)
		return
	}
	log.Printf("[Board %s] Final save: %d elements", r.ID, len(snapshot))
}

// =============================================================================
// Room Goroutines
// =============================================================================

// runBroadcaster fans queued frames out to the room.
func (r *BoardRoom) runBroadcaster() {
	log.Printf("[Board %s] Broadcaster started", r.ID)
	defer log.Printf("[Board %s] Broadcaster stopped", r.ID)

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-r.broadcast:
			if !ok {
				return
			}
			r.deliver(msg)
		}
	}
}

func (r *BoardRoom) deliver(msg *OutboundMessage) {
	r.mu.RLock()
	clients := make([]*BoardClient, 0, len(r.clients))
	for conn, c := range r.clients {
		if conn == msg.Sender {
			continue
		}
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, client := range clients {
		if err := client.send(msg.Data); err != nil {
			log.Printf("[Board %s] Failed to send to %s: %v", r.ID, client.UserID, err)
		}
	}
}

// runAutosave sweeps the session on a fixed interval and persists full state
// when it is dirty. At most one save is in flight per board: a tick that
// lands while the previous save is still running (or when nothing changed)
// is skipped, never queued. A failed save leaves the session dirty, so the
// next tick retries with the then-current state.
func (r *BoardRoom) runAutosave() {
	interval := r.hub.cfg.Autosave.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[Board %s] Autosave started (every %s)", r.ID, interval)
	defer log.Printf("[Board %s] Autosave stopped", r.ID)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			snapshot, ok := r.Session.BeginSave()
			if !ok {
				continue
			}

			go func(snapshot []board.Element) {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				_, err := r.hub.boards.SaveAll(ctx, r.ID, snapshot, "")
				r.Session.EndSave(err)
				if err != nil {
					log.Printf("[Board %s] Autosave failed: %v", r.ID, err)
				}
			}(snapshot)
		}
	}
}

func (c *BoardClient) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}
