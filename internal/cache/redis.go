package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"collabboard-backend/internal/board"
)

// CachedBoard is the board document shape stored in Redis for fast loads.
// It carries the full gateway document, metadata included, so a cache hit
// and a database load are indistinguishable to callers.
type CachedBoard struct {
	RoomID    string          `json:"roomId"`
	Name      string          `json:"name"`
	CreatorID *int64          `json:"creatorId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Elements  []board.Element `json:"elements"`
}

// RedisClient wraps the Redis client for board document caching. Loads hit the
// cache first; every gateway write invalidates the room's entry, so a stale
// cache can only ever serve a document that was authoritative moments ago.
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(addr, password string, db int, ttl time.Duration) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Printf("[Redis] Connected to %s", addr)
	return &RedisClient{client: client, ttl: ttl}, nil
}

func boardKey(roomID string) string {
	return "board:" + roomID + ":doc"
}

// SetBoard caches a board document with the configured TTL.
func (r *RedisClient) SetBoard(ctx context.Context, doc *CachedBoard) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, boardKey(doc.RoomID), data, r.ttl).Err(); err != nil {
		log.Printf("[Redis] Failed to cache board %s: %v", doc.RoomID, err)
		return err
	}
	return nil
}

// GetBoard returns the cached document, or nil on a miss.
func (r *RedisClient) GetBoard(ctx context.Context, roomID string) (*CachedBoard, error) {
	val, err := r.client.Get(ctx, boardKey(roomID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc CachedBoard
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// InvalidateBoard drops the cached document for a room.
func (r *RedisClient) InvalidateBoard(ctx context.Context, roomID string) error {
	return r.client.Del(ctx, boardKey(roomID)).Err()
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Health checks if Redis is reachable.
func (r *RedisClient) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
