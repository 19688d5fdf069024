package model

import (
	"time"
)

// User account; referenced by boards and used for presence display names.
type User struct {
	ID         int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email      string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname   string  `gorm:"type:varchar(100);not null" json:"nickname"`
	ProfileImg *string `gorm:"type:text" json:"profile_img,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Boards []Board `gorm:"foreignKey:CreatorID" json:"boards,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Board is the aggregate root of one collaborative canvas, keyed by RoomID
// (the stable external identifier used in URLs and as the sync room key).
type Board struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"room_id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	CreatorID *int64    `json:"creator_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Creator  *User          `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Elements []BoardElement `gorm:"foreignKey:BoardID" json:"elements,omitempty"`
}

func (Board) TableName() string {
	return "boards"
}

// BoardElement stores one drawable element as a row. ElementID is the
// client-assigned id and the idempotency key: one row per (board_id,
// element_id), updated in place on re-delivery. Row insertion order (id ASC)
// is the z-order used when the document is reassembled on load.
type BoardElement struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID   int64     `gorm:"not null;uniqueIndex:idx_board_element" json:"board_id"`
	ElementID string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_board_element" json:"element_id"`
	Kind      string    `gorm:"type:varchar(20);not null" json:"kind"`
	Data      string    `gorm:"type:jsonb;not null" json:"data"` // canonical element JSON
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Board Board `gorm:"foreignKey:BoardID" json:"board,omitempty"`
}

func (BoardElement) TableName() string {
	return "board_elements"
}
