package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderBookSnapshot is a point-in-time serialization of one instrument's
// resting orders. Timestamp is the cursor for subsequent delta replay.
// Snapshots are read-only after creation; later snapshots supersede
// earlier ones without deleting them.
type OrderBookSnapshot struct {
	ID         uuid.UUID `gorm:"type:text;primaryKey" json:"snapshot_id"`
	Instrument string    `gorm:"index" json:"instrument"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	Data       string    `json:"data"`
}

// TableName sets the snapshots table name for gorm.
func (OrderBookSnapshot) TableName() string { return "order_book_snapshots" }
