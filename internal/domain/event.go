package domain

import "time"

// Event types recorded in the append-only log.
const (
	EventOrderCreated   = "ORDER_CREATED"
	EventOrderUpdated   = "ORDER_UPDATED"
	EventOrderCancelled = "ORDER_CANCELLED"
	EventTradeExecuted  = "TRADE_EXECUTED"
)

// EventRecord is one row of the append-only event log. The auto-increment
// ID is the authoritative log position; ordering by it is independent of
// timestamp resolution. Records are never mutated after append.
type EventRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	EventType   string    `gorm:"index" json:"event_type"`
	AggregateID string    `gorm:"index" json:"aggregate_id"`
	Payload     string    `json:"payload"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
}

// TableName sets the events table name for gorm.
func (EventRecord) TableName() string { return "events" }
