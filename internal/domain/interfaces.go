package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderRepository persists orders. Find returns (nil, nil) when absent.
type OrderRepository interface {
	SaveOrder(o *Order) error
	FindOrder(id uuid.UUID) (*Order, error)
	FindAllOrders() ([]*Order, error)
	FindOpenOrders() ([]*Order, error)
	DeleteAllOrders() error
}

// TradeRepository persists executions.
type TradeRepository interface {
	SaveTrade(t *Trade) error
	FindAllTrades() ([]*Trade, error)
	DeleteAllTrades() error
}

// EventRepository persists the append-only event log. Results are always
// ordered by log position.
type EventRepository interface {
	AppendEvent(rec *EventRecord) error
	FindAllEvents() ([]*EventRecord, error)
	FindEventsAfter(ts time.Time) ([]*EventRecord, error)
}

// SnapshotRepository persists order book snapshots.
type SnapshotRepository interface {
	SaveSnapshot(s *OrderBookSnapshot) error
	FindLatestSnapshot(instrument string) (*OrderBookSnapshot, error)
	FindSnapshotInstruments() ([]string, error)
}

// Store is the durable storage collaborator. Writes must be visible to
// subsequent reads on the same sequencer goroutine.
type Store interface {
	OrderRepository
	TradeRepository
	EventRepository
	SnapshotRepository
}

// EventLog appends domain events to the audit log. Payload serialization
// failures degrade to an empty payload; a write failure is returned to the
// caller and fails the in-flight command.
type EventLog interface {
	Append(eventType string, aggregateID string, payload any) error
}

// IdempotencyCache stores submission results keyed by client-supplied
// idempotency keys. Retention is the cache's own concern.
type IdempotencyCache interface {
	Get(key string) (*Order, bool)
	Set(key string, o *Order)
}

// Notifier publishes order/trade updates to live subscribers.
// Delivery is fire-and-forget and must never block matching.
type Notifier interface {
	Publish(v any)
}
