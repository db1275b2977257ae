package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

// OrderType distinguishes priced from marketable orders.
type OrderType string

// OrderStatus is the lifecycle state of an order.
// FILLED and CANCELLED are terminal.
type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"

	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order represents a client order. All monetary values are exact decimals.
// Price is zero for Market orders.
type Order struct {
	ID             uuid.UUID       `gorm:"type:text;primaryKey" json:"order_id"`
	ClientID       string          `gorm:"index" json:"client_id"`
	Instrument     string          `gorm:"index" json:"instrument"`
	Side           Side            `json:"side"`
	Type           OrderType       `json:"type"`
	Price          decimal.Decimal `gorm:"type:text" json:"price"`
	Quantity       decimal.Decimal `gorm:"type:text" json:"quantity"`
	FilledQuantity decimal.Decimal `gorm:"type:text" json:"filled_quantity"`
	Status         OrderStatus     `gorm:"index" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int64           `json:"version"`
}

// TableName sets the orders table name for gorm.
func (Order) TableName() string { return "orders" }

// IsOpen checks if the order is still active (restable / cancellable).
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen || o.Status == OrderStatusPartiallyFilled
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Validate checks boundary invariants. Orders that fail validation are
// rejected before they ever reach a sequencer.
func (o *Order) Validate() error {
	if o.Instrument == "" {
		return &ValidationError{Field: "instrument", Err: ErrMissingInstrument}
	}
	if o.ClientID == "" {
		return &ValidationError{Field: "client_id", Err: ErrMissingClient}
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return &ValidationError{Field: "side", Err: ErrInvalidSide}
	}
	if o.Type != OrderTypeLimit && o.Type != OrderTypeMarket {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if !o.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Err: ErrInvalidQuantity}
	}
	if o.Type == OrderTypeLimit && !o.Price.IsPositive() {
		return &ValidationError{Field: "price", Err: ErrInvalidPrice}
	}
	return nil
}
