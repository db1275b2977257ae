package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade records an execution between a buy and a sell order.
// Price is always the resting (maker) order's price.
// Trades are immutable once created.
type Trade struct {
	ID          uuid.UUID       `gorm:"type:text;primaryKey" json:"trade_id"`
	BuyOrderID  uuid.UUID       `gorm:"type:text;index" json:"buy_order_id"`
	SellOrderID uuid.UUID       `gorm:"type:text;index" json:"sell_order_id"`
	Price       decimal.Decimal `gorm:"type:text" json:"price"`
	Quantity    decimal.Decimal `gorm:"type:text" json:"quantity"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TableName sets the trades table name for gorm.
func (Trade) TableName() string { return "trades" }
