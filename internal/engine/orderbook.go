package engine

import (
	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
)

// OrderBook holds the resting limit orders for a single instrument.
// Bids are ordered by descending price, asks by ascending price; within a
// price level, older orders come first. It is a pure in-memory structure
// mutated only by its owning sequencer (or by recovery, which runs while
// the sequencer is quiescent).
type OrderBook struct {
	bids []*domain.Order
	asks []*domain.Order
}

// NewOrderBook creates an empty book.
func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// Insert places a limit order at the index satisfying price-time priority.
// Duplicate prices are expected; ties keep FIFO order.
func (b *OrderBook) Insert(o *domain.Order) {
	side := &b.asks
	if o.Side == domain.SideBuy {
		side = &b.bids
	}

	idx := len(*side)
	for i, existing := range *side {
		cmp := o.Price.Cmp(existing.Price)
		if o.Side == domain.SideBuy {
			cmp = -cmp // bids: higher price first
		}
		if cmp < 0 || (cmp == 0 && o.CreatedAt.Before(existing.CreatedAt)) {
			idx = i
			break
		}
	}

	*side = append(*side, nil)
	copy((*side)[idx+1:], (*side)[idx:])
	(*side)[idx] = o
}

// Remove deletes the order from whichever side holds it, matching by id.
// Returns whether it was present.
func (b *OrderBook) Remove(o *domain.Order) bool {
	if removeByID(&b.bids, o.ID.String()) {
		return true
	}
	return removeByID(&b.asks, o.ID.String())
}

func removeByID(side *[]*domain.Order, id string) bool {
	for i, existing := range *side {
		if existing.ID.String() == id {
			*side = append((*side)[:i], (*side)[i+1:]...)
			return true
		}
	}
	return false
}

// Best returns the highest-priority resting order on the given side,
// or nil if that side is empty.
func (b *OrderBook) Best(side domain.Side) *domain.Order {
	s := b.asks
	if side == domain.SideBuy {
		s = b.bids
	}
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

// Bids returns a copy of the bid queue, best first.
func (b *OrderBook) Bids() []*domain.Order {
	out := make([]*domain.Order, len(b.bids))
	copy(out, b.bids)
	return out
}

// Asks returns a copy of the ask queue, best first.
func (b *OrderBook) Asks() []*domain.Order {
	out := make([]*domain.Order, len(b.asks))
	copy(out, b.asks)
	return out
}

// Size returns the total number of resting orders on both sides.
func (b *OrderBook) Size() int {
	return len(b.bids) + len(b.asks)
}

// Clear empties both sides. Used only during recovery, never during
// live matching.
func (b *OrderBook) Clear() {
	b.bids = nil
	b.asks = nil
}

// PriceLevel is one aggregated depth level.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// BookDepth is the aggregated top-of-book view: bids descending, asks
// ascending, remaining quantity summed per price level.
type BookDepth struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// Depth aggregates up to levels price levels per side.
func (b *OrderBook) Depth(levels int) BookDepth {
	return BookDepth{
		Bids: aggregateLevels(b.bids, levels),
		Asks: aggregateLevels(b.asks, levels),
	}
}

func aggregateLevels(side []*domain.Order, levels int) []PriceLevel {
	out := make([]PriceLevel, 0, levels)
	for _, o := range side {
		rem := o.Remaining()
		if !rem.IsPositive() {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Price.Equal(o.Price) {
			out[n-1].Quantity = out[n-1].Quantity.Add(rem)
			continue
		}
		if len(out) >= levels {
			break
		}
		out = append(out, PriceLevel{Price: o.Price, Quantity: rem})
	}
	return out
}
