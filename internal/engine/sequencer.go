package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
	"trade_core/internal/infra"
)

// Result resolves a submitted command once the sequencer has processed it.
type Result struct {
	Order *domain.Order
	Err   error
}

type submitCmd struct {
	order *domain.Order
	idKey string
	done  chan Result
}

type cancelCmd struct {
	order *domain.Order
	done  chan Result
}

// Sequencer owns the order book for one instrument and processes commands
// one at a time on a single goroutine. This single-writer discipline is
// what makes matching deterministic without locking the book.
type Sequencer struct {
	instrument string
	book       *OrderBook
	inbox      chan any

	store    domain.Store
	events   domain.EventLog
	cache    domain.IdempotencyCache
	notifier domain.Notifier
}

// NewSequencer creates a sequencer for one instrument. Run must be started
// in its own goroutine before commands are submitted.
func NewSequencer(instrument string, inboxSize int, store domain.Store, events domain.EventLog, cache domain.IdempotencyCache, notifier domain.Notifier) *Sequencer {
	return &Sequencer{
		instrument: instrument,
		book:       NewOrderBook(),
		inbox:      make(chan any, inboxSize),
		store:      store,
		events:     events,
		cache:      cache,
		notifier:   notifier,
	}
}

// Book exposes the order book for reads and for recovery. Live matching
// never shares it; callers outside the sequencer goroutine must only touch
// it during a quiescent window.
func (s *Sequencer) Book() *OrderBook {
	return s.book
}

// LoadOpenOrder inserts a resting order directly into the book. Used only
// while rebuilding state at startup.
func (s *Sequencer) LoadOpenOrder(o *domain.Order) {
	s.book.Insert(o)
}

// Submit enqueues an order submission. The returned channel resolves once
// the command has been fully processed.
func (s *Sequencer) Submit(o *domain.Order, idKey string) <-chan Result {
	done := make(chan Result, 1)
	s.inbox <- submitCmd{order: o, idKey: idKey, done: done}
	return done
}

// Cancel enqueues an order cancellation.
func (s *Sequencer) Cancel(o *domain.Order) <-chan Result {
	done := make(chan Result, 1)
	s.inbox <- cancelCmd{order: o, done: done}
	return done
}

// Run processes commands in FIFO arrival order. It MUST run in exactly one
// goroutine per sequencer.
func (s *Sequencer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("sequencer stopping", slog.String("instrument", s.instrument))
			return
		case cmd := <-s.inbox:
			switch c := cmd.(type) {
			case submitCmd:
				s.handleSubmit(c)
			case cancelCmd:
				s.handleCancel(c)
			}
		}
	}
}

// persistOrder bumps the optimistic version and writes the order.
func (s *Sequencer) persistOrder(o *domain.Order) error {
	o.Version++
	return s.store.SaveOrder(o)
}

func (s *Sequencer) handleSubmit(c submitCmd) {
	start := time.Now()

	// At-most-once semantics for retried submissions.
	if c.idKey != "" {
		if cached, ok := s.cache.Get(c.idKey); ok {
			c.done <- Result{Order: cached}
			return
		}
	}

	o := c.order
	now := time.Now()
	o.Status = domain.OrderStatusOpen
	o.FilledQuantity = decimal.Zero
	o.CreatedAt = now
	o.UpdatedAt = now
	if err := s.persistOrder(o); err != nil {
		c.done <- Result{Err: err}
		return
	}
	if err := s.events.Append(domain.EventOrderCreated, o.ID.String(), o); err != nil {
		c.done <- Result{Err: err}
		return
	}

	if err := s.match(o); err != nil {
		c.done <- Result{Err: err}
		return
	}

	// Limit remainder rests in the book; a market remainder is dropped.
	if o.Type == domain.OrderTypeLimit && o.FilledQuantity.LessThan(o.Quantity) {
		s.book.Insert(o)
	}

	o.UpdatedAt = time.Now()
	if err := s.persistOrder(o); err != nil {
		c.done <- Result{Err: err}
		return
	}
	if err := s.events.Append(domain.EventOrderUpdated, o.ID.String(), o); err != nil {
		c.done <- Result{Err: err}
		return
	}
	s.notifier.Publish(o)

	if c.idKey != "" {
		s.cache.Set(c.idKey, o)
	}
	infra.GlobalMetrics.RecordLatency(time.Since(start).Nanoseconds())
	c.done <- Result{Order: o}
}

// match runs the aggressor against the opposite side of the book while it
// has remaining quantity and a crossable resting order exists. Each fill
// executes at the resting order's price.
func (s *Sequencer) match(o *domain.Order) error {
	for o.Remaining().IsPositive() {
		best := s.book.Best(o.Side.Opposite())
		if best == nil {
			break
		}
		if o.Type == domain.OrderTypeLimit {
			if o.Side == domain.SideBuy && o.Price.LessThan(best.Price) {
				break
			}
			if o.Side == domain.SideSell && o.Price.GreaterThan(best.Price) {
				break
			}
		}

		qty := decimal.Min(o.Remaining(), best.Remaining())
		trade := &domain.Trade{
			ID:        uuid.New(),
			Price:     best.Price,
			Quantity:  qty,
			Timestamp: time.Now(),
		}
		if o.Side == domain.SideBuy {
			trade.BuyOrderID, trade.SellOrderID = o.ID, best.ID
		} else {
			trade.BuyOrderID, trade.SellOrderID = best.ID, o.ID
		}
		if err := s.store.SaveTrade(trade); err != nil {
			return err
		}
		if err := s.events.Append(domain.EventTradeExecuted, trade.ID.String(), trade); err != nil {
			return err
		}
		infra.GlobalMetrics.RecordMatch()
		s.notifier.Publish(trade)

		o.FilledQuantity = o.FilledQuantity.Add(qty)
		best.FilledQuantity = best.FilledQuantity.Add(qty)

		if best.FilledQuantity.GreaterThanOrEqual(best.Quantity) {
			best.Status = domain.OrderStatusFilled
			s.book.Remove(best)
		} else {
			best.Status = domain.OrderStatusPartiallyFilled
		}
		if o.FilledQuantity.GreaterThanOrEqual(o.Quantity) {
			o.Status = domain.OrderStatusFilled
		} else {
			o.Status = domain.OrderStatusPartiallyFilled
		}

		best.UpdatedAt = time.Now()
		if err := s.persistOrder(best); err != nil {
			return err
		}
		if err := s.events.Append(domain.EventOrderUpdated, best.ID.String(), best); err != nil {
			return err
		}
		s.notifier.Publish(best)
	}
	return nil
}

func (s *Sequencer) handleCancel(c cancelCmd) {
	o := c.order
	// Domain rejection is a no-op result, not an error: terminal orders
	// come back unchanged and no event is appended.
	if !o.IsOpen() {
		c.done <- Result{Order: o}
		return
	}

	o.Status = domain.OrderStatusCancelled
	o.UpdatedAt = time.Now()
	if err := s.persistOrder(o); err != nil {
		c.done <- Result{Err: err}
		return
	}
	if err := s.events.Append(domain.EventOrderCancelled, o.ID.String(), o); err != nil {
		c.done <- Result{Err: err}
		return
	}
	s.book.Remove(o)
	infra.GlobalMetrics.RecordCancel()
	s.notifier.Publish(o)
	c.done <- Result{Order: o}
}
