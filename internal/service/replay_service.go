package service

import (
	"encoding/json"
	"log/slog"
	"time"

	"trade_core/internal/domain"
	"trade_core/internal/engine"
	"trade_core/internal/infra"
)

// ReplayService rebuilds order/trade state and order books from the event
// log. It must not run concurrently with live command processing on the
// affected instruments; callers run it during an administrative window.
type ReplayService struct {
	store  domain.Store
	router *engine.Router
}

// NewReplayService creates a replayer over the given store and engine.
func NewReplayService(store domain.Store, router *engine.Router) *ReplayService {
	return &ReplayService{store: store, router: router}
}

// ReplayAll drops every order and trade row, clears every book, then
// applies the whole event log in log-position order.
func (s *ReplayService) ReplayAll() error {
	slog.Warn("replaying event log from scratch; dropping existing orders and trades")
	if err := s.store.DeleteAllOrders(); err != nil {
		return err
	}
	if err := s.store.DeleteAllTrades(); err != nil {
		return err
	}
	s.router.ResetBooks()

	events, err := s.store.FindAllEvents()
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := s.apply(ev); err != nil {
			return err
		}
	}
	slog.Info("replay complete", slog.Int("events", len(events)))
	return nil
}

// ReplayAfter applies only events with timestamp strictly greater than
// cursor. Existing state is kept: a snapshot is assumed to have
// established the baseline.
func (s *ReplayService) ReplayAfter(cursor time.Time) error {
	events, err := s.store.FindEventsAfter(cursor)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := s.apply(ev); err != nil {
			return err
		}
	}
	slog.Info("delta replay complete",
		slog.Int("events", len(events)),
		slog.Time("cursor", cursor))
	return nil
}

// apply upserts the event's aggregate and adjusts the relevant book.
// A payload that fails to deserialize is skipped with a warning; that is a
// deliberate lossy-recovery tradeoff, surfaced through the replay-skip
// counter. Store errors abort the replay.
func (s *ReplayService) apply(ev *domain.EventRecord) error {
	switch ev.EventType {
	case domain.EventOrderCreated, domain.EventOrderUpdated, domain.EventOrderCancelled:
		var o domain.Order
		if err := json.Unmarshal([]byte(ev.Payload), &o); err != nil {
			s.skip(ev, err)
			return nil
		}
		if err := s.store.SaveOrder(&o); err != nil {
			return err
		}
		book := s.router.Book(o.Instrument)
		// Remove-then-insert keeps a single book entry per order while
		// converging on the payload's latest state. Market orders never
		// rest: an unfilled market remainder was dropped at match time.
		book.Remove(&o)
		if ev.EventType != domain.EventOrderCancelled && o.IsOpen() && o.Type == domain.OrderTypeLimit {
			book.Insert(&o)
		}
	case domain.EventTradeExecuted:
		var t domain.Trade
		if err := json.Unmarshal([]byte(ev.Payload), &t); err != nil {
			s.skip(ev, err)
			return nil
		}
		// Trades only touch the store; they are never placed in a book.
		if err := s.store.SaveTrade(&t); err != nil {
			return err
		}
	default:
		slog.Warn("unknown event type in replay",
			slog.String("event_type", ev.EventType),
			slog.Uint64("position", ev.ID))
		infra.GlobalMetrics.RecordReplaySkip()
	}
	return nil
}

func (s *ReplayService) skip(ev *domain.EventRecord, err error) {
	slog.Warn("failed to deserialize event payload; skipping",
		slog.String("event_type", ev.EventType),
		slog.String("aggregate_id", ev.AggregateID),
		slog.Uint64("position", ev.ID),
		slog.Any("error", err))
	infra.GlobalMetrics.RecordReplaySkip()
}
