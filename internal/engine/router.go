package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"trade_core/internal/domain"
	"trade_core/internal/infra"
)

// Router maps instrument symbols to sequencers, creating them lazily on
// first reference. Sequencers are never removed once created. It is the
// single point where per-instrument parallelism is introduced: commands to
// different instruments proceed concurrently, commands to the same
// instrument are strictly ordered by queue arrival.
type Router struct {
	ctx       context.Context
	inboxSize int

	mu         sync.RWMutex
	sequencers map[string]*Sequencer

	store    domain.Store
	events   domain.EventLog
	cache    domain.IdempotencyCache
	notifier domain.Notifier
}

// NewRouter creates the engine. ctx bounds the lifetime of every sequencer
// goroutine the router spawns.
func NewRouter(ctx context.Context, store domain.Store, events domain.EventLog, cache domain.IdempotencyCache, notifier domain.Notifier, inboxSize int) *Router {
	return &Router{
		ctx:        ctx,
		inboxSize:  inboxSize,
		sequencers: make(map[string]*Sequencer),
		store:      store,
		events:     events,
		cache:      cache,
		notifier:   notifier,
	}
}

func (r *Router) sequencerFor(instrument string) *Sequencer {
	r.mu.RLock()
	seq, ok := r.sequencers[instrument]
	r.mu.RUnlock()
	if ok {
		return seq
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq, ok = r.sequencers[instrument]; ok {
		return seq
	}
	seq = NewSequencer(instrument, r.inboxSize, r.store, r.events, r.cache, r.notifier)
	r.sequencers[instrument] = seq
	go seq.Run(r.ctx)
	slog.Info("sequencer started", slog.String("instrument", instrument))
	return seq
}

// SubmitOrder validates the order and routes it to the owning sequencer.
// Validation failures are rejected here and never logged as domain events.
func (r *Router) SubmitOrder(o *domain.Order, idempotencyKey string) (<-chan Result, error) {
	if err := o.Validate(); err != nil {
		infra.GlobalMetrics.RecordRejected()
		return nil, err
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	infra.GlobalMetrics.RecordReceived()
	return r.sequencerFor(o.Instrument).Submit(o, idempotencyKey), nil
}

// CancelOrder resolves the order's instrument from the store and routes
// the cancellation to the owning sequencer.
func (r *Router) CancelOrder(id uuid.UUID) (<-chan Result, error) {
	o, err := r.store.FindOrder(id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	return r.sequencerFor(o.Instrument).Cancel(o), nil
}

// Book returns the order book for an instrument, creating the sequencer
// if absent.
func (r *Router) Book(instrument string) *OrderBook {
	return r.sequencerFor(instrument).Book()
}

// Depth returns the aggregated top-N price levels for an instrument.
func (r *Router) Depth(instrument string, levels int) BookDepth {
	return r.Book(instrument).Depth(levels)
}

// InstrumentNames returns every instrument known to the engine.
func (r *Router) InstrumentNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sequencers))
	for name := range r.sequencers {
		names = append(names, name)
	}
	return names
}

// ResetBooks clears every sequencer's book. Used only during full replay,
// never during normal operation.
func (r *Router) ResetBooks() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, seq := range r.sequencers {
		seq.Book().Clear()
	}
}

// LoadOpenOrders repopulates books from open orders in the store.
// Called once at startup before any live command is accepted.
func (r *Router) LoadOpenOrders() error {
	orders, err := r.store.FindOpenOrders()
	if err != nil {
		return err
	}
	for _, o := range orders {
		// A market order can be open in the store (unfilled remainder was
		// dropped at match time) but it never rests in a book.
		if o.Type != domain.OrderTypeLimit {
			continue
		}
		r.sequencerFor(o.Instrument).LoadOpenOrder(o)
	}
	if len(orders) > 0 {
		slog.Info("loaded open orders into books", slog.Int("count", len(orders)))
	}
	return nil
}

// BookSizeTotal sums resting orders across all instruments (depth gauge).
func (r *Router) BookSizeTotal() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, seq := range r.sequencers {
		total += seq.Book().Size()
	}
	return total
}
