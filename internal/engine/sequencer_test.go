package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
	"trade_core/internal/infra"
	"trade_core/internal/infra/storage"
)

// logStub counts appended events; the replay path has its own tests in the
// service package.
type logStub struct {
	mu      sync.Mutex
	appends []string
}

func (l *logStub) Append(eventType, aggregateID string, payload any) error {
	// Mirror the real writer's serialization so payload problems surface.
	if payload != nil {
		if _, err := json.Marshal(payload); err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.appends = append(l.appends, eventType)
	l.mu.Unlock()
	return nil
}

func (l *logStub) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.appends)
}

type noopNotifier struct{}

func (noopNotifier) Publish(any) {}

func newTestRouter(t *testing.T) (*Router, *storage.Storage, *logStub) {
	t.Helper()
	store, err := storage.NewStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	events := &logStub{}
	cache := infra.NewMemoryCache(time.Minute)
	return NewRouter(ctx, store, events, cache, noopNotifier{}, 64), store, events
}

func newOrder(side domain.Side, typ domain.OrderType, price, qty string) *domain.Order {
	p, _ := decimal.NewFromString(price)
	q, _ := decimal.NewFromString(qty)
	return &domain.Order{
		ClientID:   "client-1",
		Instrument: "BTC-USD",
		Side:       side,
		Type:       typ,
		Price:      p,
		Quantity:   q,
	}
}

func submitWait(t *testing.T, r *Router, o *domain.Order, key string) *domain.Order {
	t.Helper()
	done, err := r.SubmitOrder(o, key)
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	res := <-done
	if res.Err != nil {
		t.Fatalf("submit command failed: %v", res.Err)
	}
	return res.Order
}

func TestSubmit_MarketAgainstLimit(t *testing.T) {
	r, store, _ := newTestRouter(t)

	sell := submitWait(t, r, newOrder(domain.SideSell, domain.OrderTypeLimit, "100", "1.0"), "")
	buy := submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeMarket, "0", "1.0"), "")

	if buy.Status != domain.OrderStatusFilled {
		t.Errorf("buyer: expected FILLED, got %s", buy.Status)
	}
	storedSell, _ := store.FindOrder(sell.ID)
	if storedSell.Status != domain.OrderStatusFilled {
		t.Errorf("seller: expected FILLED, got %s", storedSell.Status)
	}

	trades, err := store.FindAllTrades()
	if err != nil || len(trades) != 1 {
		t.Fatalf("expected exactly one trade, got %d (err %v)", len(trades), err)
	}
	tr := trades[0]
	if !tr.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("trade must execute at resting price 100, got %s", tr.Price)
	}
	if !tr.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected trade qty 1.0, got %s", tr.Quantity)
	}
	if tr.BuyOrderID != buy.ID || tr.SellOrderID != sell.ID {
		t.Error("trade references the wrong participants")
	}
	if r.Book("BTC-USD").Size() != 0 {
		t.Error("filled orders must not rest in the book")
	}
}

func TestSubmit_PriceTimePriorityAcrossLevels(t *testing.T) {
	r, store, _ := newTestRouter(t)

	sellAt100 := submitWait(t, r, newOrder(domain.SideSell, domain.OrderTypeLimit, "100", "1.0"), "")
	sellAt99 := submitWait(t, r, newOrder(domain.SideSell, domain.OrderTypeLimit, "99", "1.0"), "")

	asks := r.Book("BTC-USD").Asks()
	if len(asks) != 2 || !asks[0].Price.Equal(decimal.NewFromInt(99)) || !asks[1].Price.Equal(decimal.NewFromInt(100)) {
		t.Fatal("asks must be ordered [99, 100]")
	}

	buy := submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeLimit, "100", "1.5"), "")
	if buy.Status != domain.OrderStatusFilled {
		t.Errorf("buyer: expected FILLED, got %s", buy.Status)
	}

	trades, _ := store.FindAllTrades()
	if len(trades) != 2 {
		t.Fatalf("expected two trades, got %d", len(trades))
	}
	if !trades[0].Price.Equal(decimal.NewFromInt(99)) || !trades[0].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("first trade must hit 99 for 1.0, got %s for %s", trades[0].Price, trades[0].Quantity)
	}
	if !trades[1].Price.Equal(decimal.NewFromInt(100)) || !trades[1].Quantity.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("second trade must hit 100 for 0.5, got %s for %s", trades[1].Price, trades[1].Quantity)
	}

	stored99, _ := store.FindOrder(sellAt99.ID)
	if stored99.Status != domain.OrderStatusFilled {
		t.Errorf("99 ask: expected FILLED, got %s", stored99.Status)
	}
	stored100, _ := store.FindOrder(sellAt100.ID)
	if stored100.Status != domain.OrderStatusPartiallyFilled {
		t.Errorf("100 ask: expected PARTIALLY_FILLED, got %s", stored100.Status)
	}
	if !stored100.FilledQuantity.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("100 ask: expected filled 0.5, got %s", stored100.FilledQuantity)
	}

	book := r.Book("BTC-USD")
	if book.Size() != 1 || book.Best(domain.SideSell).ID != sellAt100.ID {
		t.Error("only the partially filled ask may rest in the book")
	}
}

func TestSubmit_LimitRemainderRests(t *testing.T) {
	r, _, _ := newTestRouter(t)

	buy := submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeLimit, "100", "2.0"), "")
	if buy.Status != domain.OrderStatusOpen {
		t.Errorf("unmatched limit order stays OPEN, got %s", buy.Status)
	}
	best := r.Book("BTC-USD").Best(domain.SideBuy)
	if best == nil || best.ID != buy.ID {
		t.Fatal("unmatched limit order must rest as best bid")
	}
}

func TestSubmit_MarketRemainderDropped(t *testing.T) {
	r, store, _ := newTestRouter(t)

	submitWait(t, r, newOrder(domain.SideSell, domain.OrderTypeLimit, "100", "1.0"), "")
	buy := submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeMarket, "0", "2.0"), "")

	if buy.Status != domain.OrderStatusPartiallyFilled {
		t.Errorf("expected PARTIALLY_FILLED, got %s", buy.Status)
	}
	if !buy.FilledQuantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected filled 1.0, got %s", buy.FilledQuantity)
	}
	// The unmet remainder is dropped, never rested.
	if r.Book("BTC-USD").Size() != 0 {
		t.Error("market orders must never rest in the book")
	}
	trades, _ := store.FindAllTrades()
	if len(trades) != 1 {
		t.Errorf("expected one trade, got %d", len(trades))
	}
}

func TestSubmit_LimitDoesNotCrossWorsePrice(t *testing.T) {
	r, store, _ := newTestRouter(t)

	submitWait(t, r, newOrder(domain.SideSell, domain.OrderTypeLimit, "101", "1.0"), "")
	buy := submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeLimit, "100", "1.0"), "")

	if buy.Status != domain.OrderStatusOpen {
		t.Errorf("non-crossing limit stays OPEN, got %s", buy.Status)
	}
	trades, _ := store.FindAllTrades()
	if len(trades) != 0 {
		t.Errorf("expected no trades, got %d", len(trades))
	}
	if r.Book("BTC-USD").Size() != 2 {
		t.Error("both orders must rest")
	}
}

func TestSubmit_IdempotentResubmission(t *testing.T) {
	r, store, _ := newTestRouter(t)

	first := submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeLimit, "100", "1.0"), "key-1")
	second := submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeLimit, "100", "1.0"), "key-1")

	if first.ID != second.ID {
		t.Errorf("retried submission must return the same order, got %s and %s", first.ID, second.ID)
	}
	if first.Status != second.Status || !first.FilledQuantity.Equal(second.FilledQuantity) {
		t.Error("retried submission must return identical final state")
	}
	orders, _ := store.FindAllOrders()
	if len(orders) != 1 {
		t.Errorf("expected exactly one stored order, got %d", len(orders))
	}
	if r.Book("BTC-USD").Size() != 1 {
		t.Errorf("expected a single resting order, got %d", r.Book("BTC-USD").Size())
	}
}

func TestCancel_RestingOrder(t *testing.T) {
	r, store, events := newTestRouter(t)

	o := submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeLimit, "100", "1.0"), "")
	before := events.count()

	done, err := r.CancelOrder(o.ID)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	res := <-done
	if res.Err != nil {
		t.Fatalf("cancel command failed: %v", res.Err)
	}
	if res.Order.Status != domain.OrderStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", res.Order.Status)
	}
	if r.Book("BTC-USD").Size() != 0 {
		t.Error("cancelled order must leave the book")
	}
	stored, _ := store.FindOrder(o.ID)
	if stored.Status != domain.OrderStatusCancelled {
		t.Errorf("store must hold CANCELLED, got %s", stored.Status)
	}
	if events.count() != before+1 {
		t.Errorf("expected one cancellation event, got %d new", events.count()-before)
	}
}

func TestCancel_FilledOrderIsNoOp(t *testing.T) {
	r, _, events := newTestRouter(t)

	sell := submitWait(t, r, newOrder(domain.SideSell, domain.OrderTypeLimit, "100", "1.0"), "")
	submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeMarket, "0", "1.0"), "")
	before := events.count()

	done, err := r.CancelOrder(sell.ID)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	res := <-done
	if res.Err != nil {
		t.Fatalf("cancel command failed: %v", res.Err)
	}
	if res.Order.Status != domain.OrderStatusFilled {
		t.Errorf("no-op cancel returns the order unchanged, got %s", res.Order.Status)
	}
	if events.count() != before {
		t.Error("no-op cancel must not append an event")
	}
}

func TestCancel_UnknownOrder(t *testing.T) {
	r, _, _ := newTestRouter(t)
	if _, err := r.CancelOrder(uuid.New()); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSubmit_ValidationRejectedBeforeSequencer(t *testing.T) {
	r, store, events := newTestRouter(t)

	bad := newOrder("LONG", domain.OrderTypeLimit, "100", "1.0")
	if _, err := r.SubmitOrder(bad, ""); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if events.count() != 0 {
		t.Error("validation failures must not be logged as domain events")
	}
	orders, _ := store.FindAllOrders()
	if len(orders) != 0 {
		t.Error("rejected orders must not be persisted")
	}
}

func TestQuantityConservation(t *testing.T) {
	r, store, _ := newTestRouter(t)

	submitWait(t, r, newOrder(domain.SideSell, domain.OrderTypeLimit, "100", "0.7"), "")
	submitWait(t, r, newOrder(domain.SideSell, domain.OrderTypeLimit, "100", "0.9"), "")
	submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeLimit, "100", "1.0"), "")

	orders, _ := store.FindAllOrders()
	for _, o := range orders {
		if o.FilledQuantity.IsNegative() || o.FilledQuantity.GreaterThan(o.Quantity) {
			t.Errorf("order %s violates 0 <= filled <= quantity: %s/%s", o.ID, o.FilledQuantity, o.Quantity)
		}
		filled := o.FilledQuantity.Equal(o.Quantity)
		if filled != (o.Status == domain.OrderStatusFilled) {
			t.Errorf("order %s: status %s inconsistent with filled %s/%s", o.ID, o.Status, o.FilledQuantity, o.Quantity)
		}
	}
}

func TestInstrumentIsolation(t *testing.T) {
	r, store, _ := newTestRouter(t)

	eth := newOrder(domain.SideSell, domain.OrderTypeLimit, "100", "1.0")
	eth.Instrument = "ETH-USD"
	submitWait(t, r, eth, "")
	buy := submitWait(t, r, newOrder(domain.SideBuy, domain.OrderTypeLimit, "100", "1.0"), "")

	// The BTC buy must not cross the ETH ask.
	if buy.Status != domain.OrderStatusOpen {
		t.Errorf("expected OPEN, got %s", buy.Status)
	}
	trades, _ := store.FindAllTrades()
	if len(trades) != 0 {
		t.Errorf("expected no cross-instrument trades, got %d", len(trades))
	}

	names := r.InstrumentNames()
	if len(names) != 2 {
		t.Errorf("expected two instruments, got %v", names)
	}
}
