package service

import (
	"testing"
	"time"

	"trade_core/internal/domain"
)

func TestCreateSnapshot_EmptyBookIsSkipped(t *testing.T) {
	r, store, _, snapshots := newTestCore(t)
	r.Book("BTC-USD") // instantiate an empty book

	snap, err := snapshots.CreateSnapshot("BTC-USD")
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}
	if snap != nil {
		t.Fatal("empty book must not produce a snapshot")
	}
	stored, err := store.FindLatestSnapshot("BTC-USD")
	if err != nil {
		t.Fatalf("FindLatestSnapshot failed: %v", err)
	}
	if stored != nil {
		t.Fatal("no snapshot row expected")
	}
}

func TestCreateAll_SkipsEmptyBooks(t *testing.T) {
	r, _, _, snapshots := newTestCore(t)
	submitWait(t, r, newOrder("BTC-USD", domain.SideBuy, domain.OrderTypeLimit, "100", "1.0"))
	r.Book("ETH-USD") // known to the engine, but empty

	snaps := snapshots.CreateAll()
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].Instrument != "BTC-USD" {
		t.Errorf("expected BTC-USD snapshot, got %s", snaps[0].Instrument)
	}
}

func TestRestore_NoSnapshotIsNoOp(t *testing.T) {
	r, _, _, snapshots := newTestCore(t)
	resting := submitWait(t, r, newOrder("BTC-USD", domain.SideBuy, domain.OrderTypeLimit, "100", "1.0"))

	if err := snapshots.Restore("BTC-USD"); err != nil {
		t.Fatalf("Restore without a snapshot must not fail: %v", err)
	}
	best := r.Book("BTC-USD").Best(domain.SideBuy)
	if best == nil || best.ID != resting.ID {
		t.Error("book must be left untouched when no snapshot exists")
	}
}

func TestRestore_UsesLatestSnapshot(t *testing.T) {
	r, _, _, snapshots := newTestCore(t)

	first := submitWait(t, r, newOrder("BTC-USD", domain.SideBuy, domain.OrderTypeLimit, "95", "1.0"))
	if snap, err := snapshots.CreateSnapshot("BTC-USD"); err != nil || snap == nil {
		t.Fatalf("first snapshot: %v (err %v)", snap, err)
	}

	time.Sleep(10 * time.Millisecond)
	second := submitWait(t, r, newOrder("BTC-USD", domain.SideBuy, domain.OrderTypeLimit, "96", "1.0"))
	if snap, err := snapshots.CreateSnapshot("BTC-USD"); err != nil || snap == nil {
		t.Fatalf("second snapshot: %v (err %v)", snap, err)
	}

	if err := snapshots.Restore("BTC-USD"); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	bids, _ := bookState(r.Book("BTC-USD"))
	want := []string{second.ID.String(), first.ID.String()}
	if !sameIDs(bids, want) {
		t.Errorf("expected bids %v from latest snapshot, got %v", want, bids)
	}
}
