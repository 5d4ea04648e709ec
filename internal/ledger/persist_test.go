package ledger

import (
	"context"
	"testing"
	"time"

	"options-core/pkg/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	l := New(1000, "BALANCED", 2)
	l.ApplyWin("BTCUSD", 17, now)
	l.ApplyLoss("NVDA/AMD", 20, now)
	l.MarkSignal("BTCUSD", now)
	l.ObserveBalance(960)

	orders := []db.OpenOrderRow{{
		ID: "ord-1", Instrument: "ETHUSD", Listing: "ETHUSD-OTC", Direction: "put",
		Stake: 20, EntryTime: now.UTC(), ExpiryTime: now.UTC().Add(time.Minute),
		EntryRSI: 32, BalanceBefore: 980, AssetGroup: "CRYPTO", Status: "OPEN",
	}}
	histories := map[string][]float64{"ETHUSD": {40, 36, 33}}

	if err := store.Save(ctx, l, orders, histories); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored, err := store.Load(ctx, "BALANCED")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, want := restored.Ledger.Totals(), l.Totals()
	if got != want {
		t.Fatalf("totals mismatch:\n got %+v\nwant %+v", got, want)
	}
	if len(restored.OpenOrders) != 1 || restored.OpenOrders[0].ID != "ord-1" {
		t.Fatalf("open orders mismatch: %+v", restored.OpenOrders)
	}
	if h := restored.Histories["ETHUSD"]; len(h) != 3 || h[2] != 33 {
		t.Fatalf("histories mismatch: %v", restored.Histories)
	}
	if !restored.Ledger.CanSignal("NVDA/AMD", now.Add(time.Minute), time.Hour) {
		t.Fatal("fresh instrument blocked after restore")
	}
	if restored.Ledger.CanSignal("BTCUSD", now.Add(time.Minute), time.Hour) {
		t.Fatal("signal gap lost across restore")
	}
}

func TestStoreLoadDiscardsHistoriesOnProfileChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	l := New(1000, "AGGRESSIVE", 2)
	histories := map[string][]float64{"BTCUSD": {40, 38, 35, 31}}
	if err := store.Save(ctx, l, nil, histories); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored, err := store.Load(ctx, "CONSERVATIVE")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(restored.Histories) != 0 {
		t.Fatalf("histories survived a profile change: %v", restored.Histories)
	}
	// Counters still restore.
	if restored.Ledger.Totals().InitialCapital != 1000 {
		t.Fatalf("InitialCapital=%v, expected 1000", restored.Ledger.Totals().InitialCapital)
	}
}

func TestStoreLoadRestoresLockState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	l := New(1000, "BALANCED", 2)
	l.ApplyLoss("BTCUSD", 20, now)
	l.ApplyLoss("ETHUSD", 20, now)
	if err := store.Save(ctx, l, nil, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored, err := store.Load(ctx, "BALANCED")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	locked, reason := restored.Ledger.DailyLocked()
	if !locked || reason != LockLosses {
		t.Fatalf("DailyLocked=(%v, %q), expected (true, losses)", locked, reason)
	}
}
