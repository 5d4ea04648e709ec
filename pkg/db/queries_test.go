package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestLoadSnapshotEmpty(t *testing.T) {
	d := newTestDB(t)
	if _, err := d.LoadSnapshot(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err=%v, expected ErrNoSnapshot", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	entry := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	in := Snapshot{
		Session: SessionRow{
			SavedAt:                entry,
			MachineID:              "m1",
			ProfileMode:            "BALANCED",
			InitialCapital:         1000,
			MinCapital:             940,
			TotalProfit:            -12.5,
			DailyProfit:            -12.5,
			DayStartBalance:        1000,
			LastDate:               "2026-08-31",
			CurrentMonth:           "2026-08",
			AbsoluteStop:           false,
			MonthlyStop:            true,
			MonthlyStopMonth:       "2026-08",
			DailyConsecutiveWins:   0,
			DailyConsecutiveLosses: 1,
			DailyLock:              true,
			DailyLockReason:        "losses",
			DailyLockTime:          entry.Add(time.Hour),
			MaxDailyConsecutive:    2,
		},
		OpenOrders: []OpenOrderRow{{
			ID:            "ord-1",
			Instrument:    "BTCUSD",
			Listing:       "BTCUSD-OTC",
			Direction:     "put",
			Stake:         20,
			EntryTime:     entry,
			ExpiryTime:    entry.Add(4 * time.Minute),
			EntryRSI:      31.2,
			BalanceBefore: 987.5,
			AssetGroup:    "CRYPTO",
			Status:        "OPEN",
		}},
		Instruments: []InstrumentStatsRow{{
			Instrument:        "BTCUSD",
			Wins:              3,
			Losses:            2,
			Ties:              1,
			ConsecutiveLosses: 1,
			LastSignalTime:    entry,
		}},
		Monthly:   []MonthlyRow{{Month: "2026-08", Profit: -12.5, StartingBalance: 1000}},
		Histories: map[string][]float64{"BTCUSD": {40, 38, 35, 31}},
	}

	if err := d.SaveSnapshot(ctx, in); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	out, err := d.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if out.Session != in.Session {
		t.Fatalf("session mismatch:\n got %+v\nwant %+v", out.Session, in.Session)
	}
	if len(out.OpenOrders) != 1 || out.OpenOrders[0] != in.OpenOrders[0] {
		t.Fatalf("open orders mismatch: %+v", out.OpenOrders)
	}
	if len(out.Instruments) != 1 || out.Instruments[0] != in.Instruments[0] {
		t.Fatalf("instrument stats mismatch: %+v", out.Instruments)
	}
	if len(out.Monthly) != 1 || out.Monthly[0] != in.Monthly[0] {
		t.Fatalf("monthly mismatch: %+v", out.Monthly)
	}
	got := out.Histories["BTCUSD"]
	if len(got) != 4 || got[0] != 40 || got[3] != 31 {
		t.Fatalf("history mismatch: %v", got)
	}
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	first := Snapshot{
		Session:    SessionRow{SavedAt: time.Now(), ProfileMode: "BALANCED", InitialCapital: 1000, MinCapital: 1000, MaxDailyConsecutive: 2},
		OpenOrders: []OpenOrderRow{{ID: "stale", Instrument: "ETHUSD", Listing: "ETHUSD", Direction: "call", Status: "OPEN"}},
	}
	if err := d.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second := first
	second.OpenOrders = nil
	if err := d.SaveSnapshot(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	out, err := d.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.OpenOrders) != 0 {
		t.Fatalf("stale open orders survived: %+v", out.OpenOrders)
	}
}
