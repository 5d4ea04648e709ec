package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"options-core/pkg/broker"
)

func TestDeterministicCandles(t *testing.T) {
	ctx := context.Background()
	to := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	a := New(7, 10000, nil)
	b := New(7, 10000, nil)
	ca, err := a.Candles(ctx, "BTCUSD", 5*time.Minute, 20, to)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	cb, _ := b.Candles(ctx, "BTCUSD", 5*time.Minute, 20, to)

	if len(ca) != 20 {
		t.Fatalf("len=%d, expected 20", len(ca))
	}
	for i := range ca {
		if ca[i].Close != cb[i].Close {
			t.Fatalf("candle %d diverged across equal seeds", i)
		}
	}
	if ca[0].From.After(ca[0].To) || !ca[19].To.Equal(to) {
		t.Fatalf("candle window wrong: first=%+v last=%+v", ca[0], ca[19])
	}
}

func TestBuyAndSettle(t *testing.T) {
	ctx := context.Background()
	c := New(11, 1000, nil)
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	id, err := c.Buy(ctx, 50, "BTCUSD", broker.Put, 4)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if bal, _ := c.Balance(ctx); bal != 950 {
		t.Fatalf("balance=%v after buy, expected stake deducted", bal)
	}

	// Before expiry the registry has nothing.
	if _, err := c.OrderResult(ctx, id); !errors.Is(err, broker.ErrUnavailable) {
		t.Fatalf("err=%v, expected ErrUnavailable before expiry", err)
	}

	now = now.Add(5 * time.Minute)
	out, err := c.OrderResult(ctx, id)
	if err != nil {
		t.Fatalf("OrderResult after expiry: %v", err)
	}
	bal, _ := c.Balance(ctx)
	switch out.Result {
	case broker.ResultWin:
		if bal != 950+50*1.85 {
			t.Fatalf("balance=%v, expected gross payout credited", bal)
		}
	case broker.ResultLoss:
		if bal != 950 {
			t.Fatalf("balance=%v, expected stake kept by the house", bal)
		}
	case broker.ResultTie:
		if bal != 1000 {
			t.Fatalf("balance=%v, expected stake returned", bal)
		}
	default:
		t.Fatalf("unexpected result %q", out.Result)
	}

	records, err := c.RecentOrders(ctx)
	if err != nil || len(records) != 1 || records[0].ID != id {
		t.Fatalf("RecentOrders=(%v, %v), expected the settled contract", records, err)
	}
}

func TestBuyRejectsClosedListing(t *testing.T) {
	ctx := context.Background()
	c := New(3, 1000, []string{"ETHUSD-OTC"})

	if _, err := c.Buy(ctx, 10, "BTCUSD-OTC", broker.Call, 4); !errors.Is(err, broker.ErrInstrumentClosed) {
		t.Fatalf("err=%v, expected ErrInstrumentClosed", err)
	}
	if _, err := c.Buy(ctx, 10, "ETHUSD-OTC", broker.Call, 4); err != nil {
		t.Fatalf("Buy on open listing: %v", err)
	}
}

func TestBuyRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	c := New(3, 20, nil)
	if _, err := c.Buy(ctx, 50, "BTCUSD", broker.Call, 4); err == nil {
		t.Fatal("Buy over balance succeeded")
	}
}
