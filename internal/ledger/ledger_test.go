package ledger

import (
	"testing"
	"time"
)

func TestDailyLockActivatesOnStreak(t *testing.T) {
	now := time.Now()

	t.Run("two consecutive losses", func(t *testing.T) {
		l := New(1000, "BALANCED", 2)
		if locked := l.ApplyLoss("BTCUSD", 20, now); locked {
			t.Fatal("locked after a single loss")
		}
		if locked := l.ApplyLoss("ETHUSD", 20, now); !locked {
			t.Fatal("not locked after two consecutive losses")
		}
		locked, reason := l.DailyLocked()
		if !locked || reason != LockLosses {
			t.Fatalf("DailyLocked=(%v, %q), expected (true, losses)", locked, reason)
		}
	})

	t.Run("two consecutive wins", func(t *testing.T) {
		l := New(1000, "BALANCED", 2)
		l.ApplyWin("BTCUSD", 17, now)
		if locked := l.ApplyWin("ETHUSD", 17, now); !locked {
			t.Fatal("not locked after two consecutive wins")
		}
		_, reason := l.DailyLocked()
		if reason != LockWins {
			t.Fatalf("reason=%q, expected wins", reason)
		}
	})

	t.Run("alternating outcomes never lock", func(t *testing.T) {
		l := New(1000, "BALANCED", 2)
		l.ApplyLoss("BTCUSD", 20, now)
		l.ApplyWin("BTCUSD", 17, now)
		l.ApplyLoss("BTCUSD", 20, now)
		l.ApplyWin("BTCUSD", 17, now)
		if locked, _ := l.DailyLocked(); locked {
			t.Fatal("locked despite alternating outcomes")
		}
	})

	t.Run("tie between losses leaves the streak alone", func(t *testing.T) {
		l := New(1000, "BALANCED", 2)
		l.ApplyLoss("BTCUSD", 20, now)
		l.ApplyTie("ETHUSD")
		if locked := l.ApplyLoss("DOTUSD", 20, now); !locked {
			t.Fatal("tie interrupted a loss streak")
		}
	})
}

func TestApplyOutcomesUpdateProfit(t *testing.T) {
	now := time.Now()
	l := New(1000, "BALANCED", 5)

	l.ApplyWin("BTCUSD", 17, now)
	l.ApplyLoss("BTCUSD", 20, now)
	l.ApplyTie("BTCUSD")

	tot := l.Totals()
	if tot.Wins != 1 || tot.Losses != 1 || tot.Ties != 1 {
		t.Fatalf("counters=(%d,%d,%d), expected (1,1,1)", tot.Wins, tot.Losses, tot.Ties)
	}
	if tot.TotalProfit != -3 {
		t.Fatalf("TotalProfit=%v, expected -3", tot.TotalProfit)
	}
	if tot.DailyProfit != -3 {
		t.Fatalf("DailyProfit=%v, expected -3", tot.DailyProfit)
	}
}

func TestStartNewDayResetsLockAndCounters(t *testing.T) {
	now := time.Now()
	l := New(1000, "BALANCED", 2)
	l.ApplyLoss("BTCUSD", 20, now)
	l.ApplyLoss("ETHUSD", 20, now)
	if locked, _ := l.DailyLocked(); !locked {
		t.Fatal("setup: expected lock")
	}

	l.StartNewDay(now.Add(24*time.Hour), 960)

	if locked, _ := l.DailyLocked(); locked {
		t.Fatal("lock survived day rollover")
	}
	tot := l.Totals()
	if tot.DailyProfit != 0 {
		t.Fatalf("DailyProfit=%v, expected 0 after rollover", tot.DailyProfit)
	}
	if tot.TotalProfit != -40 {
		t.Fatalf("TotalProfit=%v, expected -40 to survive rollover", tot.TotalProfit)
	}
	if got := l.LastDate(); got != now.Add(24*time.Hour).Format("2006-01-02") {
		t.Fatalf("LastDate=%q, expected the new day", got)
	}
}

func TestSignalGap(t *testing.T) {
	l := New(1000, "BALANCED", 2)
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	gap := 60 * time.Minute

	if !l.CanSignal("BTCUSD", base, gap) {
		t.Fatal("fresh instrument blocked")
	}
	l.MarkSignal("BTCUSD", base)
	if l.CanSignal("BTCUSD", base.Add(30*time.Minute), gap) {
		t.Fatal("signal allowed 30m after the last one")
	}
	if !l.CanSignal("BTCUSD", base.Add(gap), gap) {
		t.Fatal("signal blocked at exactly the gap")
	}
	if !l.CanSignal("ETHUSD", base.Add(time.Minute), gap) {
		t.Fatal("gap leaked across instruments")
	}
}

func TestReconcileDaily(t *testing.T) {
	now := time.Now()
	l := New(1000, "BALANCED", 5)
	l.ApplyWin("BTCUSD", 10, now)

	// Within one unit: tracked value stands.
	l.ReconcileDaily(1010.5)
	if got := l.Totals().DailyProfit; got != 10 {
		t.Fatalf("DailyProfit=%v, expected untouched 10", got)
	}

	// Real balance says +25: adopt it.
	l.ReconcileDaily(1025)
	if got := l.Totals().DailyProfit; got != 25 {
		t.Fatalf("DailyProfit=%v, expected reconciled 25", got)
	}
}

func TestMonthRollover(t *testing.T) {
	l := New(1000, "BALANCED", 2)
	first := l.CurrentMonth()

	l.SetMonthlyStop(first)
	l.StartNewMonth("2099-01", 850)

	if l.CurrentMonth() != "2099-01" {
		t.Fatalf("CurrentMonth=%q, expected 2099-01", l.CurrentMonth())
	}
	if l.MonthStart("2099-01") != 850 {
		t.Fatalf("MonthStart=%v, expected 850", l.MonthStart("2099-01"))
	}
	if l.MonthlyStopped("2099-01") {
		t.Fatal("monthly stop carried into the new month")
	}
}
