package risk

import (
	"testing"

	"options-core/internal/ledger"
	"options-core/internal/profile"
)

func newTestController(initial float64, override float64) (*Controller, *ledger.Ledger) {
	l := ledger.New(initial, "BALANCED", 2)
	return New(l, override, 1, 0.75, 0.40), l
}

func TestStake(t *testing.T) {
	tests := []struct {
		name     string
		balance  float64
		percent  float64
		override float64
		want     float64
	}{
		{name: "five percent of 1000", balance: 1000, percent: 0.05, want: 50},
		{name: "floor at minimum position", balance: 10, percent: 0.05, want: 1},
		{name: "crypto two percent", balance: 1000, percent: 0.02, want: 20},
		{name: "override replaces group percent", balance: 1000, percent: 0.05, override: 0.10, want: 100},
		{name: "rounds to cents", balance: 333.33, percent: 0.05, want: 16.67},
		{name: "no upper cap", balance: 1000000, percent: 0.05, want: 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(1000, tt.override)
			got := c.Stake(tt.balance, profile.GroupProfile{PositionPercent: tt.percent})
			if got != tt.want {
				t.Fatalf("Stake=%v, expected %v", got, tt.want)
			}
		})
	}
}

func TestAbsoluteStopLossIsPermanent(t *testing.T) {
	c, l := newTestController(1000, 0)
	// Start the month from a low balance so its 40% threshold sits below the
	// absolute one and only the absolute path is in play.
	l.StartNewMonth("2026-09", 320)

	if c.CheckStopLoss(500) {
		t.Fatal("stop loss tripped at 50% drawdown, threshold is 75%")
	}
	if !c.CheckStopLoss(250) {
		t.Fatal("stop loss did not trip at 75% drawdown")
	}
	if !l.AbsoluteStopped() {
		t.Fatal("absolute flag not set")
	}
	// Recovery does not clear it.
	if !c.CheckStopLoss(900) {
		t.Fatal("absolute stop cleared after balance recovery")
	}
}

func TestMonthlyStopLossScopedToMonth(t *testing.T) {
	c, l := newTestController(1000, 0)
	month := l.CurrentMonth()

	if !c.CheckStopLoss(600) {
		t.Fatal("monthly stop did not trip at 40% below month start")
	}
	if !l.MonthlyStopped(month) {
		t.Fatal("monthly flag not set for current month")
	}
	if l.AbsoluteStopped() {
		t.Fatal("absolute flag set by a monthly-only drawdown")
	}

	// A new month with a fresh starting balance clears the halt.
	l.StartNewMonth("2026-09", 600)
	if c.CheckStopLoss(590) {
		t.Fatal("stop loss still tripped after month rollover")
	}
}

func TestObserveBalanceTracksFloor(t *testing.T) {
	c, l := newTestController(1000, 0)
	c.CheckStopLoss(800)
	c.CheckStopLoss(950)
	if got := l.Totals().MinCapital; got != 800 {
		t.Fatalf("MinCapital=%v, expected 800", got)
	}
}
