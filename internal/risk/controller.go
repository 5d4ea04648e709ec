// Package risk sizes positions and enforces the capital stop-losses.
package risk

import (
	"log"
	"math"

	"options-core/internal/ledger"
	"options-core/internal/profile"
)

// Controller applies the position sizing and stop-loss rules against the
// ledger's capital tracking.
type Controller struct {
	ledger *ledger.Ledger

	// overridePercent, when > 0, replaces every group's position percent.
	overridePercent float64
	minPositionSize float64

	absoluteStopPercent float64
	monthlyStopPercent  float64
}

// New builds a controller. overridePercent of 0 keeps per-group sizing.
func New(l *ledger.Ledger, overridePercent, minPositionSize, absoluteStopPercent, monthlyStopPercent float64) *Controller {
	if minPositionSize <= 0 {
		minPositionSize = 1
	}
	return &Controller{
		ledger:              l,
		overridePercent:     overridePercent,
		minPositionSize:     minPositionSize,
		absoluteStopPercent: absoluteStopPercent,
		monthlyStopPercent:  monthlyStopPercent,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Stake returns the amount to commit for a trade on an instrument in the
// given group. There is no upper cap.
func (c *Controller) Stake(balance float64, prof profile.GroupProfile) float64 {
	pct := prof.PositionPercent
	if c.overridePercent > 0 {
		pct = c.overridePercent
	}
	stake := round2(balance * pct)
	if stake < c.minPositionSize {
		return c.minPositionSize
	}
	return stake
}

// CheckStopLoss evaluates both stop-loss rules against the current balance
// and reports whether trading must halt. The absolute stop is permanent for
// the session; the monthly stop clears on month rollover.
func (c *Controller) CheckStopLoss(balance float64) bool {
	c.ledger.ObserveBalance(balance)

	if c.ledger.AbsoluteStopped() {
		return true
	}

	t := c.ledger.Totals()
	if t.InitialCapital > 0 && balance <= t.InitialCapital*(1-c.absoluteStopPercent) {
		log.Printf("risk: ABSOLUTE STOP LOSS, balance %.2f is %.0f%% below initial %.2f",
			balance, c.absoluteStopPercent*100, t.InitialCapital)
		c.ledger.SetAbsoluteStop()
		return true
	}

	month := c.ledger.CurrentMonth()
	if c.ledger.MonthlyStopped(month) {
		return true
	}
	start := c.ledger.MonthStart(month)
	if start > 0 && balance <= start*(1-c.monthlyStopPercent) {
		log.Printf("risk: monthly stop loss for %s, balance %.2f is %.0f%% below month start %.2f",
			month, balance, c.monthlyStopPercent*100, start)
		c.ledger.SetMonthlyStop(month)
		return true
	}
	return false
}
