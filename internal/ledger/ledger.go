// Package ledger holds the authoritative session counters: wins/losses/ties,
// profit, drawdown, lock state. Only order resolution and day/month rollover
// mutate it.
package ledger

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// LockReason records which streak tripped the daily lock.
type LockReason string

const (
	LockWins   LockReason = "wins"
	LockLosses LockReason = "losses"
)

type instrumentStats struct {
	wins, losses, ties int
	consecutiveLosses  int
	lastSignal         time.Time
}

// Ledger is safe for concurrent reads from the API while the scheduler writes.
type Ledger struct {
	mu sync.RWMutex

	profileMode string

	initialCapital  float64
	minCapital      float64
	totalProfit     float64
	dailyProfit     float64
	dayStartBalance float64

	lastDate     string // YYYY-MM-DD
	currentMonth string // YYYY-MM

	byInstrument map[string]*instrumentStats

	monthlyProfit map[string]float64
	monthlyStart  map[string]float64

	absoluteStop     bool
	monthlyStop      bool
	monthlyStopMonth string

	dailyWins           int
	dailyLosses         int
	dailyLock           bool
	dailyLockReason     LockReason
	dailyLockTime       time.Time
	maxDailyConsecutive int
}

// New builds a fresh ledger for a session starting at initialCapital.
func New(initialCapital float64, profileMode string, maxDailyConsecutive int) *Ledger {
	if maxDailyConsecutive <= 0 {
		maxDailyConsecutive = 2
	}
	now := time.Now()
	return &Ledger{
		profileMode:         profileMode,
		initialCapital:      initialCapital,
		minCapital:          initialCapital,
		dayStartBalance:     initialCapital,
		lastDate:            now.Format("2006-01-02"),
		currentMonth:        now.Format("2006-01"),
		byInstrument:        make(map[string]*instrumentStats),
		monthlyProfit:       make(map[string]float64),
		monthlyStart:        map[string]float64{now.Format("2006-01"): initialCapital},
		maxDailyConsecutive: maxDailyConsecutive,
	}
}

func (l *Ledger) stats(instrument string) *instrumentStats {
	st := l.byInstrument[instrument]
	if st == nil {
		st = &instrumentStats{}
		l.byInstrument[instrument] = st
	}
	return st
}

// ApplyWin credits a net profit and advances the win streak. Returns true when
// this outcome activated the daily lock.
func (l *Ledger) ApplyWin(instrument string, profit float64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.stats(instrument)
	st.wins++
	st.consecutiveLosses = 0
	l.totalProfit += profit
	l.dailyProfit += profit

	l.dailyWins++
	l.dailyLosses = 0
	return l.maybeLock(LockWins, now)
}

// ApplyLoss debits the stake and advances the loss streak. Returns true when
// this outcome activated the daily lock.
func (l *Ledger) ApplyLoss(instrument string, stake float64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.stats(instrument)
	st.losses++
	st.consecutiveLosses++
	l.totalProfit -= stake
	l.dailyProfit -= stake

	l.dailyLosses++
	l.dailyWins = 0
	return l.maybeLock(LockLosses, now)
}

// ApplyTie counts the outcome without touching profit or either streak.
func (l *Ledger) ApplyTie(instrument string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats(instrument).ties++
}

func (l *Ledger) maybeLock(reason LockReason, now time.Time) bool {
	if l.dailyLock {
		return false
	}
	streak := l.dailyWins
	if reason == LockLosses {
		streak = l.dailyLosses
	}
	if streak < l.maxDailyConsecutive {
		return false
	}
	l.dailyLock = true
	l.dailyLockReason = reason
	l.dailyLockTime = now
	log.Printf("ledger: daily lock activated after %d consecutive %s", streak, reason)
	return true
}

// DailyLocked reports the lock flag with its reason.
func (l *Ledger) DailyLocked() (bool, LockReason) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dailyLock, l.dailyLockReason
}

// MarkSignal records the time a signal was acted on for an instrument.
func (l *Ledger) MarkSignal(instrument string, t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats(instrument).lastSignal = t
}

// CanSignal reports whether enough time has passed since the instrument's
// last acted-on signal.
func (l *Ledger) CanSignal(instrument string, now time.Time, minGap time.Duration) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := l.byInstrument[instrument]
	if st == nil || st.lastSignal.IsZero() {
		return true
	}
	return now.Sub(st.lastSignal) >= minGap
}

// ObserveBalance tracks the drawdown floor.
func (l *Ledger) ObserveBalance(balance float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if balance < l.minCapital {
		l.minCapital = balance
		lossPct := (l.initialCapital - l.minCapital) / l.initialCapital * 100
		log.Printf("ledger: new capital low %.2f (%.2f%% down from start)", l.minCapital, lossPct)
	}
}

// SetAbsoluteStop trips the permanent stop-loss flag.
func (l *Ledger) SetAbsoluteStop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.absoluteStop = true
}

// AbsoluteStopped reports the permanent stop-loss flag.
func (l *Ledger) AbsoluteStopped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.absoluteStop
}

// SetMonthlyStop trips the month-scoped stop-loss flag.
func (l *Ledger) SetMonthlyStop(month string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.monthlyStop = true
	l.monthlyStopMonth = month
}

// MonthlyStopped reports whether the monthly stop is active for month.
func (l *Ledger) MonthlyStopped(month string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.monthlyStop && l.monthlyStopMonth == month
}

// CurrentMonth returns the tracked month key (YYYY-MM).
func (l *Ledger) CurrentMonth() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentMonth
}

// MonthStart returns the recorded starting balance for month, falling back to
// the initial capital.
func (l *Ledger) MonthStart(month string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.monthlyStart[month]; ok {
		return b
	}
	return l.initialCapital
}

// StartNewMonth records a month rollover and clears a previous month's stop.
func (l *Ledger) StartNewMonth(month string, balance float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	log.Printf("ledger: new month %s, starting balance %.2f", month, balance)
	l.currentMonth = month
	l.monthlyStart[month] = balance
	if l.monthlyStop {
		l.monthlyStop = false
		l.monthlyStopMonth = ""
		log.Printf("ledger: monthly stop loss cleared")
	}
}

// LastDate returns the last tracked calendar date (YYYY-MM-DD).
func (l *Ledger) LastDate() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastDate
}

// StartNewDay rolls the prior day's profit into its month, resets the daily
// counters and lock, and snapshots the new day's starting balance.
func (l *Ledger) StartNewDay(now time.Time, balance float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dailyLock {
		log.Printf("ledger: daily lock released on day rollover (%s streak)", l.dailyLockReason)
	}
	if l.lastDate != "" {
		if t, err := time.Parse("2006-01-02", l.lastDate); err == nil {
			l.monthlyProfit[t.Format("2006-01")] += l.dailyProfit
		}
	}

	l.dailyProfit = 0
	l.dailyWins = 0
	l.dailyLosses = 0
	l.dailyLock = false
	l.dailyLockReason = ""
	l.dailyLockTime = time.Time{}
	for _, st := range l.byInstrument {
		st.consecutiveLosses = 0
	}
	if balance > 0 {
		l.dayStartBalance = balance
	}
	l.lastDate = now.Format("2006-01-02")
	log.Printf("ledger: daily counters reset for %s", l.lastDate)
}

// ReconcileDaily corrects the daily profit against the live balance when the
// two drift by more than one currency unit.
func (l *Ledger) ReconcileDaily(balance float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	real := balance - l.dayStartBalance
	if diff := real - l.dailyProfit; diff > 1.0 || diff < -1.0 {
		log.Printf("ledger: daily profit drift (tracked %.2f, real %.2f), adjusting", l.dailyProfit, real)
		l.dailyProfit = real
	}
}

// Totals is an aggregate counters view.
type Totals struct {
	Wins, Losses, Ties int
	TotalProfit        float64
	DailyProfit        float64
	MinCapital         float64
	InitialCapital     float64
}

// Totals returns the aggregate counters.
func (l *Ledger) Totals() Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t := Totals{
		TotalProfit:    l.totalProfit,
		DailyProfit:    l.dailyProfit,
		MinCapital:     l.minCapital,
		InitialCapital: l.initialCapital,
	}
	for _, st := range l.byInstrument {
		t.Wins += st.wins
		t.Losses += st.losses
		t.Ties += st.ties
	}
	return t
}

// Summary renders the end-of-session report.
func (l *Ledger) Summary(finalBalance float64) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	t := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	var wins, losses, ties int
	for _, st := range l.byInstrument {
		wins += st.wins
		losses += st.losses
		ties += st.ties
	}
	total := wins + losses + ties

	t("session summary")
	t("  initial capital: %.2f, final balance: %.2f", l.initialCapital, finalBalance)
	if l.initialCapital > 0 {
		t("  total return: %.2f%%", (finalBalance-l.initialCapital)/l.initialCapital*100)
	}
	t("  trades: %d (%dW/%dL/%dT)", total, wins, losses, ties)
	if wins+losses > 0 {
		t("  win rate (excluding ties): %.2f%%", float64(wins)/float64(wins+losses)*100)
	}
	t("  net profit: %.2f, capital low: %.2f", l.totalProfit, l.minCapital)
	if l.absoluteStop {
		t("  absolute stop loss: TRIPPED")
	}
	if l.monthlyStop {
		t("  monthly stop loss: TRIPPED in %s", l.monthlyStopMonth)
	}
	if l.dailyLock {
		t("  daily lock: active since %s (%s)", l.dailyLockTime.Format("15:04"), l.dailyLockReason)
	}

	months := make([]string, 0, len(l.monthlyProfit))
	for m := range l.monthlyProfit {
		months = append(months, m)
	}
	sort.Strings(months)
	for _, m := range months {
		tag := ""
		if m == l.monthlyStopMonth {
			tag = " (stop loss)"
		}
		t("  %s: %.2f%s", m, l.monthlyProfit[m], tag)
	}
	return b.String()
}
