// Package engine runs the polling trade loop: one goroutine per bot cycling
// through connectivity, risk gates, order resolution and signal evaluation.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"options-core/internal/indicators"
	"options-core/internal/ledger"
	"options-core/internal/order"
	"options-core/internal/profile"
	"options-core/internal/risk"
	"options-core/internal/signal"
	"options-core/internal/status"
	"options-core/pkg/broker"
)

const (
	defaultCycle = 15 * time.Second
	minCycle     = 5 * time.Second
	// stopLossBackoff is how long the loop idles while a monthly stop is
	// active, waiting for the month to roll over.
	stopLossBackoff = 5 * time.Minute
	reconnectDelay  = 10 * time.Second
	// candleCount covers the RSI warmup plus the rolling window.
	candleCount = 30
)

// Runner drives one bot session end to end.
type Runner struct {
	client  broker.Client
	pool    *broker.Pool
	catalog *profile.Catalog
	prof    profile.Aggressiveness

	indicators *indicators.Engine
	ledger     *ledger.Ledger
	risk       *risk.Controller
	orders     *order.Manager
	store      *ledger.Store
	recorder   *status.Recorder

	instruments []string
	minGap      time.Duration

	cycleInterval time.Duration
	snapshotEvery int
	listingsEvery int

	cycle int
	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// Options collects the runner's collaborators and tuning.
type Options struct {
	Client  broker.Client
	Pool    *broker.Pool
	Catalog *profile.Catalog
	Profile profile.Aggressiveness

	Indicators *indicators.Engine
	Ledger     *ledger.Ledger
	Risk       *risk.Controller
	Orders     *order.Manager
	Store      *ledger.Store // nil disables persistence
	Recorder   *status.Recorder

	Instruments   []string
	MinSignalGap  time.Duration
	CycleInterval time.Duration
	SnapshotEvery int
	ListingsEvery int
}

// New builds a runner, clamping the cycle interval to the floor.
func New(opts Options) *Runner {
	interval := opts.CycleInterval
	if interval <= 0 {
		interval = defaultCycle
	}
	if interval < minCycle {
		interval = minCycle
	}
	snapEvery := opts.SnapshotEvery
	if snapEvery <= 0 {
		snapEvery = 30
	}
	listEvery := opts.ListingsEvery
	if listEvery <= 0 {
		listEvery = 100
	}
	return &Runner{
		client:        opts.Client,
		pool:          opts.Pool,
		catalog:       opts.Catalog,
		prof:          opts.Profile,
		indicators:    opts.Indicators,
		ledger:        opts.Ledger,
		risk:          opts.Risk,
		orders:        opts.Orders,
		store:         opts.Store,
		recorder:      opts.Recorder,
		instruments:   opts.Instruments,
		minGap:        opts.MinSignalGap,
		cycleInterval: interval,
		snapshotEvery: snapEvery,
		listingsEvery: listEvery,
		now:           time.Now,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run executes cycles until ctx is cancelled or the absolute stop-loss trips,
// then persists a final snapshot and logs the session summary.
func (r *Runner) Run(ctx context.Context) error {
	r.recorder.SetState(ctx, "running")
	r.recorder.Logf(ctx, "session started, %d instruments, profile %s", len(r.instruments), r.prof.Mode)

	for ctx.Err() == nil {
		started := r.now()
		halt := r.runCycle(ctx)
		if halt {
			break
		}
		// Aim for a steady cycle period: subtract the work time, floored
		// so a slow cycle still yields between iterations.
		pause := r.cycleInterval - r.now().Sub(started)
		if pause < minCycle {
			pause = minCycle
		}
		r.sleep(ctx, pause)
	}

	return r.shutdown()
}

// runCycle performs one full pass. Returns true when the session must end.
func (r *Runner) runCycle(ctx context.Context) bool {
	r.cycle++
	now := r.now()

	if !r.client.CheckConnection() {
		log.Printf("engine: connection lost, reconnecting")
		if err := r.client.Connect(ctx); err != nil {
			r.recorder.Logf(ctx, "reconnect failed: %v", err)
			r.sleep(ctx, reconnectDelay)
			return false
		}
		r.recorder.Logf(ctx, "reconnected")
	}

	balance, err := r.balance(ctx)
	if err != nil {
		log.Printf("engine: balance unavailable, skipping cycle: %v", err)
		return false
	}

	if r.risk.CheckStopLoss(balance) {
		if r.ledger.AbsoluteStopped() {
			r.recorder.SetState(ctx, "stopped: absolute stop loss")
			r.recorder.Logf(ctx, "absolute stop loss hit at balance %.2f, ending session", balance)
			return true
		}
		r.recorder.SetState(ctx, "paused: monthly stop loss")
		r.rollMonthIfNeeded(now, balance)
		r.applySettlements(ctx, r.orders.SweepExpired(ctx, now))
		r.sleep(ctx, stopLossBackoff)
		return false
	}
	r.recorder.SetState(ctx, "running")

	r.rollMonthIfNeeded(now, balance)
	if today := now.Format("2006-01-02"); today != r.ledger.LastDate() {
		r.ledger.StartNewDay(now, balance)
		r.recorder.Logf(ctx, "new trading day %s, starting balance %.2f", today, balance)
	}
	r.ledger.ReconcileDaily(balance)

	r.applySettlements(ctx, r.orders.SweepExpired(ctx, now))

	if r.cycle == 1 || r.cycle%r.listingsEvery == 0 {
		if err := r.orders.RefreshListings(ctx); err != nil {
			log.Printf("engine: %v", err)
		}
	}

	if locked, reason := r.ledger.DailyLocked(); locked {
		r.recorder.SetState(ctx, fmt.Sprintf("locked: %s streak", reason))
	} else {
		for _, inst := range r.instruments {
			r.evaluateInstrument(ctx, inst, balance)
			if ctx.Err() != nil {
				return false
			}
		}
	}

	if r.cycle%r.snapshotEvery == 0 {
		r.persist(ctx)
	}
	return false
}

func (r *Runner) balance(ctx context.Context) (float64, error) {
	var balance float64
	err := r.pool.Do(ctx, "balance", func(ctx context.Context) error {
		var err error
		balance, err = r.client.Balance(ctx)
		return err
	})
	return balance, err
}

func (r *Runner) rollMonthIfNeeded(now time.Time, balance float64) {
	if month := now.Format("2006-01"); month != r.ledger.CurrentMonth() {
		r.ledger.StartNewMonth(month, balance)
	}
}

func (r *Runner) applySettlements(ctx context.Context, settled []order.Settlement) {
	for _, s := range settled {
		o := s.Order
		var locked bool
		switch s.Result {
		case broker.ResultWin:
			locked = r.ledger.ApplyWin(o.Instrument, s.NetProfit, r.now())
			r.recorder.Logf(ctx, "WIN %s %s +%.2f (via %s)", o.Instrument, o.Direction, s.NetProfit, s.Source)
		case broker.ResultLoss:
			locked = r.ledger.ApplyLoss(o.Instrument, o.Stake, r.now())
			r.recorder.Logf(ctx, "LOSS %s %s -%.2f (via %s)", o.Instrument, o.Direction, o.Stake, s.Source)
			// A loss always hits disk right away so a crash cannot
			// forget it and replay the stake.
			r.persist(ctx)
		case broker.ResultTie:
			r.ledger.ApplyTie(o.Instrument)
			r.recorder.Logf(ctx, "TIE %s %s stake returned (via %s)", o.Instrument, o.Direction, s.Source)
		}
		if locked {
			r.recorder.Logf(ctx, "daily lock activated, no new trades until tomorrow")
		}
	}
	if len(settled) > 0 {
		r.persist(ctx)
	}
}

// evaluateInstrument runs the per-instrument pipeline. Failures are isolated:
// a broker error on one instrument never blocks the rest of the cycle.
func (r *Runner) evaluateInstrument(ctx context.Context, inst string, balance float64) {
	if !r.orders.CanOpen(inst) {
		return
	}
	now := r.now()
	if !r.ledger.CanSignal(inst, now, r.minGap) {
		return
	}

	listing, ok := r.orders.ListingFor(inst)
	if !ok {
		return
	}

	timeframe := r.prof.CandleTimeframe
	var candles []broker.Candle
	err := r.pool.Do(ctx, "candles "+listing, func(ctx context.Context) error {
		var err error
		candles, err = r.client.Candles(ctx, listing, timeframe, candleCount, now)
		return err
	})
	if err != nil {
		log.Printf("engine: candles for %s: %v", inst, err)
		return
	}

	rsi, ok := indicators.RSIFromCandles(candles, r.indicators.Period())
	if !ok {
		return
	}

	gp := r.catalog.ProfileFor(inst)
	r.indicators.Append(inst, rsi, gp.Levels.Oversold, gp.Levels.Overbought)

	ev := signal.Evaluate(r.indicators.Values(inst), gp.Levels, gp.MinMomentum, r.prof)
	if ev.Direction == signal.None {
		return
	}

	stake := r.risk.Stake(balance, gp)
	expiry := r.catalog.ExpiryMinutesFor(inst, r.prof)
	r.recorder.Logf(ctx, "signal %s on %s (rsi %.1f, strength %.0f), staking %.2f for %dm",
		ev.Direction, inst, rsi, ev.Strength, stake, expiry)

	o, err := r.orders.Place(ctx, order.PlaceRequest{
		Instrument:    inst,
		Direction:     broker.Direction(ev.Direction),
		Stake:         stake,
		EntryRSI:      rsi,
		BalanceBefore: balance,
		ExpiryMinutes: expiry,
	})
	if err != nil {
		r.recorder.Logf(ctx, "placement failed for %s: %v", inst, err)
		return
	}

	r.ledger.MarkSignal(inst, now)
	// Cooldown: the next signal on this instrument must build fresh context.
	r.indicators.Clear(inst)
	r.recorder.Logf(ctx, "order %s open on %s, expires %s", o.ID, o.Listing, o.ExpiryTime.Format("15:04:05"))
	r.persist(ctx)
}

func (r *Runner) persist(ctx context.Context) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, r.ledger, r.orders.Rows(), r.indicators.Snapshot()); err != nil {
		log.Printf("engine: snapshot failed: %v", err)
	}
}

// shutdown persists the final state and emits the session summary.
func (r *Runner) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	finalBalance, err := r.balance(ctx)
	if err != nil {
		t := r.ledger.Totals()
		finalBalance = t.InitialCapital + t.TotalProfit
	}

	r.persist(ctx)
	r.recorder.SetState(ctx, "stopped")
	summary := r.ledger.Summary(finalBalance)
	log.Print(summary)
	r.recorder.Logf(ctx, "session ended, net profit %.2f", r.ledger.Totals().TotalProfit)
	return nil
}
