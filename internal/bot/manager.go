// Package bot assembles and supervises trading sessions, one per bot id.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"options-core/internal/engine"
	"options-core/internal/indicators"
	"options-core/internal/ledger"
	"options-core/internal/order"
	"options-core/internal/profile"
	"options-core/internal/risk"
	"options-core/internal/status"
	"options-core/pkg/broker"
	"options-core/pkg/config"
	"options-core/pkg/db"
)

const rsiPeriod = 14

var (
	ErrAlreadyRunning = errors.New("bot: already running")
	ErrNotRunning     = errors.New("bot: not running")
)

// Factory builds a connected brokerage client for an account type.
type Factory func(ctx context.Context, cfg *config.Config, accountType string) (broker.Client, error)

// StartSpec is a caller's per-session overrides on top of the config defaults.
type StartSpec struct {
	Instruments     []string `json:"instruments"`
	PositionPercent float64  `json:"position_percent"` // 0 keeps per-group sizing
	Aggressiveness  string   `json:"aggressiveness"`   // empty keeps the config default
	AccountType     string   `json:"account_type"`     // empty keeps the config default
}

type instance struct {
	cancel   context.CancelFunc
	done     chan struct{}
	recorder *status.Recorder
	ledger   *ledger.Ledger
	orders   *order.Manager
	database *db.Database
	pool     *broker.Pool
	spec     StartSpec
	mode     profile.Mode
}

// Manager owns the running instances.
type Manager struct {
	cfg     *config.Config
	store   *status.Store // nil when redis is not configured
	factory Factory

	mu   sync.Mutex
	bots map[string]*instance
}

// NewManager wires the manager with its broker factory.
func NewManager(cfg *config.Config, store *status.Store, factory Factory) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		factory: factory,
		bots:    make(map[string]*instance),
	}
}

func (m *Manager) dbPath(botID string) string {
	return filepath.Join(m.cfg.DataDir, botID+".db")
}

// Start builds a session for botID and launches its trade loop.
func (m *Manager) Start(ctx context.Context, botID string, spec StartSpec) error {
	m.mu.Lock()
	if _, ok := m.bots[botID]; ok {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	// Reserve the slot before the slow brokerage connect.
	m.bots[botID] = nil
	m.mu.Unlock()

	inst, err := m.build(ctx, botID, spec)
	if err != nil {
		m.mu.Lock()
		delete(m.bots, botID)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.bots[botID] = inst
	m.mu.Unlock()
	return nil
}

func (m *Manager) build(ctx context.Context, botID string, spec StartSpec) (*instance, error) {
	accountType := spec.AccountType
	if accountType == "" {
		accountType = m.cfg.AccountType
	}
	mode := profile.ParseMode(spec.Aggressiveness)
	if spec.Aggressiveness == "" {
		mode = profile.ParseMode(m.cfg.ProfileMode)
	}
	prof := profile.For(mode)

	client, err := m.factory(ctx, m.cfg, accountType)
	if err != nil {
		return nil, fmt.Errorf("bot %s: broker: %w", botID, err)
	}

	timeout := time.Duration(m.cfg.APITimeoutSec) * time.Second
	pool := broker.NewPool(3, timeout)

	var balance float64
	err = pool.Do(ctx, "balance", func(ctx context.Context) error {
		var err error
		balance, err = client.Balance(ctx)
		return err
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bot %s: initial balance: %w", botID, err)
	}

	database, err := db.New(m.dbPath(botID))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bot %s: open database: %w", botID, err)
	}

	catalog := profile.DefaultCatalog()
	if m.cfg.CatalogFile != "" {
		catalog, err = profile.LoadCatalog(m.cfg.CatalogFile)
		if err != nil {
			pool.Close()
			database.Close()
			return nil, fmt.Errorf("bot %s: load catalog: %w", botID, err)
		}
	}
	selected := spec.Instruments
	if len(selected) == 0 {
		selected = m.cfg.Instruments
	}
	instruments := catalog.Filter(selected)
	if len(instruments) == 0 {
		pool.Close()
		database.Close()
		return nil, fmt.Errorf("bot %s: no tradable instruments selected", botID)
	}

	indEngine := indicators.NewEngine(rsiPeriod)
	store := ledger.NewStore(database)
	orders := order.NewManager(client, pool, catalog, m.cfg.MaxSimultaneousTrades)

	var led *ledger.Ledger
	restored, err := store.Load(ctx, string(mode))
	switch {
	case err == nil:
		led = restored.Ledger
		orders.Restore(restored.OpenOrders)
		indEngine.Restore(restored.Histories)
		log.Printf("bot %s: resumed session, net profit so far %.2f", botID, led.Totals().TotalProfit)
	case errors.Is(err, db.ErrNoSnapshot):
		led = ledger.New(balance, string(mode), m.cfg.MaxDailyConsecutive)
		log.Printf("bot %s: fresh session, initial capital %.2f", botID, balance)
	default:
		pool.Close()
		database.Close()
		return nil, fmt.Errorf("bot %s: restore: %w", botID, err)
	}

	riskCtl := risk.New(led,
		spec.PositionPercent/100, // caller sends a percent, sizing wants a fraction
		m.cfg.MinPositionSize,
		m.cfg.AbsoluteStopPercent,
		m.cfg.MonthlyStopPercent,
	)
	recorder := status.NewRecorder(botID, m.store)

	runner := engine.New(engine.Options{
		Client:        client,
		Pool:          pool,
		Catalog:       catalog,
		Profile:       prof,
		Indicators:    indEngine,
		Ledger:        led,
		Risk:          riskCtl,
		Orders:        orders,
		Store:         store,
		Recorder:      recorder,
		Instruments:   instruments,
		MinSignalGap:  time.Duration(m.cfg.MinSignalGapMinutes) * time.Minute,
		SnapshotEvery: m.cfg.SnapshotEvery,
		ListingsEvery: m.cfg.ListingsEvery,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	inst := &instance{
		cancel:   cancel,
		done:     make(chan struct{}),
		recorder: recorder,
		ledger:   led,
		orders:   orders,
		database: database,
		pool:     pool,
		spec:     spec,
		mode:     mode,
	}
	go func() {
		defer close(inst.done)
		if err := runner.Run(runCtx); err != nil {
			log.Printf("bot %s: run: %v", botID, err)
		}
		pool.Close()
		database.Close()
		if closer, ok := client.(interface{ Close() error }); ok {
			closer.Close()
		}
		m.mu.Lock()
		if m.bots[botID] == inst {
			delete(m.bots, botID)
		}
		m.mu.Unlock()
	}()

	log.Printf("bot %s: started (%s, %s account, %d instruments)", botID, mode, accountType, len(instruments))
	return inst, nil
}

// Stop cancels a session and waits for its final snapshot.
func (m *Manager) Stop(botID string) error {
	m.mu.Lock()
	inst, ok := m.bots[botID]
	m.mu.Unlock()
	if !ok || inst == nil {
		return ErrNotRunning
	}

	inst.cancel()
	select {
	case <-inst.done:
	case <-time.After(30 * time.Second):
		log.Printf("bot %s: stop timed out waiting for shutdown", botID)
	}
	return nil
}

// StopAll stops every running session, used at process shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.bots))
	for id := range m.bots {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		if err := m.Stop(id); err != nil && !errors.Is(err, ErrNotRunning) {
			log.Printf("bot %s: stop: %v", id, err)
		}
	}
}

// Info is the API status view of one bot.
type Info struct {
	Running     bool         `json:"running"`
	State       string       `json:"state,omitempty"`
	OpenOrders  int          `json:"open_orders"`
	Wins        int          `json:"wins"`
	Losses      int          `json:"losses"`
	Ties        int          `json:"ties"`
	TotalProfit float64      `json:"total_profit"`
	DailyProfit float64      `json:"daily_profit"`
	DailyLock   bool         `json:"daily_lock"`
	LockReason  string       `json:"lock_reason,omitempty"`
	Instruments []string     `json:"instruments,omitempty"`
	Mode        profile.Mode `json:"aggressiveness,omitempty"`
}

// Status reports a bot's live counters, or Running=false when stopped.
func (m *Manager) Status(botID string) Info {
	m.mu.Lock()
	inst, ok := m.bots[botID]
	m.mu.Unlock()
	if !ok || inst == nil {
		return Info{}
	}

	t := inst.ledger.Totals()
	locked, reason := inst.ledger.DailyLocked()
	return Info{
		Running:     true,
		State:       inst.recorder.State(),
		OpenOrders:  inst.orders.OpenCount(),
		Wins:        t.Wins,
		Losses:      t.Losses,
		Ties:        t.Ties,
		TotalProfit: t.TotalProfit,
		DailyProfit: t.DailyProfit,
		DailyLock:   locked,
		LockReason:  string(reason),
		Instruments: inst.spec.Instruments,
		Mode:        inst.mode,
	}
}

// Logs returns a bot's newest log lines. Works for stopped bots too when a
// redis store holds their history.
func (m *Manager) Logs(ctx context.Context, botID string, n int) []string {
	m.mu.Lock()
	inst, ok := m.bots[botID]
	m.mu.Unlock()
	if ok && inst != nil {
		return inst.recorder.Logs(ctx, n)
	}
	if m.store != nil {
		if lines, err := m.store.Logs(ctx, botID, n); err == nil {
			return lines
		}
	}
	return nil
}

// Reset deletes a stopped bot's persisted session so the next start is fresh.
func (m *Manager) Reset(botID string) error {
	m.mu.Lock()
	_, running := m.bots[botID]
	m.mu.Unlock()
	if running {
		return ErrAlreadyRunning
	}
	path := m.dbPath(botID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("bot %s: reset: %w", botID, err)
	}
	// WAL sidecar files go with the database.
	os.Remove(path + "-wal")
	os.Remove(path + "-shm")
	log.Printf("bot %s: session state reset", botID)
	return nil
}
