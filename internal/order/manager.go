package order

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"options-core/internal/profile"
	"options-core/pkg/broker"
	"options-core/pkg/db"
)

const (
	// resolutionGrace is how long after expiry to wait before querying any
	// result channel, giving the broker time to settle the contract.
	resolutionGrace = 45 * time.Second
	// forcedLossAfter bounds how long a contract may stay unresolved.
	forcedLossAfter = 120 * time.Second
	// placeAttempts and placeRetryDelay govern retries on transient buy
	// failures that are not listing rejections.
	placeAttempts   = 2
	placeRetryDelay = 2 * time.Second
)

// Manager owns every open contract and the brokerage listing table.
type Manager struct {
	client  broker.Client
	pool    *broker.Pool
	catalog *profile.Catalog

	maxSimultaneous int
	resolvers       []Resolver

	mu       sync.RWMutex
	open     map[string]*Order
	listings map[string]bool // brokerage name -> currently open
}

// NewManager wires the resolution cascade in precedence order.
func NewManager(client broker.Client, pool *broker.Pool, catalog *profile.Catalog, maxSimultaneous int) *Manager {
	if maxSimultaneous <= 0 {
		maxSimultaneous = 1
	}
	m := &Manager{
		client:          client,
		pool:            pool,
		catalog:         catalog,
		maxSimultaneous: maxSimultaneous,
		open:            make(map[string]*Order),
		listings:        make(map[string]bool),
	}
	m.resolvers = []Resolver{
		&registryResolver{client: client, pool: pool},
		&historyResolver{client: client, pool: pool},
		&balanceResolver{client: client, pool: pool},
		&asyncResolver{client: client, pool: pool},
	}
	return m
}

// RefreshListings reloads the brokerage listing table. A failure keeps the
// previous table.
func (m *Manager) RefreshListings(ctx context.Context) error {
	var listings []broker.Listing
	err := m.pool.Do(ctx, "listings", func(ctx context.Context) error {
		var err error
		listings, err = m.client.Listings(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("refresh listings: %w", err)
	}

	table := make(map[string]bool, len(listings))
	for _, l := range listings {
		if l.Open {
			table[l.Name] = true
		}
	}
	m.mu.Lock()
	m.listings = table
	m.mu.Unlock()
	log.Printf("order: listing table refreshed, %d names open", len(table))
	return nil
}

// listingVariants returns the brokerage names to try for an instrument, in
// preference order. Fixed-mapped symbols have exactly one candidate.
func (m *Manager) listingVariants(instrument string) []string {
	if fixed, ok := m.catalog.FixedMapping(instrument); ok {
		return []string{fixed}
	}
	return []string{instrument + "-OTC", instrument, instrument + "-op"}
}

// ListingFor picks the first variant the broker currently lists as open. When
// the table is empty (never fetched) the first variant is tried blind.
func (m *Manager) ListingFor(instrument string) (string, bool) {
	variants := m.listingVariants(instrument)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.listings) == 0 {
		return variants[0], true
	}
	for _, v := range variants {
		if m.listings[v] {
			return v, true
		}
	}
	return "", false
}

// CanOpen reports whether a new contract on instrument is admissible under
// the concurrency gates: total open contracts below the cap and no open
// contract already riding this instrument.
func (m *Manager) CanOpen(instrument string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.open) >= m.maxSimultaneous {
		return false
	}
	for _, o := range m.open {
		if o.Instrument == instrument {
			return false
		}
	}
	return true
}

// OpenCount returns the number of unresolved contracts.
func (m *Manager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.open)
}

// PlaceRequest carries everything needed to open a contract.
type PlaceRequest struct {
	Instrument    string
	Direction     broker.Direction
	Stake         float64
	EntryRSI      float64
	BalanceBefore float64
	ExpiryMinutes int
}

// Place buys a contract, retrying once on an alternate listing when the
// broker reports the name unavailable. Fixed-mapped symbols have no
// alternates and fail on the first rejection.
func (m *Manager) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	listing, ok := m.ListingFor(req.Instrument)
	if !ok {
		return nil, fmt.Errorf("place %s: %w", req.Instrument, broker.ErrInstrumentClosed)
	}

	candidates := []string{listing}
	for _, v := range m.listingVariants(req.Instrument) {
		if v != listing && len(candidates) < 2 {
			candidates = append(candidates, v)
		}
	}

	for _, v := range candidates {
		var orderID string
		var err error
		for attempt := 1; attempt <= placeAttempts; attempt++ {
			err = m.pool.Do(ctx, "buy "+v, func(ctx context.Context) error {
				var err error
				orderID, err = m.client.Buy(ctx, req.Stake, v, req.Direction, req.ExpiryMinutes)
				return err
			})
			if err == nil || broker.IsInstrumentUnavailable(err) {
				break
			}
			if attempt < placeAttempts {
				log.Printf("order: buy %s attempt %d failed: %v, retrying", v, attempt, err)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(placeRetryDelay):
				}
			}
		}
		if err != nil {
			if broker.IsInstrumentUnavailable(err) {
				log.Printf("order: %s unavailable, trying alternate listing", v)
				continue
			}
			return nil, fmt.Errorf("place %s via %s: %w", req.Instrument, v, err)
		}

		now := time.Now()
		o := &Order{
			ID:            orderID,
			Instrument:    req.Instrument,
			Listing:       v,
			Direction:     req.Direction,
			Stake:         req.Stake,
			EntryTime:     now,
			ExpiryTime:    now.Add(time.Duration(req.ExpiryMinutes) * time.Minute),
			EntryRSI:      req.EntryRSI,
			BalanceBefore: req.BalanceBefore,
			Group:         m.catalog.GroupFor(req.Instrument),
			Status:        StatusOpen,
		}
		m.mu.Lock()
		m.open[o.ID] = o
		m.mu.Unlock()
		log.Printf("order: placed %s %s on %s, stake %.2f, expires %s",
			req.Direction, req.Instrument, v, req.Stake, o.ExpiryTime.Format("15:04:05"))
		return o, nil
	}
	return nil, fmt.Errorf("place %s: %w", req.Instrument, broker.ErrInstrumentClosed)
}

// SweepExpired walks every open contract once: marks newly expired ones
// pending, and runs the resolution cascade on pending ones past the grace
// window. A contract unresolved after the forced-loss deadline settles as a
// loss. Settled contracts are removed before the next sweep so application is
// exactly-once.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) []Settlement {
	m.mu.Lock()
	pending := make([]*Order, 0, len(m.open))
	for _, o := range m.open {
		if o.Status == StatusOpen && !now.Before(o.ExpiryTime) {
			o.Status = StatusPending
		}
		if o.Status == StatusPending {
			pending = append(pending, o)
		}
	}
	openCount := len(m.open)
	m.mu.Unlock()

	// Oldest expiry first, so forced losses cannot starve behind newer orders.
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ExpiryTime.Before(pending[j].ExpiryTime)
	})

	var settled []Settlement
	for _, o := range pending {
		sinceExpiry := now.Sub(o.ExpiryTime)
		if sinceExpiry < resolutionGrace {
			continue
		}

		res, ok := m.resolveOne(ctx, o, sinceExpiry, openCount)
		if !ok && sinceExpiry >= forcedLossAfter {
			log.Printf("order: %s on %s unresolved after %s, forcing loss",
				o.ID, o.Instrument, forcedLossAfter)
			res = Settlement{Order: o, Result: broker.ResultLoss, Source: "forced"}
			ok = true
		}
		if !ok {
			continue
		}

		m.mu.Lock()
		o.Status = StatusResolved
		delete(m.open, o.ID)
		openCount = len(m.open)
		m.mu.Unlock()
		settled = append(settled, res)
	}
	return settled
}

func (m *Manager) resolveOne(ctx context.Context, o *Order, sinceExpiry time.Duration, openCount int) (Settlement, bool) {
	for _, r := range m.resolvers {
		res, ok := r.Resolve(ctx, o, sinceExpiry, openCount)
		if !ok {
			continue
		}
		res.Order = o
		res.Source = r.Name()
		log.Printf("order: %s on %s resolved %s via %s (net %.2f)",
			o.ID, o.Instrument, res.Result, res.Source, res.NetProfit)
		return res, true
	}
	return Settlement{}, false
}

// Rows exports every open contract for persistence.
func (m *Manager) Rows() []db.OpenOrderRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make([]db.OpenOrderRow, 0, len(m.open))
	for _, o := range m.open {
		rows = append(rows, o.row())
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// Restore reloads contracts from a snapshot. Contracts already past the
// forced-loss deadline at restore time are left in place; the next sweep
// settles them.
func (m *Manager) Restore(rows []db.OpenOrderRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		o := fromRow(r)
		if o.Status == Status("") {
			o.Status = StatusOpen
		}
		m.open[o.ID] = o
	}
	if len(rows) > 0 {
		log.Printf("order: restored %d open contracts from snapshot", len(rows))
	}
}
