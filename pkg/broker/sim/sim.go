// Package sim is an in-process brokerage for practice runs and tests: a
// seeded random walk drives candle prices, and contracts settle against the
// walk at expiry. No network, deterministic for a given seed.
package sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"options-core/pkg/broker"
)

const payoutPercent = 0.85

type contract struct {
	id        string
	listing   string
	direction broker.Direction
	stake     float64
	strike    float64
	expiry    time.Time

	settled bool
	outcome broker.Outcome
}

// Client implements broker.Client against an internal price walk.
type Client struct {
	mu        sync.Mutex
	rng       *rand.Rand
	balance   float64
	prices    map[string]float64
	contracts map[string]*contract
	listings  []broker.Listing
	connected bool
	now       func() time.Time
}

// New builds a simulated brokerage. listings is the set of names it reports
// tradable; pass nil to accept any name.
func New(seed int64, startBalance float64, listings []string) *Client {
	c := &Client{
		rng:       rand.New(rand.NewSource(seed)),
		balance:   startBalance,
		prices:    make(map[string]float64),
		contracts: make(map[string]*contract),
		now:       time.Now,
	}
	for _, name := range listings {
		c.listings = append(c.listings, broker.Listing{Name: name, OptionType: "turbo", Open: true})
	}
	return c
}

// SetClock overrides the time source, used by tests to drive expiry.
func (c *Client) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) CheckConnection() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) Balance(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settleDue()
	return c.balance, nil
}

// price seeds each listing from its name so runs are reproducible regardless
// of request order, then advances it with the shared walk.
func (c *Client) price(name string) float64 {
	p, ok := c.prices[name]
	if !ok {
		h := fnv.New32a()
		h.Write([]byte(name))
		p = 50 + float64(h.Sum32()%10000)/100
		c.prices[name] = p
	}
	return p
}

func (c *Client) step(name string) float64 {
	p := c.price(name)
	p += p * (c.rng.Float64() - 0.5) * 0.004
	c.prices[name] = p
	return p
}

func (c *Client) Candles(ctx context.Context, name string, timeframe time.Duration, count int, to time.Time) ([]broker.Candle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	candles := make([]broker.Candle, 0, count)
	from := to.Add(-time.Duration(count) * timeframe)
	for i := 0; i < count; i++ {
		open := c.price(name)
		close := c.step(name)
		high, low := open, close
		if close > high {
			high = close
		}
		if close < low {
			low = close
		}
		candles = append(candles, broker.Candle{
			Open:  open,
			Close: close,
			High:  high * 1.0005,
			Low:   low * 0.9995,
			From:  from.Add(time.Duration(i) * timeframe),
			To:    from.Add(time.Duration(i+1) * timeframe),
		})
	}
	return candles, nil
}

func (c *Client) Buy(ctx context.Context, amount float64, name string, dir broker.Direction, expiryMinutes int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.listings) > 0 {
		open := false
		for _, l := range c.listings {
			if l.Name == name && l.Open {
				open = true
				break
			}
		}
		if !open {
			return "", fmt.Errorf("buy %s: %w", name, broker.ErrInstrumentClosed)
		}
	}
	if amount > c.balance {
		return "", fmt.Errorf("buy %s: stake %.2f exceeds balance %.2f", name, amount, c.balance)
	}

	ct := &contract{
		id:        uuid.NewString(),
		listing:   name,
		direction: dir,
		stake:     amount,
		strike:    c.price(name),
		expiry:    c.now().Add(time.Duration(expiryMinutes) * time.Minute),
	}
	c.balance -= amount
	c.contracts[ct.id] = ct
	return ct.id, nil
}

// settleDue settles every contract past expiry against the current walk.
// Caller holds the lock.
func (c *Client) settleDue() {
	now := c.now()
	for _, ct := range c.contracts {
		if ct.settled || now.Before(ct.expiry) {
			continue
		}
		final := c.step(ct.listing)
		switch {
		case final == ct.strike:
			ct.outcome = broker.Outcome{Result: broker.ResultTie, WinAmount: ct.stake}
			c.balance += ct.stake
		case (ct.direction == broker.Call) == (final > ct.strike):
			gross := ct.stake * (1 + payoutPercent)
			ct.outcome = broker.Outcome{
				Result:        broker.ResultWin,
				WinAmount:     gross,
				ProfitPercent: payoutPercent * 100,
			}
			c.balance += gross
		default:
			ct.outcome = broker.Outcome{Result: broker.ResultLoss}
		}
		ct.settled = true
	}
}

func (c *Client) OrderResult(ctx context.Context, orderID string) (broker.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settleDue()
	ct, ok := c.contracts[orderID]
	if !ok || !ct.settled {
		return broker.Outcome{}, broker.ErrUnavailable
	}
	return ct.outcome, nil
}

func (c *Client) RecentOrders(ctx context.Context) ([]broker.OrderRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settleDue()
	var out []broker.OrderRecord
	for _, ct := range c.contracts {
		if ct.settled {
			out = append(out, broker.OrderRecord{
				ID:        ct.id,
				Result:    ct.outcome.Result,
				WinAmount: ct.outcome.WinAmount,
			})
		}
	}
	return out, nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (broker.Outcome, error) {
	return c.OrderResult(ctx, orderID)
}

func (c *Client) Listings(ctx context.Context) ([]broker.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]broker.Listing, len(c.listings))
	copy(out, c.listings)
	return out, nil
}
