// Package broker defines the brokerage collaborator boundary: an opaque remote
// service exposing balance, candle and buy/order-status operations.
package broker

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrUnavailable means the broker had no data for the request; the caller
	// should skip and retry next cycle.
	ErrUnavailable = errors.New("broker: data unavailable")
	// ErrTimeout means a pooled call exceeded its deadline.
	ErrTimeout = errors.New("broker: call timed out")
	// ErrInstrumentClosed means the requested listing is not tradable right now.
	ErrInstrumentClosed = errors.New("broker: instrument not available")
)

// Direction is the contract side.
type Direction string

const (
	Call Direction = "call"
	Put  Direction = "put"
)

// Result is a settled contract outcome as reported by the broker.
type Result string

const (
	ResultWin     Result = "win"
	ResultLoss    Result = "loose" // broker wire spelling
	ResultTie     Result = "equal"
	ResultUnknown Result = ""
)

// Candle is one OHLC bar.
type Candle struct {
	Open  float64
	Close float64
	High  float64
	Low   float64
	From  time.Time
	To    time.Time
}

// Outcome is a per-order result read from one of the broker's reporting
// channels. WinAmount semantics differ by channel: some include the original
// stake, some report net profit; the resolution layer normalizes.
type Outcome struct {
	Result        Result
	WinAmount     float64
	ProfitPercent float64
}

// OrderRecord is one row of the broker's recent-orders listing.
type OrderRecord struct {
	ID        string
	Result    Result
	WinAmount float64
}

// Listing describes one brokerage-side tradable name.
type Listing struct {
	Name       string
	OptionType string // "binary" or "turbo"
	Open       bool
}

// Client is the brokerage collaborator. Implementations are expected to be
// safe for use from the call pool's workers.
type Client interface {
	Connect(ctx context.Context) error
	CheckConnection() bool
	Balance(ctx context.Context) (float64, error)
	Candles(ctx context.Context, name string, timeframe time.Duration, count int, to time.Time) ([]Candle, error)
	Buy(ctx context.Context, amount float64, name string, dir Direction, expiryMinutes int) (string, error)
	// OrderResult reads the broker's own order registry, the most reliable
	// channel. Returns ErrUnavailable while the registry has no entry.
	OrderResult(ctx context.Context, orderID string) (Outcome, error)
	// RecentOrders returns the secondary listing/history structure.
	RecentOrders(ctx context.Context) ([]OrderRecord, error)
	// OrderStatus performs a direct asynchronous order-status query.
	OrderStatus(ctx context.Context, orderID string) (Outcome, error)
	Listings(ctx context.Context) ([]Listing, error)
}

// IsInstrumentUnavailable reports whether an error from Buy indicates a
// suspended or closed listing, which is retried with an alternate name rather
// than treated as transient I/O.
func IsInstrumentUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInstrumentClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "not available") || strings.Contains(msg, "suspended")
}
