// Package order tracks the full lifecycle of binary option contracts: listing
// selection, placement, expiry and the multi-source resolution cascade.
package order

import (
	"time"

	"options-core/internal/profile"
	"options-core/pkg/broker"
	"options-core/pkg/db"
)

// Status is an order's lifecycle stage.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusPending  Status = "EXPIRED_PENDING_RESOLUTION"
	StatusResolved Status = "RESOLVED"
)

// Order is one placed contract.
type Order struct {
	ID            string
	Instrument    string // catalog name
	Listing       string // brokerage-side name actually traded
	Direction     broker.Direction
	Stake         float64
	EntryTime     time.Time
	ExpiryTime    time.Time
	EntryRSI      float64
	BalanceBefore float64
	Group         profile.AssetGroup
	Status        Status
}

func (o *Order) row() db.OpenOrderRow {
	return db.OpenOrderRow{
		ID:            o.ID,
		Instrument:    o.Instrument,
		Listing:       o.Listing,
		Direction:     string(o.Direction),
		Stake:         o.Stake,
		EntryTime:     o.EntryTime,
		ExpiryTime:    o.ExpiryTime,
		EntryRSI:      o.EntryRSI,
		BalanceBefore: o.BalanceBefore,
		AssetGroup:    string(o.Group),
		Status:        string(o.Status),
	}
}

func fromRow(r db.OpenOrderRow) *Order {
	return &Order{
		ID:            r.ID,
		Instrument:    r.Instrument,
		Listing:       r.Listing,
		Direction:     broker.Direction(r.Direction),
		Stake:         r.Stake,
		EntryTime:     r.EntryTime,
		ExpiryTime:    r.ExpiryTime,
		EntryRSI:      r.EntryRSI,
		BalanceBefore: r.BalanceBefore,
		Group:         profile.AssetGroup(r.AssetGroup),
		Status:        Status(r.Status),
	}
}

// Settlement is one resolved order ready to be applied to the ledger.
type Settlement struct {
	Order     *Order
	Result    broker.Result
	NetProfit float64 // positive for wins, zero otherwise
	Source    string  // which resolver settled it
}
