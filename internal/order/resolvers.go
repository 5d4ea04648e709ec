package order

import (
	"context"
	"log"
	"time"

	"options-core/pkg/broker"
)

const (
	// balanceDiffAfter is how long after expiry the balance-difference channel
	// becomes meaningful.
	balanceDiffAfter = 90 * time.Second
	// balanceNoiseFloor: balance moves smaller than this are indistinguishable
	// from unrelated account activity and prove nothing either way.
	balanceNoiseFloor = 0.1
	// asyncQueryAfter is how long after expiry the direct status query is
	// trusted.
	asyncQueryAfter = 20 * time.Second
)

func settlementFrom(o *Order, result broker.Result, winAmount float64) (Settlement, bool) {
	switch result {
	case broker.ResultWin:
		// Some channels report the gross payout (stake included), others net
		// profit. An amount above the stake can only be gross.
		net := winAmount
		if winAmount > o.Stake {
			net = winAmount - o.Stake
		}
		return Settlement{Result: broker.ResultWin, NetProfit: net}, true
	case broker.ResultLoss:
		return Settlement{Result: broker.ResultLoss}, true
	case broker.ResultTie:
		return Settlement{Result: broker.ResultTie}, true
	default:
		return Settlement{}, false
	}
}

// registryResolver reads the broker's own order registry, the most reliable
// channel. WinAmount there includes the returned stake.
type registryResolver struct {
	client broker.Client
	pool   *broker.Pool
}

func (r *registryResolver) Name() string { return "registry" }

func (r *registryResolver) Resolve(ctx context.Context, o *Order, _ time.Duration, _ int) (Settlement, bool) {
	var out broker.Outcome
	err := r.pool.Do(ctx, "order result "+o.ID, func(ctx context.Context) error {
		var err error
		out, err = r.client.OrderResult(ctx, o.ID)
		return err
	})
	if err != nil {
		return Settlement{}, false
	}
	return settlementFrom(o, out.Result, out.WinAmount)
}

// historyResolver scans the broker's recent-orders listing for this contract.
type historyResolver struct {
	client broker.Client
	pool   *broker.Pool
}

func (r *historyResolver) Name() string { return "history" }

func (r *historyResolver) Resolve(ctx context.Context, o *Order, _ time.Duration, _ int) (Settlement, bool) {
	var records []broker.OrderRecord
	err := r.pool.Do(ctx, "recent orders", func(ctx context.Context) error {
		var err error
		records, err = r.client.RecentOrders(ctx)
		return err
	})
	if err != nil {
		return Settlement{}, false
	}
	for _, rec := range records {
		if rec.ID == o.ID {
			return settlementFrom(o, rec.Result, rec.WinAmount)
		}
	}
	return Settlement{}, false
}

// balanceResolver infers the outcome from the account balance delta since
// placement. Only trustworthy once the contract has had time to settle and
// when no other contract could have moved the balance.
type balanceResolver struct {
	client broker.Client
	pool   *broker.Pool
}

func (r *balanceResolver) Name() string { return "balance" }

func (r *balanceResolver) Resolve(ctx context.Context, o *Order, sinceExpiry time.Duration, openCount int) (Settlement, bool) {
	if sinceExpiry < balanceDiffAfter {
		return Settlement{}, false
	}
	if openCount > 1 {
		// Another contract may have settled into the same balance.
		return Settlement{}, false
	}

	var balance float64
	err := r.pool.Do(ctx, "balance", func(ctx context.Context) error {
		var err error
		balance, err = r.client.Balance(ctx)
		return err
	})
	if err != nil {
		return Settlement{}, false
	}

	diff := balance - o.BalanceBefore
	switch {
	case diff > balanceNoiseFloor:
		return Settlement{Result: broker.ResultWin, NetProfit: diff}, true
	case diff < -balanceNoiseFloor:
		return Settlement{Result: broker.ResultLoss}, true
	default:
		// Delta inside the noise floor proves nothing; let the later
		// channels (or the forced-loss deadline) decide.
		log.Printf("order: %s balance delta %.2f within noise floor, inconclusive", o.ID, diff)
		return Settlement{}, false
	}
}

// asyncResolver performs the direct per-order status query, the least
// reliable channel.
type asyncResolver struct {
	client broker.Client
	pool   *broker.Pool
}

func (r *asyncResolver) Name() string { return "async" }

func (r *asyncResolver) Resolve(ctx context.Context, o *Order, sinceExpiry time.Duration, _ int) (Settlement, bool) {
	if sinceExpiry < asyncQueryAfter {
		return Settlement{}, false
	}

	var out broker.Outcome
	err := r.pool.Do(ctx, "order status "+o.ID, func(ctx context.Context) error {
		var err error
		out, err = r.client.OrderStatus(ctx, o.ID)
		return err
	})
	if err != nil {
		return Settlement{}, false
	}
	if out.Result == broker.ResultWin && out.WinAmount == 0 && out.ProfitPercent > 0 {
		return Settlement{Result: broker.ResultWin, NetProfit: o.Stake * out.ProfitPercent / 100}, true
	}
	return settlementFrom(o, out.Result, out.WinAmount)
}
