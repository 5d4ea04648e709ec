package order

import (
	"context"
	"time"
)

// Resolver is one channel for settling an expired contract. Resolve returns
// false when this channel cannot determine the outcome yet; the cascade then
// falls through to the next one. openCount is the number of contracts still
// unresolved, which some channels use to decide whether their signal is
// attributable to this order alone.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, o *Order, sinceExpiry time.Duration, openCount int) (Settlement, bool)
}
