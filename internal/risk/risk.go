// Package risk encodes guard-rails on how much notional a single signal may deploy.
package risk

import "fmt"

// Limits bounds the USDT notional of any open order.
type Limits struct {
	MinOrderUSDT float64
	MaxOrderUSDT float64
}

// Allow reports whether the notional sits inside [MinOrderUSDT, MaxOrderUSDT].
func (l Limits) Allow(notional float64) bool {
	return notional >= l.MinOrderUSDT && notional <= l.MaxOrderUSDT
}

// Describe renders the bounds for rejection messages.
func (l Limits) Describe() string {
	return fmt.Sprintf("[%g, %g]", l.MinOrderUSDT, l.MaxOrderUSDT)
}
