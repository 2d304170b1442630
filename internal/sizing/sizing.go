// Package sizing turns a quote-currency notional into a venue-legal base quantity.
package sizing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"hookbot-go/internal/signal"
	"hookbot-go/internal/venue"
)

// ErrNoQuote means neither bid nor ask was available for the symbol.
var ErrNoQuote = errors.New("no bid or ask available for price reference")

// Error reports that the requested notional cannot reach the venue's minimum
// order quantity; RequiredUSDT names the smallest notional that would.
type Error struct {
	Symbol       string
	MinQty       decimal.Decimal
	RequiredUSDT decimal.Decimal
}

func (e *Error) Error() string {
	return fmt.Sprintf("notional too small for %s; need at least ~%s USDT for min qty %s",
		e.Symbol, e.RequiredUSDT.StringFixed(2), e.MinQty)
}

// MarketData is the slice of the venue client the sizer consumes.
type MarketData interface {
	InstrumentFilters(ctx context.Context, symbol string) (venue.Filters, error)
	BestQuote(ctx context.Context, symbol string) (venue.Quote, error)
}

// Sizer resolves filters and quotes through the venue client and applies rounding rules.
type Sizer struct {
	market MarketData
}

// NewSizer wires a sizer to its market data source.
func NewSizer(market MarketData) *Sizer {
	return &Sizer{market: market}
}

// NotionalToQty computes a step-aligned base quantity worth roughly amountUSDT.
// Buys may be raised to satisfy minimum notional or quantity, with an advisory
// note; sells below the minimum quantity fail instead of silently upsizing.
func (s *Sizer) NotionalToQty(ctx context.Context, symbol string, side signal.Side, amountUSDT float64) (decimal.Decimal, string, error) {
	quote, err := s.market.BestQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, "", err
	}
	if quote.Empty() {
		return decimal.Zero, "", ErrNoQuote
	}
	filters, err := s.market.InstrumentFilters(ctx, symbol)
	if err != nil {
		return decimal.Zero, "", err
	}

	amount := decimal.NewFromFloat(amountUSDT)
	if side == signal.Buy {
		qty, note := BuyQty(amount, quote.BuyRef(), filters)
		return qty, note, nil
	}
	qty, err := SellQty(amount, quote.SellRef(), filters)
	return qty, "", err
}

// BuyQty floors amount/price to the lot step, then corrects upward when the
// venue's minimum notional or minimum quantity would otherwise reject the order.
func BuyQty(amount, price decimal.Decimal, f venue.Filters) (decimal.Decimal, string) {
	qty := FloorStep(amount.Div(price), f.QtyStep)
	note := ""
	if f.MinOrderAmt.IsPositive() && qty.Mul(price).LessThan(f.MinOrderAmt) {
		qty = CeilStep(f.MinOrderAmt.Div(price), f.QtyStep)
		note = fmt.Sprintf("adjusted to meet min notional ~%s USDT", f.MinOrderAmt.StringFixed(2))
	}
	if qty.LessThan(f.MinOrderQty) {
		qty = CeilStep(f.MinOrderQty, f.QtyStep)
		if note != "" {
			note += "; "
		}
		note += fmt.Sprintf("raised to min qty %s", f.MinOrderQty)
	}
	return qty, note
}

// SellQty floors amount/price to the lot step and rejects quantities below the
// venue minimum rather than overselling the caller's intent.
func SellQty(amount, price decimal.Decimal, f venue.Filters) (decimal.Decimal, error) {
	qty := FloorStep(amount.Div(price), f.QtyStep)
	if qty.LessThan(f.MinOrderQty) {
		return decimal.Zero, &Error{
			Symbol:       f.Symbol,
			MinQty:       f.MinOrderQty,
			RequiredUSDT: f.MinOrderQty.Mul(price),
		}
	}
	return qty, nil
}

// FloorStep rounds value down to the nearest multiple of step. A non-positive
// step leaves the value untouched.
func FloorStep(value, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}

// CeilStep rounds value up to the nearest multiple of step.
func CeilStep(value, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return value
	}
	return value.Div(step).Ceil().Mul(step)
}
