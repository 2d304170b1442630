// Package execution sequences a validated signal into a venue order: bounds
// check, sizing, submission. It never talks to the network except through the
// injected venue client.
package execution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"hookbot-go/internal/metrics"
	"hookbot-go/internal/risk"
	"hookbot-go/internal/signal"
	"hookbot-go/internal/sizing"
	"hookbot-go/internal/venue"
)

// Venue is the slice of the venue client the executor drives.
type Venue interface {
	PlaceOrder(ctx context.Context, req venue.PlaceOrderRequest) (venue.OrderResult, error)
	ClosePosition(ctx context.Context, symbol string) (venue.OrderResult, error)
	EnsureLeverage(symbol string, leverage int)
}

// BoundsError rejects an open whose configured notional falls outside the risk limits.
type BoundsError struct {
	Amount float64
	Limits risk.Limits
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("amount %g USDT out of bounds %s", e.Amount, e.Limits.Describe())
}

// Executor runs the open/close flow for one signal at a time. Concurrent
// signals race at the venue by design; there is no per-symbol serialization.
type Executor struct {
	venue  Venue
	sizer  *sizing.Sizer
	limits risk.Limits
	log    zerolog.Logger
}

// NewExecutor wires an executor to its collaborators.
func NewExecutor(v Venue, s *sizing.Sizer, limits risk.Limits, log zerolog.Logger) *Executor {
	return &Executor{venue: v, sizer: s, limits: limits, log: log}
}

// Handle routes a validated payload to the open or close flow.
func (e *Executor) Handle(ctx context.Context, p signal.Payload) (venue.OrderResult, error) {
	if p.Action == signal.ActionClose {
		return e.close(ctx, p)
	}
	return e.open(ctx, p)
}

func (e *Executor) open(ctx context.Context, p signal.Payload) (venue.OrderResult, error) {
	// Bounds gate runs strictly after validation and before any venue call.
	if !e.limits.Allow(p.AmountUSDT) {
		return venue.OrderResult{}, &BoundsError{Amount: p.AmountUSDT, Limits: e.limits}
	}
	e.venue.EnsureLeverage(p.Symbol, p.Leverage)

	side := p.Direction.OrderSide()
	qty, note, err := e.sizer.NotionalToQty(ctx, p.Symbol, side, p.AmountUSDT)
	if err != nil {
		return venue.OrderResult{}, err
	}

	req := venue.PlaceOrderRequest{
		Symbol:      p.Symbol,
		Side:        side,
		OrderType:   p.OrderType,
		Qty:         qty,
		TimeInForce: "IOC",
	}
	if p.OrderType == signal.OrderTypeLimit {
		req.TimeInForce = "GTC"
		req.Price = decimal.NewFromFloat(p.LimitPrice)
	}

	res, err := e.venue.PlaceOrder(ctx, req)
	if err != nil {
		return venue.OrderResult{}, err
	}
	if note != "" {
		res.Note = note
	}
	metrics.OrdersTotal.WithLabelValues(p.Symbol, string(side)).Inc()
	e.log.Info().Str("symbol", p.Symbol).Str("side", string(side)).
		Str("qty", qty.String()).Str("status", string(res.Status)).Msg("order submitted")
	return res, nil
}

func (e *Executor) close(ctx context.Context, p signal.Payload) (venue.OrderResult, error) {
	res, err := e.venue.ClosePosition(ctx, p.Symbol)
	if err != nil {
		return venue.OrderResult{}, err
	}
	if res.Status == venue.StatusClosing || res.Status == venue.StatusSimulated {
		metrics.OrdersTotal.WithLabelValues(p.Symbol, string(signal.Sell)).Inc()
	}
	e.log.Info().Str("symbol", p.Symbol).Str("status", string(res.Status)).Msg("close processed")
	return res, nil
}
