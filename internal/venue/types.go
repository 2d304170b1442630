package venue

import (
	"github.com/shopspring/decimal"

	"hookbot-go/internal/signal"
)

// Filters carries the per-symbol trading constraints enforced by the venue.
// Fetched once per request; never cached across requests.
type Filters struct {
	Symbol      string
	TickSize    decimal.Decimal
	QtyStep     decimal.Decimal
	MinOrderQty decimal.Decimal
	MinOrderAmt decimal.Decimal // zero means the venue enforces no minimum notional
}

// Quote is the top of book for a symbol. A zero side means that side was unavailable.
type Quote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Empty reports whether neither side of the quote is available.
func (q Quote) Empty() bool {
	return q.Bid.IsZero() && q.Ask.IsZero()
}

// BuyRef returns the reference price for buy-direction sizing (ask first).
func (q Quote) BuyRef() decimal.Decimal {
	if !q.Ask.IsZero() {
		return q.Ask
	}
	return q.Bid
}

// SellRef returns the reference price for sell-direction sizing (bid first).
func (q Quote) SellRef() decimal.Decimal {
	if !q.Bid.IsZero() {
		return q.Bid
	}
	return q.Ask
}

// OrderStatus labels the terminal outcome of a submission attempt.
type OrderStatus string

const (
	StatusSimulated OrderStatus = "simulated"
	StatusSubmitted OrderStatus = "submitted"
	StatusClosing   OrderStatus = "closing"
	StatusNoBalance OrderStatus = "no_balance"
)

// PlaceOrderRequest describes one spot order to submit.
type PlaceOrderRequest struct {
	Symbol      string
	Side        signal.Side
	OrderType   signal.OrderType
	Qty         decimal.Decimal
	Price       decimal.Decimal // only consulted for limit orders
	TimeInForce string
}

// OrderResult echoes the submitted parameters together with the venue's answer.
type OrderResult struct {
	Status    OrderStatus      `json:"status"`
	OrderID   string           `json:"orderId,omitempty"`
	Symbol    string           `json:"symbol"`
	Side      signal.Side      `json:"side,omitempty"`
	OrderType signal.OrderType `json:"orderType,omitempty"`
	Qty       decimal.Decimal  `json:"qty"`
	Price     decimal.Decimal  `json:"price"`
	Note      string           `json:"note,omitempty"`
}
