// Package signal standardizes payloads shared between the webhook layer and execution.
package signal

// Action tells the executor whether to open a new position or flatten an existing one.
type Action string

const (
	// ActionOpen places a fixed-notional spot order in the signal's direction.
	ActionOpen Action = "open"
	// ActionClose liquidates the full held base-asset balance for the symbol.
	ActionClose Action = "close"
)

// Direction expresses the bias of an open signal.
type Direction string

const (
	// DirectionLong maps to a spot buy.
	DirectionLong Direction = "long"
	// DirectionShort maps to a spot sell.
	DirectionShort Direction = "short"
)

// OrderType selects how the resulting order executes at the venue.
type OrderType string

const (
	// OrderTypeMarket executes immediately against the book.
	OrderTypeMarket OrderType = "market"
	// OrderTypeLimit rests at the caller-provided limit price.
	OrderTypeLimit OrderType = "limit"
)

// Side is the venue-facing order direction derived from Direction.
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// OrderSide converts a signal direction into the venue side.
func (d Direction) OrderSide() Side {
	if d == DirectionShort {
		return Sell
	}
	return Buy
}

// Payload is a fully validated trading instruction extracted from a webhook body.
// AmountUSDT always carries the server-side configured notional, never caller input.
type Payload struct {
	Ts         int64
	Action     Action
	Direction  Direction
	Symbol     string
	OrderType  OrderType
	LimitPrice float64
	AmountUSDT float64
	Leverage   int
	Note       string
}
