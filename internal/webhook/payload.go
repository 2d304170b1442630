package webhook

import (
	"fmt"
	"strings"

	"hookbot-go/internal/signal"
)

// rawPayload mirrors the inbound JSON contract:
//
//	{
//	  "ts": 1696500000000,              // optional unix ms
//	  "action": "open" | "close",
//	  "direction": "long" | "short",    // defaults to long when action==open
//	  "symbol": "BTCUSDT",
//	  "order_type": "market" | "limit",
//	  "limit_price": 65000.0,           // required for limit opens
//	  "leverage": 5,                    // accepted, ignored for spot
//	  "note": "free text",
//	  "key": "..."                      // only consulted in fallback auth mode
//	}
type rawPayload struct {
	Ts         int64    `json:"ts"`
	Action     string   `json:"action"`
	Direction  string   `json:"direction"`
	Symbol     string   `json:"symbol"`
	OrderType  string   `json:"order_type"`
	LimitPrice *float64 `json:"limit_price"`
	Leverage   int      `json:"leverage"`
	Note       string   `json:"note"`
	Key        string   `json:"key"`
}

// Defaults are the server-side values the validator injects; the caller's
// payload never controls order sizing.
type Defaults struct {
	OrderType  signal.OrderType
	AmountUSDT float64
}

// parsePayload turns an authenticated raw body into a validated instruction.
func parsePayload(data rawPayload, d Defaults) (signal.Payload, error) {
	if data.Action == "" {
		return signal.Payload{}, fmt.Errorf("missing field: action")
	}
	if data.Symbol == "" {
		return signal.Payload{}, fmt.Errorf("missing field: symbol")
	}

	action := signal.Action(strings.ToLower(data.Action))
	if action != signal.ActionOpen && action != signal.ActionClose {
		return signal.Payload{}, fmt.Errorf("action must be 'open' or 'close'")
	}

	orderType := d.OrderType
	if data.OrderType != "" {
		orderType = signal.OrderType(strings.ToLower(data.OrderType))
	}
	if orderType != signal.OrderTypeMarket && orderType != signal.OrderTypeLimit {
		return signal.Payload{}, fmt.Errorf("order_type must be 'market' or 'limit'")
	}

	p := signal.Payload{
		Ts:        data.Ts,
		Action:    action,
		Symbol:    strings.ToUpper(data.Symbol),
		OrderType: orderType,
		Leverage:  data.Leverage,
		Note:      data.Note,
	}

	if action == signal.ActionOpen {
		direction := signal.DirectionLong
		if data.Direction != "" {
			direction = signal.Direction(strings.ToLower(data.Direction))
		}
		if direction != signal.DirectionLong && direction != signal.DirectionShort {
			return signal.Payload{}, fmt.Errorf("direction must be 'long' or 'short' when action=='open'")
		}
		if d.AmountUSDT <= 0 {
			return signal.Payload{}, fmt.Errorf("configured amount_usdt must be > 0 when action=='open'")
		}
		p.Direction = direction
		p.AmountUSDT = d.AmountUSDT

		if orderType == signal.OrderTypeLimit {
			if data.LimitPrice == nil {
				return signal.Payload{}, fmt.Errorf("limit_price is required for limit orders")
			}
			p.LimitPrice = *data.LimitPrice
		}
	}

	return p, nil
}
