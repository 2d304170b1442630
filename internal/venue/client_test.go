package venue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"hookbot-go/internal/signal"
)

type fakeBybit struct {
	mux         *http.ServeMux
	orderCalls  int
	walletFree  string
	emptyBook   bool
	noTickerBA  bool
	instruments bool
}

func newFakeBybit() *fakeBybit {
	f := &fakeBybit{mux: http.NewServeMux(), walletFree: "0", instruments: true}

	f.mux.HandleFunc("/v5/market/instruments-info", func(w http.ResponseWriter, r *http.Request) {
		if !f.instruments || r.URL.Query().Get("symbol") == "NOPEUSDT" {
			writeReply(w, map[string]any{"retCode": 0, "retMsg": "OK", "result": map[string]any{"list": []any{}}})
			return
		}
		writeReply(w, map[string]any{
			"retCode": 0, "retMsg": "OK",
			"result": map[string]any{"list": []any{map[string]any{
				"symbol":      "BTCUSDT",
				"priceFilter": map[string]any{"tickSize": "0.1"},
				"lotSizeFilter": map[string]any{
					"qtyStep":     "0.001",
					"minOrderQty": "0.001",
					"minOrderAmt": "5",
				},
			}}},
		})
	})

	f.mux.HandleFunc("/v5/market/orderbook", func(w http.ResponseWriter, r *http.Request) {
		if f.emptyBook {
			writeReply(w, map[string]any{"retCode": 0, "retMsg": "OK", "result": map[string]any{"a": []any{}, "b": []any{}}})
			return
		}
		writeReply(w, map[string]any{
			"retCode": 0, "retMsg": "OK",
			"result": map[string]any{
				"a": [][]string{{"25000.1", "1"}},
				"b": [][]string{{"25000.0", "2"}},
			},
		})
	})

	f.mux.HandleFunc("/v5/market/tickers", func(w http.ResponseWriter, r *http.Request) {
		item := map[string]any{"bid1Price": "24999", "ask1Price": "25001", "lastPrice": "25000"}
		if f.noTickerBA {
			item = map[string]any{"bid1Price": "", "ask1Price": "", "lastPrice": "25000"}
		}
		writeReply(w, map[string]any{
			"retCode": 0, "retMsg": "OK",
			"result": map[string]any{"list": []any{item}},
		})
	})

	f.mux.HandleFunc("/v5/account/wallet-balance", func(w http.ResponseWriter, r *http.Request) {
		writeReply(w, map[string]any{
			"retCode": 0, "retMsg": "OK",
			"result": map[string]any{"list": []any{map[string]any{
				"coin": []any{map[string]any{"coin": "BTC", "free": f.walletFree}},
			}}},
		})
	})

	f.mux.HandleFunc("/v5/order/create", func(w http.ResponseWriter, r *http.Request) {
		f.orderCalls++
		if r.Header.Get("X-BAPI-SIGN") == "" || r.Header.Get("X-BAPI-API-KEY") == "" {
			writeReply(w, map[string]any{"retCode": 10004, "retMsg": "error sign", "result": map[string]any{}})
			return
		}
		writeReply(w, map[string]any{
			"retCode": 0, "retMsg": "OK",
			"result": map[string]any{"orderId": "order-123"},
		})
	})

	return f
}

func writeReply(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, f *fakeBybit, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "test-secret", zerolog.Nop(), opts...)
}

func TestInstrumentFilters(t *testing.T) {
	c := newTestClient(t, newFakeBybit())

	f, err := c.InstrumentFilters(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("InstrumentFilters returned error: %v", err)
	}
	if f.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol %s", f.Symbol)
	}
	if !f.QtyStep.Equal(decimal.RequireFromString("0.001")) {
		t.Fatalf("unexpected qty step %s", f.QtyStep)
	}
	if !f.MinOrderAmt.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("unexpected min order amt %s", f.MinOrderAmt)
	}
}

func TestInstrumentFiltersSymbolNotFound(t *testing.T) {
	c := newTestClient(t, newFakeBybit())

	_, err := c.InstrumentFilters(context.Background(), "NOPEUSDT")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestBestQuoteFromOrderbook(t *testing.T) {
	c := newTestClient(t, newFakeBybit())

	q, err := c.BestQuote(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("BestQuote returned error: %v", err)
	}
	if !q.Ask.Equal(decimal.RequireFromString("25000.1")) || !q.Bid.Equal(decimal.RequireFromString("25000.0")) {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestBestQuoteTickerFallback(t *testing.T) {
	f := newFakeBybit()
	f.emptyBook = true
	c := newTestClient(t, f)

	q, err := c.BestQuote(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("BestQuote returned error: %v", err)
	}
	if !q.Bid.Equal(decimal.RequireFromString("24999")) {
		t.Fatalf("expected ticker bid, got %s", q.Bid)
	}
}

func TestBestQuoteLastPriceFallback(t *testing.T) {
	f := newFakeBybit()
	f.emptyBook = true
	f.noTickerBA = true
	c := newTestClient(t, f)

	q, err := c.BestQuote(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("BestQuote returned error: %v", err)
	}
	last := decimal.RequireFromString("25000")
	if !q.Bid.Equal(last) || !q.Ask.Equal(last) {
		t.Fatalf("expected last price on both sides, got %+v", q)
	}
}

func TestPlaceOrderSubmitsSigned(t *testing.T) {
	f := newFakeBybit()
	c := newTestClient(t, f)

	res, err := c.PlaceOrder(context.Background(), PlaceOrderRequest{
		Symbol:      "BTCUSDT",
		Side:        signal.Buy,
		OrderType:   signal.OrderTypeMarket,
		Qty:         decimal.RequireFromString("0.002"),
		TimeInForce: "IOC",
	})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if res.Status != StatusSubmitted {
		t.Fatalf("expected submitted status, got %s", res.Status)
	}
	if res.OrderID != "order-123" {
		t.Fatalf("expected venue order id echoed, got %q", res.OrderID)
	}
	if f.orderCalls != 1 {
		t.Fatalf("expected exactly one order call, got %d", f.orderCalls)
	}
}

func TestPlaceOrderSimulated(t *testing.T) {
	f := newFakeBybit()
	c := newTestClient(t, f, WithSimulate(true))

	res, err := c.PlaceOrder(context.Background(), PlaceOrderRequest{
		Symbol:      "BTCUSDT",
		Side:        signal.Sell,
		OrderType:   signal.OrderTypeMarket,
		Qty:         decimal.RequireFromString("0.5"),
		TimeInForce: "IOC",
	})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if res.Status != StatusSimulated {
		t.Fatalf("expected simulated status, got %s", res.Status)
	}
	if f.orderCalls != 0 {
		t.Fatalf("simulation must not touch the network, saw %d order calls", f.orderCalls)
	}
	if !res.Qty.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("expected qty echoed, got %s", res.Qty)
	}
}

func TestClosePositionNoBalance(t *testing.T) {
	f := newFakeBybit()
	f.walletFree = "0"
	c := newTestClient(t, f)

	res, err := c.ClosePosition(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("ClosePosition returned error: %v", err)
	}
	if res.Status != StatusNoBalance {
		t.Fatalf("expected no_balance, got %s", res.Status)
	}
	if f.orderCalls != 0 {
		t.Fatalf("no sell order may be attempted on zero balance, saw %d", f.orderCalls)
	}
}

func TestClosePositionSellsFlooredBalance(t *testing.T) {
	f := newFakeBybit()
	f.walletFree = "0.12345"
	c := newTestClient(t, f)

	res, err := c.ClosePosition(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("ClosePosition returned error: %v", err)
	}
	if res.Status != StatusClosing {
		t.Fatalf("expected closing status, got %s", res.Status)
	}
	if !res.Qty.Equal(decimal.RequireFromString("0.123")) {
		t.Fatalf("expected balance floored to lot step, got %s", res.Qty)
	}
	if f.orderCalls != 1 {
		t.Fatalf("expected one sell order, got %d", f.orderCalls)
	}
}

func TestBaseCoin(t *testing.T) {
	cases := map[string]string{
		"BTCUSDT": "BTC",
		"ETHUSDC": "ETH",
		"USDT":    "USDT",
		"SOL":     "SOL",
	}
	for symbol, want := range cases {
		if got := baseCoin(symbol); got != want {
			t.Fatalf("baseCoin(%s) = %s, want %s", symbol, got, want)
		}
	}
}

func TestAPIErrorOnVenueRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/instruments-info", func(w http.ResponseWriter, r *http.Request) {
		writeReply(w, map[string]any{"retCode": 10001, "retMsg": "params error", "result": map[string]any{}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "", "", zerolog.Nop())
	start := time.Now()
	_, err := c.InstrumentFilters(context.Background(), "BTCUSDT")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.RetCode != 10001 {
		t.Fatalf("unexpected retCode %d", apiErr.RetCode)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Fatalf("permanent rejection must not back off")
	}
}
