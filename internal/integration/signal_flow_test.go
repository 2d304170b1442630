package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hookbot-go/internal/execution"
	"hookbot-go/internal/notify"
	"hookbot-go/internal/risk"
	"hookbot-go/internal/signal"
	"hookbot-go/internal/sizing"
	"hookbot-go/internal/venue"
	"hookbot-go/internal/webhook"
)

const secret = "integration-secret"

// fakeVenueAPI is a minimal Bybit v5 stand-in: one symbol, static book, and an
// order endpoint that records what it was asked to do.
func fakeVenueAPI(t *testing.T, orders *[]map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	reply := func(w http.ResponseWriter, result map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"retCode": 0, "retMsg": "OK", "result": result})
	}

	mux.HandleFunc("/v5/market/instruments-info", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"list": []any{map[string]any{
			"symbol":      "BTCUSDT",
			"priceFilter": map[string]any{"tickSize": "0.1"},
			"lotSizeFilter": map[string]any{
				"qtyStep":     "0.001",
				"minOrderQty": "0.001",
				"minOrderAmt": "0",
			},
		}}})
	})
	mux.HandleFunc("/v5/market/orderbook", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{
			"a": [][]string{{"25000", "1"}},
			"b": [][]string{{"24999", "1"}},
		})
	})
	mux.HandleFunc("/v5/order/create", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode order body: %v", err)
		}
		*orders = append(*orders, body)
		reply(w, map[string]any{"orderId": "int-42"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSignedSignalProducesVenueOrder(t *testing.T) {
	var orders []map[string]string
	venueSrv := fakeVenueAPI(t, &orders)

	client := venue.NewClient(venueSrv.URL, "key", "secret", zerolog.Nop())
	exec := execution.NewExecutor(client, sizing.NewSizer(client),
		risk.Limits{MinOrderUSDT: 5, MaxOrderUSDT: 10000}, zerolog.Nop())

	handler := webhook.NewHandler(secret, 300*time.Second, false, webhook.Defaults{
		OrderType:  signal.OrderTypeMarket,
		AmountUSDT: 50,
	}, exec, notify.Nop{}, zerolog.Nop())

	mux := http.NewServeMux()
	handler.Register(mux)
	webhookSrv := httptest.NewServer(mux)
	t.Cleanup(webhookSrv.Close)

	body := []byte(`{"action":"open","symbol":"btcusdt","direction":"long"}`)
	req, err := http.NewRequest(http.MethodPost, webhookSrv.URL+"/webhook", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Webhook-Signature", webhook.Sign(body, secret))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", out)
	}

	if len(orders) != 1 {
		t.Fatalf("expected exactly one venue order, got %d", len(orders))
	}
	order := orders[0]
	if order["symbol"] != "BTCUSDT" || order["side"] != "Buy" || order["orderType"] != "Market" {
		t.Fatalf("unexpected order %v", order)
	}
	if order["qty"] != "0.002" {
		t.Fatalf("expected qty 0.002 from 50 USDT at ask 25000, got %s", order["qty"])
	}
	if order["timeInForce"] != "IOC" {
		t.Fatalf("expected IOC for market orders, got %s", order["timeInForce"])
	}
}
