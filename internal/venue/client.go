// Package venue hosts the Bybit spot REST client and its retry policy.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"hookbot-go/internal/signal"
)

// ErrSymbolNotFound means the venue reported no spot instrument for the symbol.
var ErrSymbolNotFound = errors.New("symbol not found or not spot")

const defaultBaseURL = "https://api.bybit.com"

// Client is the sole point of contact with the venue. Safe for concurrent use;
// all state is read-only after construction.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	recvWindow int
	simulate   bool
	http       *http.Client
	log        zerolog.Logger
}

// Option configures Client construction parameters.
type Option func(*Client)

// WithSimulate short-circuits order submission with synthetic outcomes.
func WithSimulate(on bool) Option {
	return func(c *Client) { c.simulate = on }
}

// WithRecvWindow overrides the signed-request receive window in milliseconds.
func WithRecvWindow(ms int) Option {
	return func(c *Client) {
		if ms > 0 {
			c.recvWindow = ms
		}
	}
}

// WithHTTPClient swaps the underlying transport (tests point this at a fake).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient constructs a venue client for the given endpoint and credentials.
func NewClient(baseURL, apiKey, apiSecret string, log zerolog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		recvWindow: 5000,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type replyMeta struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
}

func (r replyMeta) code() (int, string) { return r.RetCode, r.RetMsg }

type venueReply interface{ code() (int, string) }

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, signed bool, out venueReply) error {
	u := c.baseURL + path
	encoded := query.Encode()
	if encoded != "" {
		u += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if signed {
		c.signRequest(req, encoded)
	}
	return c.do(op, req, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, body any, out venueReply) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.signRequest(req, string(payload))
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out venueReply) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http do: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: op, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	if code, msg := out.code(); code != 0 {
		return &APIError{Op: op, Status: resp.StatusCode, RetCode: code, RetMsg: msg}
	}
	return nil
}

type instrumentsResponse struct {
	replyMeta
	Result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				QtyStep       string `json:"qtyStep"`
				BasePrecision string `json:"basePrecision"`
				MinOrderQty   string `json:"minOrderQty"`
				MinOrderAmt   string `json:"minOrderAmt"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	} `json:"result"`
}

// InstrumentFilters fetches the trading constraints for one spot symbol.
func (c *Client) InstrumentFilters(ctx context.Context, symbol string) (Filters, error) {
	query := url.Values{}
	query.Set("category", "spot")
	query.Set("symbol", symbol)

	var resp instrumentsResponse
	err := c.withRetry(ctx, "instruments-info", func() error {
		resp = instrumentsResponse{}
		return c.getJSON(ctx, "instruments-info", "/v5/market/instruments-info", query, false, &resp)
	})
	if err != nil {
		return Filters{}, err
	}
	if len(resp.Result.List) == 0 {
		return Filters{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	info := resp.Result.List[0]
	step := info.LotSizeFilter.QtyStep
	if step == "" {
		step = info.LotSizeFilter.BasePrecision
	}
	f := Filters{
		Symbol:      info.Symbol,
		TickSize:    parseDecimal(info.PriceFilter.TickSize, "0.1"),
		QtyStep:     parseDecimal(step, "0.001"),
		MinOrderAmt: parseDecimal(info.LotSizeFilter.MinOrderAmt, "0"),
	}
	f.MinOrderQty = parseDecimal(info.LotSizeFilter.MinOrderQty, f.QtyStep.String())
	return f, nil
}

type orderbookResponse struct {
	replyMeta
	Result struct {
		Asks [][]string `json:"a"`
		Bids [][]string `json:"b"`
	} `json:"result"`
}

type tickersResponse struct {
	replyMeta
	Result struct {
		List []struct {
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	} `json:"result"`
}

// BestQuote returns top-of-book prices, falling back to the ticker endpoint
// when the order book call fails or comes back empty. The last traded price
// stands in for both sides when the ticker carries no bid or ask either.
func (c *Client) BestQuote(ctx context.Context, symbol string) (Quote, error) {
	query := url.Values{}
	query.Set("category", "spot")
	query.Set("symbol", symbol)

	bookQuery := url.Values{}
	bookQuery.Set("category", "spot")
	bookQuery.Set("symbol", symbol)
	bookQuery.Set("limit", "1")

	var book orderbookResponse
	err := c.withRetry(ctx, "orderbook", func() error {
		book = orderbookResponse{}
		return c.getJSON(ctx, "orderbook", "/v5/market/orderbook", bookQuery, false, &book)
	})
	if err == nil {
		q := Quote{}
		if len(book.Result.Asks) > 0 && len(book.Result.Asks[0]) > 0 {
			q.Ask = parseDecimal(book.Result.Asks[0][0], "0")
		}
		if len(book.Result.Bids) > 0 && len(book.Result.Bids[0]) > 0 {
			q.Bid = parseDecimal(book.Result.Bids[0][0], "0")
		}
		if !q.Empty() {
			return q, nil
		}
	} else {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("orderbook unavailable, falling back to tickers")
	}

	var tickers tickersResponse
	err = c.withRetry(ctx, "tickers", func() error {
		tickers = tickersResponse{}
		return c.getJSON(ctx, "tickers", "/v5/market/tickers", query, false, &tickers)
	})
	if err != nil {
		return Quote{}, err
	}
	if len(tickers.Result.List) == 0 {
		return Quote{}, nil
	}
	item := tickers.Result.List[0]
	q := Quote{
		Bid: parseDecimal(item.Bid1Price, "0"),
		Ask: parseDecimal(item.Ask1Price, "0"),
	}
	if q.Empty() && item.LastPrice != "" {
		last := parseDecimal(item.LastPrice, "0")
		return Quote{Bid: last, Ask: last}, nil
	}
	return q, nil
}

type walletResponse struct {
	replyMeta
	Result struct {
		List []struct {
			Coin []struct {
				Coin string `json:"coin"`
				Free string `json:"free"`
			} `json:"coin"`
		} `json:"list"`
	} `json:"result"`
}

// WalletFree sums the free balance of one coin across all unified accounts.
func (c *Client) WalletFree(ctx context.Context, coin string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("accountType", "UNIFIED")

	var resp walletResponse
	err := c.withRetry(ctx, "wallet-balance", func() error {
		resp = walletResponse{}
		return c.getJSON(ctx, "wallet-balance", "/v5/account/wallet-balance", query, true, &resp)
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, acct := range resp.Result.List {
		for _, entry := range acct.Coin {
			if entry.Coin == coin {
				total = total.Add(parseDecimal(entry.Free, "0"))
			}
		}
	}
	return total, nil
}

type createOrderResponse struct {
	replyMeta
	Result struct {
		OrderID string `json:"orderId"`
	} `json:"result"`
}

// PlaceOrder submits one spot order. In simulate mode no network call happens;
// a deterministic synthetic outcome echoes the would-be parameters instead.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (OrderResult, error) {
	result := OrderResult{
		Symbol:    req.Symbol,
		Side:      req.Side,
		OrderType: req.OrderType,
		Qty:       req.Qty,
		Price:     req.Price,
	}
	if c.simulate {
		result.Status = StatusSimulated
		c.log.Info().Str("symbol", req.Symbol).Str("side", string(req.Side)).
			Str("qty", req.Qty.String()).Msg("simulate place order")
		return result, nil
	}

	body := map[string]string{
		"category":    "spot",
		"symbol":      req.Symbol,
		"side":        string(req.Side),
		"orderType":   capitalize(string(req.OrderType)),
		"qty":         req.Qty.String(),
		"timeInForce": req.TimeInForce,
	}
	if req.OrderType == signal.OrderTypeLimit && req.Price.IsPositive() {
		body["price"] = req.Price.String()
	}

	var resp createOrderResponse
	err := c.withRetry(ctx, "order-create", func() error {
		resp = createOrderResponse{}
		return c.postJSON(ctx, "order-create", "/v5/order/create", body, &resp)
	})
	if err != nil {
		return OrderResult{}, err
	}
	result.Status = StatusSubmitted
	result.OrderID = resp.Result.OrderID
	return result, nil
}

// ClosePosition sells the entire free base-asset balance at market. The
// quantity is floored to the lot step so the venue never sees a misaligned
// size; a flat or dust-only balance yields a no_balance outcome without any
// order being placed.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (OrderResult, error) {
	if c.simulate {
		c.log.Info().Str("symbol", symbol).Msg("simulate close position")
		return OrderResult{Status: StatusSimulated, Symbol: symbol, Side: signal.Sell, OrderType: signal.OrderTypeMarket}, nil
	}

	free, err := c.WalletFree(ctx, baseCoin(symbol))
	if err != nil {
		return OrderResult{}, err
	}
	if !free.IsPositive() {
		return OrderResult{Status: StatusNoBalance, Symbol: symbol}, nil
	}

	filters, err := c.InstrumentFilters(ctx, symbol)
	if err != nil {
		return OrderResult{}, err
	}
	qty := free
	if filters.QtyStep.IsPositive() {
		qty = free.Div(filters.QtyStep).Floor().Mul(filters.QtyStep)
	}
	if !qty.IsPositive() {
		return OrderResult{Status: StatusNoBalance, Symbol: symbol}, nil
	}

	placed, err := c.PlaceOrder(ctx, PlaceOrderRequest{
		Symbol:      symbol,
		Side:        signal.Sell,
		OrderType:   signal.OrderTypeMarket,
		Qty:         qty,
		TimeInForce: "IOC",
	})
	if err != nil {
		return OrderResult{}, err
	}
	placed.Status = StatusClosing
	return placed, nil
}

// EnsureLeverage is a no-op: spot trading has no leverage. The field is
// accepted from callers for compatibility and ignored.
func (c *Client) EnsureLeverage(symbol string, leverage int) {
	if leverage > 0 {
		c.log.Debug().Str("symbol", symbol).Int("leverage", leverage).Msg("leverage ignored for spot")
	}
}

func baseCoin(symbol string) string {
	for _, quote := range []string{"USDT", "USDC"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return strings.TrimSuffix(symbol, quote)
		}
	}
	return symbol
}

func parseDecimal(s, fallback string) decimal.Decimal {
	if s != "" {
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(fallback)
	return d
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
