// Package notify delivers user-facing notifications about every signal outcome.
// Delivery failures are logged, never escalated to the webhook caller.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hookbot-go/internal/signal"
	"hookbot-go/internal/venue"
)

// Notifier is the collaborator the webhook and executor report outcomes to.
type Notifier interface {
	SignalReceived(p signal.Payload)
	OrderOutcome(res venue.OrderResult)
	Error(msg string, context map[string]any)
	Announce(text string)
}

// Nop discards every notification. Used in tests and when no channel is configured.
type Nop struct{}

func (Nop) SignalReceived(signal.Payload)  {}
func (Nop) OrderOutcome(venue.OrderResult) {}
func (Nop) Error(string, map[string]any)   {}
func (Nop) Announce(string)                {}

const defaultTelegramAPI = "https://api.telegram.org"

// Telegram posts plain-text messages to one chat via the Bot API.
type Telegram struct {
	apiBase string
	token   string
	chatID  string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures Telegram construction parameters.
type Option func(*Telegram)

// WithAPIBase points the notifier at a different Bot API host (tests use this).
func WithAPIBase(base string) Option {
	return func(t *Telegram) {
		if base != "" {
			t.apiBase = strings.TrimSuffix(base, "/")
		}
	}
}

// NewTelegram builds a notifier for the given bot token and chat.
func NewTelegram(token, chatID string, log zerolog.Logger, opts ...Option) *Telegram {
	t := &Telegram{
		apiBase: defaultTelegramAPI,
		token:   token,
		chatID:  chatID,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SignalReceived announces an authenticated, validated inbound signal.
func (t *Telegram) SignalReceived(p signal.Payload) {
	parts := []string{
		"New signal",
		"Symbol: " + p.Symbol,
		"Action: " + strings.ToUpper(string(p.Action)),
	}
	if p.Direction != "" {
		parts = append(parts, "Direction: "+strings.ToUpper(string(p.Direction)))
	}
	if p.AmountUSDT > 0 {
		parts = append(parts, fmt.Sprintf("Amount USDT: %g", p.AmountUSDT))
	}
	if p.Note != "" {
		parts = append(parts, "Note: "+p.Note)
	}
	t.send(strings.Join(parts, "\n"))
}

// OrderOutcome reports the terminal state of a submission attempt.
func (t *Telegram) OrderOutcome(res venue.OrderResult) {
	parts := []string{
		"Order",
		"Symbol: " + res.Symbol,
		"Side: " + string(res.Side),
		"Qty: " + res.Qty.String(),
		"OrderType: " + string(res.OrderType),
		"Price: " + res.Price.String(),
		"Status: " + string(res.Status),
	}
	if res.OrderID != "" {
		parts = append(parts, "OrderId: "+res.OrderID)
	}
	if res.Note != "" {
		parts = append(parts, "Note: "+res.Note)
	}
	t.send(strings.Join(parts, "\n"))
}

// Error reports a rejected or failed flow.
func (t *Telegram) Error(msg string, context map[string]any) {
	parts := []string{"Error", msg}
	if len(context) > 0 {
		parts = append(parts, fmt.Sprintf("Context: %v", context))
	}
	t.send(strings.Join(parts, "\n"))
}

// Announce sends a free-form operational message, e.g. the public webhook URL.
func (t *Telegram) Announce(text string) {
	t.send(text)
}

func (t *Telegram) send(text string) {
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		t.log.Error().Err(err).Msg("telegram encode failed")
		return
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	resp, err := t.http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.log.Error().Err(err).Msg("telegram send failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.log.Error().Int("status", resp.StatusCode).Msg("telegram send rejected")
		return
	}
	t.log.Debug().Msg("telegram sent")
}
