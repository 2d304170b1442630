// Package webhook authenticates inbound trading signals and hands them to execution.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"hookbot-go/internal/execution"
	"hookbot-go/internal/metrics"
	"hookbot-go/internal/notify"
	"hookbot-go/internal/sizing"
	"hookbot-go/internal/venue"
)

const (
	headerSignature = "X-Webhook-Signature"
	headerTimestamp = "X-Webhook-Timestamp"

	maxBodyBytes = 1 << 20
)

// Handler serves POST /webhook. Each request is processed synchronously on its
// own goroutine; the only shared state is the logger and the venue client,
// both safe for concurrent use.
type Handler struct {
	secret       string
	maxSkew      time.Duration
	authDisabled bool
	defaults     Defaults
	exec         *execution.Executor
	notifier     notify.Notifier
	log          zerolog.Logger
}

// NewHandler wires the webhook surface to its collaborators.
func NewHandler(secret string, maxSkew time.Duration, authDisabled bool, defaults Defaults, exec *execution.Executor, notifier notify.Notifier, log zerolog.Logger) *Handler {
	return &Handler{
		secret:       secret,
		maxSkew:      maxSkew,
		authDisabled: authDisabled,
		defaults:     defaults,
		exec:         exec,
		notifier:     notifier,
		log:          log,
	}
}

// Register mounts the webhook and health routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", h.handleWebhook)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.reject(w, http.StatusBadRequest, "bad_body", "failed to read request body")
		return
	}

	data, ok := h.authenticate(w, r, raw)
	if !ok {
		return
	}

	payload, err := parsePayload(data, h.defaults)
	if err != nil {
		h.reject(w, http.StatusBadRequest, err.Error(), "validation error: "+err.Error())
		return
	}

	metrics.SignalsTotal.WithLabelValues(string(payload.Action)).Inc()
	h.log.Info().Str("symbol", payload.Symbol).Str("action", string(payload.Action)).
		Str("direction", string(payload.Direction)).Msg("signal accepted")
	h.notifier.SignalReceived(payload)

	res, err := h.exec.Handle(r.Context(), payload)
	if err != nil {
		status, msg := classify(err)
		h.log.Error().Err(err).Str("symbol", payload.Symbol).Msg("signal execution failed")
		h.notifier.Error(msg, map[string]any{"symbol": payload.Symbol, "action": string(payload.Action)})
		metrics.RejectsTotal.WithLabelValues("execution").Inc()
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}

	h.notifier.OrderOutcome(res)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "result": res})
}

// authenticate applies the three auth modes in priority order: disabled,
// signature header, body-key fallback. It writes the failure response itself
// and reports ok=false when the request must not proceed.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, raw []byte) (rawPayload, bool) {
	var data rawPayload

	sig := r.Header.Get(headerSignature)
	switch {
	case h.authDisabled:
		// Local testing only; JSON parse failure is the sole rejection.

	case sig != "":
		if !VerifySignature(raw, sig, h.secret) {
			h.rejectAuth(w, "unauthorized", "invalid webhook signature")
			return data, false
		}
		tsMs, err := parseTimestampHeader(r.Header.Get(headerTimestamp))
		if err != nil || !WithinSkew(tsMs, h.maxSkew, time.Now()) {
			h.rejectAuth(w, "skew", "timestamp skew too large")
			return data, false
		}

	default:
		// No signature header: body must carry the shared secret as "key".
		if err := json.Unmarshal(raw, &data); err != nil {
			h.reject(w, http.StatusBadRequest, "bad_json", "invalid JSON")
			return data, false
		}
		if data.Key == "" || data.Key != h.secret {
			h.rejectAuth(w, "unauthorized", "invalid fallback key")
			return data, false
		}
		return data, true
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		h.reject(w, http.StatusBadRequest, "bad_json", "invalid JSON")
		return data, false
	}
	return data, true
}

func parseTimestampHeader(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// classify maps execution failures onto HTTP statuses. Sizing, pricing,
// bounds, and unknown-symbol problems are the caller's 400; anything the venue
// could not absorb after retries is an opaque 500.
func classify(err error) (int, string) {
	var bounds *execution.BoundsError
	var size *sizing.Error
	switch {
	case errors.As(err, &bounds):
		return http.StatusBadRequest, bounds.Error()
	case errors.As(err, &size):
		return http.StatusBadRequest, size.Error()
	case errors.Is(err, sizing.ErrNoQuote):
		return http.StatusBadRequest, "failed to fetch price for qty calc"
	case errors.Is(err, venue.ErrSymbolNotFound):
		return http.StatusBadRequest, "symbol not found or unsupported"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) rejectAuth(w http.ResponseWriter, code, msg string) {
	h.log.Warn().Str("reason", msg).Msg("webhook rejected")
	h.notifier.Error(msg, nil)
	metrics.RejectsTotal.WithLabelValues(code).Inc()
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": code})
}

func (h *Handler) reject(w http.ResponseWriter, status int, errValue, msg string) {
	h.log.Warn().Str("reason", msg).Msg("webhook rejected")
	h.notifier.Error(msg, nil)
	metrics.RejectsTotal.WithLabelValues("validation").Inc()
	writeJSON(w, status, map[string]string{"error": errValue})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
