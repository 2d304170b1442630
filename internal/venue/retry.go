package venue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hookbot-go/internal/metrics"
)

const retryAttempts = 4

// var so tests can shrink the backoff.
var retryBaseDelay = 500 * time.Millisecond

// Bybit retCodes considered transient: internal service error and rate limit.
var transientRetCodes = map[int]bool{
	10006: true,
	10016: true,
}

// APIError is a venue response the client could decode but the venue rejected.
type APIError struct {
	Op      string
	Status  int
	RetCode int
	RetMsg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: venue replied status=%d retCode=%d retMsg=%q", e.Op, e.Status, e.RetCode, e.RetMsg)
}

// retryable separates transient faults from permanent ones. Network-level
// failures and 429/5xx responses are retried; everything the venue rejected
// outright (bad symbol, bad params, auth) fails fast.
func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	if apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError {
		return true
	}
	return transientRetCodes[apiErr.RetCode]
}

// withRetry runs fn up to retryAttempts times with doubling backoff starting at
// retryBaseDelay. The final attempt's error is returned unwrapped.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := retryBaseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt == retryAttempts || !retryable(err) {
			return err
		}
		c.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("venue call failed, retrying")
		metrics.VenueRetriesTotal.Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
}
