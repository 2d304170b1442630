package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Sign computes the hex HMAC-SHA256 of the exact raw body under the shared secret.
func Sign(raw []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a claimed signature in constant time.
func VerifySignature(raw []byte, providedHex, secret string) bool {
	expected := Sign(raw, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(providedHex)))
}

// WithinSkew reports whether a claimed millisecond timestamp is close enough to
// now. A zero timestamp means none was supplied and always passes; the skew
// check only applies when the caller sent one.
func WithinSkew(tsMs int64, maxSkew time.Duration, now time.Time) bool {
	if tsMs == 0 {
		return true
	}
	diff := now.UnixMilli() - tsMs
	if diff < 0 {
		diff = -diff
	}
	return diff <= maxSkew.Milliseconds()
}
