package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"
)

// signRequest attaches Bybit v5 authentication headers. The signature covers
// timestamp + api key + recv window + (query string for GET, JSON body for POST).
func (c *Client) signRequest(req *http.Request, payload string) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	rw := strconv.Itoa(c.recvWindow)

	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(ts + c.apiKey + rw + payload))
	sign := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", rw)
	req.Header.Set("X-BAPI-SIGN", sign)
}
