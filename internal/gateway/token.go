package gateway

import (
	"encoding/json"
	"errors"
)

// ErrNoToken is returned when an auth response carries none of the
// recognised token fields.
var ErrNoToken = errors.New("no token in auth response")

// tokenKeys is the ordered list of recognised token field names. Backend
// versions have shipped all four; the first present key wins. Keep this
// list short.
var tokenKeys = []string{"access_token", "token", "accessToken", "jwt"}

// extractToken picks the bearer token out of a decoded auth response using
// the adapter list above.
func extractToken(body map[string]json.RawMessage) (string, bool) {
	for _, key := range tokenKeys {
		raw, ok := body[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s, true
		}
	}
	return "", false
}
