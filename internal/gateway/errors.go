package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a failure reported by the trading service. Reason carries the
// human-readable message from the response body when one was present and is
// surfaced to the user verbatim.
type APIError struct {
	Status int
	Reason string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// decodeAPIError extracts a display reason from the accepted error body
// shapes: {"error": "..."} and {"detail": ...} where detail is either a
// string or a list of {"msg": "..."} objects joined by comma.
func decodeAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	reason := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			reason = payload.Error
		case len(payload.Detail) > 0:
			reason = reasonFromDetail(payload.Detail)
		}
	}
	return &APIError{Status: status, Reason: reason}
}

func reasonFromDetail(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				parts = append(parts, item.Msg)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
