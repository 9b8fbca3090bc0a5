// Package domain defines the core data types shared across the TradeSphere
// client: the cached user profile, market quotes, portfolio holdings, and
// transaction history entries.
package domain

import "math"

// Side identifies the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// UserProfile is the identity and balance of the signed-in user as last
// reported by the server.
type UserProfile struct {
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
}

// Valid reports whether the profile satisfies the shape invariant: a
// present user ID and a finite balance. A persisted record that fails this
// check is treated as corrupt and discarded.
func (u *UserProfile) Valid() bool {
	if u == nil || u.UserID <= 0 {
		return false
	}
	return !math.IsNaN(u.Balance) && !math.IsInf(u.Balance, 0)
}

// StockQuote is an immutable snapshot of one listed stock at fetch time.
// Snapshots are superseded wholesale on each market refresh, never merged
// field by field.
type StockQuote struct {
	StockID int64   `json:"stock_id"`
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
}

// Holding is one portfolio position as reported by the server.
// CurrentValue is taken verbatim from the response and never recomputed
// client-side.
type Holding struct {
	StockID      int64   `json:"stock_id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Quantity     int64   `json:"quantity"`
	Price        float64 `json:"price"`
	CurrentValue float64 `json:"current_value"`
}

// Transaction is one append-only history entry. It is server-owned and
// read-only on the client.
type Transaction struct {
	TransactionID      int64   `json:"transaction_id"`
	Type               Side    `json:"type"`
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name"`
	Quantity           int64   `json:"quantity"`
	PriceAtTransaction float64 `json:"price_at_transaction"`
	Timestamp          string  `json:"timestamp"`
}

// RecoveryStatus reports whether the time-boxed balance grant is currently
// claimable. The countdown fields are server-computed; the client never
// derives eligibility from a remembered timestamp.
type RecoveryStatus struct {
	CanRecover  bool `json:"can_recover"`
	HoursLeft   int  `json:"hours_left"`
	MinutesLeft int  `json:"minutes_left"`
}
