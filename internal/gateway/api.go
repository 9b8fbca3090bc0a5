package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"tradesphere/internal/domain"
)

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tradeRequest struct {
	UserID   int64 `json:"user_id"`
	StockID  int64 `json:"stock_id"`
	Quantity int64 `json:"quantity"`
}

// Identity is the authenticated caller's identity from GET /auth/me.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// RecoveryResult is the outcome of a successful balance recovery claim.
type RecoveryResult struct {
	NewBalance     float64 `json:"new_balance"`
	RecoveryAmount float64 `json:"recovery_amount"`
}

// Login authenticates with the service and returns the bearer token,
// tolerating the recognised response shapes.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var body map[string]json.RawMessage
	if err := c.post(ctx, "/auth/login", authRequest{Username: username, Password: password}, &body); err != nil {
		return "", err
	}
	token, ok := extractToken(body)
	if !ok {
		return "", ErrNoToken
	}
	return token, nil
}

// Register creates an account. Some backend versions return a token
// directly; others return only the created user record, in which case the
// returned token is empty and the caller should log in with the same
// credentials to obtain one.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	var body map[string]json.RawMessage
	if err := c.post(ctx, "/auth/register", authRequest{Username: username, Password: password}, &body); err != nil {
		return "", err
	}
	token, _ := extractToken(body)
	return token, nil
}

// Me returns the authenticated caller's identity.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := c.get(ctx, "/auth/me", &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Balance returns the authenticated caller's current balance.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := c.get(ctx, "/balance", &body); err != nil {
		return 0, err
	}
	return body.Balance, nil
}

// Stocks returns the current market snapshot.
func (c *Client) Stocks(ctx context.Context) ([]domain.StockQuote, error) {
	var stocks []domain.StockQuote
	if err := c.get(ctx, "/stocks", &stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

// Portfolio returns the user's current holdings.
func (c *Client) Portfolio(ctx context.Context, userID int64) ([]domain.Holding, error) {
	var holdings []domain.Holding
	if err := c.get(ctx, fmt.Sprintf("/portfolio/%d", userID), &holdings); err != nil {
		return nil, err
	}
	return holdings, nil
}

// Transactions returns the user's trade history, newest first.
func (c *Client) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	if err := c.get(ctx, "/transactions", &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// RecoveryStatus asks the server whether the balance grant is claimable.
func (c *Client) RecoveryStatus(ctx context.Context, userID int64) (*domain.RecoveryStatus, error) {
	var status domain.RecoveryStatus
	if err := c.get(ctx, fmt.Sprintf("/recovery-status/%d", userID), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RecoverBalance claims the balance grant.
func (c *Client) RecoverBalance(ctx context.Context, userID int64) (*RecoveryResult, error) {
	var result RecoveryResult
	if err := c.post(ctx, fmt.Sprintf("/recover-balance/%d", userID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Buy submits a buy order and returns the server's authoritative new
// balance.
func (c *Client) Buy(ctx context.Context, userID, stockID, quantity int64) (float64, error) {
	return c.trade(ctx, "/buy", userID, stockID, quantity)
}

// Sell submits a sell order and returns the server's authoritative new
// balance.
func (c *Client) Sell(ctx context.Context, userID, stockID, quantity int64) (float64, error) {
	return c.trade(ctx, "/sell", userID, stockID, quantity)
}

func (c *Client) trade(ctx context.Context, path string, userID, stockID, quantity int64) (float64, error) {
	var body struct {
		NewBalance float64 `json:"new_balance"`
	}
	req := tradeRequest{UserID: userID, StockID: stockID, Quantity: quantity}
	if err := c.post(ctx, path, req, &body); err != nil {
		return 0, err
	}
	return body.NewBalance, nil
}
