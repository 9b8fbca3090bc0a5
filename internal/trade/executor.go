// Package trade submits buy and sell orders and claims balance recovery.
// Client-side checks are advisory only; the server stays authoritative, and
// its returned balance always replaces the local one outright.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tradesphere/internal/domain"
	"tradesphere/internal/gateway"
	"tradesphere/internal/marketcache"
)

// Validation failures. Trades rejected with these never reach the network.
var (
	ErrBadQuantity        = errors.New("quantity must be a positive whole number")
	ErrInsufficientFunds  = errors.New("insufficient balance for this purchase")
	ErrInsufficientShares = errors.New("not enough shares held to sell")
)

// Account is the slice of the session the executor needs: the cached
// balance for advisory checks, and the sink for the server's authoritative
// balance after a successful trade or recovery claim.
type Account interface {
	Balance() float64
	SetBalance(balance float64)
}

// Executor submits trades for one signed-in user.
type Executor struct {
	gw      *gateway.Client
	cache   *marketcache.Cache
	account Account
	userID  int64
	log     *slog.Logger
}

// NewExecutor creates an Executor for the given user.
func NewExecutor(gw *gateway.Client, cache *marketcache.Cache, account Account, userID int64, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		gw:      gw,
		cache:   cache,
		account: account,
		userID:  userID,
		log:     log.With("component", "trade"),
	}
}

// Execute validates and submits one trade. On success the server-returned
// balance replaces the local one (never a local decrement) and the cache is
// forced through a full non-cached refresh so holdings reflect the trade
// immediately. On failure nothing is mutated and the server's reason, when
// present, is surfaced verbatim.
func (e *Executor) Execute(ctx context.Context, side domain.Side, stock domain.StockQuote, quantity int64) (float64, error) {
	if quantity <= 0 {
		return 0, ErrBadQuantity
	}
	switch side {
	case domain.SideBuy:
		if stock.Price*float64(quantity) > e.account.Balance() {
			return 0, ErrInsufficientFunds
		}
	case domain.SideSell:
		if quantity > e.cache.OwnedQuantity(stock.StockID) {
			return 0, ErrInsufficientShares
		}
	default:
		return 0, fmt.Errorf("unknown trade side %q", side)
	}

	var (
		newBalance float64
		err        error
	)
	if side == domain.SideBuy {
		newBalance, err = e.gw.Buy(ctx, e.userID, stock.StockID, quantity)
	} else {
		newBalance, err = e.gw.Sell(ctx, e.userID, stock.StockID, quantity)
	}
	if err != nil {
		return 0, err
	}

	e.account.SetBalance(newBalance)
	e.log.Info("trade executed",
		"side", side,
		"symbol", stock.Symbol,
		"quantity", quantity,
	)
	if err := e.cache.Refresh(ctx, true); err != nil {
		e.log.Warn("post-trade refresh failed", "error", err)
	}
	return newBalance, nil
}
