// Package marketcache serves the stock list and the user's portfolio with a
// bounded-staleness read policy: the portfolio is re-fetched on every
// trigger, while the market snapshot is reused until it ages past the
// freshness window. Failed fetches surface an error and leave the previous
// snapshots visible.
package marketcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tradesphere/internal/domain"
	"tradesphere/internal/gateway"
)

const (
	// FreshnessWindow is the maximum age at which the cached stock
	// snapshot may be served without re-fetching.
	FreshnessWindow = 30 * time.Second

	// PollInterval is the default period of the background refresh loop.
	PollInterval = 30 * time.Second

	// minIndicatorHold keeps the refreshing indicator visible briefly
	// after fast responses so it does not flicker.
	minIndicatorHold = 300 * time.Millisecond
)

// Cache holds the market and portfolio snapshots for one signed-in user.
// A user switch gets a fresh Cache (or Reset), never shared entries.
type Cache struct {
	gw     *gateway.Client
	userID int64
	window time.Duration
	log    *slog.Logger
	now    func() time.Time

	mu              sync.Mutex
	stocks          []domain.StockQuote
	stocksFetchedAt time.Time
	portfolio       []domain.Holding
	lastErr         error
	inFlight        int
	indicatorUntil  time.Time

	// Fetches are tagged with per-kind sequence numbers; a response whose
	// sequence is below the last applied one lost the race to a newer
	// overlapping fetch and is discarded instead of overwriting it.
	stockSeq         uint64
	stockApplied     uint64
	portfolioSeq     uint64
	portfolioApplied uint64
}

// New creates a Cache for the given user. window <= 0 selects the default
// freshness window.
func New(gw *gateway.Client, userID int64, window time.Duration, log *slog.Logger) *Cache {
	if window <= 0 {
		window = FreshnessWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		gw:     gw,
		userID: userID,
		window: window,
		log:    log.With("component", "marketcache"),
		now:    time.Now,
	}
}

// Refresh performs one fetch cycle. The portfolio is always re-fetched; the
// stock list only when force is set, no snapshot exists yet, or the cached
// snapshot has aged past the freshness window. Both fetches run
// concurrently and the cycle completes only once both settle. On failure
// the error is recorded and previously fetched data is retained.
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	c.mu.Lock()
	c.inFlight++
	c.lastErr = nil
	wantStocks := force || c.stocks == nil || c.now().Sub(c.stocksFetchedAt) >= c.window
	c.portfolioSeq++
	portfolioSeq := c.portfolioSeq
	var stockSeq uint64
	if wantStocks {
		c.stockSeq++
		stockSeq = c.stockSeq
	}
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		holdings, err := c.gw.Portfolio(ctx, c.userID)
		if err != nil {
			return fmt.Errorf("fetching portfolio: %w", err)
		}
		c.applyPortfolio(portfolioSeq, holdings)
		return nil
	})
	if wantStocks {
		g.Go(func() error {
			stocks, err := c.gw.Stocks(ctx)
			if err != nil {
				return fmt.Errorf("fetching stocks: %w", err)
			}
			c.applyStocks(stockSeq, stocks)
			return nil
		})
	}
	err := g.Wait()

	c.mu.Lock()
	c.inFlight--
	if err != nil {
		c.lastErr = err
	}
	c.indicatorUntil = c.now().Add(minIndicatorHold)
	c.mu.Unlock()
	return err
}

// applyStocks installs a market snapshot wholesale unless a newer fetch has
// already been applied.
func (c *Cache) applyStocks(seq uint64, stocks []domain.StockQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.stockApplied {
		c.log.Debug("discarding stale stock response", "seq", seq, "applied", c.stockApplied)
		return
	}
	c.stockApplied = seq
	c.stocks = stocks
	c.stocksFetchedAt = c.now()
}

func (c *Cache) applyPortfolio(seq uint64, holdings []domain.Holding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.portfolioApplied {
		c.log.Debug("discarding stale portfolio response", "seq", seq, "applied", c.portfolioApplied)
		return
	}
	c.portfolioApplied = seq
	c.portfolio = holdings
}

// Poll refreshes on the given interval until ctx is cancelled. A failed
// poll is logged and the previous snapshots stay visible; it never tears
// down the session.
func (c *Cache) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx, false); err != nil {
				c.log.Warn("background refresh failed", "error", err)
			}
		}
	}
}

// Stocks returns a copy of the cached market snapshot.
func (c *Cache) Stocks() []domain.StockQuote {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.StockQuote, len(c.stocks))
	copy(out, c.stocks)
	return out
}

// Portfolio returns a copy of the cached holdings.
func (c *Cache) Portfolio() []domain.Holding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Holding, len(c.portfolio))
	copy(out, c.portfolio)
	return out
}

// OwnedQuantity returns the held quantity for a stock, read from the
// cached portfolio.
func (c *Cache) OwnedQuantity(stockID int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.portfolio {
		if h.StockID == stockID {
			return h.Quantity
		}
	}
	return 0
}

// TotalValue sums the server-reported current value of all holdings.
func (c *Cache) TotalValue() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, h := range c.portfolio {
		total += h.CurrentValue
	}
	return total
}

// Err returns the error recorded by the most recent fetch cycle, or nil.
func (c *Cache) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Refreshing reports whether the refresh indicator should be visible: true
// while any fetch cycle is in flight and for a short hold after data
// arrives.
func (c *Cache) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0 || c.now().Before(c.indicatorUntil)
}

// Reset drops all cached entries. Used when the signed-in user changes.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stocks = nil
	c.stocksFetchedAt = time.Time{}
	c.portfolio = nil
	c.lastErr = nil
}
