package trade

import (
	"context"
	"log/slog"

	"tradesphere/internal/domain"
	"tradesphere/internal/gateway"
	"tradesphere/internal/marketcache"
)

// Recovery checks and claims the time-boxed balance grant. Eligibility and
// the countdown are computed server-side only; the client never derives
// them from a remembered timestamp.
type Recovery struct {
	gw      *gateway.Client
	cache   *marketcache.Cache
	account Account
	userID  int64
	log     *slog.Logger
}

// NewRecovery creates a Recovery helper for the given user.
func NewRecovery(gw *gateway.Client, cache *marketcache.Cache, account Account, userID int64, log *slog.Logger) *Recovery {
	if log == nil {
		log = slog.Default()
	}
	return &Recovery{
		gw:      gw,
		cache:   cache,
		account: account,
		userID:  userID,
		log:     log.With("component", "recovery"),
	}
}

// Status returns the server's recovery status unmodified.
func (r *Recovery) Status(ctx context.Context) (*domain.RecoveryStatus, error) {
	return r.gw.RecoveryStatus(ctx, r.userID)
}

// Claim claims the grant, applies the server's new balance, and forces a
// full cache refresh, exactly like a completed trade. It returns the
// granted amount.
func (r *Recovery) Claim(ctx context.Context) (float64, error) {
	result, err := r.gw.RecoverBalance(ctx, r.userID)
	if err != nil {
		return 0, err
	}

	r.account.SetBalance(result.NewBalance)
	r.log.Info("balance recovered", "amount", result.RecoveryAmount)
	if err := r.cache.Refresh(ctx, true); err != nil {
		r.log.Warn("post-recovery refresh failed", "error", err)
	}
	return result.RecoveryAmount, nil
}
