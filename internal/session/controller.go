package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"tradesphere/internal/authstore"
	"tradesphere/internal/domain"
	"tradesphere/internal/gateway"
)

// State is the controller's top-level authentication state.
type State int

const (
	SignedOut State = iota
	SignedIn
)

func (s State) String() string {
	if s == SignedIn {
		return "signed-in"
	}
	return "signed-out"
}

// Controller owns the session lifecycle: restoring persisted credentials at
// startup, running the login and registration handshakes, merging balance
// updates, and tearing the session down on explicit or forced logout.
type Controller struct {
	store *authstore.Store
	gw    *gateway.Client
	log   *slog.Logger

	mu    sync.Mutex
	state State
	user  *domain.UserProfile
}

// NewController creates a Controller in the signed-out state.
func NewController(store *authstore.Store, gw *gateway.Client, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		store: store,
		gw:    gw,
		log:   log.With("component", "session"),
	}
}

// Restore validates the persisted credentials and either resumes the
// session or clears it. A session resumes only when both the token and a
// shape-valid user record are present; any half-session (token without
// user, user without token, malformed user) is wiped so a stale token is
// never replayed against a mismatched cached identity.
func (c *Controller) Restore() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.store.Token()
	user := c.store.User()

	if token != "" && user.Valid() {
		c.user = user
		c.state = SignedIn
		c.log.Info("session restored", "user", user.Username)
		return c.state
	}

	if token != "" || user != nil {
		c.log.Warn("invalid persisted session, clearing",
			"has_token", token != "",
			"has_user", user != nil,
		)
	}
	if err := c.store.ClearAuth(); err != nil {
		c.log.Error("clearing credentials", "error", err)
	}
	c.user = nil
	c.state = SignedOut
	return c.state
}

// Login authenticates with the service and completes the sign-in
// handshake, returning the composed session user.
func (c *Controller) Login(ctx context.Context, username, password string) (*domain.UserProfile, error) {
	token, err := c.gw.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetToken(token); err != nil {
		return nil, fmt.Errorf("persisting token: %w", err)
	}
	return c.completeSignIn(ctx)
}

// Register creates an account and signs in. Backend versions that return no
// token from registration are handled by immediately logging in with the
// same credentials.
func (c *Controller) Register(ctx context.Context, username, password string) (*domain.UserProfile, error) {
	token, err := c.gw.Register(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return c.Login(ctx, username, password)
	}
	if err := c.store.SetToken(token); err != nil {
		return nil, fmt.Errorf("persisting token: %w", err)
	}
	return c.completeSignIn(ctx)
}

// completeSignIn composes the session user from the identity and balance
// endpoints, persists it, and transitions to signed-in. Both fetches run
// concurrently.
func (c *Controller) completeSignIn(ctx context.Context) (*domain.UserProfile, error) {
	var (
		identity *gateway.Identity
		balance  float64
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		identity, err = c.gw.Me(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = c.gw.Balance(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	user := &domain.UserProfile{
		UserID:   identity.UserID,
		Username: identity.Username,
		Balance:  balance,
	}
	if err := c.store.SetUser(user); err != nil {
		return nil, fmt.Errorf("persisting user: %w", err)
	}

	c.mu.Lock()
	c.user = user
	c.state = SignedIn
	c.mu.Unlock()

	c.log.Info("signed in", "user", user.Username)
	profile := *user
	return &profile, nil
}

// SetBalance merges only the balance into the current profile and
// re-persists it. No-op when signed out.
func (c *Controller) SetBalance(balance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != SignedIn || c.user == nil {
		return
	}
	c.user.Balance = balance
	if err := c.store.SetUser(c.user); err != nil {
		c.log.Error("persisting balance update", "error", err)
	}
}

// Balance returns the cached balance, or 0 when signed out.
func (c *Controller) Balance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return 0
	}
	return c.user.Balance
}

// CurrentUser returns a copy of the session user, or nil when signed out.
func (c *Controller) CurrentUser() *domain.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	user := *c.user
	return &user
}

// State returns the current authentication state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Logout clears the credential store and transitions to signed-out.
func (c *Controller) Logout() {
	c.signOut("logout")
}

// HandleForcedLogout reacts to the gateway's forced-logout signal. The
// gateway has already wiped the credential store; the redundant clear here
// is safe, including when the controller is already signed out.
func (c *Controller) HandleForcedLogout() {
	c.signOut("forced logout")
}

func (c *Controller) signOut(cause string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.ClearAuth(); err != nil {
		c.log.Error("clearing credentials", "error", err)
	}
	if c.state == SignedIn {
		c.log.Info("signed out", "cause", cause)
	}
	c.user = nil
	c.state = SignedOut
}

// Watch consumes the forced-logout signal until ctx is cancelled or the
// signal closes.
func (c *Controller) Watch(ctx context.Context, sig *Signal) {
	id, ch := sig.Subscribe(1)
	defer sig.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			c.HandleForcedLogout()
		}
	}
}
