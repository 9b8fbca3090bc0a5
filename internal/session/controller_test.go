package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradesphere/internal/authstore"
	"tradesphere/internal/domain"
	"tradesphere/internal/gateway"
)

func testStore(t *testing.T) *authstore.Store {
	t.Helper()
	s, err := authstore.Open(filepath.Join(t.TempDir(), "credentials.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// authBackend fakes the auth endpoints of the trading service.
func authBackend(t *testing.T, registerToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/register":
			if registerToken != "" {
				w.Write([]byte(`{"access_token":"` + registerToken + `"}`))
				return
			}
			// Old backend shape: user record, no token.
			w.Write([]byte(`{"user_id":9,"username":"carol","balance":50000}`))
		case "/auth/login":
			w.Write([]byte(`{"access_token":"abc"}`))
		case "/auth/me":
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				http.Error(w, `{"detail":"Not authenticated"}`, http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"user_id":9,"username":"carol"}`))
		case "/balance":
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				http.Error(w, `{"detail":"Not authenticated"}`, http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"balance":48200.5}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestRestore(t *testing.T) {
	valid := &domain.UserProfile{UserID: 9, Username: "carol", Balance: 100}

	cases := []struct {
		name  string
		token string
		user  *domain.UserProfile
		want  State
	}{
		{"both present and valid", "t1", valid, SignedIn},
		{"token without user", "t1", nil, SignedOut},
		{"user without token", "", valid, SignedOut},
		{"neither present", "", nil, SignedOut},
		{"user fails shape invariant", "t1", &domain.UserProfile{Username: "carol"}, SignedOut},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := testStore(t)
			if err := store.SetToken(tc.token); err != nil {
				t.Fatalf("SetToken: %v", err)
			}
			if err := store.SetUser(tc.user); err != nil {
				t.Fatalf("SetUser: %v", err)
			}

			c := NewController(store, nil, nil)
			if got := c.Restore(); got != tc.want {
				t.Fatalf("Restore() = %v, want %v", got, tc.want)
			}

			if tc.want == SignedOut {
				// Any invalid combination reduces to the fully-absent session.
				if store.Token() != "" || store.User() != nil {
					t.Error("credential store should be fully cleared after failed restore")
				}
				if c.CurrentUser() != nil {
					t.Error("CurrentUser() should be nil when signed out")
				}
			} else {
				user := c.CurrentUser()
				if user == nil || *user != *valid {
					t.Errorf("CurrentUser() = %+v, want %+v", user, valid)
				}
			}
		})
	}
}

func TestLoginComposesSessionUser(t *testing.T) {
	srv := authBackend(t, "")
	defer srv.Close()

	store := testStore(t)
	gw := gateway.New(srv.URL, store, 0, nil, nil)
	c := NewController(store, gw, nil)

	user, err := c.Login(context.Background(), "carol", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if store.Token() != "abc" {
		t.Errorf("stored token = %q, want %q", store.Token(), "abc")
	}
	want := domain.UserProfile{UserID: 9, Username: "carol", Balance: 48200.5}
	if *user != want {
		t.Errorf("session user = %+v, want %+v", *user, want)
	}
	if c.State() != SignedIn {
		t.Errorf("State() = %v, want SignedIn", c.State())
	}
	if persisted := store.User(); persisted == nil || *persisted != want {
		t.Errorf("persisted user = %+v, want %+v", persisted, want)
	}
}

func TestRegisterFallsBackToLogin(t *testing.T) {
	// Register returns a user record with no token; the controller must
	// auto-login with the same credentials.
	srv := authBackend(t, "")
	defer srv.Close()

	store := testStore(t)
	gw := gateway.New(srv.URL, store, 0, nil, nil)
	c := NewController(store, gw, nil)

	user, err := c.Register(context.Background(), "carol", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if store.Token() != "abc" {
		t.Errorf("stored token = %q, want the login-issued %q", store.Token(), "abc")
	}
	if user.UserID != 9 {
		t.Errorf("user id = %d, want 9", user.UserID)
	}
}

func TestRegisterWithDirectToken(t *testing.T) {
	srv := authBackend(t, "reg-token")
	defer srv.Close()

	store := testStore(t)
	gw := gateway.New(srv.URL, store, 0, nil, nil)
	c := NewController(store, gw, nil)

	if _, err := c.Register(context.Background(), "carol", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if store.Token() != "reg-token" {
		t.Errorf("stored token = %q, want %q", store.Token(), "reg-token")
	}
}

func TestSetBalanceMergesOnlyBalance(t *testing.T) {
	store := testStore(t)
	if err := store.SetToken("t1"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if err := store.SetUser(&domain.UserProfile{UserID: 9, Username: "carol", Balance: 100}); err != nil {
		t.Fatalf("SetUser: %v", err)
	}

	c := NewController(store, nil, nil)
	c.Restore()
	c.SetBalance(250.75)

	user := c.CurrentUser()
	if user.Balance != 250.75 || user.UserID != 9 || user.Username != "carol" {
		t.Errorf("after SetBalance user = %+v", user)
	}
	if persisted := store.User(); persisted.Balance != 250.75 {
		t.Errorf("persisted balance = %v, want 250.75", persisted.Balance)
	}
	if c.Balance() != 250.75 {
		t.Errorf("Balance() = %v, want 250.75", c.Balance())
	}
}

func TestForcedLogoutIdempotent(t *testing.T) {
	store := testStore(t)
	c := NewController(store, nil, nil)
	c.Restore()

	if c.State() != SignedOut {
		t.Fatalf("precondition: state = %v", c.State())
	}

	// Firing on an already signed-out controller must be a safe no-op.
	c.HandleForcedLogout()
	c.HandleForcedLogout()
	if c.State() != SignedOut {
		t.Errorf("State() = %v, want SignedOut", c.State())
	}
	if store.Token() != "" || store.User() != nil {
		t.Error("store should remain empty")
	}
}

func TestWatchReactsToSignal(t *testing.T) {
	store := testStore(t)
	if err := store.SetToken("t1"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if err := store.SetUser(&domain.UserProfile{UserID: 9, Username: "carol", Balance: 100}); err != nil {
		t.Fatalf("SetUser: %v", err)
	}

	c := NewController(store, nil, nil)
	if c.Restore() != SignedIn {
		t.Fatal("precondition: restore should sign in")
	}

	sig := NewSignal()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Watch(context.Background(), sig)
	}()

	// Publish until the watcher has picked the event up; it may not have
	// subscribed yet on the first iteration.
	deadline := time.Now().Add(2 * time.Second)
	for c.State() != SignedOut && time.Now().Before(deadline) {
		sig.Publish()
		time.Sleep(5 * time.Millisecond)
	}
	sig.Close() // ends Watch
	<-done

	if c.State() != SignedOut {
		t.Errorf("State() = %v after forced logout, want SignedOut", c.State())
	}
	if store.Token() != "" || store.User() != nil {
		t.Error("credential store should be empty after forced logout")
	}
}
