package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"tradesphere/internal/authstore"
	"tradesphere/internal/domain"
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

func TestBearerInjection(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	store := testStore(t)
	c := New(srv.URL, store, 0, nil, nil)

	// No token on file: nothing injected.
	if _, err := c.Stocks(context.Background()); err != nil {
		t.Fatalf("Stocks: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q with empty store, want none", gotAuth)
	}

	if err := store.SetToken("t-123"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if _, err := c.Stocks(context.Background()); err != nil {
		t.Fatalf("Stocks: %v", err)
	}
	if gotAuth != "Bearer t-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer t-123")
	}
}

func TestExplicitAuthorizationWins(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	store := testStore(t)
	if err := store.SetToken("t-store"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	transport := Install(http.DefaultTransport, store, nil, nil)
	client := &http.Client{Transport: transport}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/stocks", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer t-caller")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer t-caller" {
		t.Errorf("Authorization = %q, want the caller's %q", gotAuth, "Bearer t-caller")
	}
}

func TestRequestIDSet(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, testStore(t), 0, nil, nil)
	if _, err := c.Stocks(context.Background()); err != nil {
		t.Fatalf("Stocks: %v", err)
	}
	if gotID == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestAuthFailureClearsStoreAndSignalsOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	store := testStore(t)
	if err := store.SetToken("t-stale"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if err := store.SetUser(&domain.UserProfile{UserID: 1, Username: "bob", Balance: 10}); err != nil {
		t.Fatalf("SetUser: %v", err)
	}

	var fired atomic.Int64
	c := New(srv.URL, store, 0, func() { fired.Add(1) }, nil)

	_, err := c.Balance(context.Background())
	if err == nil {
		t.Fatal("Balance should fail on 403")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Reason != "forbidden" {
		t.Errorf("APIError = %+v, want status 403 reason %q", apiErr, "forbidden")
	}

	if got := fired.Load(); got != 1 {
		t.Errorf("forced-logout callback fired %d times, want 1", got)
	}
	if store.Token() != "" || store.User() != nil {
		t.Error("credential store not fully cleared after 403")
	}
}

func TestInstallIdempotent(t *testing.T) {
	store := testStore(t)

	first := Install(http.DefaultTransport, store, nil, nil)
	second := Install(first, store, nil, nil)
	if first != second {
		t.Error("Install over an installed transport should return it unchanged")
	}

	// The header must not stack even when a caller wraps twice by hand.
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Values("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if err := store.SetToken("t-1"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	client := &http.Client{Transport: second}
	resp, err := client.Get(srv.URL + "/balance")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if len(gotAuth) != 1 {
		t.Errorf("Authorization header count = %d, want 1", len(gotAuth))
	}
}

func TestExtractTokenAdapterOrder(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"access_token wins", `{"access_token":"a","token":"b","jwt":"d"}`, "a", true},
		{"token second", `{"token":"b","accessToken":"c"}`, "b", true},
		{"accessToken third", `{"accessToken":"c","jwt":"d"}`, "c", true},
		{"jwt last", `{"jwt":"d"}`, "d", true},
		{"empty string skipped", `{"access_token":"","token":"b"}`, "b", true},
		{"no token", `{"user_id":1,"username":"bob"}`, "", false},
	}

	for _, tc := range cases {
		var body map[string]json.RawMessage
		if err := json.Unmarshal([]byte(tc.body), &body); err != nil {
			t.Fatalf("%s: bad fixture: %v", tc.name, err)
		}
		got, ok := extractToken(body)
		if got != tc.want || ok != tc.ok {
			t.Errorf("%s: extractToken = (%q, %v), want (%q, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDecodeAPIError(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"error field", `{"error":"Insufficient balance"}`, "Insufficient balance"},
		{"detail string", `{"detail":"Invalid credentials"}`, "Invalid credentials"},
		{"detail list", `{"detail":[{"msg":"field required"},{"msg":"value too small"}]}`, "field required, value too small"},
		{"unparseable", `<html>gateway timeout</html>`, "server returned status 400"},
	}

	for _, tc := range cases {
		err := decodeAPIError(400, []byte(tc.body))
		if err.Error() != tc.want {
			t.Errorf("%s: Error() = %q, want %q", tc.name, err.Error(), tc.want)
		}
	}
}

func TestEndpointDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stocks":
			w.Write([]byte(`[{"stock_id":1,"symbol":"AAPL","name":"Apple Inc.","price":150.0}]`))
		case "/portfolio/7":
			w.Write([]byte(`[{"stock_id":1,"symbol":"AAPL","name":"Apple Inc.","quantity":2,"price":150.0,"current_value":300.0}]`))
		case "/buy":
			var req tradeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity != 2 {
				http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"new_balance":49700.0}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, testStore(t), 0, nil, nil)
	ctx := context.Background()

	stocks, err := c.Stocks(ctx)
	if err != nil {
		t.Fatalf("Stocks: %v", err)
	}
	if len(stocks) != 1 || stocks[0].Symbol != "AAPL" || stocks[0].Price != 150.0 {
		t.Errorf("unexpected stocks: %+v", stocks)
	}

	holdings, err := c.Portfolio(ctx, 7)
	if err != nil {
		t.Fatalf("Portfolio: %v", err)
	}
	if len(holdings) != 1 || holdings[0].CurrentValue != 300.0 {
		t.Errorf("unexpected holdings: %+v", holdings)
	}

	balance, err := c.Buy(ctx, 7, 1, 2)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if balance != 49700.0 {
		t.Errorf("Buy new balance = %v, want 49700.0", balance)
	}
}
