// Package gateway wraps all outbound calls to the TradeSphere trading
// service. Every request is tagged with a request ID and, when a token is
// on file, a bearer Authorization header; a 401 or 403 response wipes the
// credential store and fires the forced-logout callback. All other failures
// propagate to the caller unchanged.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tradesphere/internal/authstore"
)

// DefaultTimeout bounds every request so an unreachable backend fails fast
// instead of hanging the UI.
const DefaultTimeout = 8 * time.Second

// Client is the HTTP client for the trading service.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New creates a Client for the service at baseURL. creds supplies the
// bearer token and is wiped on auth failure; onAuthFailure (may be nil) is
// invoked once per request that comes back 401 or 403.
func New(baseURL string, creds *authstore.Store, timeout time.Duration, onAuthFailure func(), log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: Install(http.DefaultTransport, creds, onAuthFailure, log),
		},
		log: log.With("component", "gateway"),
	}
}

// Install wraps base with the credential-injecting transport. Installing
// over an already-wrapped transport returns it unchanged, so re-running
// client setup cannot stack header injection or fire the logout callback
// twice for a single failing response.
func Install(base http.RoundTripper, creds *authstore.Store, onAuthFailure func(), log *slog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if t, ok := base.(*authTransport); ok {
		return t
	}
	return &authTransport{
		base:          base,
		creds:         creds,
		onAuthFailure: onAuthFailure,
		log:           log,
	}
}

// authTransport injects credentials on the way out and watches for
// authorization failures on the way back.
type authTransport struct {
	base          http.RoundTripper
	creds         *authstore.Store
	onAuthFailure func()
	log           *slog.Logger
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	// Explicit caller intent wins: only inject when the header is unset.
	if req.Header.Get("Authorization") == "" {
		if token := t.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		t.log.Warn("auth failure, clearing session",
			"status", resp.StatusCode,
			"path", req.URL.Path,
		)
		if err := t.creds.ClearAuth(); err != nil {
			t.log.Error("clearing credentials", "error", err)
		}
		if t.onAuthFailure != nil {
			t.onAuthFailure()
		}
	}
	return resp, nil
}

// get issues a GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// post issues a POST with a JSON body and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response from %s: %w", path, err)
		}
	}
	return nil
}
