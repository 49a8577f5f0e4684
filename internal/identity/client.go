package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tutofino/gateway/internal/config"
)

// Client talks to the hosted identity service over its REST API. Calls are
// bounded by the configured timeout on top of whatever deadline the caller
// already carries.
type Client struct {
	baseURL      string
	apiKey       string
	accessCookie string
	timeout      time.Duration
	http         *http.Client
}

// NewClient creates an identity client from config.
func NewClient(cfg config.IdentityConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		accessCookie: cfg.AccessCookie,
		timeout:      cfg.Timeout,
		http:         &http.Client{Timeout: cfg.Timeout},
	}
}

// CurrentUser asks the provider who the caller is. The access token is
// taken from the Authorization header or, failing that, the access-token
// cookie. No token means no user -- that is a normal answer, not an error.
func (c *Client) CurrentUser(ctx context.Context, req *http.Request) (*User, error) {
	token := c.accessToken(req)
	if token == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("building user request: %w", err)
	}
	c.setAuthHeaders(httpReq, token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	defer drainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		var user User
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("decoding user response: %w", err)
		}
		if user.ID == "" {
			return nil, nil
		}
		return &user, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Expired or revoked token. Not an error: there is just no session.
		return nil, nil
	default:
		return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}
}

// ExchangeCode trades an authorization code for a provider-side session.
func (c *Client) ExchangeCode(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"auth_code": code})
	if err != nil {
		return fmt.Errorf("encoding exchange request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/v1/token?grant_type=pkce", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building exchange request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("exchanging auth code: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth code exchange returned status %d", resp.StatusCode)
	}
	return nil
}

// SignOut revokes the caller's session. A caller without a token has
// nothing to revoke, which is fine.
func (c *Client) SignOut(ctx context.Context, req *http.Request) error {
	token := c.accessToken(req)
	if token == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("building logout request: %w", err)
	}
	c.setAuthHeaders(httpReq, token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("sign out returned status %d", resp.StatusCode)
	}
	return nil
}

// accessToken extracts the caller's bearer token from the Authorization
// header, falling back to the access-token cookie.
func (c *Client) accessToken(req *http.Request) string {
	if auth := req.Header.Get("Authorization"); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return after
		}
	}
	if cookie, err := req.Cookie(c.accessCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// setAuthHeaders sets the apikey and bearer headers the provider expects.
func (c *Client) setAuthHeaders(req *http.Request, token string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
}

// drainAndClose consumes the remaining body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}
