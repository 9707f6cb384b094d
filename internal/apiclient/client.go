// Package apiclient is a typed client for the billing REST API that keeps an access/refresh
// token pair, refreshes it once on a 401 and retries the request once.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"portal/internal/backend"
	"portal/internal/logger"
	"portal/internal/upstream"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoData is returned by single-entity calls whose reply carries no data.
	ErrNoData = errors.New("apiclient: response carries no data")
	// ErrRefreshFailed is returned when the refresh endpoint rejects the refresh token.
	ErrRefreshFailed = errors.New("apiclient: token refresh failed")
)

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Status   int
	Message  string
	Envelope backend.Envelope
	// Body is the raw reply, empty when the backend sent none.
	Body []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 APIError.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func newAPIError(resp *backend.Response) *APIError {
	return &APIError{
		Status:   resp.Status,
		Message:  resp.ErrorText(fmt.Sprintf("HTTP error! status: %d", resp.Status)),
		Envelope: resp.Envelope,
		Body:     resp.Body,
	}
}

// Tokens is the access/refresh pair the client holds.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenSource supplies tokens when the client holds none, e.g. from the portal session.
type TokenSource func(ctx context.Context) (Tokens, error)

// Client calls the backend on behalf of one token holder. Safe for concurrent use.
type Client struct {
	backend  *backend.Client
	resolver upstream.Resolver
	http     *http.Client
	store    TokenStore
	source   TokenSource
	logger   *slog.Logger

	mu     sync.RWMutex
	tokens Tokens
	loaded bool

	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenStore persists tokens across client instances.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.store = s }
}

// WithTokenSource hydrates the client before a request when it holds no access token.
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) { c.source = src }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend behind resolver.
func New(resolver upstream.Resolver, opts ...Option) *Client {
	c := &Client{
		resolver: resolver,
		store:    NewMemoryTokenStore(),
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: backend.DefaultTimeout}
	}
	c.backend = backend.New(resolver, c.http)
	return c
}

// Do sends an authenticated request. On a 401 with a refresh token held, it refreshes at most
// once and retries at most once. Non-2xx replies are returned as *APIError.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any) (*backend.Response, error) {
	return c.exchange(ctx, func(token string) (*backend.Response, error) {
		return c.backend.Do(ctx, method, endpoint, token, body)
	})
}

// Download fetches a binary resource with the same token handling as Do.
func (c *Client) Download(ctx context.Context, endpoint string) (*backend.Response, error) {
	return c.exchange(ctx, func(token string) (*backend.Response, error) {
		return c.backend.Download(ctx, endpoint, token)
	})
}

func (c *Client) exchange(ctx context.Context, send func(token string) (*backend.Response, error)) (*backend.Response, error) {
	c.hydrate(ctx)

	used := c.Tokens()
	resp, err := send(used.AccessToken)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized && used.RefreshToken != "" {
		if !c.renew(ctx, used) {
			return nil, newAPIError(resp)
		}
		resp, err = send(c.Tokens().AccessToken)
		if err != nil {
			return nil, err
		}
	}

	if !resp.OK() {
		return nil, newAPIError(resp)
	}
	return resp, nil
}

// doAnonymous sends a request without a token and without refresh handling.
func (c *Client) doAnonymous(ctx context.Context, method, endpoint string, body any) (*backend.Response, error) {
	resp, err := c.backend.Do(ctx, method, endpoint, "", body)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newAPIError(resp)
	}
	return resp, nil
}

// RefreshAccessToken exchanges the refresh token for a new pair. On failure the tokens are cleared.
func (c *Client) RefreshAccessToken(ctx context.Context) bool {
	c.load(ctx)

	held := c.Tokens()
	if held.RefreshToken == "" {
		return false
	}
	return c.renew(ctx, held)
}

// renew replaces the pair used by a failed request. Concurrent callers holding the same refresh
// token share one refresh; a caller whose pair was already replaced retries without refreshing.
func (c *Client) renew(ctx context.Context, used Tokens) bool {
	_, err, shared := c.refreshes.Do(used.RefreshToken, func() (any, error) {
		current := c.Tokens()
		switch {
		case current.AccessToken != "" && current.AccessToken != used.AccessToken:
			return nil, nil
		case current.RefreshToken != used.RefreshToken:
			return nil, fmt.Errorf("%w: tokens were cleared", ErrRefreshFailed)
		}
		return nil, c.refresh(context.WithoutCancel(ctx), used.RefreshToken)
	})
	if err != nil {
		c.logger.WarnContext(ctx, "token refresh failed", "error", err, "shared", shared)
		return false
	}
	return true
}

func (c *Client) refresh(ctx context.Context, refresh string) error {
	resp, err := c.doAnonymous(ctx, http.MethodPost, "auth/refresh", map[string]string{"refresh_token": refresh})
	if err != nil {
		c.ClearTokens(ctx)
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	var pair authTokens
	if err := resp.DecodeData(&pair); err != nil || pair.access() == "" {
		c.ClearTokens(ctx)
		return fmt.Errorf("%w: reply carries no access token", ErrRefreshFailed)
	}

	next := pair.RefreshToken
	if next == "" {
		next = refresh
	}
	c.SetTokens(ctx, pair.access(), next)
	return nil
}

// SetTokens replaces the held tokens and persists them.
func (c *Client) SetTokens(ctx context.Context, access, refresh string) {
	t := Tokens{AccessToken: access, RefreshToken: refresh}

	c.mu.Lock()
	c.tokens = t
	c.loaded = true
	c.mu.Unlock()

	if err := c.store.Save(ctx, t); err != nil {
		c.logger.WarnContext(ctx, "failed to persist tokens", "error", err)
	}
}

// ClearTokens forgets the held tokens and removes them from the store.
func (c *Client) ClearTokens(ctx context.Context) {
	c.mu.Lock()
	c.tokens = Tokens{}
	c.loaded = true
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "failed to clear stored tokens", "error", err)
	}
}

// Tokens returns the held tokens.
func (c *Client) Tokens() Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// IsAuthenticated reports whether an access token is held.
func (c *Client) IsAuthenticated() bool {
	return c.Tokens().AccessToken != ""
}

// load reads the store once.
func (c *Client) load(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}
	c.loaded = true

	t, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to load stored tokens", "error", err)
		return
	}
	c.tokens = t
}

// hydrate asks the token source for tokens when none are held.
func (c *Client) hydrate(ctx context.Context) {
	c.load(ctx)
	if c.source == nil || c.IsAuthenticated() {
		return
	}

	t, err := c.source(ctx)
	if err != nil {
		c.logger.DebugContext(ctx, "token source unavailable", "error", err)
		return
	}
	if t.AccessToken != "" {
		c.SetTokens(ctx, t.AccessToken, t.RefreshToken)
	}
}

// authTokens is the token part of login, register and refresh replies.
type authTokens struct {
	Token        string `json:"token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (a authTokens) access() string {
	if a.AccessToken != "" {
		return a.AccessToken
	}
	return a.Token
}
