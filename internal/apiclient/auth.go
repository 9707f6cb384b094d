package apiclient

import (
	"context"
	"net/http"
)

// Login authenticates and stores the returned tokens.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "auth/login", req)
}

// Register creates an account and stores the returned tokens.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, endpoint string, body any) (*AuthResponse, error) {
	resp, err := c.doAnonymous(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if !hasData(resp) {
		return nil, ErrNoData
	}

	var out AuthResponse
	if err := resp.DecodeData(&out); err != nil {
		return nil, err
	}
	var pair authTokens
	if err := resp.DecodeData(&pair); err != nil {
		return nil, err
	}
	out.AccessToken = pair.access()
	if out.AccessToken == "" {
		return nil, ErrNoData
	}

	c.SetTokens(ctx, out.AccessToken, out.RefreshToken)
	return &out, nil
}

// Logout tells the backend and always clears the held tokens.
func (c *Client) Logout(ctx context.Context) {
	c.load(ctx)
	if c.IsAuthenticated() {
		if _, err := c.Do(ctx, http.MethodPost, "auth/logout", nil); err != nil {
			c.logger.DebugContext(ctx, "logout request failed", "error", err)
		}
	}
	c.ClearTokens(ctx)
}

func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	_, err := c.Do(ctx, http.MethodPost, "auth/change-password", req)
	return err
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	return one[User](ctx, c, http.MethodGet, "auth/me", nil)
}
