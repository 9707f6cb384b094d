package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SessionCookieName is the portal's session cookie.
const SessionCookieName = "session"

// PortalSession hydrates tokens from the portal's session endpoint
// (GET <portal>/api/auth/session) using the caller's session cookie.
func PortalSession(hc *http.Client, portalURL, sessionCookie string) TokenSource {
	if hc == nil {
		hc = http.DefaultClient
	}
	return func(ctx context.Context) (Tokens, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, portalURL+"/api/auth/session", nil)
		if err != nil {
			return Tokens{}, err
		}
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionCookie})

		resp, err := hc.Do(req)
		if err != nil {
			return Tokens{}, fmt.Errorf("fetch session: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return Tokens{}, fmt.Errorf("fetch session: status %d", resp.StatusCode)
		}

		var reply struct {
			Data struct {
				AccessToken  string `json:"accessToken"`
				RefreshToken string `json:"refreshToken"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
			return Tokens{}, fmt.Errorf("decode session: %w", err)
		}
		return Tokens{AccessToken: reply.Data.AccessToken, RefreshToken: reply.Data.RefreshToken}, nil
	}
}
