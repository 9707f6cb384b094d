package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"portal/internal/actions"
	"portal/internal/apiclient"
	"portal/internal/backend"
	"portal/internal/session"
	"portal/internal/upstream"

	"github.com/gin-gonic/gin"
)

const msgUnexpected = "An unexpected error occurred"

// ProxyHandler forwards /api/v1 requests to the backend with the caller's session tokens.
type ProxyHandler struct {
	resolver upstream.Resolver
	http     *http.Client
	sessions *session.Manager
	actions  *actions.Service
	logger   *slog.Logger
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(resolver upstream.Resolver, hc *http.Client, sessions *session.Manager, svc *actions.Service, log *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		resolver: resolver,
		http:     hc,
		sessions: sessions,
		actions:  svc,
		logger:   log,
	}
}

// Forward handles /api/v1/*path. The per-request client reads tokens from the session and
// writes refreshed tokens back into it.
func (h *ProxyHandler) Forward(c *gin.Context) {
	c.Set("upstream", "backend")

	ctx := actions.WithRequestID(c.Request.Context(), c.GetString("request_id"))
	jar := session.NewCookies(c.Writer, c.Request)
	client := apiclient.New(h.resolver,
		apiclient.WithHTTPClient(h.http),
		apiclient.WithTokenStore(&sessionTokens{sessions: h.sessions, actions: h.actions, jar: jar}),
		apiclient.WithLogger(h.logger),
	)

	endpoint := strings.TrimPrefix(c.Param("path"), "/")
	if q := c.Request.URL.RawQuery; q != "" {
		endpoint += "?" + q
	}

	if c.Request.Method == http.MethodGet && strings.HasSuffix(c.Param("path"), "/download") {
		resp, err := client.Download(ctx, endpoint)
		if err != nil {
			h.fail(c, err)
			return
		}
		if cd := resp.Header.Get("Content-Disposition"); cd != "" {
			c.Header("Content-Disposition", cd)
		}
		c.Data(resp.Status, resp.Header.Get("Content-Type"), resp.Body)
		return
	}

	body, err := requestBody(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "request body must be JSON"})
		return
	}

	resp, err := client.Do(ctx, c.Request.Method, endpoint, body)
	if err != nil {
		h.fail(c, err)
		return
	}
	relay(c, resp.Status, resp.Body)
}

// relay writes the backend's JSON reply unchanged; an empty reply keeps only the status.
func relay(c *gin.Context, status int, body []byte) {
	if len(body) == 0 {
		c.Status(status)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

func (h *ProxyHandler) fail(c *gin.Context, err error) {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if len(apiErr.Body) == 0 {
			c.JSON(apiErr.Status, apiErr.Envelope)
			return
		}
		relay(c, apiErr.Status, apiErr.Body)
		return
	}

	status := http.StatusInternalServerError
	if errors.Is(err, backend.ErrTransport) {
		status = http.StatusBadGateway
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"success": false, "error": msgUnexpected})
}

// requestBody returns the JSON body as-is, or nil when there is none.
func requestBody(r *http.Request) (any, error) {
	if r.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("invalid JSON body")
	}
	return json.RawMessage(raw), nil
}

// sessionTokens backs an apiclient.Client with the caller's session cookie.
type sessionTokens struct {
	sessions *session.Manager
	actions  *actions.Service
	jar      *session.Cookies
}

func (s *sessionTokens) Load(ctx context.Context) (apiclient.Tokens, error) {
	if rec := s.sessions.Get(ctx, s.jar); rec != nil {
		return apiclient.Tokens{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}, nil
	}
	token, _ := s.sessions.BearerToken(ctx, s.jar)
	return apiclient.Tokens{AccessToken: token}, nil
}

func (s *sessionTokens) Save(ctx context.Context, t apiclient.Tokens) error {
	err := s.actions.ApplyTokens(ctx, s.jar, t.AccessToken, t.RefreshToken)
	if errors.Is(err, session.ErrNoActiveSession) {
		s.sessions.SetBearerCookie(s.jar, t.AccessToken)
		return nil
	}
	return err
}

func (s *sessionTokens) Clear(ctx context.Context) error {
	s.sessions.Delete(ctx, s.jar)
	return nil
}

// SessionHandler serves the decoded session to browser-side clients.
type SessionHandler struct {
	sessions *session.Manager
}

func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Session handles GET /api/auth/session
func (h *SessionHandler) Session(c *gin.Context) {
	jar := session.NewCookies(c.Writer, c.Request)
	rec := h.sessions.Get(c.Request.Context(), jar)
	if rec == nil || rec.ExpiresAt <= h.sessions.Now().UnixMilli() {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "No active session"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports portal liveness and the state of its dependencies.
type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health handles GET /api/health. A failing check answers 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": "portal",
		"checks":  results,
	})
}

// Page serves a placeholder document for a server-rendered page.
func Page(title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, "<!doctype html><html><head><title>%s</title></head><body></body></html>", title)
	}
}
