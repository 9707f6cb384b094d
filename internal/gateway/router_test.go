package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"portal/internal/actions"
	"portal/internal/backend"
	"portal/internal/guard"
	"portal/internal/logger"
	"portal/internal/session"
	"portal/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// billingAPI is a fake backend that accepts only the access token "fresh".
func billingAPI(refreshOK bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/auth/login":
			io.WriteString(w, `{"success":true,"data":{"token":"fresh","refresh_token":"R","user":{"id":"u-1","email":"ada@example.com"}}}`)
		case "/api/v1/auth/refresh":
			if !refreshOK {
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"success":false,"error":"refresh token expired"}`)
				return
			}
			io.WriteString(w, `{"success":true,"data":{"access_token":"fresh","refresh_token":"R2"}}`)
		case "/api/v1/profile":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"success":false,"error":"token expired"}`)
				return
			}
			io.WriteString(w, `{"success":true,"data":{"id":"u-1","first_name":"Ada"}}`)
		case "/api/v1/plans":
			io.WriteString(w, `{"success":true,"data":[{"id":"p-1","price":1234567890123}],"timestamp":"2026-03-01T12:00:00Z"}`)
		case "/api/v1/webhooks/w-1":
			w.WriteHeader(http.StatusAccepted)
		case "/api/v1/invoices/i-1/download":
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", `attachment; filename="INV-1.pdf"`)
			io.WriteString(w, "%PDF-1.7")
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"success":false,"error":"not found"}`)
		}
	}
}

type testPortal struct {
	router   *gin.Engine
	sessions *session.Manager
}

func newTestPortal(t *testing.T, api http.Handler, checks map[string]HealthCheck) *testPortal {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	sessions := newSessions(t)
	resolver := upstream.NewStatic(srv.URL)
	svc := actions.NewService(backend.New(resolver, srv.Client()), sessions)

	return &testPortal{
		sessions: sessions,
		router: SetupRouter(Dependencies{
			Sessions:   sessions,
			Actions:    svc,
			Resolver:   resolver,
			HTTPClient: srv.Client(),
			Routes:     guard.DefaultRoutes(),
			Checks:     checks,
			Logger:     logger.Discard(),
		}),
	}
}

func (p *testPortal) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	p.router.ServeHTTP(w, req)
	return w
}

// sessionFrom decodes the session a response left behind, or nil when it was cleared.
func (p *testPortal) sessionFrom(w *httptest.ResponseRecorder) *session.Record {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge >= 0 && ck.Value != "" {
			req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
		}
	}
	return p.sessions.Get(context.Background(), session.NewCookies(httptest.NewRecorder(), req))
}

func TestRouter_GuardRedirects(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	w := p.serve(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fdashboard", w.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: session.BearerCookieName, Value: "anything"})
	w = p.serve(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>Dashboard</title>")

	req = httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "anything"})
	w = p.serve(req)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestRouter_APICORS(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := p.serve(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = p.serve(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestRouter_LoginThenSession(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	form := url.Values{"email": {"ada@example.com"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	login := p.serve(req)
	require.Equal(t, http.StatusOK, login.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	for _, ck := range login.Result().Cookies() {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	w := p.serve(req)
	require.Equal(t, http.StatusOK, w.Code)

	var reply struct {
		Success bool           `json:"success"`
		Data    session.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.True(t, reply.Success)
	assert.Equal(t, "fresh", reply.Data.AccessToken)
	assert.Equal(t, "R", reply.Data.RefreshToken)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour).UnixMilli(), reply.Data.ExpiresAt)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRouter_SessionWithoutCookie(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	w := p.serve(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_PassThroughRefreshWritesBackSession(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.AddCookie(sessionCookie(t, p.sessions, session.Record{
		User:         session.User{ID: "u-1"},
		AccessToken:  "stale",
		RefreshToken: "R",
		ExpiresAt:    fixedNow.Add(time.Hour).UnixMilli(),
	}))
	w := p.serve(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"first_name":"Ada"`)

	rec := p.sessionFrom(w)
	require.NotNil(t, rec)
	assert.Equal(t, "fresh", rec.AccessToken)
	assert.Equal(t, "R2", rec.RefreshToken)
	assert.Equal(t, "u-1", rec.User.ID)
}

func TestRouter_PassThroughRefreshFailureClearsSession(t *testing.T) {
	p := newTestPortal(t, billingAPI(false), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.AddCookie(sessionCookie(t, p.sessions, session.Record{
		AccessToken:  "stale",
		RefreshToken: "R",
		ExpiresAt:    fixedNow.Add(time.Hour).UnixMilli(),
	}))
	w := p.serve(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")

	cleared := map[string]bool{}
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			cleared[ck.Name] = true
		}
	}
	assert.True(t, cleared[session.CookieName])
	assert.True(t, cleared[session.BearerCookieName])
}

func TestRouter_PassThroughRequiresSession(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	w := p.serve(httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_PassThroughDownload(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/i-1/download", nil)
	req.AddCookie(&http.Cookie{Name: session.BearerCookieName, Value: "fresh"})
	w := p.serve(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="INV-1.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.7", w.Body.String())
}

func TestRouter_PassThroughRelaysBodyVerbatim(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	req.AddCookie(&http.Cookie{Name: session.BearerCookieName, Value: "fresh"})
	w := p.serve(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[{"id":"p-1","price":1234567890123}],"timestamp":"2026-03-01T12:00:00Z"}`, w.Body.String())
}

func TestRouter_PassThroughEmptySuccess(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/webhooks/w-1", nil)
	req.AddCookie(&http.Cookie{Name: session.BearerCookieName, Value: "fresh"})
	w := p.serve(req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRouter_PassThroughRejectsInvalidJSON(t *testing.T) {
	p := newTestPortal(t, billingAPI(true), nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/profile", strings.NewReader("{oops"))
	req.AddCookie(&http.Cookie{Name: session.BearerCookieName, Value: "fresh"})
	w := p.serve(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Health(t *testing.T) {
	healthy := newTestPortal(t, billingAPI(true), map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	w := healthy.serve(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	degraded := newTestPortal(t, billingAPI(true), map[string]HealthCheck{
		"redis":   func(context.Context) error { return nil },
		"storage": func(context.Context) error { return errors.New("bucket unreachable") },
	})
	w = degraded.serve(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "bucket unreachable")
}
