package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portal/internal/logger"
	"portal/internal/session"

	"github.com/gin-gonic/gin"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager("gateway-test-secret", session.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

// sessionCookie signs rec and returns the resulting session cookie.
func sessionCookie(t *testing.T, m *session.Manager, rec session.Record) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	jar := session.NewCookies(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if err := m.Create(jar, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, ck := range w.Result().Cookies() {
		if ck.Name == session.CookieName {
			return &http.Cookie{Name: ck.Name, Value: ck.Value}
		}
	}
	t.Fatal("no session cookie written")
	return nil
}

func TestSessionAuthMiddleware_ValidSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := newSessions(t)

	r := gin.New()
	r.Use(SessionAuthMiddleware(sessions))
	r.GET("/test", func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		email, _ := c.Get("email")
		orgID, _ := c.Get("organization_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "email": email, "organization_id": orgID})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(sessionCookie(t, sessions, session.Record{
		User:         session.User{ID: "test-user-id", Email: "test@example.com"},
		Organization: &session.Organization{ID: "org-1"},
		AccessToken:  "T",
		ExpiresAt:    fixedNow.Add(time.Hour).UnixMilli(),
	}))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["user_id"] != "test-user-id" {
		t.Errorf("Expected user_id to be test-user-id, got %v", response["user_id"])
	}
	if response["email"] != "test@example.com" {
		t.Errorf("Expected email to be test@example.com, got %v", response["email"])
	}
	if response["organization_id"] != "org-1" {
		t.Errorf("Expected organization_id to be org-1, got %v", response["organization_id"])
	}
}

func TestSessionAuthMiddleware_NoSessionCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SessionAuthMiddleware(newSessions(t)))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestSessionAuthMiddleware_TamperedSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := newSessions(t)

	r := gin.New()
	r.Use(SessionAuthMiddleware(sessions))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	ck := sessionCookie(t, sessions, session.Record{AccessToken: "T", ExpiresAt: fixedNow.Add(time.Hour).UnixMilli()})
	ck.Value = ck.Value[:len(ck.Value)-2] + "xx"

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(ck)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestSessionAuthMiddleware_ExpiredSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := newSessions(t)

	r := gin.New()
	r.Use(SessionAuthMiddleware(sessions))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(sessionCookie(t, sessions, session.Record{
		User:        session.User{ID: "test-user-id"},
		AccessToken: "T",
		ExpiresAt:   fixedNow.Add(-time.Hour).UnixMilli(),
	}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "session expired") {
		t.Errorf("Expected expiry error, got %s", w.Body.String())
	}
}

func TestSessionAuthMiddleware_BearerCookieOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SessionAuthMiddleware(newSessions(t)))
	r.GET("/test", func(c *gin.Context) {
		if _, exists := c.Get("user_id"); exists {
			t.Error("Expected no user context without a session")
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(&http.Cookie{Name: session.BearerCookieName, Value: "raw-token"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get("X-Request-ID")
	if generated == "" || generated != w.Body.String() {
		t.Errorf("Expected generated request id in header and context, got %q and %q", generated, w.Body.String())
	}

	const incoming = "6f1c1f8e-6a43-4a4b-9a43-0c1a2b3c4d5e"
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", incoming)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != incoming {
		t.Errorf("Expected incoming request id to be kept, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "not a uuid\r\n")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got == "" || strings.Contains(got, "not a uuid") {
		t.Errorf("Expected malformed request id to be replaced, got %q", got)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	log := logger.Build(&buf, logger.Options{Format: logger.FormatJSON})

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(log))
	r.GET("/test", func(c *gin.Context) {
		c.Set("user_id", "u-1")
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	r.GET("/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "nope"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test?x=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected one JSON log record, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "INFO" || entry["path"] != "/test" || entry["query"] != "x=1" || entry["user_id"] != "u-1" {
		t.Errorf("Unexpected log record: %v", entry)
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Errorf("Expected WARN for 4xx, got %q", buf.String())
	}
}
