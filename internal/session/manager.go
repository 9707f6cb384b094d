// Package session stores the signed session record in an HTTP-only cookie.
// The record is an HS256 JWT carrying the user, organization and the backend token pair.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"portal/internal/logger"
)

const (
	// CookieName holds the signed session.
	CookieName = "session"
	// BearerCookieName holds the raw backend access token for code paths that only need a bearer.
	BearerCookieName = "token"
	// DefaultTTL is the lifetime of both the signed token and the cookies.
	DefaultTTL = 7 * 24 * time.Hour
)

var (
	// ErrNoActiveSession is returned by Update when there is no decodable session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSign is returned when the session token cannot be signed.
	ErrSign = errors.New("failed to sign session")
	// ErrEmptySecret is returned by NewManager without a signing key.
	ErrEmptySecret = errors.New("session secret is empty")
)

// Manager creates, reads and deletes sessions through a request-scoped Cookies jar.
type Manager struct {
	secret      []byte
	ttl         time.Duration
	secure      bool
	now         func() time.Time
	revocations Revocations
	logger      *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSecure marks cookies Secure (production).
func WithSecure(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRevocations enables server-side invalidation on Delete.
func WithRevocations(r Revocations) Option {
	return func(m *Manager) { m.revocations = r }
}

// WithLogger sets the logger used for decode and revocation failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a session manager signing with secret.
func NewManager(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	m := &Manager{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Now returns the manager clock's current time.
func (m *Manager) Now() time.Time { return m.now() }

// Create signs rec and stores it in the session cookie, replacing any existing one.
func (m *Manager) Create(jar *Cookies, rec Record) error {
	token, err := m.encode(rec)
	if err != nil {
		return err
	}
	jar.Set(m.cookie(CookieName, token))
	return nil
}

// Get returns the current session, or nil when it is absent, tampered, expired, corrupt or revoked.
func (m *Manager) Get(ctx context.Context, jar *Cookies) *Record {
	raw, ok := jar.Get(CookieName)
	if !ok {
		return nil
	}
	claims, err := m.decode(raw)
	if err != nil {
		m.logger.Debug("session rejected", "error", err)
		return nil
	}
	if m.revoked(ctx, claims.RegisteredClaims.ID) {
		return nil
	}
	rec := claims.Record
	return &rec
}

// Update merges patch into the current session and re-signs it.
func (m *Manager) Update(ctx context.Context, jar *Cookies, patch Patch) error {
	current := m.Get(ctx, jar)
	if current == nil {
		return ErrNoActiveSession
	}
	return m.Create(jar, current.merge(patch))
}

// Delete clears the session and legacy bearer cookies. Safe to call without a session.
func (m *Manager) Delete(ctx context.Context, jar *Cookies) {
	if raw, ok := jar.Get(CookieName); ok && m.revocations != nil {
		if claims, err := m.decode(raw); err == nil && claims.RegisteredClaims.ID != "" {
			if err := m.revocations.Revoke(ctx, claims.RegisteredClaims.ID, m.tokenExpiry(claims).Sub(m.now())); err != nil {
				m.logger.Warn("failed to revoke session", "error", err)
			}
		}
	}
	jar.Clear(CookieName, m.secure)
	jar.Clear(BearerCookieName, m.secure)
}

// IsValid reports whether a session exists and its ExpiresAt is in the future.
func (m *Manager) IsValid(ctx context.Context, jar *Cookies) bool {
	rec := m.Get(ctx, jar)
	return rec != nil && rec.ExpiresAt > m.now().UnixMilli()
}

// SetBearerCookie stores the raw access token in the legacy token cookie.
func (m *Manager) SetBearerCookie(jar *Cookies, token string) {
	jar.Set(m.cookie(BearerCookieName, token))
}

// BearerToken returns the session access token, falling back to the legacy token cookie.
func (m *Manager) BearerToken(ctx context.Context, jar *Cookies) (string, bool) {
	if rec := m.Get(ctx, jar); rec != nil && rec.AccessToken != "" {
		return rec.AccessToken, true
	}
	return jar.Get(BearerCookieName)
}

// HasCookie is the presence-only check: a session or token cookie exists.
func (m *Manager) HasCookie(r *http.Request) bool {
	for _, name := range []string{CookieName, BearerCookieName} {
		if ck, err := r.Cookie(name); err == nil && ck.Value != "" {
			return true
		}
	}
	return false
}

// Verify checks the session cookie signature, token expiry, revocation and record expiry.
func (m *Manager) Verify(r *http.Request) bool {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	claims, err := m.decode(ck.Value)
	if err != nil {
		return false
	}
	if m.revoked(r.Context(), claims.RegisteredClaims.ID) {
		return false
	}
	return claims.Record.ExpiresAt > m.now().UnixMilli()
}

// revoked fails closed when the revocation list cannot be read.
func (m *Manager) revoked(ctx context.Context, id string) bool {
	if m.revocations == nil || id == "" {
		return false
	}
	revoked, err := m.revocations.IsRevoked(ctx, id)
	if err != nil {
		m.logger.Warn("revocation lookup failed", "error", err)
		return true
	}
	return revoked
}

func (m *Manager) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
