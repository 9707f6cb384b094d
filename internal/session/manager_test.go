package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portal/internal/kv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	m, err := NewManager("test-secret", opts...)
	require.NoError(t, err)
	return m
}

func sampleRecord() Record {
	active := true
	return Record{
		User: User{
			ID:        "u-1",
			Email:     "ada@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Role:      "admin",
			IsActive:  &active,
		},
		Organization: &Organization{ID: "o-1", Name: "Analytical Engines"},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    testNow.Add(DefaultTTL).UnixMilli(),
	}
}

// newJar builds a jar for a fresh request that carries the given Set-Cookie lines as cookies.
func newJar(setCookies ...string) (*Cookies, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, line := range setCookies {
		resp := http.Response{Header: http.Header{"Set-Cookie": {line}}}
		for _, ck := range resp.Cookies() {
			if ck.MaxAge >= 0 {
				req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
			}
		}
	}
	rec := httptest.NewRecorder()
	return NewCookies(rec, req), rec
}

func createCookie(t *testing.T, m *Manager, r Record) string {
	t.Helper()
	jar, rec := newJar()
	require.NoError(t, m.Create(jar, r))
	lines := rec.Header().Values("Set-Cookie")
	require.Len(t, lines, 1)
	return lines[0]
}

func TestCreateGet_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	want := sampleRecord()

	line := createCookie(t, m, want)
	assert.Contains(t, line, "session=")
	assert.Contains(t, line, "HttpOnly")
	assert.Contains(t, line, "SameSite=Lax")
	assert.Contains(t, line, "Max-Age=604800")
	assert.NotContains(t, line, "Secure")

	jar, _ := newJar(line)
	got := m.Get(context.Background(), jar)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestCreate_SecureInProduction(t *testing.T) {
	m := newTestManager(t, WithSecure(true))
	assert.Contains(t, createCookie(t, m, sampleRecord()), "Secure")
}

func TestGet_VisibleWithinSameRequest(t *testing.T) {
	m := newTestManager(t)
	jar, rec := newJar()

	require.NoError(t, m.Create(jar, sampleRecord()))
	second := sampleRecord()
	second.AccessToken = "access-2"
	require.NoError(t, m.Create(jar, second))

	got := m.Get(context.Background(), jar)
	require.NotNil(t, got)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Len(t, rec.Header().Values("Set-Cookie"), 1)
}

func TestIsValid_ExpiredRecordStillDecodes(t *testing.T) {
	m := newTestManager(t)
	r := sampleRecord()
	r.ExpiresAt = testNow.Add(-time.Minute).UnixMilli()

	jar, _ := newJar(createCookie(t, m, r))
	ctx := context.Background()

	assert.NotNil(t, m.Get(ctx, jar), "record should still decode")
	assert.False(t, m.IsValid(ctx, jar))

	r.ExpiresAt = testNow.UnixMilli()
	jar, _ = newJar(createCookie(t, m, r))
	assert.False(t, m.IsValid(ctx, jar), "expiresAt equal to now is not valid")

	jar, _ = newJar(createCookie(t, m, sampleRecord()))
	assert.True(t, m.IsValid(ctx, jar))
}

func TestGet_ExpiredTokenIsAbsent(t *testing.T) {
	m := newTestManager(t)
	line := createCookie(t, m, sampleRecord())

	later := newTestManager(t, WithClock(func() time.Time { return testNow.Add(DefaultTTL + time.Second) }))
	jar, _ := newJar(line)
	assert.Nil(t, later.Get(context.Background(), jar))
}

func TestGet_TamperedTokenIsAbsent(t *testing.T) {
	m := newTestManager(t)
	jar, _ := newJar()
	require.NoError(t, m.Create(jar, sampleRecord()))
	token, ok := jar.Get(CookieName)
	require.True(t, ok)

	for i := 0; i < len(token); i++ {
		b := []byte(token)
		b[i] ^= 0x01
		rec, err := m.Decode(string(b))
		assert.Error(t, err, "byte %d", i)
		assert.Nil(t, rec)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Cookie", CookieName+"="+string(b))
		assert.NotPanics(t, func() {
			assert.Nil(t, m.Get(context.Background(), NewCookies(httptest.NewRecorder(), req)))
		})
	}
}

func TestGet_WrongSecretOrGarbage(t *testing.T) {
	m := newTestManager(t)
	line := createCookie(t, m, sampleRecord())

	other, err := NewManager("another-secret")
	require.NoError(t, err)
	jar, _ := newJar(line)
	assert.Nil(t, other.Get(context.Background(), jar))

	jar, _ = newJar("session=not-a-jwt")
	assert.Nil(t, m.Get(context.Background(), jar))
}

func TestUpdate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	jar, _ := newJar()
	assert.ErrorIs(t, m.Update(ctx, jar, Patch{}), ErrNoActiveSession)

	jar, _ = newJar(createCookie(t, m, sampleRecord()))
	access := "access-2"
	require.NoError(t, m.Update(ctx, jar, Patch{AccessToken: &access}))

	got := m.Get(ctx, jar)
	require.NotNil(t, got)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.Equal(t, "Analytical Engines", got.Organization.Name)
}

func TestDelete_Idempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	jar, rec := newJar(createCookie(t, m, sampleRecord()), "token=raw")
	m.Delete(ctx, jar)
	first := rec.Header().Values("Set-Cookie")

	m.Delete(ctx, jar)
	second := rec.Header().Values("Set-Cookie")

	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
	for _, line := range second {
		assert.Contains(t, line, "Max-Age=0")
	}
	assert.Nil(t, m.Get(ctx, jar))
	_, ok := m.BearerToken(ctx, jar)
	assert.False(t, ok)

	empty, _ := newJar()
	assert.NotPanics(t, func() { m.Delete(ctx, empty) })
}

func TestDelete_RevokesToken(t *testing.T) {
	revocations := NewRevocations(kv.NewMemoryStore())
	m := newTestManager(t, WithRevocations(revocations))
	ctx := context.Background()

	line := createCookie(t, m, sampleRecord())
	jar, _ := newJar(line)
	m.Delete(ctx, jar)

	replay, _ := newJar(line)
	assert.Nil(t, m.Get(ctx, replay), "a copied cookie must not survive logout")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Cookie", strings.SplitN(line, ";", 2)[0])
	assert.False(t, m.Verify(req))
	assert.True(t, m.HasCookie(req))
}

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Duration) error { return nil }
func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestGet_FailsClosedWhenRevocationsUnavailable(t *testing.T) {
	m := newTestManager(t, WithRevocations(failingRevocations{}))
	jar, _ := newJar(createCookie(t, m, sampleRecord()))
	assert.Nil(t, m.Get(context.Background(), jar))
}

func TestBearerToken(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	jar, _ := newJar("token=raw-token")
	tok, ok := m.BearerToken(ctx, jar)
	assert.True(t, ok)
	assert.Equal(t, "raw-token", tok)

	jar, _ = newJar(createCookie(t, m, sampleRecord()), "token=raw-token")
	tok, ok = m.BearerToken(ctx, jar)
	assert.True(t, ok)
	assert.Equal(t, "access-1", tok)

	jar, rec := newJar()
	m.SetBearerCookie(jar, "fresh")
	tok, ok = m.BearerToken(ctx, jar)
	assert.True(t, ok)
	assert.Equal(t, "fresh", tok)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "HttpOnly")
}

func TestVerify(t *testing.T) {
	m := newTestManager(t)
	line := createCookie(t, m, sampleRecord())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Cookie", strings.SplitN(line, ";", 2)[0])
	assert.True(t, m.Verify(req))

	forged := httptest.NewRequest(http.MethodGet, "/", nil)
	forged.Header.Set("Cookie", "session=forged")
	assert.False(t, m.Verify(forged))
	assert.True(t, m.HasCookie(forged))

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, m.HasCookie(bare))
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
