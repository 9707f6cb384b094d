package session

import (
	"net/http"
	"strings"
)

// Cookies is a request-scoped cookie jar. Reads observe writes made earlier in the
// same request, and writing a name twice leaves a single Set-Cookie header for it.
type Cookies struct {
	w       http.ResponseWriter
	r       *http.Request
	pending map[string]*http.Cookie
}

// NewCookies wraps a request/response pair.
func NewCookies(w http.ResponseWriter, r *http.Request) *Cookies {
	return &Cookies{
		w:       w,
		r:       r,
		pending: make(map[string]*http.Cookie),
	}
}

// Get returns the current value of the named cookie.
func (c *Cookies) Get(name string) (string, bool) {
	if ck, ok := c.pending[name]; ok {
		if ck.MaxAge < 0 || ck.Value == "" {
			return "", false
		}
		return ck.Value, true
	}
	ck, err := c.r.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// Set writes the cookie, replacing any Set-Cookie emitted earlier for the same name.
func (c *Cookies) Set(ck *http.Cookie) {
	c.pending[ck.Name] = ck

	h := c.w.Header()
	prefix := ck.Name + "="
	kept := make([]string, 0, len(h.Values("Set-Cookie"))+1)
	for _, line := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(line, prefix) {
			kept = append(kept, line)
		}
	}
	if v := ck.String(); v != "" {
		kept = append(kept, v)
	}
	h["Set-Cookie"] = kept
}

// Clear expires the named cookie.
func (c *Cookies) Clear(name string, secure bool) {
	c.Set(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
