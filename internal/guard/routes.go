// Package guard decides, per request, whether to redirect based on the route class
// and whether the caller looks logged in.
package guard

import (
	"net/url"
	"strings"
)

// Class is the route classification of a path.
type Class int

const (
	ClassDefault Class = iota
	ClassProtected
	ClassPublic
)

func (c Class) String() string {
	switch c {
	case ClassProtected:
		return "protected"
	case ClassPublic:
		return "public"
	default:
		return "default"
	}
}

const (
	LoginPath     = "/login"
	SignupPath    = "/signup"
	DashboardPath = "/dashboard"
	apiPrefix     = "/api/"
)

// Routes partitions paths into protected and public prefixes.
type Routes struct {
	Protected []string
	Public    []string
}

// DefaultRoutes returns the portal's route lists.
func DefaultRoutes() Routes {
	return Routes{
		Protected: []string{"/dashboard", "/profile", "/settings", "/admin", "/api/protected"},
		Public:    []string{"/", "/login", "/signup", "/api/auth", "/api/health"},
	}
}

// Classify returns ClassProtected when path starts with a protected prefix, ClassPublic when it
// equals a public route or lies beneath one, and ClassDefault otherwise. Protected wins.
func (r Routes) Classify(path string) Class {
	for _, p := range r.Protected {
		if strings.HasPrefix(path, p) {
			return ClassProtected
		}
	}
	for _, p := range r.Public {
		if path == p || (p != "/" && strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/")) {
			return ClassPublic
		}
	}
	return ClassDefault
}

// Action is what the guard does with a request.
type Action int

const (
	Pass Action = iota
	Redirect
)

// Decision is the outcome for one request. Only one branch applies.
type Decision struct {
	Action   Action
	Location string
	// CORS asks the caller to add the permissive API headers before passing through.
	CORS bool
}

// Decide evaluates, in order: protected without login, auth page while logged in,
// API CORS injection, plain pass-through.
func (r Routes) Decide(path string, loggedIn bool) Decision {
	if !loggedIn && r.Classify(path) == ClassProtected {
		q := url.Values{"callbackUrl": {path}}
		return Decision{Action: Redirect, Location: LoginPath + "?" + q.Encode()}
	}
	if loggedIn && (path == LoginPath || path == SignupPath) {
		return Decision{Action: Redirect, Location: DashboardPath}
	}
	if strings.HasPrefix(path, apiPrefix) {
		return Decision{Action: Pass, CORS: true}
	}
	return Decision{Action: Pass}
}
