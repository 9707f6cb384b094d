// Package gateway assembles the portal's HTTP surface: route guard, credential actions,
// session hydration, the session-backed /api/v1 pass-through and page placeholders.
package gateway

import (
	"log/slog"
	"net/http"

	"portal/internal/actions"
	"portal/internal/guard"
	"portal/internal/session"
	"portal/internal/upstream"

	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators the router wires together.
type Dependencies struct {
	Sessions   *session.Manager
	Actions    *actions.Service
	Resolver   upstream.Resolver
	HTTPClient *http.Client
	Routes     guard.Routes
	// Detector decides whether a request is logged in; defaults to Sessions.HasCookie.
	Detector guard.Detector
	Checks   map[string]HealthCheck
	Logger   *slog.Logger
}

// proxiedMethods excludes OPTIONS, which the /api preflight route answers.
var proxiedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

var pages = map[string]string{
	"/":              "Billing Portal",
	"/login":         "Sign in",
	"/signup":        "Sign up",
	"/dashboard":     "Dashboard",
	"/billing":       "Billing",
	"/invoices":      "Invoices",
	"/subscriptions": "Subscriptions",
	"/settings":      "Settings",
	"/profile":       "Profile",
	"/admin":         "Admin",
}

// SetupRouter configures and returns the portal router
func SetupRouter(deps Dependencies) *gin.Engine {
	detector := deps.Detector
	if detector == nil {
		detector = deps.Sessions.HasCookie
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(log))
	r.Use(guard.Middleware(deps.Routes, detector))

	for path, title := range pages {
		r.GET(path, Page(title))
	}

	api := r.Group("/api")
	api.Use(guard.Preflight())
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api.GET("/health", NewHealthHandler(deps.Checks).Health)

	actionHandler := actions.NewHandler(deps.Actions)

	auth := api.Group("/auth")
	{
		actionHandler.RegisterAuthRoutes(auth)
		auth.GET("/session", NewSessionHandler(deps.Sessions).Session)
	}

	actionHandler.RegisterProtectedRoutes(api.Group("/protected"))

	proxy := NewProxyHandler(deps.Resolver, deps.HTTPClient, deps.Sessions, deps.Actions, log)
	v1 := api.Group("/v1")
	v1.Use(SessionAuthMiddleware(deps.Sessions))
	for _, method := range proxiedMethods {
		v1.Handle(method, "/*path", proxy.Forward)
	}

	return r
}
