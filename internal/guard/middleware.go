package guard

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Detector reports whether a request belongs to a logged-in caller.
type Detector func(r *http.Request) bool

var (
	allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	allowedHeaders = []string{"Content-Type", "Authorization"}
)

// Middleware applies Decide to every request. Redirects use 307 so the method is preserved.
func Middleware(routes Routes, loggedIn Detector) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		decision := routes.Decide(path, loggedIn(c.Request))

		switch {
		case decision.Action == Redirect:
			slog.Debug("guard redirect",
				"path", path,
				"location", decision.Location,
				"request_id", c.GetString("request_id"),
			)
			c.Redirect(http.StatusTemporaryRedirect, decision.Location)
			c.Abort()
			return
		case decision.CORS:
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		c.Next()
	}
}

// Preflight answers CORS preflight requests on the API group with the same permissive policy.
func Preflight() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    allowedMethods,
		AllowHeaders:    allowedHeaders,
	})
}
