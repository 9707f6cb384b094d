package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"portal/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// SessionAuthMiddleware requires a session or bearer cookie and exposes the user to later handlers.
func SessionAuthMiddleware(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jar := session.NewCookies(c.Writer, c.Request)

		rec := sessions.Get(c.Request.Context(), jar)
		if rec == nil {
			if _, ok := sessions.BearerToken(c.Request.Context(), jar); ok {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized: no session",
			})
			return
		}

		if rec.ExpiresAt <= sessions.Now().UnixMilli() {
			slog.Warn("Expired session",
				"user_id", rec.User.ID,
				"request_id", c.GetString("request_id"),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized: session expired",
			})
			return
		}

		c.Set("user_id", rec.User.ID)
		c.Set("email", rec.User.Email)
		if rec.Organization != nil {
			c.Set("organization_id", rec.Organization.ID)
		}

		c.Next()
	}
}

// RequestIDMiddleware keeps a well-formed incoming X-Request-ID or generates one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()
	}
}

// LoggingMiddleware logs every request with a level chosen by status code.
func LoggingMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", float64(time.Since(start).Microseconds()) / 1000,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"response_size", c.Writer.Size(),
		}

		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}
		for _, key := range []string{"user_id", "organization_id", "upstream"} {
			if v, exists := c.Get(key); exists {
				attrs = append(attrs, key, v)
			}
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("Request failed - server error", attrs...)
		case status >= 400:
			log.Warn("Request failed - client error", attrs...)
		default:
			log.Info("Request completed", attrs...)
		}
	}
}
