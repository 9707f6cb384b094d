package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"portal/internal/session"

	"github.com/gin-gonic/gin"
)

// LoginPath is where Logout sends the browser.
const LoginPath = "/login"

// Handler exposes the actions over HTTP. Forms may be urlencoded, multipart or JSON.
type Handler struct {
	service *Service
}

// NewHandler creates a new actions handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterAuthRoutes mounts the credential actions, e.g. under /api/auth.
func (h *Handler) RegisterAuthRoutes(g *gin.RouterGroup) {
	g.POST("/login", h.Login)
	g.POST("/register", h.Register)
	g.POST("/logout", h.Logout)
	g.POST("/refresh", h.Refresh)
	g.GET("/me", h.CurrentUser)
}

// RegisterProtectedRoutes mounts the token-bearing actions, e.g. under /api/protected.
func (h *Handler) RegisterProtectedRoutes(g *gin.RouterGroup) {
	g.PUT("/password", h.form(h.service.ChangePassword))

	g.GET("/profile", h.plain(h.service.Profile))
	g.PUT("/profile", h.form(h.service.UpdateProfile))

	g.GET("/organization", h.plain(h.service.Organization))
	g.PUT("/organization", h.form(h.service.UpdateOrganization))
	g.GET("/organization/members", h.query("organization_id", h.service.Members))
	g.POST("/organization/members/invite", h.form(h.service.InviteMember))
	g.PUT("/organization/members/:id", h.formWithID(h.service.UpdateMemberRole))
	g.DELETE("/organization/members/:id", h.withID(h.service.RemoveMember))

	g.GET("/subscriptions", h.query("organization_id", h.service.Subscriptions))
	g.POST("/subscriptions", h.form(h.service.CreateSubscription))
	g.GET("/subscriptions/:id", h.withID(h.service.Subscription))
	g.PUT("/subscriptions/:id", h.formWithID(h.service.UpdateSubscription))
	g.POST("/subscriptions/:id/cancel", h.withID(h.service.CancelSubscription))

	g.GET("/plans", h.plain(h.service.Plans))
	g.GET("/plans/:id", h.withID(h.service.Plan))

	g.GET("/payment-methods", h.plain(h.service.PaymentMethods))
	g.POST("/payment-methods", h.form(h.service.AddPaymentMethod))
	g.PUT("/payment-methods/:id", h.formWithID(h.service.UpdatePaymentMethod))
	g.DELETE("/payment-methods/:id", h.withID(h.service.DeletePaymentMethod))

	g.GET("/billing-address", h.plain(h.service.BillingAddress))
	g.PUT("/billing-address", h.form(h.service.UpdateBillingAddress))
	g.GET("/billing/history", h.plain(h.service.BillingHistory))

	g.GET("/invoices", h.Invoices)
	g.GET("/invoices/:id", h.withID(h.service.Invoice))
	g.GET("/invoices/:id/download", h.withID(h.service.DownloadInvoice))
	g.POST("/invoices/:id/mark-paid", h.withID(h.service.MarkInvoicePaid))
	g.POST("/invoices/:id/send-reminder", h.withID(h.service.SendInvoiceReminder))
}

// Login handles POST /login
func (h *Handler) Login(c *gin.Context) {
	respond(c, h.service.Login(requestContext(c), cookies(c), requestForm(c)))
}

// Register handles POST /register
func (h *Handler) Register(c *gin.Context) {
	respond(c, h.service.Register(requestContext(c), cookies(c), requestForm(c)))
}

// Logout handles POST /logout and always redirects to the login page.
func (h *Handler) Logout(c *gin.Context) {
	h.service.Logout(requestContext(c), cookies(c))
	c.Redirect(http.StatusSeeOther, LoginPath)
}

// Refresh handles POST /refresh
func (h *Handler) Refresh(c *gin.Context) {
	respond(c, h.service.RefreshSession(requestContext(c), cookies(c)))
}

// CurrentUser handles GET /me
func (h *Handler) CurrentUser(c *gin.Context) {
	respond(c, h.service.CurrentUser(requestContext(c), cookies(c)))
}

// Invoices handles GET /invoices, optionally filtered by ?organization_id=.
func (h *Handler) Invoices(c *gin.Context) {
	ctx, jar := requestContext(c), cookies(c)
	if org := c.Query("organization_id"); org != "" {
		respond(c, h.service.InvoicesByOrganization(ctx, jar, org))
		return
	}
	respond(c, h.service.Invoices(ctx, jar))
}

type (
	plainAction      func(context.Context, *session.Cookies) Result
	formAction       func(context.Context, *session.Cookies, Form) Result
	idAction         func(context.Context, *session.Cookies, string) Result
	formWithIDAction func(context.Context, *session.Cookies, string, Form) Result
)

func (h *Handler) plain(fn plainAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, fn(requestContext(c), cookies(c)))
	}
}

func (h *Handler) form(fn formAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, fn(requestContext(c), cookies(c), requestForm(c)))
	}
}

func (h *Handler) withID(fn idAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, fn(requestContext(c), cookies(c), c.Param("id")))
	}
}

func (h *Handler) formWithID(fn formWithIDAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, fn(requestContext(c), cookies(c), c.Param("id"), requestForm(c)))
	}
}

func (h *Handler) query(key string, fn idAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, fn(requestContext(c), cookies(c), c.Query(key)))
	}
}

func respond(c *gin.Context, r Result) {
	c.JSON(r.HTTPStatus(), r)
}

func cookies(c *gin.Context) *session.Cookies {
	return session.NewCookies(c.Writer, c.Request)
}

func requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), c.GetString("request_id"))
}

// requestForm reads JSON bodies into Values and falls back to gin's form parsing.
// Numbers keep their literal text so long digit strings survive unchanged.
func requestForm(c *gin.Context) Form {
	if !strings.HasPrefix(c.ContentType(), "application/json") {
		return c
	}

	var doc map[string]any
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Values{}
	}
	values := Values{}
	for k, v := range doc {
		switch t := v.(type) {
		case nil:
		case string:
			values[k] = []string{t}
		case json.Number:
			values[k] = []string{t.String()}
		case bool:
			values[k] = []string{strconv.FormatBool(t)}
		case map[string]any, []any:
			raw, _ := json.Marshal(t)
			values[k] = []string{string(raw)}
		}
	}
	return values
}
