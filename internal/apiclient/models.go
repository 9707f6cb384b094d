package apiclient

import (
	"encoding/json"
	"time"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Plan struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	Interval      string  `json:"interval"`
	IntervalCount int     `json:"interval_count,omitempty"`
	TrialDays     int     `json:"trial_days"`
	// Features is either a JSON array or a JSON-encoded string, depending on the backend version.
	Features  json.RawMessage `json:"features,omitempty"`
	IsActive  bool            `json:"is_active"`
	IsPopular bool            `json:"is_popular"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// FeatureList decodes Features in either representation.
func (p Plan) FeatureList() []string {
	if len(p.Features) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(p.Features, &list) == nil {
		return list
	}
	var encoded string
	if json.Unmarshal(p.Features, &encoded) == nil && json.Unmarshal([]byte(encoded), &list) == nil {
		return list
	}
	return nil
}

type Subscription struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	PlanID         string        `json:"plan_id"`
	Status         string        `json:"status"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        *time.Time    `json:"end_date,omitempty"`
	TrialEndDate   *time.Time    `json:"trial_end_date,omitempty"`
	AutoRenew      bool          `json:"auto_renew"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Plan           *Plan         `json:"plan,omitempty"`
	Organization   *Organization `json:"organization,omitempty"`
}

type Invoice struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	SubscriptionID string     `json:"subscription_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	Status         string     `json:"status"`
	Subtotal       float64    `json:"subtotal"`
	TaxAmount      float64    `json:"tax_amount"`
	Total          float64    `json:"total"`
	Currency       string     `json:"currency"`
	IssueDate      time.Time  `json:"issue_date"`
	DueDate        time.Time  `json:"due_date"`
	PaidDate       *time.Time `json:"paid_date,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Pagination is the paging block of list replies.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Page is one page of a paginated list.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

type AuthResponse struct {
	User         User          `json:"user"`
	Organization *Organization `json:"organization,omitempty"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	OrganizationName string `json:"organization_name,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type CreateSubscriptionRequest struct {
	OrganizationID string `json:"organization_id"`
	PlanID         string `json:"plan_id"`
	AutoRenew      *bool  `json:"auto_renew,omitempty"`
}

type CreatePlanRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	Interval    string   `json:"interval"`
	TrialDays   int      `json:"trial_days,omitempty"`
	Features    []string `json:"features"`
}

// UpdatePlanRequest carries only the fields to change.
type UpdatePlanRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Currency    *string   `json:"currency,omitempty"`
	Interval    *string   `json:"interval,omitempty"`
	TrialDays   *int      `json:"trial_days,omitempty"`
	Features    *[]string `json:"features,omitempty"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

type OrganizationRequest struct {
	Name        string `json:"name,omitempty"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
}

// HealthStatus is the backend's /health reply.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// InvoiceFile is a downloaded invoice document.
type InvoiceFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
