// Package actions implements the portal's server-side proxy actions: each one turns a form
// submission into one backend call and normalizes the reply into a Result envelope.
// Login and register additionally establish the signed session.
package actions

import (
	"errors"
	"fmt"
	"net/http"

	"portal/internal/backend"
)

// Kind classifies a failed action.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindUnknown    Kind = "unknown"
)

const (
	msgUnexpected = "An unexpected error occurred"
	msgNoToken    = "No authentication token found"
)

// Error carries a message that is safe to show plus detail that only reaches the log.
type Error struct {
	Kind   Kind
	Public string
	Detail string
	Status int
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Public)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Public, e.Detail)
}

// Result is the action envelope returned to callers.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`

	// Status is the backend HTTP status when one was received.
	Status int `json:"-"`
}

func ok(data any, message string) Result {
	return Result{Success: true, Data: data, Message: message}
}

func failure(err *Error) Result {
	return Result{Success: false, Error: err.Public, Kind: err.Kind, Status: err.Status}
}

// HTTPStatus maps a result to the status the portal answers with.
func (r Result) HTTPStatus() int {
	if r.Success {
		return http.StatusOK
	}
	switch r.Kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation:
		if r.Status >= 400 && r.Status < 500 {
			return r.Status
		}
		return http.StatusBadRequest
	case KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// kindForStatus classifies a backend rejection.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindUnknown
	}
}

// rejected builds the error for a non-2xx backend reply, passing its text through verbatim.
func rejected(resp *backend.Response, fallback string) *Error {
	return &Error{
		Kind:   kindForStatus(resp.Status),
		Public: resp.ErrorText(fallback),
		Status: resp.Status,
	}
}

// unexpected hides err behind the generic message.
func unexpected(err error) *Error {
	kind := KindUnknown
	if errors.Is(err, backend.ErrTransport) {
		kind = KindNetwork
	}
	return &Error{Kind: kind, Public: msgUnexpected, Detail: err.Error()}
}

func noToken() *Error {
	return &Error{Kind: KindAuth, Public: msgNoToken}
}
