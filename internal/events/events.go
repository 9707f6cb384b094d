// Package events publishes authentication audit events (login, register, logout, refresh).
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Type names an auth event.
type Type string

const (
	LoginSucceeded    Type = "auth.login.succeeded"
	LoginFailed       Type = "auth.login.failed"
	RegisterSucceeded Type = "auth.register.succeeded"
	RegisterFailed    Type = "auth.register.failed"
	LoggedOut         Type = "auth.logout"
	RefreshSucceeded  Type = "auth.refresh.succeeded"
	RefreshFailed     Type = "auth.refresh.failed"
)

// AuthEvent is one audit record. Credentials and tokens are never included.
type AuthEvent struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	UserID         string    `json:"user_id,omitempty"`
	Email          string    `json:"email,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewAuthEvent stamps an id and time.
func NewAuthEvent(t Type, email string) AuthEvent {
	return AuthEvent{
		ID:         uuid.NewString(),
		Type:       t,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}

// Key is the partitioning key: user id when known, email otherwise.
func (e AuthEvent) Key() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Email
}

// Publisher delivers auth events. Publishing never blocks the auth flow on delivery.
type Publisher interface {
	Publish(ctx context.Context, event AuthEvent) error
	Close()
}

// LogPublisher writes events to a logger. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e AuthEvent) error {
	p.logger.InfoContext(ctx, "auth event",
		"event_id", e.ID,
		"type", string(e.Type),
		"user_id", e.UserID,
		"email", e.Email,
		"organization_id", e.OrganizationID,
		"reason", e.Reason,
		"request_id", e.RequestID,
	)
	return nil
}

func (p *LogPublisher) Close() {}
