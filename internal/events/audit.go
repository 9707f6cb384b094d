package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"portal/internal/kv"
)

// ErrMalformed marks a message that can never be processed; it is skipped, not retried.
var ErrMalformed = errors.New("events: malformed auth event")

// Handler reacts to one decoded auth event.
type Handler func(ctx context.Context, e AuthEvent) error

// Processor decodes auth events, drops duplicates and hands the rest to a Handler.
// Duplicates are detected by event id in a kv.Store, so several consumers can share one Redis.
type Processor struct {
	store   kv.Store
	handler Handler
	ttl     time.Duration
	logger  *slog.Logger
}

// NewProcessor keeps processed ids for 24 hours.
func NewProcessor(store kv.Store, handler Handler, logger *slog.Logger) *Processor {
	return &Processor{
		store:   store,
		handler: handler,
		ttl:     24 * time.Hour,
		logger:  logger,
	}
}

func processedKey(id string) string {
	return "audit:processed:" + id
}

// Process handles one message value. It returns nil for duplicates and ErrMalformed for
// values that are not auth events; any other error means the message may be retried.
func (p *Processor) Process(ctx context.Context, value []byte) (AuthEvent, error) {
	var e AuthEvent
	if err := json.Unmarshal(value, &e); err != nil {
		return e, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.ID == "" || e.Type == "" {
		return e, fmt.Errorf("%w: missing id or type", ErrMalformed)
	}

	seen, err := p.store.Exists(ctx, processedKey(e.ID))
	if err != nil {
		return e, fmt.Errorf("check processed: %w", err)
	}
	if seen {
		p.logger.Warn("Duplicate auth event detected, skipping", "event_id", e.ID, "type", string(e.Type))
		return e, nil
	}

	if err := p.handler(ctx, e); err != nil {
		return e, err
	}

	if err := p.store.Set(ctx, processedKey(e.ID), string(e.Type), p.ttl); err != nil {
		return e, fmt.Errorf("mark processed: %w", err)
	}
	return e, nil
}

// Activity records per-account auth activity: the last successful login and a counter of
// consecutive failed logins, reset by the next success.
type Activity struct {
	store  kv.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewActivity keeps activity records for ttl; zero keeps them forever.
func NewActivity(store kv.Store, ttl time.Duration, logger *slog.Logger) *Activity {
	return &Activity{store: store, ttl: ttl, logger: logger}
}

func lastLoginKey(account string) string    { return "audit:last_login:" + account }
func failedLoginsKey(account string) string { return "audit:failed_logins:" + account }

// Record is a Handler.
func (a *Activity) Record(ctx context.Context, e AuthEvent) error {
	switch e.Type {
	case LoginSucceeded, RegisterSucceeded:
		if err := a.store.Set(ctx, lastLoginKey(e.Key()), e.OccurredAt.UTC().Format(time.RFC3339), a.ttl); err != nil {
			return err
		}
		if e.Email != "" {
			return a.store.Delete(ctx, failedLoginsKey(e.Email))
		}
		return nil

	case LoginFailed:
		if e.Email == "" {
			return nil
		}
		n, err := a.store.Incr(ctx, failedLoginsKey(e.Email), a.ttl)
		if err != nil {
			return err
		}
		if n >= 5 {
			a.logger.Warn("Repeated failed logins", "email", e.Email, "count", n)
		}
		return nil
	}

	a.logger.Debug("auth event recorded", "type", string(e.Type), "event_id", e.ID)
	return nil
}

// LastLogin returns when account last signed in; ok is false when never seen.
func (a *Activity) LastLogin(ctx context.Context, account string) (t time.Time, ok bool, err error) {
	raw, err := a.store.Get(ctx, lastLoginKey(account))
	if errors.Is(err, kv.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// FailedLogins returns the consecutive failed logins for email.
func (a *Activity) FailedLogins(ctx context.Context, email string) (int, error) {
	raw, err := a.store.Get(ctx, failedLoginsKey(email))
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
