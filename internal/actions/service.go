package actions

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"portal/internal/backend"
	"portal/internal/events"
	"portal/internal/logger"
	"portal/internal/session"
	"portal/internal/storage"
)

// Service runs proxy actions against the backend on behalf of the caller's session.
type Service struct {
	backend  *backend.Client
	sessions *session.Manager
	events   events.Publisher
	archive  storage.Archive
	urlTTL   time.Duration
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes auth audit events.
func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithArchive stores downloaded invoices and returns presigned URLs valid for ttl.
func WithArchive(a storage.Archive, ttl time.Duration) Option {
	return func(s *Service) {
		s.archive = a
		s.urlTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates the action service.
func NewService(client *backend.Client, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		backend:  client,
		sessions: sessions,
		urlTTL:   15 * time.Minute,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = events.NewLogPublisher(s.logger)
	}
	return s
}

// call describes one backend round trip.
type call struct {
	name     string
	method   string
	endpoint string
	body     any
	fallback string
	success  string
	// anonymous calls skip the bearer token requirement.
	anonymous bool
	// dropData answers success without echoing backend data.
	dropData bool
}

func (s *Service) run(ctx context.Context, jar *session.Cookies, c call) Result {
	var token string
	if !c.anonymous {
		t, ok := s.sessions.BearerToken(ctx, jar)
		if !ok {
			return s.fail(ctx, c.name, noToken())
		}
		token = t
	}

	resp, err := s.backend.Do(ctx, c.method, c.endpoint, token, c.body)
	if err != nil {
		return s.fail(ctx, c.name, unexpected(err))
	}
	if !resp.OK() {
		return s.fail(ctx, c.name, rejected(resp, c.fallback))
	}

	if c.dropData {
		return ok(nil, c.success)
	}
	return ok(envelopeData(resp), c.success)
}

// submit validates p and sends it as the body of c.
func (s *Service) submit(ctx context.Context, jar *session.Cookies, c call, p *payload) Result {
	body, verr := p.Build()
	if verr != nil {
		return s.fail(ctx, c.name, verr)
	}
	c.body = body
	return s.run(ctx, jar, c)
}

func (s *Service) fail(ctx context.Context, action string, e *Error) Result {
	attrs := []any{
		"action", action,
		"kind", string(e.Kind),
		"error", e.Public,
		"request_id", RequestID(ctx),
	}
	if e.Detail != "" {
		attrs = append(attrs, "detail", e.Detail)
	}
	if e.Status != 0 {
		attrs = append(attrs, "status", e.Status)
	}

	switch e.Kind {
	case KindNetwork, KindUnknown:
		s.logger.ErrorContext(ctx, "action failed", attrs...)
	default:
		s.logger.DebugContext(ctx, "action rejected", attrs...)
	}
	return failure(e)
}

func (s *Service) publish(ctx context.Context, e events.AuthEvent) {
	e.RequestID = RequestID(ctx)
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to publish auth event", "type", string(e.Type), "error", err)
	}
}

// envelopeData returns the raw backend data so it reaches the caller verbatim.
func envelopeData(resp *backend.Response) any {
	if len(resp.Envelope.Data) == 0 {
		return nil
	}
	return resp.Envelope.Data
}

func segment(id string) string {
	return url.PathEscape(id)
}

// WithRequestID attaches the request id used in logs, audit events and the backend X-Request-ID header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return backend.WithRequestID(ctx, id)
}

// RequestID returns the id set by WithRequestID.
func RequestID(ctx context.Context) string {
	return backend.RequestID(ctx)
}
