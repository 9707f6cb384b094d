// Package backend talks to the billing REST API and normalizes its JSON envelope.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portal/internal/upstream"
)

var (
	// ErrTransport wraps failures to reach the backend or read its response.
	ErrTransport = errors.New("backend transport failure")
	// ErrDecode wraps responses whose body is not a JSON envelope.
	ErrDecode = errors.New("backend response decode failure")
)

// Envelope is the backend's response shape.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`

	// Pagination is set by list endpoints that page their results.
	Pagination json.RawMessage `json:"pagination,omitempty"`
}

// Response is one backend exchange.
type Response struct {
	Status   int
	Header   http.Header
	Envelope Envelope
	// Body is the raw reply: the JSON document for Do, the file for Download.
	Body []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// ErrorText returns the backend error, then message, then fallback.
func (r *Response) ErrorText(fallback string) string {
	switch {
	case r.Envelope.Error != "":
		return r.Envelope.Error
	case r.Envelope.Message != "":
		return r.Envelope.Message
	default:
		return fallback
	}
}

// DecodeData unmarshals the envelope data into v. Absent data leaves v untouched.
func (r *Response) DecodeData(v any) error {
	if len(r.Envelope.Data) == 0 || string(r.Envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Envelope.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// Client sends requests to the backend resolved by an upstream.Resolver.
type Client struct {
	resolver upstream.Resolver
	http     *http.Client
}

// DefaultTimeout applies when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// New creates a backend client. A nil httpClient gets DefaultTimeout.
func New(resolver upstream.Resolver, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{resolver: resolver, http: httpClient}
}

// Do sends a JSON request and decodes the envelope. Non-2xx statuses are not errors;
// only transport and decode failures are.
func (c *Client) Do(ctx context.Context, method, endpoint, token string, body any) (*Response, error) {
	resp, raw, err := c.send(ctx, method, endpoint, token, body)
	if err != nil {
		return nil, err
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out.Envelope); err != nil {
		return nil, fmt.Errorf("%w: %s %s (status %d): %v", ErrDecode, method, endpoint, resp.StatusCode, err)
	}
	out.Body = raw
	return out, nil
}

// Download fetches a binary resource. A JSON body is decoded as an envelope instead.
func (c *Client) Download(ctx context.Context, endpoint, token string) (*Response, error) {
	resp, raw, err := c.send(ctx, http.MethodGet, endpoint, token, nil)
	if err != nil {
		return nil, err
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out.Envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return out, nil
	}
	out.Envelope.Success = out.OK()
	out.Body = raw
	return out, nil
}

func (c *Client) send(ctx context.Context, method, endpoint, token string, body any) (*http.Response, []byte, error) {
	base, err := c.resolver.BaseURL(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+"/"+strings.TrimLeft(endpoint, "/"), reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	return resp, raw, nil
}

type requestIDKey struct{}

// WithRequestID makes outgoing requests carry id in X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
