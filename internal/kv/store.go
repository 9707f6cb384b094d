// Package kv is the small key/value abstraction shared by the session revocation list
// and the API client token store. Redis backs it in deployment, memory in tests and the CLI.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store defines the interface for key/value storage operations
type Store interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Incr adds one to the integer at key, creating it at 1, and refreshes its ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
