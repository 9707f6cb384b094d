package session

import (
	"context"
	"errors"
	"time"

	"portal/internal/kv"
)

// Revocations tracks session ids (jti) invalidated by logout before their natural expiry.
type Revocations interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

const revokedKeyPrefix = "session:revoked:"

// KVRevocations stores revoked ids in a kv.Store; entries expire with the token.
type KVRevocations struct {
	store kv.Store
}

// NewRevocations creates a revocation list on top of store.
func NewRevocations(store kv.Store) *KVRevocations {
	return &KVRevocations{store: store}
}

func (r *KVRevocations) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if id == "" {
		return errors.New("session: empty id")
	}
	if ttl <= 0 {
		return nil
	}
	return r.store.Set(ctx, revokedKeyPrefix+id, "1", ttl)
}

func (r *KVRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	return r.store.Exists(ctx, revokedKeyPrefix+id)
}
