package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"portal/internal/kv"
)

// TokenStore persists the client's tokens. Load returns zero Tokens when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, t Tokens) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps tokens for the lifetime of the process.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens Tokens
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(context.Context) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
	return nil
}

func (s *MemoryTokenStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	return nil
}

// KVTokenStore keeps tokens under one key of a kv.Store, e.g. Redis shared by several workers.
type KVTokenStore struct {
	store kv.Store
	key   string
	ttl   time.Duration
}

// NewKVTokenStore stores tokens at "apiclient:tokens:<owner>". A zero ttl never expires.
func NewKVTokenStore(store kv.Store, owner string, ttl time.Duration) *KVTokenStore {
	return &KVTokenStore{store: store, key: "apiclient:tokens:" + owner, ttl: ttl}
}

func (s *KVTokenStore) Load(ctx context.Context) (Tokens, error) {
	raw, err := s.store.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return Tokens{}, nil
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("load tokens: %w", err)
	}

	var t Tokens
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Tokens{}, fmt.Errorf("decode tokens: %w", err)
	}
	return t, nil
}

func (s *KVTokenStore) Save(ctx context.Context, t Tokens) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.key, string(raw), s.ttl); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

func (s *KVTokenStore) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, s.key)
}

// FileTokenStore keeps tokens in a JSON file readable only by the owner.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// DefaultTokenFile is $XDG_CONFIG_HOME/billingctl/tokens.json or its platform equivalent.
func DefaultTokenFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "billingctl", "tokens.json"), nil
}

func (s *FileTokenStore) Load(context.Context) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Tokens{}, nil
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("read token file: %w", err)
	}

	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tokens{}, fmt.Errorf("decode token file %s: %w", s.path, err)
	}
	return t, nil
}

func (s *FileTokenStore) Save(_ context.Context, t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	raw, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

func (s *FileTokenStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
