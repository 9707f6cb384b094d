package kv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "a", "1", 0))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	now = now.Add(59 * time.Second)
	ok, _ := s.Exists(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, _ = s.Exists(ctx, "k")
	assert.False(t, ok)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Incr(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Incr(ctx, "n", time.Minute)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, "50", got)

	now = now.Add(time.Minute)
	n, err := s.Incr(ctx, "n", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Set(ctx, "word", "abc", 0))
	_, err = s.Incr(ctx, "word", 0)
	assert.Error(t, err)
}
