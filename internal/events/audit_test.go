package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"portal/internal/kv"
	"portal/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, e AuthEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	return raw
}

func TestProcessor_SkipsDuplicates(t *testing.T) {
	calls := 0
	p := NewProcessor(kv.NewMemoryStore(), func(context.Context, AuthEvent) error {
		calls++
		return nil
	}, logger.Discard())

	value := encode(t, NewAuthEvent(LoginSucceeded, "ada@example.com"))

	_, err := p.Process(context.Background(), value)
	require.NoError(t, err)
	_, err = p.Process(context.Background(), value)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestProcessor_HandlerFailureIsRetryable(t *testing.T) {
	fail := true
	calls := 0
	p := NewProcessor(kv.NewMemoryStore(), func(context.Context, AuthEvent) error {
		calls++
		if fail {
			return errors.New("redis down")
		}
		return nil
	}, logger.Discard())

	value := encode(t, NewAuthEvent(LoginFailed, "ada@example.com"))

	_, err := p.Process(context.Background(), value)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)

	fail = false
	_, err = p.Process(context.Background(), value)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestProcessor_Malformed(t *testing.T) {
	p := NewProcessor(kv.NewMemoryStore(), func(context.Context, AuthEvent) error {
		t.Fatal("handler must not run")
		return nil
	}, logger.Discard())

	for name, value := range map[string]string{
		"not json":   "{",
		"missing id": `{"type":"auth.logout"}`,
		"no type":    `{"id":"e-1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Process(context.Background(), []byte(value))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestActivity_Record(t *testing.T) {
	ctx := context.Background()
	a := NewActivity(kv.NewMemoryStore(), 0, logger.Discard())

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Record(ctx, NewAuthEvent(LoginFailed, "ada@example.com")))
	}
	n, err := a.FailedLogins(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, ok, err := a.LastLogin(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, ok)

	success := NewAuthEvent(LoginSucceeded, "ada@example.com")
	success.UserID = "u-1"
	success.OccurredAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, a.Record(ctx, success))

	at, ok, err := a.LastLogin(ctx, "u-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, at.Equal(success.OccurredAt))

	n, err = a.FailedLogins(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestActivity_ConcurrentFailedLogins(t *testing.T) {
	ctx := context.Background()
	a := NewActivity(kv.NewMemoryStore(), time.Hour, logger.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Record(ctx, NewAuthEvent(LoginFailed, "ada@example.com")))
		}()
	}
	wg.Wait()

	n, err := a.FailedLogins(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestActivity_IgnoresOtherEvents(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	a := NewActivity(store, 0, logger.Discard())

	require.NoError(t, a.Record(ctx, NewAuthEvent(LoggedOut, "ada@example.com")))

	exists, err := store.Exists(ctx, lastLoginKey("ada@example.com"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		attempts := 0
		err := retry(context.Background(), 3, time.Millisecond, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up", func(t *testing.T) {
		attempts := 0
		err := retry(context.Background(), 2, time.Millisecond, func() error {
			attempts++
			return errors.New("transient")
		})
		assert.ErrorContains(t, err, "max retries exceeded")
		assert.Equal(t, 2, attempts)
	})

	t.Run("stop ends early", func(t *testing.T) {
		attempts := 0
		err := retry(context.Background(), 5, time.Millisecond, func() error {
			attempts++
			return stop{ErrMalformed}
		})
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Equal(t, 1, attempts)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retry(ctx, 3, time.Hour, func() error { return errors.New("transient") })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
