package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func gates(t *testing.T) map[string]SessionGate {
	_, client := newRedisClient(t)
	return map[string]SessionGate{
		"memory": NewMemorySessionGate(),
		"redis":  NewRedisSessionGate(client, time.Hour),
	}
}

func TestSessionGateLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, gate := range gates(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, gate.Release(ctx, "global"), ErrNoSession)
			require.NoError(t, gate.Acquire(ctx, "global"))
			assert.ErrorIs(t, gate.Acquire(ctx, "global"), ErrSessionActive)
			require.NoError(t, gate.Release(ctx, "global"))
			require.NoError(t, gate.Acquire(ctx, "global"))
		})
	}
}

func TestSessionGateConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	for name, gate := range gates(t) {
		t.Run(name, func(t *testing.T) {
			var wins int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if gate.Acquire(ctx, "race") == nil {
						atomic.AddInt32(&wins, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins)
		})
	}
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, SessionKey(SessionScopeGlobal, "a"), SessionKey(SessionScopeGlobal, "b"))
	assert.NotEqual(t, SessionKey(SessionScopeUser, "a"), SessionKey(SessionScopeUser, "b"))
}

func TestRedisSessionGateExpires(t *testing.T) {
	mr, client := newRedisClient(t)
	gate := NewRedisSessionGate(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx, "global"))
	mr.FastForward(2 * time.Minute)
	assert.NoError(t, gate.Acquire(ctx, "global"))
}

func TestRedisTokenRevoker(t *testing.T) {
	mr, client := newRedisClient(t)
	r := NewRedisTokenRevoker(client)
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Minute))
	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryTokenRevokerIgnoresNonPositiveTTL(t *testing.T) {
	r := NewMemoryTokenRevoker()
	ctx := context.Background()
	require.NoError(t, r.Revoke(ctx, "jti", 0))
	revoked, err := r.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}
