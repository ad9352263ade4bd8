package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	SessionScopeGlobal = "global"
	SessionScopeUser   = "user"
)

var (
	ErrSessionActive = errors.New("session already active")
	ErrNoSession     = errors.New("no active session")
)

// SessionGate admits at most one active session per key. Acquire and
// Release are each a single atomic check-then-set.
type SessionGate interface {
	// Acquire marks key active, or returns ErrSessionActive.
	Acquire(ctx context.Context, key string) error
	// Release marks key inactive, or returns ErrNoSession.
	Release(ctx context.Context, key string) error
}

// SessionKey maps a username onto a gate key for the configured scope.
// In global scope every user shares one key.
func SessionKey(scope, username string) string {
	if scope == SessionScopeUser {
		return "user:" + username
	}
	return SessionScopeGlobal
}

type MemorySessionGate struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewMemorySessionGate() *MemorySessionGate {
	return &MemorySessionGate{active: make(map[string]struct{})}
}

func (g *MemorySessionGate) Acquire(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[key]; ok {
		return ErrSessionActive
	}
	g.active[key] = struct{}{}
	return nil
}

func (g *MemorySessionGate) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[key]; !ok {
		return ErrNoSession
	}
	delete(g.active, key)
	return nil
}

// RedisSessionGate keeps the active keys in Redis. Each key expires with the
// token lifetime.
type RedisSessionGate struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisSessionGate(client redis.UniversalClient, ttl time.Duration) *RedisSessionGate {
	return &RedisSessionGate{client: client, ttl: ttl}
}

func (g *RedisSessionGate) Acquire(ctx context.Context, key string) error {
	ok, err := g.client.SetNX(ctx, sessionKey(key), "1", g.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	if !ok {
		return ErrSessionActive
	}
	return nil
}

func (g *RedisSessionGate) Release(ctx context.Context, key string) error {
	n, err := g.client.Del(ctx, sessionKey(key)).Result()
	if err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	if n == 0 {
		return ErrNoSession
	}
	return nil
}

func sessionKey(key string) string {
	return "bms:session:" + key
}
