package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "idem:"
	defaultTTL = 24 * time.Hour
)

// Store records keys that were already handled within a scope (for example
// "submit-lead" or "vapi-call-ended").
type Store interface {
	// Claim returns true the first time scope/key is seen and false for
	// every repeat until the key expires.
	Claim(ctx context.Context, scope, key string) (bool, error)
	// Release forgets a claim so the key can be processed again, used when
	// the work guarded by a claim failed.
	Release(ctx context.Context, scope, key string) error
}

// RedisStore claims keys with SET NX and a TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if rdb == nil {
		panic("idempotency: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(scope, key string) string {
	return keyPrefix + scope + ":" + key
}

func (s *RedisStore) Claim(ctx context.Context, scope, key string) (bool, error) {
	if err := validate(scope, key); err != nil {
		return false, err
	}
	ok, err := s.rdb.SetNX(ctx, redisKey(scope, key), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: claim: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, scope, key string) error {
	if err := validate(scope, key); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, redisKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (s *MemoryStore) Claim(_ context.Context, scope, key string) (bool, error) {
	if err := validate(scope, key); err != nil {
		return false, err
	}
	k := redisKey(scope, key)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if expires, ok := s.seen[k]; ok && now.Before(expires) {
		return false, nil
	}
	s.seen[k] = now.Add(s.ttl)
	return true, nil
}

func validate(scope, key string) error {
	if strings.TrimSpace(scope) == "" {
		return errors.New("idempotency: scope required")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("idempotency: key required")
	}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, scope, key string) error {
	if err := validate(scope, key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.seen, redisKey(scope, key))
	s.mu.Unlock()
	return nil
}
