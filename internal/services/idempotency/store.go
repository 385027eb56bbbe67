package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "thumbnail:event:"

// Store remembers which event IDs were already handled.
// Implementations must be safe for concurrent use.
type Store interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	Add(ctx context.Context, eventID string) error
}

// RedisStore keeps handled event IDs in Redis with a TTL, so every worker and
// webhook replica sees the same history.
type RedisStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redisClient: client, ttl: ttl}
}

func (s *RedisStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.redisClient.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Add(ctx context.Context, eventID string) error {
	if err := s.redisClient.Set(ctx, keyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency record: %w", err)
	}
	return nil
}

// HealthCheck reports the Redis connection status.
func (s *RedisStore) HealthCheck(ctx context.Context) string {
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

// MemoryStore is a single-process Store. Entries expire lazily after ttl.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	ttl     time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
	}
}

func (s *MemoryStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	ts, exists := s.entries[eventID]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}

	if time.Since(ts) > s.ttl {
		s.mu.Lock()
		delete(s.entries, eventID)
		s.mu.Unlock()
		return false, nil
	}

	return true, nil
}

func (s *MemoryStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	s.entries[eventID] = time.Now()
	s.mu.Unlock()
	return nil
}
