package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore отслеживает уже обработанные события потребителя
type IdempotencyStore interface {
	// MarkProcessed помечает событие обработанным; возвращает false,
	// если событие уже было помечено ранее
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// InMemoryIdempotencyStore реализация IdempotencyStore в памяти
type InMemoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryIdempotencyStore создает новое хранилище в памяти
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		seen: make(map[string]struct{}),
	}
}

// MarkProcessed помечает событие обработанным
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[eventID]; ok {
		return false, nil
	}
	s.seen[eventID] = struct{}{}
	return true, nil
}

// RedisIdempotencyStoreConfig конфигурация Redis хранилища идемпотентности
type RedisIdempotencyStoreConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// DefaultRedisIdempotencyStoreConfig возвращает конфигурацию по умолчанию
func DefaultRedisIdempotencyStoreConfig() RedisIdempotencyStoreConfig {
	return RedisIdempotencyStoreConfig{
		KeyPrefix: "account-service:processed:",
		TTL:       24 * time.Hour,
	}
}

// RedisIdempotencyStore реализация IdempotencyStore поверх Redis.
// SET NX атомарен, поэтому конкурирующие консьюмеры одного события
// получают ровно одно true.
type RedisIdempotencyStore struct {
	client *redis.Client
	config RedisIdempotencyStoreConfig
}

// NewRedisIdempotencyStore создает новое Redis хранилище идемпотентности
func NewRedisIdempotencyStore(client *redis.Client, config RedisIdempotencyStoreConfig) (*RedisIdempotencyStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "account-service:processed:"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &RedisIdempotencyStore{client: client, config: config}, nil
}

// MarkProcessed помечает событие обработанным
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.config.KeyPrefix+eventID, "1", s.config.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event %s: %w", eventID, err)
	}
	return ok, nil
}
