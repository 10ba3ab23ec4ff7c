package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// AddressStore persists the shareable address of one browsing session.
type AddressStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, address string) error
}

type redisAddressStore struct {
	redisClient *redis.Client
	key         string
}

func NewRedisAddressStore(redisClient *redis.Client, session string) AddressStore {
	return &redisAddressStore{
		redisClient: redisClient,
		key:         "catalog:browser:address:" + session,
	}
}

func (s *redisAddressStore) Load(ctx context.Context) (string, error) {
	val, err := s.redisClient.Get(ctx, s.key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // Nothing saved yet
		}
		return "", fmt.Errorf("failed to load address %s: %w", s.key, err)
	}
	return val, nil
}

func (s *redisAddressStore) Save(ctx context.Context, address string) error {
	err := s.redisClient.Set(ctx, s.key, address, 0).Err() // No expiration
	if err != nil {
		return fmt.Errorf("failed to save address %s: %w", s.key, err)
	}
	return nil
}

type memoryAddressStore struct {
	mu      sync.RWMutex
	address string
}

// NewMemoryAddressStore keeps the address in process, seeded with initial.
func NewMemoryAddressStore(initial string) AddressStore {
	return &memoryAddressStore{address: initial}
}

func (s *memoryAddressStore) Load(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address, nil
}

func (s *memoryAddressStore) Save(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = address
	return nil
}
