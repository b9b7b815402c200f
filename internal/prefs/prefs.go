// Package prefs persists the visitor's language choice, the only
// state the widget keeps across sessions. Conversation and
// appointment state stay in memory and die with the page.
package prefs

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const languageKey = "booking_widget:language"

// Store reads and writes the persisted language preference. An empty
// language with a nil error means no preference was ever saved.
type Store interface {
	Language(ctx context.Context) (string, error)
	SetLanguage(ctx context.Context, lang string) error
}

// RedisStore persists preferences in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed preference store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Language(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, languageKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("prefs: get language: %w", err)
	}
	return val, nil
}

func (s *RedisStore) SetLanguage(ctx context.Context, lang string) error {
	if err := s.client.Set(ctx, languageKey, lang, 0).Err(); err != nil {
		return fmt.Errorf("prefs: set language: %w", err)
	}
	return nil
}

// MemoryStore is the in-process fallback used when no Redis address is
// configured.
type MemoryStore struct {
	mu   sync.RWMutex
	lang string
}

// NewMemoryStore creates an empty in-memory preference store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Language(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang, nil
}

func (s *MemoryStore) SetLanguage(ctx context.Context, lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = lang
	return nil
}
