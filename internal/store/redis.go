package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-companion-demo/companion/internal/models"
	sharedredis "ai-companion-demo/companion/shared/redis"
)

const redisKeyPrefix = "companion:wizard:draft:"

// RedisStore keeps drafts as JSON values with a TTL
type RedisStore struct {
	client *sharedredis.RedisClient
	ttl    time.Duration
}

func NewRedisStore(client *sharedredis.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string) (*models.WizardDraft, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key)
	if sharedredis.IsNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	var draft models.WizardDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &draft, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, draft *models.WizardDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
