package store

import (
	"context"
	"time"

	"ai-companion-demo/companion/internal/models"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps drafts in process memory. Drafts vanish on restart,
// which matches the tab-scoped lifetime of a wizard.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore expires drafts after ttl and purges them every ttl/4
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{cache: cache.New(ttl, ttl/4)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*models.WizardDraft, error) {
	if x, found := s.cache.Get(key); found {
		return x.(*models.WizardDraft).Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Save(_ context.Context, key string, draft *models.WizardDraft) error {
	s.cache.Set(key, draft.Clone(), cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
