// Package store keeps creation wizard drafts between requests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-companion-demo/companion/internal/models"
	"ai-companion-demo/companion/pkg/config"
	"ai-companion-demo/companion/pkg/logger"
	sharedredis "ai-companion-demo/companion/shared/redis"
)

// ErrNotFound is returned when no draft exists for a key
var ErrNotFound = errors.New("draft not found")

// DraftStore persists wizard drafts by key
type DraftStore interface {
	Load(ctx context.Context, key string) (*models.WizardDraft, error)
	Save(ctx context.Context, key string, draft *models.WizardDraft) error
	Delete(ctx context.Context, key string) error
}

// Drivers accepted by Open
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Opened is a store plus the function that releases its resources
type Opened struct {
	Store DraftStore
	Ping  func(ctx context.Context) error
	Close func() error
}

// Open builds the store selected by cfg.Store.Driver
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Opened, error) {
	ttl := cfg.Store.DraftTTL

	switch cfg.Store.Driver {
	case "", DriverMemory:
		s := NewMemoryStore(ttl)
		return &Opened{
			Store: s,
			Ping:  func(context.Context) error { return nil },
			Close: func() error { return nil },
		}, nil

	case DriverRedis:
		client, err := sharedredis.NewRedisClient(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info("Draft store ready", "driver", DriverRedis, "addr", cfg.Store.RedisURL)
		return &Opened{
			Store: NewRedisStore(client, ttl),
			Ping:  client.Ping,
			Close: client.Close,
		}, nil

	case DriverPostgres:
		db, err := config.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		s := NewGormStore(db, ttl)
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		stopPurge := StartPurger(s, cfg.Store.PurgeInterval, log.WithComponent("draft_purger"))
		log.Info("Draft store ready", "driver", DriverPostgres, "purge_interval", cfg.Store.PurgeInterval)
		return &Opened{
			Store: s,
			Ping:  func(context.Context) error { return config.TestConnection(db) },
			Close: func() error {
				stopPurge()
				return sqlDB.Close()
			},
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
