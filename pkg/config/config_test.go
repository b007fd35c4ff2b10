package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 1500*time.Millisecond, cfg.Session.FallbackDelay)
	assert.Equal(t, 2500*time.Millisecond, cfg.Wizard.RedirectAfter)
	assert.True(t, cfg.Wizard.DemoFallback)
	assert.Equal(t, 50, cfg.Session.HistoryPageSize)
	assert.Equal(t, 4, cfg.Backend.AvatarCandidateCount)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("CHAT_FALLBACK_DELAY", "10ms")
	t.Setenv("WIZARD_DEMO_FALLBACK", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT", "2.5")
	t.Setenv("CHAT_HISTORY_PAGE_SIZE", "not-a-number")

	cfg := Load()

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, 10*time.Millisecond, cfg.Session.FallbackDelay)
	assert.False(t, cfg.Wizard.DemoFallback)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.Security.RateLimit)
	assert.Equal(t, 50, cfg.Session.HistoryPageSize, "invalid values fall back to the default")
}

func TestDSN(t *testing.T) {
	cfg := Load()
	cfg.Store.Database.Host = "db"
	cfg.Store.Database.Name = "drafts"
	assert.Contains(t, cfg.DSN(), "host=db")
	assert.Contains(t, cfg.DSN(), "dbname=drafts")
}
