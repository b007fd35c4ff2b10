package store

import (
	"context"
	"testing"
	"time"

	"ai-companion-demo/companion/internal/models"
	"ai-companion-demo/companion/pkg/config"
	"ai-companion-demo/companion/pkg/logger"
	sharedredis "ai-companion-demo/companion/shared/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func sampleDraft() *models.WizardDraft {
	idx := 2
	d := models.NewWizardDraft()
	d.Step = models.StepNameCharacter
	d.Style = models.StyleCyberpunk
	d.Appearance = "silver hair"
	d.AvatarCandidates = []string{"a.png", "b.png", "c.png", "d.png"}
	d.SelectedAvatarIndex = &idx
	d.AvatarURL = "c.png"
	d.Name = "Nova"
	return d
}

// exerciseStore runs the same contract against every backend
func exerciseStore(t *testing.T, s DraftStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "tab-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	draft := sampleDraft()
	require.NoError(t, s.Save(ctx, "tab-1", draft))

	got, err := s.Load(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, draft.Step, got.Step)
	assert.Equal(t, draft.Style, got.Style)
	assert.Equal(t, draft.AvatarCandidates, got.AvatarCandidates)
	require.NotNil(t, got.SelectedAvatarIndex)
	assert.Equal(t, 2, *got.SelectedAvatarIndex)
	assert.Equal(t, "Nova", got.Name)

	// Overwrite
	draft.Name = "Nyx"
	require.NoError(t, s.Save(ctx, "tab-1", draft))
	got, err = s.Load(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, "Nyx", got.Name)

	// Keys are isolated
	_, err = s.Load(ctx, "tab-2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "tab-1"))
	_, err = s.Load(ctx, "tab-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error
	assert.NoError(t, s.Delete(ctx, "tab-1"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	draft := sampleDraft()
	require.NoError(t, s.Save(ctx, "k", draft))
	draft.AvatarCandidates[0] = "mutated"

	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.AvatarCandidates[0])

	got.Name = "changed"
	again, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "Nova", again.Name)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(20 * time.Millisecond)

	require.NoError(t, s.Save(ctx, "k", sampleDraft()))
	time.Sleep(50 * time.Millisecond)

	_, err := s.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_MemoryDefault(t *testing.T) {
	cfg := config.Load()
	cfg.Store.Driver = ""

	opened, err := Open(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, opened.Store)
	assert.NoError(t, opened.Ping(context.Background()))
	assert.NoError(t, opened.Close())
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := config.Load()
	cfg.Store.Driver = "etcd"

	_, err := Open(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := sharedredis.NewRedisClient(host + ":" + port.Port())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, NewRedisStore(client, time.Hour))
}

func TestGormStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("companion_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := config.OpenDB(dsn, 5, false)
	require.NoError(t, err)

	s := NewGormStore(db, time.Hour)
	require.NoError(t, s.Migrate(ctx))

	exerciseStore(t, s)

	t.Run("expired drafts are hidden and purged", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "old", sampleDraft()))
		s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { s.now = time.Now }()

		_, err := s.Load(ctx, "old")
		assert.ErrorIs(t, err, ErrNotFound)

		n, err := s.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("purger removes expired rows in the background", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "stale", sampleDraft()))
		s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { s.now = time.Now }()

		stop := StartPurger(s, 10*time.Millisecond, logger.NewNop())
		defer stop()

		assert.Eventually(t, func() bool {
			var count int64
			s.db.Model(&DraftRecord{}).Where("key = ?", "stale").Count(&count)
			return count == 0
		}, 5*time.Second, 20*time.Millisecond)
	})
}
