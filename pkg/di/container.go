package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-companion-demo/companion/internal/backend"
	"ai-companion-demo/companion/internal/events"
	"ai-companion-demo/companion/internal/session"
	"ai-companion-demo/companion/internal/store"
	"ai-companion-demo/companion/internal/wizard"
	"ai-companion-demo/companion/pkg/config"
	"ai-companion-demo/companion/pkg/health"
	"ai-companion-demo/companion/pkg/jwt"
	"ai-companion-demo/companion/pkg/logger"
	"ai-companion-demo/companion/pkg/resilience"
)

// Container holds all the dependencies for the application
type Container struct {
	Config   *config.Config
	Logger   *logger.Logger
	Backend  *backend.Client
	Drafts   *store.Opened
	Bus      *events.Bus
	Wizard   *wizard.Service
	Sessions *session.Registry
	JWT      *jwt.Service
	Health   *health.Checker
}

// New wires every service from cfg. Secrets must already be resolved into cfg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if log == nil {
		log = logger.GetGlobal()
	}

	drafts, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft store: %w", err)
	}

	client := backend.NewFromConfig(cfg, cfg.Backend.APIKey, nil, log)
	bus := events.NewBus(log)

	wizardSvc := wizard.NewService(client, drafts.Store, bus, log, wizard.Config{
		DemoFallback:   cfg.Wizard.DemoFallback,
		RedirectAfter:  cfg.Wizard.RedirectAfter,
		CandidateCount: cfg.Backend.AvatarCandidateCount,
	})

	sessions := session.NewRegistry(client, bus, log, session.Config{
		FallbackDelay:   cfg.Session.FallbackDelay,
		HistoryPageSize: cfg.Session.HistoryPageSize,
		DemoFallback:    cfg.Session.DemoFallback,
	}, cfg.Session.IdleTTL, cfg.Session.SweepInterval)

	checker := health.NewChecker(log, cfg.Backend.HealthCheckInterval)
	registerChecks(checker, cfg, client, drafts)

	return &Container{
		Config:   cfg,
		Logger:   log,
		Backend:  client,
		Drafts:   drafts,
		Bus:      bus,
		Wizard:   wizardSvc,
		Sessions: sessions,
		JWT:      jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, 24*time.Hour),
		Health:   checker,
	}, nil
}

func registerChecks(checker *health.Checker, cfg *config.Config, client *backend.Client, drafts *store.Opened) {
	checker.RegisterPingCheck("draft_store", true, drafts.Ping)
	checker.RegisterPingCheck("backend", false, func(ctx context.Context) error {
		return client.Ping(ctx, cfg.Backend.HealthCheckPath)
	})
	checker.RegisterCheck("backend_circuit", false, func(context.Context) (health.Status, string, error) {
		switch state := client.Breaker().GetState(); state {
		case resilience.StateOpen:
			return health.StatusDegraded, "circuit open, chat runs on fallback replies", nil
		default:
			return health.StatusUp, "circuit " + string(state), nil
		}
	})
}

// Close releases the store, the bus and the session sweeper
func (c *Container) Close() error {
	c.Sessions.Close()
	return errors.Join(c.Bus.Close(), c.Drafts.Close())
}
