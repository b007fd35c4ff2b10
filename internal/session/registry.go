package session

import (
	"time"

	"ai-companion-demo/companion/internal/events"
	"ai-companion-demo/companion/pkg/cache"
	"ai-companion-demo/companion/pkg/logger"
)

// Registry keeps one controller per user and drops idle ones
type Registry struct {
	controllers *cache.Cache[*Controller]
	backend     Backend
	events      events.Publisher
	base        *logger.Logger
	log         *logger.Logger
	cfg         Config
	opts        []Option
}

// NewRegistry creates a registry whose controllers expire after idleTTL without use
func NewRegistry(backend Backend, pub events.Publisher, log *logger.Logger, cfg Config, idleTTL, sweep time.Duration, opts ...Option) *Registry {
	r := &Registry{
		controllers: cache.New[*Controller](cache.Options{
			TTL:             idleTTL,
			CleanupInterval: sweep,
			Sliding:         true,
		}),
		backend: backend,
		events:  pub,
		base:    log,
		log:     log.WithComponent("session_registry"),
		cfg:     cfg,
		opts:    opts,
	}
	r.controllers.SetOnEvicted(func(userID string, _ *Controller) {
		r.log.Debug("Session evicted", "user_id", userID)
	})
	return r
}

// Get returns the user's controller, creating it when absent
func (r *Registry) Get(userID string) *Controller {
	return r.controllers.GetOrCreate(userID, func() *Controller {
		return NewController(userID, r.backend, r.events, r.base, r.cfg, r.opts...)
	})
}

// Drop forgets the user's controller
func (r *Registry) Drop(userID string) {
	r.controllers.Delete(userID)
}

// Len returns the number of tracked sessions
func (r *Registry) Len() int {
	return r.controllers.Count()
}

// Close stops the idle sweeper
func (r *Registry) Close() {
	r.controllers.Stop()
}
