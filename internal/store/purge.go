package store

import (
	"context"
	"sync"
	"time"

	"ai-companion-demo/companion/pkg/logger"
)

// Purger deletes expired drafts from a store that does not expire them itself
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// StartPurger calls p.PurgeExpired every interval until stop is called.
// stop waits for a purge in progress to return. A non-positive interval
// disables purging.
func StartPurger(p Purger, interval time.Duration, log *logger.Logger) (stop func()) {
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := p.PurgeExpired(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Warn("Failed to purge expired drafts", "error", err)
					}
					continue
				}
				if n > 0 {
					log.Debug("Purged expired drafts", "count", n)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
