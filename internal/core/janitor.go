package core

import (
	"context"
	"time"

	"invoice-engine/internal/logger"
)

// RunJanitor cancels payment attempts left open longer than ttl, once per
// interval, until ctx is done. Sweep errors are logged and the loop goes on.
func RunJanitor(ctx context.Context, payments PaymentService, interval, ttl time.Duration) error {
	log := logger.WithComponent("janitor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Dur("ttl", ttl).Msg("payment janitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("payment janitor stopped")
			return nil
		case now := <-ticker.C:
			if _, err := payments.CancelStaleAttempts(ctx, now.Add(-ttl)); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("stale attempt sweep failed")
			}
		}
	}
}
