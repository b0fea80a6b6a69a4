package database

import (
	"context"
	"fmt"
	"time"

	"push-relay/internal/common/logger"
)

// Pinger is implemented by every client in this package.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitReady pings p until it answers, doubling the delay between attempts.
// It is used at startup only; request-path operations are never retried.
func WaitReady(ctx context.Context, p Pinger, maxAttempts int, initialDelay time.Duration, log logger.Logger, name string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxAttempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = p.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		if i < maxAttempts-1 {
			log.Warn(fmt.Sprintf("%s not ready, retrying", name), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxAttempts": maxAttempts,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s not ready after %d attempts: %w", name, maxAttempts, err)
}
