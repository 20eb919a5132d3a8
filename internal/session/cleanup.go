package session

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredDeleter purges sessions past their expiry.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// RunCleanup purges expired sessions every interval until ctx is done.
// Failures are logged and retried on the next tick.
func RunCleanup(ctx context.Context, d ExpiredDeleter, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := d.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("delete expired sessions", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("deleted expired sessions", "count", deleted)
			}
		}
	}
}
