package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/saldo-id/saldo/internal/shared"
)

// Keys only need to outlive the longest plausible client retry window.
const idempotencyRetention = 30 * 24 * time.Hour

// IdempotencyCleanupHandler prunes processed request keys past retention so
// the table does not grow without bound.
func IdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if err := store.Cleanup(ctx, idempotencyRetention); err != nil {
			logger.Error("idempotency cleanup failed", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup finished")
		return nil
	}
}
