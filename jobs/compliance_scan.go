package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/saldo-id/saldo/internal/compliance"
)

// ComplianceScanHandler adapts the compliance scanner to an Asynq task.
func ComplianceScanHandler(service *compliance.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ComplianceScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		result, err := service.Scan(ctx)
		if err != nil {
			logger.Error("scheduled compliance scan failed",
				slog.String("trigger", payload.Trigger), slog.Any("error", err))
			return err
		}
		logger.Info("scheduled compliance scan finished",
			slog.String("trigger", payload.Trigger),
			slog.Int("found", result.Found),
			slog.Int("inserted", result.Inserted))
		return nil
	}
}
