package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskComplianceScan runs the compliance rule set over posted documents.
	TaskComplianceScan = "compliance:scan"
	// TaskIdempotencyCleanup prunes processed request keys past retention.
	TaskIdempotencyCleanup = "ledger:idempotency_cleanup"
)

// ComplianceScanPayload carries options for a scan run. Trigger records what
// started the scan so the log line tells cron apart from an operator.
type ComplianceScanPayload struct {
	Trigger string `json:"trigger"`
}

// NewComplianceScanTask constructs an Asynq task.
func NewComplianceScanTask(payload ComplianceScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskComplianceScan, data), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task. It carries no
// payload.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
