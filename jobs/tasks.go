// Package jobs holds the Asynq task definitions and handlers for
// background work: depleted-batch notifications and the nightly ledger
// integrity scan.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBatchDepleted fires when the ledger drains a batch to zero.
	TaskBatchDepleted = "batch:depleted"
	// TaskIntegrityScan re-checks ledger and BOL invariants against the database.
	TaskIntegrityScan = "ledger:integrity_scan"
)

// BatchDepletedPayload identifies the batch that just hit zero.
type BatchDepletedPayload struct {
	BatchID uuid.UUID `json:"batch_id"`
	Barcode string    `json:"barcode"`
}

// NewBatchDepletedTask constructs an Asynq task.
func NewBatchDepletedTask(payload BatchDepletedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBatchDepleted, data), nil
}

// NewIntegrityScanTask constructs the scheduled integrity scan task.
func NewIntegrityScanTask() *asynq.Task {
	return asynq.NewTask(TaskIntegrityScan, nil)
}

// HandleBatchDepletedTask processes TaskBatchDepleted tasks. Today the
// notification is a structured log line the floor dashboard tails.
func HandleBatchDepletedTask(ctx context.Context, t *asynq.Task) error {
	var payload BatchDepletedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	slog.Default().Info("batch depleted",
		slog.String("batch_id", payload.BatchID.String()),
		slog.String("barcode", payload.Barcode))
	return nil
}
