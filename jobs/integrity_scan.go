package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/bagline-erp/bagline/internal/jobs"
)

// IntegrityScanJob re-derives the ledger and BOL invariants straight from
// the tables. Findings mean a bug or out-of-band write, never normal
// operation, so each one is logged loudly and counted.
type IntegrityScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIntegrityScanJob initialises the integrity scan handler.
func NewIntegrityScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the integrity scan.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("integrity scan: handler not configured")
	}
	start := time.Now()
	tracker := j.metrics().Track(TaskIntegrityScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting integrity scan")

	bounds, err := j.scanBatchBounds(ctx)
	if err != nil {
		resultErr = err
		return resultErr
	}
	depleted, err := j.scanDepletedStatus(ctx)
	if err != nil {
		resultErr = err
		return resultErr
	}
	totals, err := j.scanBOLTotals(ctx)
	if err != nil {
		resultErr = err
		return resultErr
	}

	logger.Info("completed integrity scan",
		slog.Int("batch_bounds_findings", bounds),
		slog.Int("depleted_status_findings", depleted),
		slog.Int("bol_totals_findings", totals),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

// scanBatchBounds flags batches outside 0 <= current <= starting.
func (j *IntegrityScanJob) scanBatchBounds(ctx context.Context) (int, error) {
	rows, err := j.Pool.Query(ctx, `SELECT id, barcode, starting_quantity, current_quantity
FROM batches
WHERE current_quantity < 0 OR current_quantity > starting_quantity`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id, barcode string
		var starting, current int64
		if err := rows.Scan(&id, &barcode, &starting, &current); err != nil {
			return count, err
		}
		count++
		j.logger().Error("batch quantity out of bounds",
			slog.String("batch_id", id),
			slog.String("barcode", barcode),
			slog.Int64("starting_quantity", starting),
			slog.Int64("current_quantity", current))
	}
	j.metrics().AddFindings("batch_bounds", count)
	return count, rows.Err()
}

// scanDepletedStatus flags batches where status and quantity disagree:
// DEPLETED must hold exactly when current_quantity is zero (SHIPPED, which
// also sits at zero, is exempt).
func (j *IntegrityScanJob) scanDepletedStatus(ctx context.Context) (int, error) {
	rows, err := j.Pool.Query(ctx, `SELECT id, barcode, status, current_quantity
FROM batches
WHERE (current_quantity = 0 AND status NOT IN ('DEPLETED', 'SHIPPED'))
   OR (current_quantity > 0 AND status = 'DEPLETED')`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id, barcode, status string
		var current int64
		if err := rows.Scan(&id, &barcode, &status, &current); err != nil {
			return count, err
		}
		count++
		j.logger().Error("batch status drift",
			slog.String("batch_id", id),
			slog.String("barcode", barcode),
			slog.String("status", status),
			slog.Int64("current_quantity", current))
	}
	j.metrics().AddFindings("depleted_status", count)
	return count, rows.Err()
}

// scanBOLTotals flags BOLs whose stored totals no longer match their lines.
func (j *IntegrityScanJob) scanBOLTotals(ctx context.Context) (int, error) {
	rows, err := j.Pool.Query(ctx, `SELECT o.id, o.bol_number, o.total_bags, o.total_weight_mt, d.bags, d.weight
FROM bols o
JOIN LATERAL (
	SELECT COALESCE(SUM(li.quantity_shipped), 0) AS bags,
		ROUND(COALESCE(SUM(li.quantity_shipped * i.standard_bag_weight), 0)::numeric, 2)::float8 AS weight
	FROM bol_items li
	JOIN batches bt ON bt.id = li.batch_id
	JOIN items i ON i.id = bt.item_id
	WHERE li.bol_id = o.id
) d ON TRUE
WHERE o.total_bags <> d.bags OR ABS(o.total_weight_mt - d.weight) > 0.005`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id, number string
		var storedBags, derivedBags int64
		var storedWeight, derivedWeight float64
		if err := rows.Scan(&id, &number, &storedBags, &storedWeight, &derivedBags, &derivedWeight); err != nil {
			return count, err
		}
		count++
		j.logger().Error("bol totals drift",
			slog.String("bol_id", id),
			slog.String("bol_number", number),
			slog.Int64("stored_bags", storedBags),
			slog.Int64("derived_bags", derivedBags),
			slog.Float64("stored_weight_mt", storedWeight),
			slog.Float64("derived_weight_mt", derivedWeight))
	}
	j.metrics().AddFindings("bol_totals", count)
	return count, rows.Err()
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskIntegrityScan))
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
