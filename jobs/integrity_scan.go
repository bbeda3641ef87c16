package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntegrityScanJob repairs permission rows that drifted out of shape:
// rows whose role no longer exists, and rows that keep action flags set
// while the view type forbids any visibility.
type IntegrityScanJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewIntegrityScanJob initialises the integrity scan handler.
func NewIntegrityScanJob(pool *pgxpool.Pool, logger *slog.Logger) *IntegrityScanJob {
	return &IntegrityScanJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity scan.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	logger := j.logger().With(slog.Bool("dry_run", payload.DryRun))
	logger.Info("starting permission integrity scan")

	orphans, stale, err := j.scan(ctx, payload.DryRun)
	if err != nil {
		logger.Error("integrity scan failed", slog.Any("error", err))
		return err
	}

	logger.Info("completed permission integrity scan",
		slog.Int64("orphaned_rows", orphans),
		slog.Int64("stale_flags", stale),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *IntegrityScanJob) scan(ctx context.Context, dryRun bool) (int64, int64, error) {
	if dryRun {
		var orphans, stale int64
		err := j.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_permissions rp WHERE NOT EXISTS (SELECT 1 FROM roles r WHERE r.id = rp.role_id)`).Scan(&orphans)
		if err != nil {
			return 0, 0, err
		}
		err = j.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_permissions WHERE view_type = 'none' AND (can_create OR can_edit OR can_delete)`).Scan(&stale)
		if err != nil {
			return 0, 0, err
		}
		return orphans, stale, nil
	}

	tag, err := j.Pool.Exec(ctx, `DELETE FROM role_permissions rp WHERE NOT EXISTS (SELECT 1 FROM roles r WHERE r.id = rp.role_id)`)
	if err != nil {
		return 0, 0, err
	}
	orphans := tag.RowsAffected()

	tag, err = j.Pool.Exec(ctx, `UPDATE role_permissions SET can_create = FALSE, can_edit = FALSE, can_delete = FALSE WHERE view_type = 'none' AND (can_create OR can_edit OR can_delete)`)
	if err != nil {
		return orphans, 0, err
	}
	return orphans, tag.RowsAffected(), nil
}

func (j *IntegrityScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
