package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian/internal/shared"
)

const defaultAuditRetention = 90 * 24 * time.Hour

// AuditPruneJob removes audit entries older than the retention window.
type AuditPruneJob struct {
	Audit  *shared.AuditLogger
	Logger *slog.Logger
	clock  func() time.Time
}

// NewAuditPruneJob initialises the audit prune handler.
func NewAuditPruneJob(audit *shared.AuditLogger, logger *slog.Logger) *AuditPruneJob {
	return &AuditPruneJob{
		Audit:  audit,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the prune run.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("audit prune: handler not configured")
	}
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = defaultAuditRetention
	}

	cutoff := j.now().Add(-retention)
	removed, err := j.Audit.Prune(ctx, cutoff)
	if err != nil {
		j.logger().Error("audit prune failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("completed audit prune",
		slog.Time("cutoff", cutoff),
		slog.Int64("removed", removed),
	)
	return nil
}

func (j *AuditPruneJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *AuditPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
