package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRBACIntegrityScan repairs inconsistent permission rows.
	TaskRBACIntegrityScan = "rbac:integrity_scan"
	// TaskAuditPrune trims audit entries past the retention window.
	TaskAuditPrune = "audit:prune"
)

// IntegrityScanPayload configures a permission integrity scan.
type IntegrityScanPayload struct {
	// DryRun reports what would be repaired without touching rows.
	DryRun bool `json:"dry_run"`
}

// AuditPrunePayload configures an audit log prune run.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIntegrityScanTask constructs an Asynq task for the integrity scan.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRBACIntegrityScan, data), nil
}

// NewAuditPruneTask constructs an Asynq task for the audit prune.
func NewAuditPruneTask(payload AuditPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}
