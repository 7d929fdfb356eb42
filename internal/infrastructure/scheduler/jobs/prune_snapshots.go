package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRUNE SNAPSHOTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// PruneSnapshotsJob enforces snapshot retention. For every scope and
// period type it keeps the N most recent windows and deletes the rest.
// ALL_TIME is excluded: it only ever has one window, and trend
// computation always needs it.
type PruneSnapshotsJob struct {
	scopes    ScopeLister
	snapshots leaderboard.SnapshotRepository
	logger    *slog.Logger
	config    PruneConfig
}

// PruneConfig contains configuration for the prune job.
type PruneConfig struct {
	// KeepPeriods is how many recent windows to retain per period type.
	KeepPeriods int

	// PeriodTypes are the period types subject to retention.
	PeriodTypes []period.Type

	// Timeout is the maximum duration for a full run.
	Timeout time.Duration
}

// DefaultPruneConfig returns sensible defaults.
func DefaultPruneConfig() PruneConfig {
	return PruneConfig{
		KeepPeriods: 12,
		PeriodTypes: []period.Type{
			period.TypeDaily,
			period.TypeWeekly,
			period.TypeMonthly,
			period.TypeQuarterly,
			period.TypeYearly,
		},
		Timeout: 5 * time.Minute,
	}
}

// NewPruneSnapshotsJob creates the retention job.
func NewPruneSnapshotsJob(
	scopes ScopeLister,
	snapshots leaderboard.SnapshotRepository,
	logger *slog.Logger,
	config PruneConfig,
) *PruneSnapshotsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.KeepPeriods <= 0 {
		config.KeepPeriods = DefaultPruneConfig().KeepPeriods
	}
	if len(config.PeriodTypes) == 0 {
		config.PeriodTypes = DefaultPruneConfig().PeriodTypes
	}

	return &PruneSnapshotsJob{
		scopes:    scopes,
		snapshots: snapshots,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *PruneSnapshotsJob) Name() string {
	return "prune_snapshots"
}

// Description returns a human-readable description.
func (j *PruneSnapshotsJob) Description() string {
	return "Deletes leaderboard snapshots beyond the configured retention window"
}

// Run executes the prune job.
func (j *PruneSnapshotsJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	scopes, err := j.scopes.ListScopes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scopes: %w", err)
	}

	var totalDeleted int64
	var failures int

	for _, scope := range scopes {
		for _, pt := range j.config.PeriodTypes {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			deleted, err := j.snapshots.PruneBefore(ctx, scope, pt, j.config.KeepPeriods)
			if err != nil {
				failures++
				j.logger.Error("snapshot prune failed",
					"scope", scope.ID(),
					"period_type", string(pt),
					"error", err,
				)
				continue
			}

			totalDeleted += deleted
		}
	}

	j.logger.Info("snapshot retention enforced",
		"scopes", len(scopes),
		"keep_periods", j.config.KeepPeriods,
		"rows_deleted", totalDeleted,
		"failures", failures,
	)

	if failures > 0 {
		return fmt.Errorf("prune completed with %d failures", failures)
	}
	return nil
}
