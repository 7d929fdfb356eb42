// Package jobs contains implementations of scheduled jobs for the
// Chrono Performance Hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/notification"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT LEADERBOARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ScopeLister enumerates every scope that has at least one member.
type ScopeLister interface {
	ListScopes(ctx context.Context) ([]leaderboard.Scope, error)
}

// LeaderboardBuilder produces a fully ranked leaderboard for a scope
// and period window.
type LeaderboardBuilder interface {
	Build(ctx context.Context, scope leaderboard.Scope, window period.Window) ([]leaderboard.RankedEntry, error)
}

// SnapshotLeaderboardsJob walks every known scope and period type,
// recomputes the ranked leaderboard, and persists it as a snapshot.
// Snapshots are what the next window compares against for trends, so
// this job is what makes the up/down arrows work at all.
//
// After persisting, the job refreshes the Redis cache and dispatches
// rank change notifications to users who moved enough places.
type SnapshotLeaderboardsJob struct {
	// Dependencies
	scopes     ScopeLister
	builder    LeaderboardBuilder
	snapshots  leaderboard.SnapshotRepository
	cache      leaderboard.Cache
	publisher  shared.EventPublisher
	dispatcher notification.Dispatcher
	resolver   *period.Resolver
	logger     *slog.Logger

	// Configuration
	config SnapshotConfig

	// State
	lastStats atomic.Value // *SnapshotStats
}

// SnapshotConfig contains configuration for the snapshot job.
type SnapshotConfig struct {
	// PeriodTypes are the period types to snapshot on each run.
	PeriodTypes []period.Type

	// ScopeConcurrency is how many scopes are processed in parallel.
	ScopeConcurrency int

	// NotifyRankChanges enables notifications for rank changes.
	NotifyRankChanges bool

	// MinRankChangeForNotification is the minimum number of places a
	// user must move to trigger a notification.
	MinRankChangeForNotification int

	// Timeout is the maximum duration for a full run.
	Timeout time.Duration
}

// DefaultSnapshotConfig returns sensible defaults.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		PeriodTypes: []period.Type{
			period.TypeDaily,
			period.TypeWeekly,
			period.TypeMonthly,
			period.TypeQuarterly,
			period.TypeYearly,
			period.TypeAllTime,
		},
		ScopeConcurrency:             4,
		NotifyRankChanges:            true,
		MinRankChangeForNotification: 3,
		Timeout:                      10 * time.Minute,
	}
}

// SnapshotStats contains statistics from a snapshot run.
type SnapshotStats struct {
	StartedAt         time.Time
	CompletedAt       time.Time
	Duration          time.Duration
	ScopesProcessed   int64
	SnapshotsWritten  int64
	EntriesPersisted  int64
	NotificationsSent int64
	Failures          int64
}

// NewSnapshotLeaderboardsJob creates the snapshot job.
// cache, publisher, and dispatcher may be nil; the corresponding
// side effects are skipped.
func NewSnapshotLeaderboardsJob(
	scopes ScopeLister,
	builder LeaderboardBuilder,
	snapshots leaderboard.SnapshotRepository,
	cache leaderboard.Cache,
	publisher shared.EventPublisher,
	dispatcher notification.Dispatcher,
	resolver *period.Resolver,
	logger *slog.Logger,
	config SnapshotConfig,
) *SnapshotLeaderboardsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ScopeConcurrency <= 0 {
		config.ScopeConcurrency = 4
	}
	if len(config.PeriodTypes) == 0 {
		config.PeriodTypes = DefaultSnapshotConfig().PeriodTypes
	}

	return &SnapshotLeaderboardsJob{
		scopes:     scopes,
		builder:    builder,
		snapshots:  snapshots,
		cache:      cache,
		publisher:  publisher,
		dispatcher: dispatcher,
		resolver:   resolver,
		logger:     logger,
		config:     config,
	}
}

// Name returns the job name.
func (j *SnapshotLeaderboardsJob) Name() string {
	return "snapshot_leaderboards"
}

// Description returns a human-readable description.
func (j *SnapshotLeaderboardsJob) Description() string {
	return "Recomputes and persists ranked leaderboard snapshots for every scope and period"
}

// Run executes the snapshot job.
func (j *SnapshotLeaderboardsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &SnapshotStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	scopes, err := j.scopes.ListScopes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scopes: %w", err)
	}

	j.logger.Info("snapshotting leaderboards",
		"scopes", len(scopes),
		"period_types", len(j.config.PeriodTypes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.ScopeConcurrency)

	for _, scope := range scopes {
		g.Go(func() error {
			j.processScope(gctx, scope, stats)
			atomic.AddInt64(&stats.ScopesProcessed, 1)
			return nil
		})
	}

	// Ошибки отдельных областей не валят весь прогон, поэтому
	// g.Wait() возвращает ошибку только при отмене контекста.
	if err := g.Wait(); err != nil {
		return err
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	j.logger.Info("leaderboard snapshots complete",
		"scopes", stats.ScopesProcessed,
		"snapshots", stats.SnapshotsWritten,
		"entries", stats.EntriesPersisted,
		"notifications", stats.NotificationsSent,
		"failures", stats.Failures,
		"duration", stats.Duration.String(),
	)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("snapshot run cut short: %w", err)
	}
	return nil
}

// LastStats returns statistics from the most recent run, or nil.
func (j *SnapshotLeaderboardsJob) LastStats() *SnapshotStats {
	stats, _ := j.lastStats.Load().(*SnapshotStats)
	return stats
}

// processScope snapshots every configured period type for one scope.
// Failures are logged and counted but never abort the run.
func (j *SnapshotLeaderboardsJob) processScope(ctx context.Context, scope leaderboard.Scope, stats *SnapshotStats) {
	for _, pt := range j.config.PeriodTypes {
		if ctx.Err() != nil {
			return
		}

		if err := j.snapshotOne(ctx, scope, pt, stats); err != nil {
			atomic.AddInt64(&stats.Failures, 1)
			j.logger.Error("scope snapshot failed",
				"scope", scope.ID(),
				"period_type", string(pt),
				"error", err,
			)
		}
	}
}

// snapshotOne rebuilds and persists a single (scope, period type) pair.
func (j *SnapshotLeaderboardsJob) snapshotOne(ctx context.Context, scope leaderboard.Scope, pt period.Type, stats *SnapshotStats) error {
	window, err := j.resolver.Resolve(pt, nil, nil)
	if err != nil {
		return fmt.Errorf("resolve window: %w", err)
	}

	entries, err := j.builder.Build(ctx, scope, window)
	if err != nil {
		return fmt.Errorf("build leaderboard: %w", err)
	}

	if err := j.snapshots.Replace(ctx, scope, window, entries); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	atomic.AddInt64(&stats.SnapshotsWritten, 1)
	atomic.AddInt64(&stats.EntriesPersisted, int64(len(entries)))

	// Прогреваем кеш свежим списком вместо простой инвалидации.
	if j.cache != nil {
		if err := j.cache.SetRanked(ctx, scope, pt, entries); err != nil {
			j.logger.Warn("cache refresh failed",
				"scope", scope.ID(),
				"period_type", string(pt),
				"error", err,
			)
		}
	}

	if j.publisher != nil {
		event := shared.NewSnapshotPersistedEvent(scope.ID(), string(pt), window.Start, len(entries))
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("snapshot event publish failed", "scope", scope.ID(), "error", err)
		}
	}

	j.notifyRankChanges(ctx, scope, pt, entries, stats)

	return nil
}

// notifyRankChanges dispatches notifications for users who moved at
// least MinRankChangeForNotification places since the previous window.
func (j *SnapshotLeaderboardsJob) notifyRankChanges(ctx context.Context, scope leaderboard.Scope, pt period.Type, entries []leaderboard.RankedEntry, stats *SnapshotStats) {
	if !j.config.NotifyRankChanges || j.dispatcher == nil {
		return
	}

	for _, entry := range entries {
		if entry.PreviousRank == nil {
			continue
		}

		oldRank := int(*entry.PreviousRank)
		newRank := int(entry.Rank)
		delta := oldRank - newRank
		if delta < 0 {
			delta = -delta
		}
		if delta < j.config.MinRankChangeForNotification {
			continue
		}

		if j.publisher != nil {
			event := shared.NewRankChangedEvent(entry.UserID, scope.ID(), oldRank, newRank)
			if err := j.publisher.Publish(event); err != nil {
				j.logger.Warn("rank change event publish failed", "user_id", entry.UserID, "error", err)
			}
		}

		n, err := notification.NewRankChangeNotification(
			notification.NotificationID(uuid.NewString()),
			notification.RecipientID(entry.UserID),
			notification.RankChangePayload{
				ScopeID:    scope.ID(),
				PeriodType: string(pt),
				OldRank:    oldRank,
				NewRank:    newRank,
			},
		)
		if err != nil {
			j.logger.Warn("rank change notification build failed", "user_id", entry.UserID, "error", err)
			continue
		}

		if err := j.dispatcher.Dispatch(ctx, n); err != nil {
			j.logger.Warn("rank change notification dispatch failed", "user_id", entry.UserID, "error", err)
			continue
		}

		atomic.AddInt64(&stats.NotificationsSent, 1)
	}
}
