package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY
// Persists leaderboard rankings keyed by (scope, period type, period
// start). Replace is delete-then-insert inside one transaction; a losing
// concurrent writer retries the whole transaction once.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository implements leaderboard.SnapshotRepository backed by
// PostgreSQL.
type SnapshotRepository struct {
	conn    *Connection
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(conn *Connection, logger *slog.Logger) *SnapshotRepository {
	if logger == nil {
		logger = slog.Default()
	}

	retrier := retry.New(
		retry.WithRetryIf(func(err error) bool {
			return IsUniqueViolation(err) || IsSerializationFailure(err)
		}),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("snapshot replace conflict, retrying",
				"attempt", attempt, "delay", delay, "error", err)
		}),
	)

	return &SnapshotRepository{conn: conn, retrier: retrier, logger: logger}
}

// Replace atomically swaps the snapshot rows of a key.
func (r *SnapshotRepository) Replace(
	ctx context.Context,
	scope leaderboard.Scope,
	window period.Window,
	entries []leaderboard.RankedEntry,
) error {
	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			return r.replaceInTx(ctx, tx, scope, window, entries)
		})
	})
	if err != nil {
		if IsUniqueViolation(err) || IsSerializationFailure(err) {
			return shared.WrapError("leaderboard", "Replace", shared.ErrPersistenceConflict, "snapshot replace lost the race twice", err)
		}
		return shared.WrapError("leaderboard", "Replace", shared.ErrExternalService, "snapshot replace failed", err)
	}
	return nil
}

func (r *SnapshotRepository) replaceInTx(
	ctx context.Context,
	tx pgx.Tx,
	scope leaderboard.Scope,
	window period.Window,
	entries []leaderboard.RankedEntry,
) error {
	records := snapshotRows(scope, window, entries)

	_, err := tx.Exec(ctx, `
		DELETE FROM leaderboard_snapshots
		WHERE scope_id = $1 AND period_type = $2 AND period_start = $3
	`, scope.ID(), string(window.Type), window.Start.UTC())
	if err != nil {
		return fmt.Errorf("delete old snapshot: %w", err)
	}

	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO leaderboard_snapshots
				(scope_id, period_type, period_start, period_end, user_id, rank,
				 score, tasks_completed, total_minutes, points_earned,
				 subprojects_contributed, projects_contributed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			rec.ScopeID,
			rec.PeriodType,
			rec.PeriodStart,
			rec.PeriodEnd,
			rec.UserID,
			rec.Rank,
			rec.PerformanceScore,
			rec.TasksCompleted,
			rec.TotalMinutes,
			rec.PointsEarned,
			rec.SubProjectsContributed,
			rec.ProjectsContributed,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert snapshot row: %w", err)
		}
	}

	return nil
}

// snapshotRows converts ranked entries into persisted snapshot rows.
// PeriodEnd stays nil for open-ended windows.
func snapshotRows(scope leaderboard.Scope, window period.Window, entries []leaderboard.RankedEntry) []leaderboard.SnapshotRecord {
	periodStart := window.Start.UTC()

	var periodEnd *time.Time
	if window.End != nil {
		end := window.End.UTC()
		periodEnd = &end
	}

	records := make([]leaderboard.SnapshotRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, leaderboard.SnapshotRecord{
			ScopeID:                scope.ID(),
			PeriodType:             string(window.Type),
			PeriodStart:            periodStart,
			PeriodEnd:              periodEnd,
			UserID:                 e.UserID,
			Rank:                   int(e.Rank),
			TasksCompleted:         e.TasksCompleted,
			TotalMinutes:           e.TotalMinutes,
			PointsEarned:           e.PointsEarned,
			SubProjectsContributed: e.SubProjectsContributed,
			ProjectsContributed:    e.ProjectsContributed,
			PerformanceScore:       float64(e.PerformanceScore),
		})
	}
	return records
}

// PreviousRanks returns userID -> rank for a window's snapshot.
// A missing snapshot yields an empty map, never an error.
func (r *SnapshotRepository) PreviousRanks(
	ctx context.Context,
	scope leaderboard.Scope,
	window period.Window,
) (map[string]leaderboard.Rank, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, rank
		FROM leaderboard_snapshots
		WHERE scope_id = $1 AND period_type = $2 AND period_start = $3
	`, scope.ID(), string(window.Type), window.Start.UTC())
	if err != nil {
		return nil, shared.WrapError("leaderboard", "PreviousRanks", shared.ErrExternalService, "snapshot query failed", err)
	}
	defer rows.Close()

	ranks := make(map[string]leaderboard.Rank)
	for rows.Next() {
		var userID string
		var rank int
		if err := rows.Scan(&userID, &rank); err != nil {
			return nil, shared.WrapError("leaderboard", "PreviousRanks", shared.ErrExternalService, "snapshot scan failed", err)
		}
		ranks[userID] = leaderboard.Rank(rank)
	}

	return ranks, rows.Err()
}

// PruneBefore deletes snapshots of a scope and period type, keeping only
// the keepPeriods most recent period starts.
func (r *SnapshotRepository) PruneBefore(
	ctx context.Context,
	scope leaderboard.Scope,
	periodType period.Type,
	keepPeriods int,
) (int64, error) {
	if keepPeriods < 0 {
		keepPeriods = 0
	}

	tag, err := r.conn.Exec(ctx, `
		DELETE FROM leaderboard_snapshots
		WHERE scope_id = $1 AND period_type = $2
		  AND period_start NOT IN (
			SELECT DISTINCT period_start
			FROM leaderboard_snapshots
			WHERE scope_id = $1 AND period_type = $2
			ORDER BY period_start DESC
			LIMIT $3
		  )
	`, scope.ID(), string(periodType), keepPeriods)
	if err != nil {
		return 0, shared.WrapError("leaderboard", "PruneBefore", shared.ErrExternalService, "snapshot prune failed", err)
	}

	return tag.RowsAffected(), nil
}
