package postgres

import (
	"context"
	"fmt"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/achievement"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS READER
// Aggregates the platform's read model tables (tasks, time_entries,
// memberships) into per-user metrics. Implements both
// leaderboard.MetricsReader and achievement.CounterReader.
// ══════════════════════════════════════════════════════════════════════════════

// MetricsReader reads activity aggregates from PostgreSQL.
type MetricsReader struct {
	conn *Connection
}

// NewMetricsReader creates a new metrics reader.
func NewMetricsReader(conn *Connection) *MetricsReader {
	return &MetricsReader{conn: conn}
}

// scopeColumn maps a scope kind to its read model column.
func scopeColumn(scope leaderboard.Scope) (column, value string) {
	switch scope.Kind {
	case leaderboard.ScopeProject:
		return "project_id", scope.ProjectID
	case leaderboard.ScopeSubProject:
		return "subproject_id", scope.SubProjectID
	default:
		return "company_id", scope.CompanyID
	}
}

// GetUserMetrics aggregates one user's activity inside a scope and window.
func (r *MetricsReader) GetUserMetrics(
	ctx context.Context,
	scope leaderboard.Scope,
	userID string,
	window period.Window,
) (leaderboard.UserMetrics, error) {
	m := leaderboard.UserMetrics{UserID: userID}

	// Streak is window-independent state.
	err := r.conn.QueryRow(ctx, `
		SELECT COALESCE(s.current_streak, 0)
		FROM users u
		LEFT JOIN streaks s ON s.user_id = u.id
		WHERE u.id = $1
	`, userID).Scan(&m.CurrentStreak)
	if err != nil {
		if IsNoRows(err) {
			return leaderboard.UserMetrics{}, shared.ErrUserNotFound
		}
		return leaderboard.UserMetrics{}, shared.WrapError("leaderboard", "ReadMetrics", shared.ErrExternalService, "user lookup failed", err)
	}

	column, value := scopeColumn(scope)

	// Tasks: count, points and distinct projects/subprojects touched.
	taskQuery := fmt.Sprintf(`
		SELECT COUNT(*),
		       COALESCE(SUM(points_earned), 0),
		       COUNT(DISTINCT subproject_id) FILTER (WHERE subproject_id IS NOT NULL),
		       COUNT(DISTINCT project_id)
		FROM tasks
		WHERE user_id = $1 AND %s = $2 AND completed_at >= $3
	`, column)
	taskArgs := []interface{}{userID, value, window.Start.UTC()}
	if window.End != nil {
		taskQuery += " AND completed_at < $4"
		taskArgs = append(taskArgs, window.End.UTC())
	}

	err = r.conn.QueryRow(ctx, taskQuery, taskArgs...).Scan(
		&m.TasksCompleted, &m.PointsEarned, &m.SubProjectsContributed, &m.ProjectsContributed)
	if err != nil {
		return leaderboard.UserMetrics{}, shared.WrapError("leaderboard", "ReadMetrics", shared.ErrExternalService, "task aggregation failed", err)
	}

	// Tracked minutes.
	timeQuery := fmt.Sprintf(`
		SELECT COALESCE(SUM(minutes), 0)
		FROM time_entries
		WHERE user_id = $1 AND %s = $2 AND started_at >= $3
	`, column)
	timeArgs := []interface{}{userID, value, window.Start.UTC()}
	if window.End != nil {
		timeQuery += " AND started_at < $4"
		timeArgs = append(timeArgs, window.End.UTC())
	}

	if err := r.conn.QueryRow(ctx, timeQuery, timeArgs...).Scan(&m.TotalMinutes); err != nil {
		return leaderboard.UserMetrics{}, shared.WrapError("leaderboard", "ReadMetrics", shared.ErrExternalService, "time aggregation failed", err)
	}

	// Narrowed scopes count as exactly one project by definition.
	if scope.Kind != leaderboard.ScopeCompany {
		m.ProjectsContributed = min(m.ProjectsContributed, 1)
	}

	return m, nil
}

// ListScopeUsers returns the IDs of all members of a scope.
// Scopes exist only through memberships, so a scope with zero membership
// rows is an unknown scope and reports shared.ErrScopeNotFound.
func (r *MetricsReader) ListScopeUsers(ctx context.Context, scope leaderboard.Scope) ([]string, error) {
	column, value := scopeColumn(scope)

	query := fmt.Sprintf(`
		SELECT DISTINCT user_id FROM memberships WHERE %s = $1
	`, column)

	rows, err := r.conn.Query(ctx, query, value)
	if err != nil {
		return nil, shared.WrapError("leaderboard", "ListScopeUsers", shared.ErrExternalService, "membership query failed", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("leaderboard", "ListScopeUsers", shared.ErrExternalService, "membership scan failed", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("leaderboard", "ListScopeUsers", shared.ErrExternalService, "membership iteration failed", err)
	}

	if len(users) == 0 {
		return nil, shared.ErrScopeNotFound
	}

	return users, nil
}

// LifetimeCounters returns a user's all-time counters for achievement
// evaluation.
func (r *MetricsReader) LifetimeCounters(ctx context.Context, userID string) (achievement.Counters, error) {
	c := achievement.Counters{UserID: userID}

	err := r.conn.QueryRow(ctx, `
		SELECT u.company_id, COALESCE(s.current_streak, 0)
		FROM users u
		LEFT JOIN streaks s ON s.user_id = u.id
		WHERE u.id = $1
	`, userID).Scan(&c.CompanyID, &c.CurrentStreak)
	if err != nil {
		if IsNoRows(err) {
			return achievement.Counters{}, shared.ErrUserNotFound
		}
		return achievement.Counters{}, shared.WrapError("achievement", "LifetimeCounters", shared.ErrExternalService, "user lookup failed", err)
	}

	err = r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks WHERE user_id = $1
	`, userID).Scan(&c.TasksCompleted)
	if err != nil {
		return achievement.Counters{}, shared.WrapError("achievement", "LifetimeCounters", shared.ErrExternalService, "task count failed", err)
	}

	err = r.conn.QueryRow(ctx, `
		SELECT COALESCE(SUM(minutes), 0) FROM time_entries WHERE user_id = $1
	`, userID).Scan(&c.TotalMinutes)
	if err != nil {
		return achievement.Counters{}, shared.WrapError("achievement", "LifetimeCounters", shared.ErrExternalService, "minutes sum failed", err)
	}

	return c, nil
}

// ListScopes перечисляет все области, известные таблице memberships:
// каждую компанию, каждый проект и каждый подпроект с участниками.
// Снапшот-джоба обходит именно этот список.
func (r *MetricsReader) ListScopes(ctx context.Context) ([]leaderboard.Scope, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT DISTINCT company_id, project_id, subproject_id
		FROM memberships
		ORDER BY company_id, project_id, subproject_id
	`)
	if err != nil {
		return nil, shared.WrapError("leaderboard", "ListScopes", shared.ErrExternalService, "membership scan failed", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var scopes []leaderboard.Scope

	add := func(s leaderboard.Scope) {
		if id := s.ID(); !seen[id] {
			seen[id] = true
			scopes = append(scopes, s)
		}
	}

	for rows.Next() {
		var companyID string
		var projectID, subProjectID *string
		if err := rows.Scan(&companyID, &projectID, &subProjectID); err != nil {
			return nil, shared.WrapError("leaderboard", "ListScopes", shared.ErrExternalService, "membership row scan failed", err)
		}

		add(leaderboard.CompanyScope(companyID))
		if projectID != nil && *projectID != "" {
			add(leaderboard.ProjectScope(companyID, *projectID))
			if subProjectID != nil && *subProjectID != "" {
				add(leaderboard.SubProjectScope(companyID, *projectID, *subProjectID))
			}
		}
	}

	return scopes, rows.Err()
}
