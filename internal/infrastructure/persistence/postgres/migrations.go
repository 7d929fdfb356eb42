package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrMigrationFailed wraps any failure to apply or roll back a migration.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned schema change. DownSQL may be empty for
// migrations that cannot be reversed.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrator applies the embedded migrations in version order. Applied versions
// are recorded in the schema_migrations table, so Migrate is idempotent and
// safe to run on every startup.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator builds a migrator over the embedded migration set.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("%w: create version table: %v", ErrMigrationFailed, err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%w: read applied versions: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("%w: scan applied version: %v", ErrMigrationFailed, err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

// Migrate applies every pending migration, each inside its own transaction
// together with its schema_migrations record.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(m.migrations))
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, mig := range pending {
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: migration %d has no up SQL", ErrMigrationFailed, mig.Version)
		}
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}

	last := 0
	for version := range applied {
		if version > last {
			last = version
		}
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil || target.DownSQL == "" {
		return fmt.Errorf("%w: no down SQL for version %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, target.DownSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, last)
		return err
	})
}

// GetMigrations returns the embedded migration set in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_users_and_streaks", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_activity_read_model", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_snapshots_and_achievements", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS AND STREAKS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users and streaks tables
-- Version: 001

CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    company_id UUID NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_company_id ON users(company_id);

-- Streak state, one row per user. last_active_date is date-only;
-- streak counting never looks at the time of day.
CREATE TABLE IF NOT EXISTS streaks (
    user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_active_date DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND longest_streak >= current_streak)
);
`

const migration001Down = `
DROP TABLE IF EXISTS streaks;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACTIVITY READ MODEL
// Tables fed by the time-tracking platform. The hub only reads them.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create activity read model tables
-- Version: 002

-- Completed tasks. points_earned is the platform's task reward.
CREATE TABLE IF NOT EXISTS tasks (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    company_id UUID NOT NULL,
    project_id UUID NOT NULL,
    subproject_id UUID,
    points_earned INTEGER NOT NULL DEFAULT 0,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_points CHECK (points_earned >= 0)
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_completed ON tasks(user_id, completed_at);
CREATE INDEX IF NOT EXISTS idx_tasks_company_completed ON tasks(company_id, completed_at);
CREATE INDEX IF NOT EXISTS idx_tasks_project_completed ON tasks(project_id, completed_at);
CREATE INDEX IF NOT EXISTS idx_tasks_subproject_completed ON tasks(subproject_id, completed_at) WHERE subproject_id IS NOT NULL;

-- Tracked time sessions.
CREATE TABLE IF NOT EXISTS time_entries (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    company_id UUID NOT NULL,
    project_id UUID NOT NULL,
    subproject_id UUID,
    minutes INTEGER NOT NULL,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_minutes CHECK (minutes >= 0)
);

CREATE INDEX IF NOT EXISTS idx_time_entries_user_started ON time_entries(user_id, started_at);
CREATE INDEX IF NOT EXISTS idx_time_entries_company_started ON time_entries(company_id, started_at);
CREATE INDEX IF NOT EXISTS idx_time_entries_project_started ON time_entries(project_id, started_at);

-- Scope membership: which users belong to which company/project/subproject.
CREATE TABLE IF NOT EXISTS memberships (
    id SERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    company_id UUID NOT NULL,
    project_id UUID,
    subproject_id UUID,

    UNIQUE(user_id, company_id, project_id, subproject_id)
);

CREATE INDEX IF NOT EXISTS idx_memberships_company ON memberships(company_id);
CREATE INDEX IF NOT EXISTS idx_memberships_project ON memberships(project_id) WHERE project_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_memberships_subproject ON memberships(subproject_id) WHERE subproject_id IS NOT NULL;
`

const migration002Down = `
DROP TABLE IF EXISTS memberships;
DROP TABLE IF EXISTS time_entries;
DROP TABLE IF EXISTS tasks;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: LEADERBOARD SNAPSHOTS AND ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create leaderboard snapshots and achievements
-- Version: 003

-- Persisted ranking per (scope, period type, period start). Replacing a
-- snapshot deletes and reinserts all rows of the key in one transaction.
-- period_end is NULL for open-ended (ALL_TIME) windows.
CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
    id BIGSERIAL PRIMARY KEY,
    scope_id VARCHAR(120) NOT NULL,
    period_type VARCHAR(20) NOT NULL,
    period_start TIMESTAMP WITH TIME ZONE NOT NULL,
    period_end TIMESTAMP WITH TIME ZONE,
    user_id UUID NOT NULL,
    rank INTEGER NOT NULL,
    score DECIMAL(5,1) NOT NULL,
    tasks_completed INTEGER NOT NULL DEFAULT 0,
    total_minutes INTEGER NOT NULL DEFAULT 0,
    points_earned INTEGER NOT NULL DEFAULT 0,
    subprojects_contributed INTEGER NOT NULL DEFAULT 0,
    projects_contributed INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_rank CHECK (rank >= 1),
    CONSTRAINT valid_score CHECK (score >= 0 AND score <= 100),
    UNIQUE(scope_id, period_type, period_start, user_id)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_key ON leaderboard_snapshots(scope_id, period_type, period_start);
CREATE INDEX IF NOT EXISTS idx_snapshots_user ON leaderboard_snapshots(user_id);

-- Earned achievements, at most one row per (user, type).
CREATE TABLE IF NOT EXISTS achievements (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    company_id UUID NOT NULL,
    achievement_type VARCHAR(50) NOT NULL,
    title VARCHAR(100) NOT NULL,
    description VARCHAR(200) NOT NULL,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(user_id, achievement_type)
);

CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id);
CREATE INDEX IF NOT EXISTS idx_achievements_company ON achievements(company_id);
`

const migration003Down = `
DROP TABLE IF EXISTS achievements;
DROP TABLE IF EXISTS leaderboard_snapshots;
`
