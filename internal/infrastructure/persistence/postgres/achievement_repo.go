package postgres

import (
	"context"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/achievement"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY
// At most one row per (user, type) enforced by a unique constraint.
// Inserting an already earned achievement is a silent no-op, which makes
// concurrent awarding idempotent.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository backed by
// PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// Save persists an achievement. Returns created=false when the user
// already earned this type.
func (r *AchievementRepository) Save(ctx context.Context, a achievement.Achievement) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO achievements (user_id, company_id, achievement_type, title, description, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, achievement_type) DO NOTHING
	`, a.UserID, a.CompanyID, string(a.Type), a.Title, a.Description, a.EarnedAt)
	if err != nil {
		return false, shared.WrapError("achievement", "Save", shared.ErrExternalService, "achievement insert failed", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListEarnedTypes returns the set of achievement types a user holds.
func (r *AchievementRepository) ListEarnedTypes(ctx context.Context, userID string) (map[achievement.Type]bool, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT achievement_type FROM achievements WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, shared.WrapError("achievement", "ListEarnedTypes", shared.ErrExternalService, "achievement query failed", err)
	}
	defer rows.Close()

	earned := make(map[achievement.Type]bool)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, shared.WrapError("achievement", "ListEarnedTypes", shared.ErrExternalService, "achievement scan failed", err)
		}
		earned[achievement.Type(t)] = true
	}

	return earned, rows.Err()
}

// ListByUser returns all achievements of a user, newest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]achievement.Achievement, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, company_id, achievement_type, title, description, earned_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY earned_at DESC
	`, userID)
	if err != nil {
		return nil, shared.WrapError("achievement", "ListByUser", shared.ErrExternalService, "achievement query failed", err)
	}
	defer rows.Close()

	var out []achievement.Achievement
	for rows.Next() {
		var a achievement.Achievement
		var typ string
		if err := rows.Scan(&a.UserID, &a.CompanyID, &typ, &a.Title, &a.Description, &a.EarnedAt); err != nil {
			return nil, shared.WrapError("achievement", "ListByUser", shared.ErrExternalService, "achievement scan failed", err)
		}
		a.Type = achievement.Type(typ)
		out = append(out, a)
	}

	return out, rows.Err()
}
