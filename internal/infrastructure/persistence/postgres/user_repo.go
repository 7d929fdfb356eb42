package postgres

import (
	"context"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new user repository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// GetByID returns a user together with its streak state.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*user.User, error) {
	var u user.User
	var lastActive *time.Time

	err := r.conn.QueryRow(ctx, `
		SELECT u.id, u.company_id, u.display_name,
		       COALESCE(s.current_streak, 0),
		       COALESCE(s.longest_streak, 0),
		       s.last_active_date
		FROM users u
		LEFT JOIN streaks s ON s.user_id = u.id
		WHERE u.id = $1
	`, userID).Scan(&u.ID, &u.CompanyID, &u.DisplayName,
		&u.Streak.CurrentStreak, &u.Streak.LongestStreak, &lastActive)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, shared.WrapError("user", "GetByID", shared.ErrExternalService, "user query failed", err)
	}

	if lastActive != nil {
		u.Streak.LastActiveDate = *lastActive
	}

	return &u, nil
}

// GetStreak returns the streak state of a user.
// A user without a streak row gets a zero state, not an error.
func (r *UserRepository) GetStreak(ctx context.Context, userID string) (user.StreakState, error) {
	var s user.StreakState
	var lastActive *time.Time

	err := r.conn.QueryRow(ctx, `
		SELECT current_streak, longest_streak, last_active_date
		FROM streaks
		WHERE user_id = $1
	`, userID).Scan(&s.CurrentStreak, &s.LongestStreak, &lastActive)
	if err != nil {
		if IsNoRows(err) {
			return user.StreakState{}, nil
		}
		return user.StreakState{}, shared.WrapError("user", "GetStreak", shared.ErrExternalService, "streak query failed", err)
	}

	if lastActive != nil {
		s.LastActiveDate = *lastActive
	}

	return s, nil
}

// SaveStreak upserts the streak state of a user.
func (r *UserRepository) SaveStreak(ctx context.Context, userID string, streak user.StreakState) error {
	var lastActive *time.Time
	if !streak.LastActiveDate.IsZero() {
		d := streak.LastActiveDate
		lastActive = &d
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO streaks (user_id, current_streak, longest_streak, last_active_date, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_active_date = EXCLUDED.last_active_date,
			updated_at = NOW()
	`, userID, streak.CurrentStreak, streak.LongestStreak, lastActive)
	if err != nil {
		return shared.WrapError("user", "SaveStreak", shared.ErrExternalService, "streak upsert failed", err)
	}

	return nil
}
