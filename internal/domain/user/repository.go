package user

import "context"

// Repository определяет контракт для работы с пользователями.
type Repository interface {
	// GetByID возвращает пользователя по ID.
	// Возвращает shared.ErrUserNotFound, если пользователь не найден.
	GetByID(ctx context.Context, userID string) (*User, error)

	// GetStreak возвращает состояние серии пользователя.
	GetStreak(ctx context.Context, userID string) (StreakState, error)

	// SaveStreak сохраняет состояние серии пользователя.
	SaveStreak(ctx context.Context, userID string, streak StreakState) error
}
