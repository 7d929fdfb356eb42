// Package achievement содержит доменную модель достижений Chrono Hub.
package achievement

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository персистит достижения. Инвариант: не более одной записи
// на пару (userID, type); повторное сохранение того же типа - no-op.
type Repository interface {
	// Save сохраняет достижение. Возвращает created=false, если
	// достижение этого типа у пользователя уже есть.
	Save(ctx context.Context, a Achievement) (created bool, err error)

	// ListEarnedTypes возвращает типы уже полученных достижений.
	ListEarnedTypes(ctx context.Context, userID string) (map[Type]bool, error)

	// ListByUser возвращает все достижения пользователя,
	// отсортированные по времени получения.
	ListByUser(ctx context.Context, userID string) ([]Achievement, error)
}

// CounterReader читает накопительные счётчики из read-модели платформы.
type CounterReader interface {
	// LifetimeCounters возвращает счётчики пользователя за всё время.
	// Возвращает shared.ErrNotFound для неизвестного пользователя.
	LifetimeCounters(ctx context.Context, userID string) (Counters, error)
}
