// Package leaderboard содержит доменную модель производительности Chrono Hub.
package leaderboard

import (
	"context"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации живут в infrastructure/persistence. Домен зависит только
// от контрактов.
// ══════════════════════════════════════════════════════════════════════════════

// MetricsReader поставляет сырые метрики из read-модели платформы.
// Ядро никогда не делает ad hoc джойнов - только эти два метода.
type MetricsReader interface {
	// GetUserMetrics возвращает метрики пользователя за окно внутри области.
	// Возвращает shared.ErrNotFound, если пользователь неизвестен.
	GetUserMetrics(ctx context.Context, scope Scope, userID string, window period.Window) (UserMetrics, error)

	// ListScopeUsers возвращает идентификаторы всех пользователей области.
	// Возвращает shared.ErrNotFound, если области не существует.
	ListScopeUsers(ctx context.Context, scope Scope) ([]string, error)
}

// SnapshotRepository персистит результаты ранжирования по ключу
// (scopeID, periodType, periodStart).
type SnapshotRepository interface {
	// Replace целиком заменяет строки снапшота для ключа:
	// удаление старых и вставка новых атомарны (одна транзакция).
	Replace(ctx context.Context, scope Scope, window period.Window, entries []RankedEntry) error

	// PreviousRanks возвращает карту userID -> ранг для окна.
	// Отсутствие снапшота - не ошибка: возвращается пустая карта.
	PreviousRanks(ctx context.Context, scope Scope, window period.Window) (map[string]Rank, error)

	// PruneBefore удаляет снапшоты области старше заданного количества
	// периодов данного типа. Возвращает число удалённых строк.
	PruneBefore(ctx context.Context, scope Scope, periodType period.Type, keepPeriods int) (int64, error)
}

// Cache кеширует готовые ранжированные списки по области и периоду.
// Кеш - ускорение пути чтения; промах или ошибка кеша никогда не
// фатальны.
type Cache interface {
	// GetRanked возвращает закешированный список либо ok=false.
	GetRanked(ctx context.Context, scope Scope, periodType period.Type) ([]RankedEntry, bool, error)

	// SetRanked кеширует список с настроенным TTL.
	SetRanked(ctx context.Context, scope Scope, periodType period.Type, entries []RankedEntry) error

	// Invalidate сбрасывает кеш области для периода.
	Invalidate(ctx context.Context, scope Scope, periodType period.Type) error
}
