// Package leaderboard содержит доменную модель производительности Chrono Hub.
package leaderboard

import (
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING ENGINE
// Сортирует записи области по убыванию балла и присваивает плотные
// 1-based ранги. Ничьи разрешаются детерминированно: по UserID по
// возрастанию. Это задокументированное поведение, а не случайный порядок
// итерации.
// ══════════════════════════════════════════════════════════════════════════════

// Ranker присваивает ранги набору ScoredEntry.
type Ranker struct{}

// NewRanker создаёт Ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank сортирует записи по убыванию балла (ничьи - по UserID по
// возрастанию) и присваивает плотные ранги 1..N без пропусков.
// Возвращает новый срез; вход не модифицируется.
func (r *Ranker) Rank(entries []ScoredEntry) []RankedEntry {
	sorted := make([]ScoredEntry, len(entries))
	copy(sorted, entries)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].PerformanceScore != sorted[j].PerformanceScore {
			return sorted[i].PerformanceScore > sorted[j].PerformanceScore
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	ranked := make([]RankedEntry, len(sorted))
	for i, entry := range sorted {
		ranked[i] = RankedEntry{
			ScoredEntry: entry,
			Rank:        Rank(i + 1),
			Trend:       TrendStable,
		}
	}
	return ranked
}

// Truncate обрезает уже ранжированный список до limit записей.
// Обрезка выполняется только после ранжирования полной области, чтобы
// ранги отражали настоящую позицию, а не позицию внутри страницы.
func (r *Ranker) Truncate(ranked []RankedEntry, limit int) []RankedEntry {
	if limit <= 0 || limit >= len(ranked) {
		return ranked
	}
	result := make([]RankedEntry, limit)
	copy(result, ranked[:limit])
	return result
}
