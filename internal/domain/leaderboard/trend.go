// Package leaderboard содержит доменную модель производительности Chrono Hub.
package leaderboard

// ══════════════════════════════════════════════════════════════════════════════
// TREND ANALYZER
// Сравнивает текущий ранг со снапшотом предыдущего периода.
// Одно сравнение без сглаживания и гистерезиса.
// ══════════════════════════════════════════════════════════════════════════════

// CalculateTrend возвращает направление движения по текущему и
// предыдущему рангу. previousRank == nil означает отсутствие снапшота:
// в этом случае тренд считается stable (см. решение в DESIGN.md - факт
// "снапшот ни разу не считался" сознательно не отличается от "ранг
// не изменился").
func CalculateTrend(currentRank Rank, previousRank *Rank) Trend {
	if previousRank == nil {
		return TrendStable
	}
	switch {
	case currentRank < *previousRank:
		return TrendUp
	case currentRank > *previousRank:
		return TrendDown
	default:
		return TrendStable
	}
}

// ApplyPreviousRanks проставляет PreviousRank и Trend каждой записи
// по карте рангов предыдущего периода. Пустая карта оставляет всем
// записям trend = stable и PreviousRank = nil.
func ApplyPreviousRanks(ranked []RankedEntry, previous map[string]Rank) []RankedEntry {
	for i := range ranked {
		if prev, ok := previous[ranked[i].UserID]; ok {
			prevCopy := prev
			ranked[i].PreviousRank = &prevCopy
			ranked[i].Trend = CalculateTrend(ranked[i].Rank, &prevCopy)
		} else {
			ranked[i].PreviousRank = nil
			ranked[i].Trend = TrendStable
		}
	}
	return ranked
}
