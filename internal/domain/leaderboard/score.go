// Package leaderboard содержит доменную модель производительности Chrono Hub.
package leaderboard

import (
	"math"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE CALCULATOR
// Балл - взвешенная сумма нормированных метрик, умноженная на 100.
// Нормировка идёт по фиксированным капам, а не по датасету: благодаря этому
// баллы сравнимы между периодами и областями. Единственная реализация
// используется для всех областей (company/project/subproject).
// ══════════════════════════════════════════════════════════════════════════════

// Фиксированные капы нормализации. Метрика выше капа даёт вклад 1.0.
const (
	CapTasks       = 100.0
	CapMinutes     = 6000.0
	CapPoints      = 1000.0
	CapSubProjects = 20.0
	CapProjects    = 10.0
	CapStreakDays  = 30.0
)

// Фиксированные веса. Сумма весов равна 1.0.
const (
	WeightTasks       = 0.35
	WeightMinutes     = 0.25
	WeightPoints      = 0.20
	WeightSubProjects = 0.10
	WeightProjects    = 0.05
	WeightStreak      = 0.05
)

// Calculator вычисляет балл производительности из сырых метрик.
// Чистая функция без состояния и побочных эффектов.
type Calculator struct{}

// NewCalculator создаёт калькулятор баллов.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Score возвращает балл производительности в [0, 100] с одним знаком
// после запятой. Детерминирован: одинаковые метрики дают одинаковый балл.
func (c *Calculator) Score(m UserMetrics) Score {
	weighted := WeightTasks*normalize(float64(m.TasksCompleted), CapTasks) +
		WeightMinutes*normalize(float64(m.TotalMinutes), CapMinutes) +
		WeightPoints*normalize(float64(m.PointsEarned), CapPoints) +
		WeightSubProjects*normalize(float64(m.SubProjectsContributed), CapSubProjects) +
		WeightProjects*normalize(float64(m.ProjectsContributed), CapProjects) +
		WeightStreak*normalize(float64(m.CurrentStreak), CapStreakDays)

	return Score(roundOneDecimal(weighted * 100))
}

// ScoreAll вычисляет баллы для набора метрик, сохраняя порядок входа.
func (c *Calculator) ScoreAll(metrics []UserMetrics) []ScoredEntry {
	entries := make([]ScoredEntry, len(metrics))
	for i, m := range metrics {
		entries[i] = ScoredEntry{
			UserMetrics:      m,
			PerformanceScore: c.Score(m),
		}
	}
	return entries
}

// normalize приводит значение к [0, 1] относительно капа.
// Отрицательные значения считаются нулём.
func normalize(value, cap float64) float64 {
	if value <= 0 {
		return 0
	}
	ratio := value / cap
	if ratio > 1 {
		return 1
	}
	return ratio
}

// roundOneDecimal округляет до одного знака после запятой.
func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
