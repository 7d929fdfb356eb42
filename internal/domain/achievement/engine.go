// Package achievement содержит доменную модель достижений Chrono Hub.
package achievement

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// Сверяет накопительные счётчики с таблицами порогов и выдаёт список
// новых достижений. Чистая логика без персистентности: повторный вызов
// с теми же счётчиками и множеством уже полученных типов даёт пустой
// результат.
// ══════════════════════════════════════════════════════════════════════════════

// Engine проверяет пороги достижений.
type Engine struct {
	now func() time.Time
}

// NewEngine создаёт движок достижений.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineAt создаёт движок с фиксированным источником времени (для тестов).
func NewEngineAt(now func() time.Time) *Engine {
	e := NewEngine()
	if now != nil {
		e.now = now
	}
	return e
}

// Evaluate возвращает все новые достижения по всем трём таблицам.
// Пользователь, перепрыгнувший несколько ступеней за одно обновление,
// получает их все за один проход - не только верхнюю.
func (e *Engine) Evaluate(counters Counters, earned map[Type]bool) []Achievement {
	var result []Achievement
	result = append(result, e.evaluateTable(counters, CategoryTasks, earned)...)
	result = append(result, e.evaluateTable(counters, CategoryHours, earned)...)
	result = append(result, e.evaluateTable(counters, CategoryStreak, earned)...)
	return result
}

// EvaluateCategory возвращает новые достижения только одной категории.
// Используется streak-трекером после обновления серии.
func (e *Engine) EvaluateCategory(counters Counters, category Category, earned map[Type]bool) ([]Achievement, error) {
	if !category.IsValid() {
		return nil, ErrUnknownCategory
	}
	return e.evaluateTable(counters, category, earned), nil
}

// evaluateTable идёт по упорядоченной таблице и собирает все пересечённые,
// ещё не полученные ступени.
func (e *Engine) evaluateTable(counters Counters, category Category, earned map[Type]bool) []Achievement {
	table, err := TableFor(category)
	if err != nil {
		return nil
	}

	value := counters.ValueFor(category)
	now := e.now().UTC()

	var result []Achievement
	for _, tier := range table {
		if value < tier.Threshold {
			// Таблица упорядочена по возрастанию: дальше порогов не будет.
			break
		}
		if earned[tier.Type] {
			continue
		}
		result = append(result, Achievement{
			UserID:      counters.UserID,
			CompanyID:   counters.CompanyID,
			Type:        tier.Type,
			Title:       tier.Title,
			Description: tier.Description,
			EarnedAt:    now,
		})
	}
	return result
}

// EarnedSet строит множество типов из списка полученных достижений.
func EarnedSet(achievements []Achievement) map[Type]bool {
	set := make(map[Type]bool, len(achievements))
	for _, a := range achievements {
		set[a.Type] = true
	}
	return set
}
