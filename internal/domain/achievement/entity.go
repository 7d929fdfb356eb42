// Package achievement содержит доменную модель достижений Chrono Hub.
// Достижение - одноразовая награда за пересечение фиксированного порога
// накопительного счётчика (задачи, часы, серия дней). Однажды полученное
// достижение никогда не отзывается и не пересчитывается.
package achievement

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Type представляет тип достижения. Инвариант хранилища: не более одной
// записи на пару (userID, Type).
type Type string

// IsValid проверяет, что тип не пустой.
func (t Type) IsValid() bool {
	return len(t) > 0
}

// String возвращает строковое представление типа.
func (t Type) String() string {
	return string(t)
}

// Category определяет накопительный счётчик, к которому привязана
// таблица порогов.
type Category string

const (
	// CategoryTasks - выполненные задачи за всё время.
	CategoryTasks Category = "tasks"
	// CategoryHours - затреканные часы за всё время.
	CategoryHours Category = "hours"
	// CategoryStreak - текущая серия активных дней.
	CategoryStreak Category = "streak"
)

// IsValid проверяет корректность категории.
func (c Category) IsValid() bool {
	switch c {
	case CategoryTasks, CategoryHours, CategoryStreak:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Achievement представляет полученное достижение.
type Achievement struct {
	// UserID - кто получил.
	UserID string

	// CompanyID - компания пользователя.
	CompanyID string

	// Type - тип достижения (уникален на пользователя).
	Type Type

	// Title - заголовок для отображения.
	Title string

	// Description - описание.
	Description string

	// EarnedAt - когда получено.
	EarnedAt time.Time
}

// String возвращает строковое представление для логирования.
func (a Achievement) String() string {
	return fmt.Sprintf("Achievement{User: %s, Type: %s, At: %s}",
		a.UserID, a.Type, a.EarnedAt.Format(time.RFC3339))
}

// ══════════════════════════════════════════════════════════════════════════════
// THRESHOLD TABLES
// Три независимые упорядоченные таблицы порогов. Порядок по возрастанию
// порога обязателен: Evaluate идёт по таблице и выдаёт все пересечённые,
// ещё не полученные ступени за один проход.
// ══════════════════════════════════════════════════════════════════════════════

// Threshold описывает одну ступень таблицы порогов.
type Threshold struct {
	// Threshold - значение счётчика, с которого ступень считается взятой.
	Threshold int

	// Type - тип выдаваемого достижения.
	Type Type

	// Title - заголовок.
	Title string

	// Description - описание.
	Description string
}

// TaskThresholds возвращает таблицу порогов по выполненным задачам.
func TaskThresholds() []Threshold {
	return []Threshold{
		{1, "tasks_1", "First Steps", "Complete your first task"},
		{10, "tasks_10", "Getting Things Done", "Complete 10 tasks"},
		{50, "tasks_50", "Task Machine", "Complete 50 tasks"},
		{100, "tasks_100", "Centurion", "Complete 100 tasks"},
		{500, "tasks_500", "Unstoppable", "Complete 500 tasks"},
	}
}

// HourThresholds возвращает таблицу порогов по затреканным часам.
func HourThresholds() []Threshold {
	return []Threshold{
		{10, "hours_10", "Clocking In", "Track 10 hours of work"},
		{50, "hours_50", "Deep Worker", "Track 50 hours of work"},
		{100, "hours_100", "Time Lord", "Track 100 hours of work"},
		{500, "hours_500", "Marathon Runner", "Track 500 hours of work"},
		{1000, "hours_1000", "Thousand Hour Club", "Track 1000 hours of work"},
	}
}

// StreakThresholds возвращает таблицу порогов по серии активных дней.
func StreakThresholds() []Threshold {
	return []Threshold{
		{3, "streak_3", "Warming Up", "Stay active 3 days in a row"},
		{7, "streak_7", "Week of Fire", "Stay active 7 days in a row"},
		{14, "streak_14", "Fortnight Force", "Stay active 14 days in a row"},
		{30, "streak_30", "Iron Will", "Stay active 30 days in a row"},
		{100, "streak_100", "Legendary", "Stay active 100 days in a row"},
	}
}

// TableFor возвращает таблицу порогов категории.
func TableFor(c Category) ([]Threshold, error) {
	switch c {
	case CategoryTasks:
		return TaskThresholds(), nil
	case CategoryHours:
		return HourThresholds(), nil
	case CategoryStreak:
		return StreakThresholds(), nil
	default:
		return nil, ErrUnknownCategory
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFETIME COUNTERS
// ══════════════════════════════════════════════════════════════════════════════

// Counters содержит накопительные счётчики пользователя за всё время.
// Счётчики читаются из read-модели платформы непосредственно перед
// проверкой порогов.
type Counters struct {
	// UserID - идентификатор пользователя.
	UserID string

	// CompanyID - компания пользователя.
	CompanyID string

	// TasksCompleted - выполненные задачи за всё время.
	TasksCompleted int

	// TotalMinutes - затреканные минуты за всё время.
	TotalMinutes int

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int
}

// TotalHours возвращает накопленные часы (целые, с округлением вниз).
func (c Counters) TotalHours() int {
	return c.TotalMinutes / 60
}

// ValueFor возвращает значение счётчика для категории.
func (c Counters) ValueFor(category Category) int {
	switch category {
	case CategoryTasks:
		return c.TasksCompleted
	case CategoryHours:
		return c.TotalHours()
	case CategoryStreak:
		return c.CurrentStreak
	default:
		return 0
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrUnknownCategory - неизвестная категория порогов.
	ErrUnknownCategory = errors.New("achievement: unknown category")

	// ErrInvalidUserID - невалидный ID пользователя.
	ErrInvalidUserID = errors.New("achievement: invalid user id")
)
