// Package leaderboard содержит доменную модель производительности Chrono Hub.
// Лидерборд превращает сырые записи активности (задачи, затреканное время,
// очки, участие в проектах) в единый балл производительности и ранжирует
// пользователей внутри выбранной области: компании, проекта или подпроекта.
package leaderboard

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию пользователя в лидерборде.
// Rank начинается с 1 (первое место).
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// Score представляет балл производительности в диапазоне [0, 100]
// с точностью до одного знака после запятой.
type Score float64

// IsValid проверяет, что балл в допустимом диапазоне.
func (s Score) IsValid() bool {
	return s >= 0 && s <= 100
}

// String возвращает строковое представление балла.
func (s Score) String() string {
	return fmt.Sprintf("%.1f", float64(s))
}

// Trend определяет направление изменения ранга относительно
// предыдущего периода.
type Trend string

const (
	// TrendUp - пользователь поднялся в рейтинге.
	TrendUp Trend = "up"
	// TrendDown - пользователь опустился в рейтинге.
	TrendDown Trend = "down"
	// TrendStable - позиция не изменилась либо предыдущего снапшота нет.
	TrendStable Trend = "stable"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE
// ══════════════════════════════════════════════════════════════════════════════

// ScopeKind определяет границу агрегации лидерборда.
type ScopeKind string

const (
	// ScopeCompany - лидерборд по всей компании.
	ScopeCompany ScopeKind = "company"
	// ScopeProject - лидерборд внутри одного проекта.
	ScopeProject ScopeKind = "project"
	// ScopeSubProject - лидерборд внутри одного подпроекта.
	ScopeSubProject ScopeKind = "subproject"
)

// Scope представляет границу агрегации: компания, проект или подпроект.
// CompanyID обязателен всегда; ProjectID/SubProjectID сужают область.
type Scope struct {
	Kind         ScopeKind
	CompanyID    string
	ProjectID    string
	SubProjectID string
}

// CompanyScope создаёт область уровня компании.
func CompanyScope(companyID string) Scope {
	return Scope{Kind: ScopeCompany, CompanyID: companyID}
}

// ProjectScope создаёт область уровня проекта.
func ProjectScope(companyID, projectID string) Scope {
	return Scope{Kind: ScopeProject, CompanyID: companyID, ProjectID: projectID}
}

// SubProjectScope создаёт область уровня подпроекта.
func SubProjectScope(companyID, projectID, subProjectID string) Scope {
	return Scope{
		Kind:         ScopeSubProject,
		CompanyID:    companyID,
		ProjectID:    projectID,
		SubProjectID: subProjectID,
	}
}

// IsValid проверяет согласованность области.
func (s Scope) IsValid() bool {
	if s.CompanyID == "" {
		return false
	}
	switch s.Kind {
	case ScopeCompany:
		return true
	case ScopeProject:
		return s.ProjectID != ""
	case ScopeSubProject:
		return s.ProjectID != "" && s.SubProjectID != ""
	default:
		return false
	}
}

// ID возвращает стабильный строковый ключ области.
// Ключ используется снапшотами, кешем и per-key блокировками.
func (s Scope) ID() string {
	switch s.Kind {
	case ScopeProject:
		return fmt.Sprintf("project:%s", s.ProjectID)
	case ScopeSubProject:
		return fmt.Sprintf("subproject:%s", s.SubProjectID)
	default:
		return fmt.Sprintf("company:%s", s.CompanyID)
	}
}

// String возвращает строковое представление области.
func (s Scope) String() string {
	return s.ID()
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS / ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

// UserMetrics содержит сырые метрики пользователя за окно агрегации.
// Снимок вычисляется заново на каждый запрос и не персистится.
type UserMetrics struct {
	// UserID - идентификатор пользователя.
	UserID string

	// TasksCompleted - выполненные задачи за окно.
	TasksCompleted int

	// TotalMinutes - затреканные минуты за окно.
	TotalMinutes int

	// PointsEarned - заработанные очки за окно.
	PointsEarned int

	// SubProjectsContributed - подпроекты с вкладом за окно.
	// Для project/subproject-областей считается внутри области.
	SubProjectsContributed int

	// ProjectsContributed - проекты с вкладом за окно.
	// Для project/subproject-областей всегда 1: сужение области намеренное.
	ProjectsContributed int

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int
}

// IsZero возвращает true, если все метрики нулевые.
func (m UserMetrics) IsZero() bool {
	return m.TasksCompleted == 0 &&
		m.TotalMinutes == 0 &&
		m.PointsEarned == 0 &&
		m.SubProjectsContributed == 0 &&
		m.ProjectsContributed == 0 &&
		m.CurrentStreak == 0
}

// ScoredEntry - метрики пользователя вместе с вычисленным баллом.
type ScoredEntry struct {
	UserMetrics

	// PerformanceScore - балл производительности [0, 100], один знак.
	// Детерминированная чистая функция от кортежа метрик и фиксированных весов.
	PerformanceScore Score
}

// RankedEntry - ScoredEntry вместе с рангом и трендом.
type RankedEntry struct {
	ScoredEntry

	// Rank - плотный 1-based ранг внутри полной области.
	Rank Rank

	// Trend - направление движения относительно предыдущего периода.
	Trend Trend

	// PreviousRank - ранг в предыдущем периоде. nil, если снапшота нет.
	PreviousRank *Rank
}

// String возвращает строковое представление для логирования.
func (e RankedEntry) String() string {
	return fmt.Sprintf(
		"Entry{Rank: %d, UserID: %s, Score: %s, Trend: %s}",
		e.Rank, e.UserID, e.PerformanceScore, e.Trend,
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT RECORD
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRecord - персистированная строка снапшота лидерборда.
// Набор строк для одного ключа (ScopeID, PeriodType, PeriodStart)
// заменяется целиком: удаление старых строк и вставка новых атомарны.
type SnapshotRecord struct {
	ScopeID                string
	PeriodType             string
	PeriodStart            time.Time
	PeriodEnd              *time.Time
	UserID                 string
	Rank                   int
	TasksCompleted         int
	TotalMinutes           int
	PointsEarned           int
	SubProjectsContributed int
	ProjectsContributed    int
	PerformanceScore       float64
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidScope - некорректная область агрегации.
	ErrInvalidScope = errors.New("leaderboard: invalid scope")

	// ErrInvalidRank - невалидный ранг (должен быть положительным).
	ErrInvalidRank = errors.New("leaderboard: invalid rank, must be positive")

	// ErrInvalidUserID - невалидный ID пользователя.
	ErrInvalidUserID = errors.New("leaderboard: invalid user id")

	// ErrEmptyScope - в области нет ни одного пользователя.
	ErrEmptyScope = errors.New("leaderboard: scope has no users")
)
