// Package user содержит доменную модель пользователя Chrono Hub.
// Ядру производительности от пользователя нужно немногое: принадлежность
// компании и состояние серии активных дней. Остальные атрибуты
// пользователя живут во внешней платформе.
package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER
// ══════════════════════════════════════════════════════════════════════════════

// User представляет пользователя в контексте движка производительности.
type User struct {
	// ID - идентификатор пользователя.
	ID string

	// CompanyID - компания пользователя.
	CompanyID string

	// DisplayName - отображаемое имя.
	DisplayName string

	// Streak - состояние серии активных дней.
	Streak StreakState
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK STATE
// Серия считается по календарным дням (без времени) в таймзоне платформы.
// Инварианты: LongestStreak >= CurrentStreak; CurrentStreak растёт ровно
// на 1 за каждый новый день активности и сбрасывается в 1 при пропуске
// более одного дня.
// ══════════════════════════════════════════════════════════════════════════════

// StreakState представляет состояние серии активных дней.
type StreakState struct {
	// LastActiveDate - дата последней активности (полночь, без времени).
	// Нулевое значение - активности ещё не было.
	LastActiveDate time.Time

	// CurrentStreak - текущая серия дней.
	CurrentStreak int

	// LongestStreak - лучшая серия дней.
	LongestStreak int
}

// TouchResult описывает результат обновления серии.
type TouchResult struct {
	// Changed - изменилось ли состояние (false = активность в тот же день).
	Changed bool

	// Extended - серия продолжилась (+1).
	Extended bool

	// Broken - серия была сброшена пропуском >1 дня.
	Broken bool

	// BrokenStreak - длина сброшенной серии (0, если сброса не было).
	BrokenStreak int
}

// Touch обновляет серию по дню активности. today нормализуется до
// полуночи в loc вызывающей стороной либо здесь.
//
//   - тот же день: no-op;
//   - ровно следующий день: CurrentStreak += 1;
//   - первый день активности или пропуск >1 дня: CurrentStreak = 1.
//
// LongestStreak всегда поднимается до max(LongestStreak, CurrentStreak).
func (s *StreakState) Touch(today time.Time, loc *time.Location) TouchResult {
	if loc == nil {
		loc = timeutil.DefaultTZ
	}
	day := timeutil.DateOnly(today, loc)

	if s.LastActiveDate.IsZero() {
		s.CurrentStreak = 1
		s.LastActiveDate = day
		s.raiseLongest()
		return TouchResult{Changed: true}
	}

	gap := timeutil.DaysBetween(s.LastActiveDate, day, loc)

	switch {
	case gap == 0:
		// Сегодня уже засчитано.
		return TouchResult{}
	case gap == 1:
		s.CurrentStreak++
		s.LastActiveDate = day
		s.raiseLongest()
		return TouchResult{Changed: true, Extended: true}
	case gap > 1:
		broken := s.CurrentStreak
		s.CurrentStreak = 1
		s.LastActiveDate = day
		s.raiseLongest()
		return TouchResult{Changed: true, Broken: true, BrokenStreak: broken}
	default:
		// Активность задним числом раньше последнего дня: состояние
		// не трогаем, серия уже учла более поздний день.
		return TouchResult{}
	}
}

// IsBroken возвращает true, если с последней активности прошло более
// одного дня (серия фактически прервана, но ещё не сброшена записью).
func (s *StreakState) IsBroken(now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = timeutil.DefaultTZ
	}
	if s.LastActiveDate.IsZero() {
		return false
	}
	return timeutil.DaysBetween(s.LastActiveDate, now, loc) > 1
}

// raiseLongest поддерживает инвариант LongestStreak >= CurrentStreak.
func (s *StreakState) raiseLongest() {
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
}

// String возвращает строковое представление для логирования.
func (s StreakState) String() string {
	return fmt.Sprintf("Streak{Current: %d, Longest: %d, LastActive: %s}",
		s.CurrentStreak, s.LongestStreak, s.LastActiveDate.Format(timeutil.FormatDate))
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidUserID - невалидный ID пользователя.
	ErrInvalidUserID = errors.New("user: invalid user id")

	// ErrInvalidCompanyID - невалидный ID компании.
	ErrInvalidCompanyID = errors.New("user: invalid company id")
)
