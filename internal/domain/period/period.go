// Package period содержит доменную модель временных окон агрегации.
// Каждый лидерборд считается по окну [start, end): именованный период
// (день, неделя, месяц, квартал, год, всё время) или произвольные даты.
// Резолвер также выводит "предыдущее" окно той же длины для расчёта тренда.
package period

import (
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет именованный тип периода агрегации.
type Type string

const (
	// TypeDaily - с начала текущего календарного дня.
	TypeDaily Type = "DAILY"
	// TypeWeekly - с последнего воскресенья 00:00.
	TypeWeekly Type = "WEEKLY"
	// TypeMonthly - с первого числа текущего месяца.
	TypeMonthly Type = "MONTHLY"
	// TypeQuarterly - с первого дня текущего квартала.
	TypeQuarterly Type = "QUARTERLY"
	// TypeYearly - с 1 января текущего года.
	TypeYearly Type = "YEARLY"
	// TypeAllTime - с начала эпохи, без верхней границы.
	TypeAllTime Type = "ALL_TIME"
	// TypeCustom - произвольные даты, заданные вызывающей стороной.
	// У произвольного окна нет корректного "предыдущего" окна.
	TypeCustom Type = "CUSTOM"
)

// IsValid проверяет корректность типа периода.
func (t Type) IsValid() bool {
	switch t {
	case TypeDaily, TypeWeekly, TypeMonthly, TypeQuarterly, TypeYearly, TypeAllTime, TypeCustom:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа периода.
func (t Type) String() string {
	return string(t)
}

// ParseType разбирает строку в Type. Пустая строка трактуется как ALL_TIME.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeAllTime, nil
	}
	t := Type(s)
	if !t.IsValid() || t == TypeCustom {
		return "", shared.ErrUnknownPeriod
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WINDOW
// ══════════════════════════════════════════════════════════════════════════════

// Window представляет конкретное окно агрегации [Start, End).
// End == nil означает открытое окно (ALL_TIME).
type Window struct {
	// Type - тип периода, из которого получено окно.
	Type Type

	// Start - нижняя граница окна (включительно).
	Start time.Time

	// End - верхняя граница окна (исключительно). nil = без границы.
	End *time.Time
}

// IsOpenEnded возвращает true, если у окна нет верхней границы.
func (w Window) IsOpenEnded() bool {
	return w.End == nil
}

// Contains проверяет, попадает ли момент времени в окно.
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	if w.End == nil {
		return true
	}
	return t.Before(*w.End)
}

// Duration возвращает длину окна. Для открытого окна - 0.
func (w Window) Duration() time.Duration {
	if w.End == nil {
		return 0
	}
	return w.End.Sub(w.Start)
}

// HasPrevious возвращает true, если для окна определено предыдущее окно.
// Произвольные (custom) окна предыдущего окна не имеют.
func (w Window) HasPrevious() bool {
	return w.Type != TypeCustom
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Resolver отображает тип периода или явные даты в конкретное окно.
// Все границы считаются в настроенной таймзоне платформы.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver создаёт Resolver для заданной таймзоны.
// nil означает таймзону по умолчанию (UTC).
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = timeutil.DefaultTZ
	}
	return &Resolver{loc: loc, now: time.Now}
}

// NewResolverAt создаёт Resolver с фиксированным источником времени.
// Используется в тестах и при пересчёте исторических окон.
func NewResolverAt(loc *time.Location, now func() time.Time) *Resolver {
	r := NewResolver(loc)
	if now != nil {
		r.now = now
	}
	return r
}

// Location возвращает таймзону резолвера.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve возвращает текущее окно для типа периода или явных дат.
// Явные даты всегда имеют приоритет над типом: если заданы обе,
// возвращается произвольное окно TypeCustom.
func (r *Resolver) Resolve(t Type, startDate, endDate *time.Time) (Window, error) {
	if startDate != nil || endDate != nil {
		return r.resolveCustom(startDate, endDate)
	}

	now := r.now().In(r.loc)

	switch t {
	case TypeDaily:
		return r.bounded(t, timeutil.StartOfDay(now, r.loc), now), nil
	case TypeWeekly:
		return r.bounded(t, timeutil.StartOfWeek(now, r.loc), now), nil
	case TypeMonthly:
		return r.bounded(t, timeutil.StartOfMonth(now, r.loc), now), nil
	case TypeQuarterly:
		return r.bounded(t, timeutil.StartOfQuarter(now, r.loc), now), nil
	case TypeYearly:
		return r.bounded(t, timeutil.StartOfYear(now, r.loc), now), nil
	case TypeAllTime:
		return Window{Type: TypeAllTime, Start: timeutil.Epoch, End: nil}, nil
	default:
		return Window{}, shared.ErrUnknownPeriod
	}
}

// resolveCustom строит произвольное окно из явных дат.
func (r *Resolver) resolveCustom(startDate, endDate *time.Time) (Window, error) {
	if startDate == nil {
		return Window{}, shared.WrapError("period", "Resolve", shared.ErrInvalidWindow,
			"custom window requires a start date", nil)
	}

	w := Window{Type: TypeCustom, Start: startDate.In(r.loc)}
	if endDate != nil {
		end := endDate.In(r.loc)
		if end.Before(w.Start) {
			return Window{}, shared.ErrStartAfterEnd
		}
		w.End = &end
	}
	return w, nil
}

// bounded строит окно [start, now] с верхней границей "сейчас".
// Верхняя граница нужна, чтобы snapshot-ключи были детерминированы
// по началу периода, а чтение не захватывало будущие записи.
func (r *Resolver) bounded(t Type, start, now time.Time) Window {
	end := now
	return Window{Type: t, Start: start, End: &end}
}

// Previous возвращает окно той же длины, непосредственно предшествующее
// текущему. Для ALL_TIME предыдущее окно вырождается в [epoch, currentStart).
// Для произвольного окна предыдущее окно не определено.
func (r *Resolver) Previous(current Window) (Window, error) {
	switch current.Type {
	case TypeCustom:
		return Window{}, shared.ErrNoPreviousWindow
	case TypeAllTime:
		end := current.Start
		if end.Equal(timeutil.Epoch) || end.Before(timeutil.Epoch) {
			end = timeutil.Epoch
		}
		return Window{Type: TypeAllTime, Start: timeutil.Epoch, End: &end}, nil
	case TypeDaily:
		return r.shift(current, 0, 0, -1), nil
	case TypeWeekly:
		return r.shift(current, 0, 0, -7), nil
	case TypeMonthly:
		return r.shift(current, 0, -1, 0), nil
	case TypeQuarterly:
		return r.shift(current, 0, -3, 0), nil
	case TypeYearly:
		return r.shift(current, -1, 0, 0), nil
	default:
		return Window{}, shared.ErrUnknownPeriod
	}
}

// shift сдвигает календарное окно назад на годы/месяцы/дни.
// Предыдущее окно всегда замкнуто: его верхняя граница - начало текущего.
func (r *Resolver) shift(current Window, years, months, days int) Window {
	start := current.Start.AddDate(years, months, days)
	end := current.Start
	return Window{Type: current.Type, Start: start, End: &end}
}
