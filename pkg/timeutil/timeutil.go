// Package timeutil provides date-only and calendar-window helpers for the
// performance engine. Aggregation windows and streaks operate on calendar days
// in the platform's configured timezone, never on raw instants.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// DefaultTZ is the timezone used when no explicit location is configured.
// Day boundaries in this zone are the canonical day boundaries.
var DefaultTZ = time.UTC

// Epoch is the open lower bound used for all-time aggregation windows.
var Epoch = time.Unix(0, 0).UTC()

// DateOnly truncates a time to midnight of its calendar day in loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DateOnly(a, loc).Equal(DateOnly(b, loc))
}

// DaysBetween returns the number of whole calendar days from a to b in loc.
// Positive when b is after a. Counts midnights, not 24h spans, so it is
// correct across DST transitions.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	ad := DateOnly(a, loc)
	bd := DateOnly(b, loc)

	if ad.Equal(bd) {
		return 0
	}

	sign := 1
	if bd.Before(ad) {
		ad, bd = bd, ad
		sign = -1
	}

	days := 0
	for ad.Before(bd) {
		ad = ad.AddDate(0, 0, 1)
		days++
	}
	return sign * days
}

// StartOfDay returns midnight of the current calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	return DateOnly(t, loc)
}

// StartOfWeek returns the most recent Sunday 00:00 in loc.
// Weeks run Sunday through Saturday.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := DateOnly(t, loc)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// StartOfMonth returns the first day of the current month, 00:00 in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// StartOfQuarter returns the first day of the current 3-month quarter, 00:00 in loc.
func StartOfQuarter(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	quarterMonth := time.Month(((int(local.Month())-1)/3)*3 + 1)
	return time.Date(local.Year(), quarterMonth, 1, 0, 0, 0, 0, loc)
}

// StartOfYear returns January 1 of the current year, 00:00 in loc.
func StartOfYear(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
)

// ParseDate parses a YYYY-MM-DD string as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(FormatDate, s, loc)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in loc.
func FormatDateStr(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(FormatDate)
}
