package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule fires at a fixed duration after each run.
type IntervalSchedule struct {
	Interval time.Duration
}

func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return "@every " + s.Interval.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// Well-known expressions for configuration defaults.
const (
	EveryMinute    = "* * * * *"
	Every5Minutes  = "*/5 * * * *"
	Every15Minutes = "*/15 * * * *"
	Every30Minutes = "*/30 * * * *"
	EveryHour      = "0 * * * *"
	EveryDay3AM    = "0 3 * * *"
	EverySunday    = "0 0 * * 0"
	FirstOfMonth   = "0 0 1 * *"
)

// CronExpression is a parsed five-field cron line
// (minute, hour, day of month, month, day of week) implementing Schedule.
// Each field holds its matching values as a bitmask; minute 59 is the
// highest value any field can take, so uint64 covers all of them.
type CronExpression struct {
	raw      string
	minutes  uint64
	hours    uint64
	days     uint64
	months   uint64
	weekdays uint64
}

// ParseCronExpression parses expressions built from the classic field
// grammar: "*", single values, ranges "a-b", lists "a,b,c", and steps
// "*/n" or "a-b/n". Weekday 0 is Sunday.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: want 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{raw: expr}
	spans := []struct {
		name     string
		min, max int
		dst      *uint64
	}{
		{"minute", 0, 59, &ce.minutes},
		{"hour", 0, 23, &ce.hours},
		{"day", 1, 31, &ce.days},
		{"month", 1, 12, &ce.months},
		{"weekday", 0, 6, &ce.weekdays},
	}

	for i, span := range spans {
		mask, err := parseCronField(fields[i], span.min, span.max)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s field: %w", expr, span.name, err)
		}
		*span.dst = mask
	}
	return ce, nil
}

// MustParseCronExpression is ParseCronExpression for known-good constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

// parseCronField resolves one field into a bitmask of matching values.
// Lists are split first, so every term is "*", "a", "a-b", optionally
// followed by "/step".
func parseCronField(field string, min, max int) (uint64, error) {
	var mask uint64

	for _, term := range strings.Split(field, ",") {
		term = strings.TrimSpace(term)

		step := 1
		rangeToMax := false
		if base, stepStr, found := strings.Cut(term, "/"); found {
			n, err := strconv.Atoi(stepStr)
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("bad step %q", stepStr)
			}
			step = n
			rangeToMax = true
			term = base
		}

		lo, hi := min, max
		switch {
		case term == "*":
			// full span
		case strings.Contains(term, "-"):
			loStr, hiStr, _ := strings.Cut(term, "-")
			var err error
			if lo, err = strconv.Atoi(loStr); err != nil {
				return 0, fmt.Errorf("bad range start %q", loStr)
			}
			if hi, err = strconv.Atoi(hiStr); err != nil {
				return 0, fmt.Errorf("bad range end %q", hiStr)
			}
		default:
			v, err := strconv.Atoi(term)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", term)
			}
			lo, hi = v, v
			if rangeToMax {
				// "n/step" means n through max
				hi = max
			}
		}

		if lo < min || hi > max || lo > hi {
			return 0, fmt.Errorf("value out of range [%d-%d] in %q", min, max, term)
		}
		for v := lo; v <= hi; v += step {
			mask |= 1 << uint(v)
		}
	}

	if mask == 0 {
		return 0, fmt.Errorf("empty field %q", field)
	}
	return mask, nil
}

// String returns the expression as written.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next scans forward minute by minute for the first match after t. The scan
// is bounded at a year, beyond which no five-field expression can have its
// first match anyway.
func (ce *CronExpression) Next(t time.Time) time.Time {
	const horizon = 366 * 24 * 60

	next := t.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < horizon; i++ {
		if ce.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return ce.minutes&(1<<uint(t.Minute())) != 0 &&
		ce.hours&(1<<uint(t.Hour())) != 0 &&
		ce.days&(1<<uint(t.Day())) != 0 &&
		ce.months&(1<<uint(t.Month())) != 0 &&
		ce.weekdays&(1<<uint(t.Weekday())) != 0
}
