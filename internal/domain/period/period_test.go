package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/pkg/timeutil"
)

// fixedResolver возвращает резолвер с замороженным "сейчас".
func fixedResolver(t *testing.T, now time.Time) *Resolver {
	t.Helper()
	return NewResolverAt(time.UTC, func() time.Time { return now })
}

func TestResolve_NamedPeriods(t *testing.T) {
	// Пятница 2025-08-29 14:30 UTC.
	now := time.Date(2025, 8, 29, 14, 30, 0, 0, time.UTC)
	r := fixedResolver(t, now)

	tests := []struct {
		periodType Type
		wantStart  time.Time
	}{
		{TypeDaily, time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC)},
		{TypeWeekly, time.Date(2025, 8, 24, 0, 0, 0, 0, time.UTC)}, // воскресенье
		{TypeMonthly, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)},
		{TypeQuarterly, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{TypeYearly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.periodType), func(t *testing.T) {
			w, err := r.Resolve(tt.periodType, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, w.Start)
			require.NotNil(t, w.End)
			assert.Equal(t, now, *w.End)
		})
	}
}

func TestResolve_AllTimeIsOpenEnded(t *testing.T) {
	r := fixedResolver(t, time.Date(2025, 8, 29, 14, 30, 0, 0, time.UTC))

	w, err := r.Resolve(TypeAllTime, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, timeutil.Epoch, w.Start)
	assert.True(t, w.IsOpenEnded())
	assert.True(t, w.Contains(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolve_ExplicitDatesWinOverType(t *testing.T) {
	r := fixedResolver(t, time.Date(2025, 8, 29, 14, 30, 0, 0, time.UTC))

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

	w, err := r.Resolve(TypeYearly, &start, &end)
	require.NoError(t, err)
	assert.Equal(t, TypeCustom, w.Type)
	assert.Equal(t, start, w.Start)
	require.NotNil(t, w.End)
	assert.Equal(t, end, *w.End)
	assert.False(t, w.HasPrevious())
}

func TestResolve_StartAfterEnd(t *testing.T) {
	r := fixedResolver(t, time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC))

	start := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)

	_, err := r.Resolve(TypeCustom, &start, &end)
	assert.ErrorIs(t, err, shared.ErrInvalidWindow)
}

func TestPrevious_Monthly(t *testing.T) {
	r := fixedResolver(t, time.Date(2025, 8, 29, 14, 30, 0, 0, time.UTC))

	current, err := r.Resolve(TypeMonthly, nil, nil)
	require.NoError(t, err)

	prev, err := r.Previous(current)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), prev.Start)
	require.NotNil(t, prev.End)
	assert.Equal(t, current.Start, *prev.End)
}

func TestPrevious_WeeklyImmediatelyPrecedes(t *testing.T) {
	r := fixedResolver(t, time.Date(2025, 8, 29, 14, 30, 0, 0, time.UTC))

	current, err := r.Resolve(TypeWeekly, nil, nil)
	require.NoError(t, err)

	prev, err := r.Previous(current)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC), prev.Start)
	assert.Equal(t, current.Start, *prev.End)
	assert.Equal(t, 7, timeutil.DaysBetween(prev.Start, *prev.End, time.UTC))
}

func TestPrevious_YearlyAndQuarterly(t *testing.T) {
	r := fixedResolver(t, time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC))

	year, err := r.Resolve(TypeYearly, nil, nil)
	require.NoError(t, err)
	prevYear, err := r.Previous(year)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), prevYear.Start)

	quarter, err := r.Resolve(TypeQuarterly, nil, nil)
	require.NoError(t, err)
	prevQuarter, err := r.Previous(quarter)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), prevQuarter.Start)
}

func TestPrevious_AllTimeDegenerates(t *testing.T) {
	r := fixedResolver(t, time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC))

	current, err := r.Resolve(TypeAllTime, nil, nil)
	require.NoError(t, err)

	prev, err := r.Previous(current)
	require.NoError(t, err)
	assert.Equal(t, timeutil.Epoch, prev.Start)
	require.NotNil(t, prev.End)
	assert.Equal(t, timeutil.Epoch, *prev.End)
}

func TestPrevious_CustomHasNoPrevious(t *testing.T) {
	r := fixedResolver(t, time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC))

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	w, err := r.Resolve(TypeCustom, &start, nil)
	require.NoError(t, err)

	_, err = r.Previous(w)
	assert.ErrorIs(t, err, shared.ErrInvalidWindow)
}

func TestParseType(t *testing.T) {
	got, err := ParseType("WEEKLY")
	require.NoError(t, err)
	assert.Equal(t, TypeWeekly, got)

	got, err = ParseType("")
	require.NoError(t, err)
	assert.Equal(t, TypeAllTime, got)

	_, err = ParseType("FORTNIGHTLY")
	assert.ErrorIs(t, err, shared.ErrInvalidWindow)

	_, err = ParseType("CUSTOM")
	assert.Error(t, err)
}
