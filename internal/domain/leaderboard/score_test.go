package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_ReferenceExample(t *testing.T) {
	c := NewCalculator()

	// Нормированные вклады: 0.10/0.10/0.10/0.10/0.10/0.233...
	// Взвешенная сумма ~0.1067 -> балл 10.7.
	m := UserMetrics{
		UserID:                 "u1",
		TasksCompleted:         10,
		TotalMinutes:           600,
		PointsEarned:           100,
		SubProjectsContributed: 2,
		ProjectsContributed:    1,
		CurrentStreak:          7,
	}

	assert.Equal(t, Score(10.7), c.Score(m))
}

func TestScore_ZeroMetrics(t *testing.T) {
	c := NewCalculator()
	assert.Equal(t, Score(0), c.Score(UserMetrics{UserID: "u1"}))
}

func TestScore_CappedAtHundred(t *testing.T) {
	c := NewCalculator()

	m := UserMetrics{
		UserID:                 "u1",
		TasksCompleted:         100000,
		TotalMinutes:           9999999,
		PointsEarned:           50000,
		SubProjectsContributed: 500,
		ProjectsContributed:    200,
		CurrentStreak:          365,
	}

	assert.Equal(t, Score(100), c.Score(m))
}

func TestScore_Deterministic(t *testing.T) {
	c := NewCalculator()

	m := UserMetrics{
		UserID:                 "u1",
		TasksCompleted:         42,
		TotalMinutes:           2520,
		PointsEarned:           333,
		SubProjectsContributed: 4,
		ProjectsContributed:    2,
		CurrentStreak:          12,
	}

	first := c.Score(m)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Score(m))
	}
	assert.True(t, first.IsValid())
}

func TestScore_MonotoneInEachMetric(t *testing.T) {
	c := NewCalculator()

	base := UserMetrics{
		UserID:                 "u1",
		TasksCompleted:         10,
		TotalMinutes:           600,
		PointsEarned:           100,
		SubProjectsContributed: 2,
		ProjectsContributed:    1,
		CurrentStreak:          3,
	}
	baseScore := c.Score(base)

	bumps := []func(UserMetrics) UserMetrics{
		func(m UserMetrics) UserMetrics { m.TasksCompleted += 20; return m },
		func(m UserMetrics) UserMetrics { m.TotalMinutes += 1200; return m },
		func(m UserMetrics) UserMetrics { m.PointsEarned += 200; return m },
		func(m UserMetrics) UserMetrics { m.SubProjectsContributed += 5; return m },
		func(m UserMetrics) UserMetrics { m.ProjectsContributed += 3; return m },
		func(m UserMetrics) UserMetrics { m.CurrentStreak += 10; return m },
	}

	for i, bump := range bumps {
		bumped := c.Score(bump(base))
		assert.GreaterOrEqual(t, float64(bumped), float64(baseScore), "metric %d", i)
	}
}

func TestScore_NegativeValuesClampToZero(t *testing.T) {
	c := NewCalculator()

	m := UserMetrics{UserID: "u1", TasksCompleted: -5, TotalMinutes: -100}
	assert.Equal(t, Score(0), c.Score(m))
}

func TestScoreAll_PreservesOrder(t *testing.T) {
	c := NewCalculator()

	metrics := []UserMetrics{
		{UserID: "b", TasksCompleted: 1},
		{UserID: "a", TasksCompleted: 50},
	}

	entries := c.ScoreAll(metrics)
	assert.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].UserID)
	assert.Equal(t, "a", entries[1].UserID)
	assert.Greater(t, float64(entries[1].PerformanceScore), float64(entries[0].PerformanceScore))
}
