package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	runs int
	err  error
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub job for tests" }

func (j *stubJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := New(Config{})
	schedule := NewIntervalSchedule(time.Minute)

	require.NoError(t, s.Register(&stubJob{name: "refresh"}, schedule))

	err := s.Register(&stubJob{name: "refresh"}, schedule)
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestRegisterRejectsNil(t *testing.T) {
	s := New(Config{})

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&stubJob{name: "x"}, nil), ErrNilSchedule)
}

func TestRunNow(t *testing.T) {
	s := New(Config{})
	job := &stubJob{name: "snapshot"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "snapshot")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, job.runs)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalSuccesses)
}

func TestRunNowPropagatesJobError(t *testing.T) {
	s := New(Config{})
	job := &stubJob{name: "flaky", err: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "flaky")
	assert.Error(t, err)
	assert.False(t, result.Success)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalFailures)
}

func TestRunNowUnknownJob(t *testing.T) {
	s := New(Config{})

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestExecuteRecoversPanic(t *testing.T) {
	s := New(Config{})
	s.ctx = context.Background()

	err := s.execute(&panickyJob{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job panicked")
}

type panickyJob struct{}

func (panickyJob) Name() string                  { return "panicky" }
func (panickyJob) Description() string           { return "always panics" }
func (panickyJob) Run(ctx context.Context) error { panic("nil map write") }

func TestStartStop(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.Register(&stubJob{name: "idle"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestDisableAndEnableJob(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.Register(&stubJob{name: "toggle"}, NewIntervalSchedule(time.Minute)))

	require.NoError(t, s.DisableJob("toggle"))
	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Enabled)

	require.NoError(t, s.EnableJob("toggle"))
	jobs = s.ListJobs()
	assert.True(t, jobs[0].Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}

func TestIntervalSchedule(t *testing.T) {
	schedule := NewIntervalSchedule(15 * time.Minute)
	base := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(15*time.Minute), schedule.Next(base))
	assert.Equal(t, "@every 15m0s", schedule.String())
}

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"every five minutes", Every5Minutes, false},
		{"daily at three", EveryDay3AM, false},
		{"sunday midnight", EverySunday, false},
		{"list values", "0,30 * * * *", false},
		{"range", "0 9-17 * * *", false},
		{"too few fields", "* * * *", true},
		{"minute out of range", "61 * * * *", true},
		{"garbage", "a b c d e", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCronNext(t *testing.T) {
	// Friday 2025-08-29 14:37 UTC
	now := time.Date(2025, 8, 29, 14, 37, 12, 0, time.UTC)

	every5 := MustParseCronExpression(Every5Minutes)
	assert.Equal(t, time.Date(2025, 8, 29, 14, 40, 0, 0, time.UTC), every5.Next(now))

	daily3 := MustParseCronExpression(EveryDay3AM)
	assert.Equal(t, time.Date(2025, 8, 30, 3, 0, 0, 0, time.UTC), daily3.Next(now))

	sunday := MustParseCronExpression(EverySunday)
	assert.Equal(t, time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC), sunday.Next(now))
}
