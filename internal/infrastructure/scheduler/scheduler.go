// Package scheduler implements background job scheduling for the
// Chrono Performance Hub. It drives periodic tasks such as leaderboard
// snapshotting and snapshot retention pruning.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNilJob rejects registering a nil job.
	ErrNilJob = errors.New("scheduler: job cannot be nil")

	// ErrNilSchedule rejects registering a job without a schedule.
	ErrNilSchedule = errors.New("scheduler: schedule cannot be nil")

	// ErrJobAlreadyExists rejects a duplicate job name.
	ErrJobAlreadyExists = errors.New("scheduler: job already exists")

	// ErrJobNotFound is returned for operations on an unknown job name.
	ErrJobNotFound = errors.New("scheduler: job not found")

	// ErrSchedulerAlreadyRunning is returned by Start on a running scheduler.
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")

	// ErrSchedulerNotRunning is returned by Stop on a stopped scheduler.
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB AND SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic background work. Run receives a context that is
// cancelled when the scheduler stops.
type Job interface {
	Name() string
	Run(ctx context.Context) error
	Description() string
}

// Schedule decides when a job fires.
type Schedule interface {
	// Next returns the first firing time strictly after t.
	Next(t time.Time) time.Time

	String() string
}

// JobResult records one finished execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config carries the scheduler's dependencies.
type Config struct {
	// Logger for job lifecycle events.
	Logger *slog.Logger

	// Timezone used for schedule arithmetic (default UTC).
	Timezone *time.Location
}

// Scheduler owns a set of named jobs and fires them per their schedules.
// Jobs run on their own goroutines; a slow job never delays the others,
// and Stop waits for in-flight runs to finish.
type Scheduler struct {
	logger   *slog.Logger
	timezone *time.Location
	metrics  *Metrics

	mu        sync.RWMutex
	entries   map[string]*entry
	results   map[string]*JobResult
	running   bool
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// entry pairs a job with its schedule and bookkeeping.
type entry struct {
	job       Job
	schedule  Schedule
	enabled   bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

// New builds an empty scheduler. Register jobs before Start.
func New(config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	return &Scheduler{
		logger:   config.Logger,
		timezone: config.Timezone,
		metrics:  NewMetrics(),
		entries:  make(map[string]*entry),
		results:  make(map[string]*JobResult),
	}
}

// Register adds a job under its Name. Names must be unique.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, taken := s.entries[name]; taken {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(time.Now().In(s.timezone)),
	}
	s.entries[name] = e

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)
	return nil
}

// EnableJob resumes a disabled job, recomputing its next firing time so it
// does not fire immediately for the time it sat disabled.
func (s *Scheduler) EnableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	e.enabled = true
	e.nextRun = e.schedule.Next(time.Now().In(s.timezone))
	s.logger.Info("job enabled", "job", name, "next_run", e.nextRun)
	return nil
}

// DisableJob keeps a job registered but stops firing it.
func (s *Scheduler) DisableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	e.enabled = false
	s.logger.Info("job disabled", "job", name)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start launches the firing loop. The ctx bounds the lifetime of every job
// run the scheduler starts.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", len(s.entries))

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop cancels the loop and blocks until running jobs return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// IsRunning reports whether the firing loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// FIRING LOOP
// ══════════════════════════════════════════════════════════════════════════════

// loop wakes every second and fires whatever is due. One second of jitter
// is fine for jobs scheduled in minutes and hours.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			for _, e := range s.due(now.In(s.timezone)) {
				s.wg.Add(1)
				go s.fire(e)
			}
		}
	}
}

func (s *Scheduler) due(now time.Time) []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ready []*entry
	for _, e := range s.entries {
		if e.enabled && !e.nextRun.IsZero() && now.After(e.nextRun) {
			ready = append(ready, e)
		}
	}
	return ready
}

// fire runs one due entry, advancing its next firing time up front so a
// long run cannot pile up overlapping executions of itself.
func (s *Scheduler) fire(e *entry) {
	defer s.wg.Done()

	name := e.job.Name()
	startedAt := time.Now()
	s.logger.Info("job started", "job", name)

	s.mu.Lock()
	e.lastRun = startedAt
	e.nextRun = e.schedule.Next(startedAt.In(s.timezone))
	e.runCount++
	s.mu.Unlock()

	err := s.execute(e.job)
	result := s.record(name, startedAt, err)

	s.mu.Lock()
	if err != nil {
		e.failCount++
	}
	s.mu.Unlock()

	s.logResult("job", result)
}

// execute runs a job with panic containment. A panicking job fails its run
// and nothing else.
func (s *Scheduler) execute(job Job) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("job panicked: %v", v)
		}
	}()
	return job.Run(s.ctx)
}

// record stores and counts a finished execution.
func (s *Scheduler) record(name string, startedAt time.Time, err error) *JobResult {
	completedAt := time.Now()
	result := &JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Error:       err,
	}

	s.metrics.observe(result.Duration, err == nil)

	s.mu.Lock()
	s.results[name] = result
	s.mu.Unlock()

	return result
}

func (s *Scheduler) logResult(kind string, result *JobResult) {
	if result.Error != nil {
		s.logger.Error(kind+" failed",
			"job", result.JobName,
			"duration", result.Duration.String(),
			"error", result.Error,
		)
		return
	}
	s.logger.Info(kind+" completed",
		"job", result.JobName,
		"duration", result.Duration.String(),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow fires a job immediately on the caller's context, bypassing its
// schedule. The run still counts toward metrics and last results.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	startedAt := time.Now()
	s.logger.Info("manual run started", "job", name)

	err := e.job.Run(ctx)
	result := s.record(name, startedAt, err)
	s.logResult("manual run", result)

	return result, err
}

// ══════════════════════════════════════════════════════════════════════════════
// INTROSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo is the externally visible state of one registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs reports every registered job in unspecified order.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Enabled:     e.enabled,
			Schedule:    e.schedule.String(),
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			RunCount:    e.runCount,
			FailCount:   e.failCount,
			LastResult:  s.results[name],
		})
	}
	return infos
}

// GetMetrics exposes the execution counters.
func (s *Scheduler) GetMetrics() *Metrics {
	return s.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics aggregates execution counts across all jobs.
type Metrics struct {
	mu         sync.RWMutex
	executions int64
	successes  int64
	failures   int64
	elapsed    time.Duration
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) observe(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions++
	m.elapsed += duration
	if success {
		m.successes++
	} else {
		m.failures++
	}
}

// MetricsSnapshot is a consistent read of the counters.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	SuccessRate     float64
	AverageDuration time.Duration
}

// Snapshot derives rates and averages from the raw counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.executions,
		TotalSuccesses:  m.successes,
		TotalFailures:   m.failures,
	}
	if m.executions > 0 {
		snap.SuccessRate = float64(m.successes) / float64(m.executions)
		snap.AverageDuration = m.elapsed / time.Duration(m.executions)
	}
	return snap
}
