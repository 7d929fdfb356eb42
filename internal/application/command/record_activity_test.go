package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/achievement"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/notification"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeUserRepo struct {
	mu      sync.Mutex
	streaks map[string]user.StreakState
	saveErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{streaks: make(map[string]user.StreakState)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, userID string) (*user.User, error) {
	return &user.User{ID: userID}, nil
}

func (f *fakeUserRepo) GetStreak(_ context.Context, userID string) (user.StreakState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streaks[userID]
	if !ok {
		return user.StreakState{}, shared.ErrUserNotFound
	}
	return s, nil
}

func (f *fakeUserRepo) SaveStreak(_ context.Context, userID string, streak user.StreakState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streaks[userID] = streak
	return nil
}

type fakeCounterReader struct {
	counters achievement.Counters
	err      error
}

func (f *fakeCounterReader) LifetimeCounters(_ context.Context, userID string) (achievement.Counters, error) {
	if f.err != nil {
		return achievement.Counters{}, f.err
	}
	c := f.counters
	c.UserID = userID
	return c, nil
}

type fakeAchievementRepo struct {
	mu    sync.Mutex
	saved map[achievement.Type]achievement.Achievement
}

func newFakeAchievementRepo() *fakeAchievementRepo {
	return &fakeAchievementRepo{saved: make(map[achievement.Type]achievement.Achievement)}
}

func (f *fakeAchievementRepo) Save(_ context.Context, a achievement.Achievement) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.saved[a.Type]; ok {
		return false, nil
	}
	f.saved[a.Type] = a
	return true, nil
}

func (f *fakeAchievementRepo) ListEarnedTypes(_ context.Context, _ string) (map[achievement.Type]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	earned := make(map[achievement.Type]bool, len(f.saved))
	for t := range f.saved {
		earned[t] = true
	}
	return earned, nil
}

func (f *fakeAchievementRepo) ListByUser(_ context.Context, _ string) ([]achievement.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]achievement.Achievement, 0, len(f.saved))
	for _, a := range f.saved {
		out = append(out, a)
	}
	return out, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []*notification.Notification
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, n *notification.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeDispatcher) sentTypes() []notification.NotificationType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]notification.NotificationType, len(f.sent))
	for i, n := range f.sent {
		types[i] = n.Type
	}
	return types
}

type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (f *fakePublisher) Publish(event shared.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func taskCmd(userID string, ts time.Time) RecordActivityCommand {
	return RecordActivityCommand{
		UserID:    userID,
		CompanyID: "acme",
		Type:      ActivityTypeTaskCompleted,
		TaskID:    "task-1",
		Timestamp: ts,
	}
}

func TestRecordActivity_Validation(t *testing.T) {
	h := NewRecordActivityHandler(newFakeUserRepo(), &fakeCounterReader{}, newFakeAchievementRepo(), nil, nil, time.UTC, nil)

	_, err := h.Handle(context.Background(), RecordActivityCommand{Type: ActivityTypeTaskCompleted, TaskID: "t"})
	assert.Error(t, err, "user_id is required")

	_, err = h.Handle(context.Background(), RecordActivityCommand{UserID: "u1", Type: ActivityTypeTaskCompleted})
	assert.Error(t, err, "task_id is required")

	_, err = h.Handle(context.Background(), RecordActivityCommand{UserID: "u1", Type: "login"})
	assert.Error(t, err, "unknown activity type")
}

func TestRecordActivity_FirstActivityStartsStreak(t *testing.T) {
	users := newFakeUserRepo()
	h := NewRecordActivityHandler(users, &fakeCounterReader{}, newFakeAchievementRepo(), nil, nil, time.UTC, nil)

	res, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)))

	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 1, res.LongestStreak)
	assert.False(t, res.StreakBroken)

	saved := users.streaks["u1"]
	assert.Equal(t, 1, saved.CurrentStreak)
}

func TestRecordActivity_SameDayDoesNotExtendStreak(t *testing.T) {
	users := newFakeUserRepo()
	h := NewRecordActivityHandler(users, &fakeCounterReader{}, newFakeAchievementRepo(), nil, nil, time.UTC, nil)

	_, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	res, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 29, 18, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.False(t, res.StreakExtended)
}

func TestRecordActivity_GapBreaksStreak(t *testing.T) {
	users := newFakeUserRepo()
	users.streaks["u1"] = user.StreakState{
		LastActiveDate: time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC),
		CurrentStreak:  6,
		LongestStreak:  6,
	}
	publisher := &fakePublisher{}
	h := NewRecordActivityHandler(users, &fakeCounterReader{}, newFakeAchievementRepo(), nil, publisher, time.UTC, nil)

	res, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)))

	require.NoError(t, err)
	assert.True(t, res.StreakBroken)
	assert.Equal(t, 6, res.PreviousStreak)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 6, res.LongestStreak)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventStreakBroken, publisher.events[0].EventType())
}

func TestRecordActivity_AwardsCrossedThresholds(t *testing.T) {
	counters := &fakeCounterReader{counters: achievement.Counters{
		CompanyID:      "acme",
		TasksCompleted: 120,
	}}
	repo := newFakeAchievementRepo()
	dispatcher := &fakeDispatcher{}
	h := NewRecordActivityHandler(newFakeUserRepo(), counters, repo, dispatcher, nil, time.UTC, nil)

	res, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)))

	require.NoError(t, err)
	types := make([]achievement.Type, 0, len(res.NewAchievements))
	for _, a := range res.NewAchievements {
		types = append(types, a.Type)
	}
	assert.Contains(t, types, achievement.Type("tasks_1"))
	assert.Contains(t, types, achievement.Type("tasks_10"))
	assert.Contains(t, types, achievement.Type("tasks_50"))
	assert.Contains(t, types, achievement.Type("tasks_100"))
	assert.NotContains(t, types, achievement.Type("tasks_500"))

	// Уведомление на каждое достижение.
	assert.Contains(t, dispatcher.sentTypes(), notification.NotificationTypeAchievement)
}

func TestRecordActivity_SecondRunAwardsNothing(t *testing.T) {
	counters := &fakeCounterReader{counters: achievement.Counters{TasksCompleted: 120}}
	repo := newFakeAchievementRepo()
	h := NewRecordActivityHandler(newFakeUserRepo(), counters, repo, nil, nil, time.UTC, nil)

	_, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 28, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	res, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Empty(t, res.NewAchievements)
}

func TestRecordActivity_StreakAchievementUsesFreshStreak(t *testing.T) {
	users := newFakeUserRepo()
	users.streaks["u1"] = user.StreakState{
		LastActiveDate: time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC),
		CurrentStreak:  2,
		LongestStreak:  2,
	}
	repo := newFakeAchievementRepo()
	h := NewRecordActivityHandler(users, &fakeCounterReader{}, repo, nil, nil, time.UTC, nil)

	res, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)))

	require.NoError(t, err)
	assert.Equal(t, 3, res.CurrentStreak)

	types := make([]achievement.Type, 0, len(res.NewAchievements))
	for _, a := range res.NewAchievements {
		types = append(types, a.Type)
	}
	assert.Contains(t, types, achievement.Type("streak_3"))
}

func TestRecordActivity_CounterReadFailureKeepsStreak(t *testing.T) {
	counters := &fakeCounterReader{err: errors.New("read model down")}
	users := newFakeUserRepo()
	h := NewRecordActivityHandler(users, counters, newFakeAchievementRepo(), nil, nil, time.UTC, nil)

	res, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)))

	require.NoError(t, err, "achievement failure must not fail the activity")
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Empty(t, res.NewAchievements)
}

func TestRecordActivity_DispatchFailureIsNotFatal(t *testing.T) {
	counters := &fakeCounterReader{counters: achievement.Counters{TasksCompleted: 1}}
	dispatcher := &fakeDispatcher{err: errors.New("notifier down")}
	h := NewRecordActivityHandler(newFakeUserRepo(), counters, newFakeAchievementRepo(), dispatcher, nil, time.UTC, nil)

	res, err := h.Handle(context.Background(), taskCmd("u1", time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)))

	require.NoError(t, err)
	require.Len(t, res.NewAchievements, 1)
}

func TestRecordActivity_ConcurrentSameUser(t *testing.T) {
	users := newFakeUserRepo()
	h := NewRecordActivityHandler(users, &fakeCounterReader{}, newFakeAchievementRepo(), nil, nil, time.UTC, nil)

	ts := time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(context.Background(), taskCmd("u1", ts))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, users.streaks["u1"].CurrentStreak)
}
