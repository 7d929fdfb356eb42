package eventhandler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrono-hub/chrono-performance-hub/internal/application/command"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/achievement"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/notification"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/user"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeUserRepo struct {
	mu      sync.Mutex
	streaks map[string]user.StreakState
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
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streaks[userID] = streak
	return nil
}

type fakeCounterReader struct{}

func (fakeCounterReader) LifetimeCounters(_ context.Context, userID string) (achievement.Counters, error) {
	return achievement.Counters{UserID: userID, TasksCompleted: 1}, nil
}

type fakeAchievementRepo struct{}

func (fakeAchievementRepo) Save(_ context.Context, _ achievement.Achievement) (bool, error) {
	return true, nil
}

func (fakeAchievementRepo) ListEarnedTypes(_ context.Context, _ string) (map[achievement.Type]bool, error) {
	return map[achievement.Type]bool{}, nil
}

func (fakeAchievementRepo) ListByUser(_ context.Context, _ string) ([]achievement.Achievement, error) {
	return nil, nil
}

type fakeDispatcher struct{}

func (fakeDispatcher) Dispatch(_ context.Context, _ *notification.Notification) error {
	return nil
}

// fakeRemoteEvent имитирует событие, пришедшее через Redis с другого инстанса.
type fakeRemoteEvent struct {
	eventType shared.EventType
	payload   json.RawMessage
}

func (e fakeRemoteEvent) EventType() shared.EventType { return e.eventType }
func (e fakeRemoteEvent) OccurredAt() time.Time       { return time.Now().UTC() }
func (e fakeRemoteEvent) AggregateID() string         { return "remote" }
func (e fakeRemoteEvent) RawPayload() json.RawMessage { return e.payload }

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(users *fakeUserRepo) *OnActivityHandler {
	recorder := command.NewRecordActivityHandler(
		users,
		fakeCounterReader{},
		fakeAchievementRepo{},
		fakeDispatcher{},
		nil,
		time.UTC,
		testLogger(),
	)
	return NewOnActivityHandler(recorder, testLogger(), DefaultActivityHandlerConfig())
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleTaskCompletedExtendsStreak(t *testing.T) {
	users := newFakeUserRepo()
	h := newTestHandler(users)

	event := shared.NewTaskCompletedEvent("u1", "acme", "task-7")
	require.NoError(t, h.Handle(event))

	streak, err := users.GetStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, streak.CurrentStreak)
}

func TestHandleTrackingStopped(t *testing.T) {
	users := newFakeUserRepo()
	h := newTestHandler(users)

	event := shared.NewTrackingStoppedEvent("u2", "acme", 45)
	require.NoError(t, h.Handle(event))

	streak, err := users.GetStreak(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, streak.CurrentStreak)
}

func TestHandleRemoteEventDecodesPayload(t *testing.T) {
	users := newFakeUserRepo()
	h := newTestHandler(users)

	original := shared.NewTaskCompletedEvent("u3", "acme", "task-1")
	payload, err := json.Marshal(original)
	require.NoError(t, err)

	remote := fakeRemoteEvent{
		eventType: shared.EventTaskCompleted,
		payload:   payload,
	}
	require.NoError(t, h.Handle(remote))

	streak, err := users.GetStreak(context.Background(), "u3")
	require.NoError(t, err)
	assert.Equal(t, 1, streak.CurrentStreak)
}

func TestHandleIgnoresMalformedRemotePayload(t *testing.T) {
	users := newFakeUserRepo()
	h := newTestHandler(users)

	remote := fakeRemoteEvent{
		eventType: shared.EventTaskCompleted,
		payload:   json.RawMessage(`{bad json`),
	}
	require.NoError(t, h.Handle(remote))

	_, err := users.GetStreak(context.Background(), "remote")
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func TestRegisterSubscribesActivityEvents(t *testing.T) {
	users := newFakeUserRepo()
	h := newTestHandler(users)

	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.AsyncMode = false
	busConfig.Logger = testLogger()
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer bus.Close()

	require.NoError(t, h.Register(bus))
	require.NoError(t, bus.Publish(shared.NewTaskCompletedEvent("u4", "acme", "task-2")))

	streak, err := users.GetStreak(context.Background(), "u4")
	require.NoError(t, err)
	assert.Equal(t, 1, streak.CurrentStreak)
}
