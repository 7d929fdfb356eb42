// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/achievement"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/notification"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Records user activity coming from the time-tracking platform: task
// completions and stopped tracking sessions. Every activity touches the
// daily streak and re-evaluates achievements from lifetime counters.
// ══════════════════════════════════════════════════════════════════════════════

// ActivityType defines the type of activity being recorded.
type ActivityType string

const (
	// ActivityTypeTaskCompleted - user completed a task.
	ActivityTypeTaskCompleted ActivityType = "task_completed"

	// ActivityTypeTrackingStopped - user stopped a time-tracking session.
	ActivityTypeTrackingStopped ActivityType = "tracking_stopped"
)

// RecordActivityCommand contains the data to record an activity.
type RecordActivityCommand struct {
	// UserID is the ID of the user.
	UserID string

	// CompanyID is the user's company.
	CompanyID string

	// Type is the type of activity.
	Type ActivityType

	// TaskID is the ID of the completed task (for task_completed type).
	TaskID string

	// MinutesTracked is the session length in minutes (for tracking_stopped).
	MinutesTracked int

	// Timestamp is when the activity occurred (defaults to now if zero).
	Timestamp time.Time
}

// Validate validates the command.
func (c RecordActivityCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("record_activity: user_id is required")
	}

	switch c.Type {
	case ActivityTypeTaskCompleted:
		if c.TaskID == "" {
			return errors.New("record_activity: task_id is required for task_completed")
		}
	case ActivityTypeTrackingStopped:
		if c.MinutesTracked < 0 {
			return errors.New("record_activity: minutes_tracked cannot be negative")
		}
	default:
		return fmt.Errorf("record_activity: unknown activity type: %s", c.Type)
	}

	return nil
}

// RecordActivityResult contains the result of recording an activity.
type RecordActivityResult struct {
	// UserID is the ID of the user.
	UserID string

	// ActivityType is the type of activity recorded.
	ActivityType ActivityType

	// CurrentStreak is the daily streak after the activity.
	CurrentStreak int

	// LongestStreak is the best streak after the activity.
	LongestStreak int

	// StreakExtended indicates the streak grew by one day.
	StreakExtended bool

	// StreakBroken indicates the previous streak was reset.
	StreakBroken bool

	// PreviousStreak is the streak length before it was broken.
	PreviousStreak int

	// NewAchievements contains achievements awarded by this activity.
	NewAchievements []achievement.Achievement

	// RecordedAt is when the activity was recorded.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// streakLockStripes is the number of per-user lock stripes. Concurrent
// activities for the same user serialize on the same stripe so streak
// updates never interleave.
const streakLockStripes = 64

// RecordActivityHandler handles the RecordActivityCommand.
type RecordActivityHandler struct {
	users        user.Repository
	counters     achievement.CounterReader
	achievements achievement.Repository
	engine       *achievement.Engine
	dispatcher   notification.Dispatcher
	publisher    shared.EventPublisher
	loc          *time.Location
	logger       *slog.Logger

	locks [streakLockStripes]sync.Mutex
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
// dispatcher and publisher may be nil; delivery is best-effort anyway.
func NewRecordActivityHandler(
	users user.Repository,
	counters achievement.CounterReader,
	achievements achievement.Repository,
	dispatcher notification.Dispatcher,
	publisher shared.EventPublisher,
	loc *time.Location,
	logger *slog.Logger,
) *RecordActivityHandler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RecordActivityHandler{
		users:        users,
		counters:     counters,
		achievements: achievements,
		engine:       achievement.NewEngine(),
		dispatcher:   dispatcher,
		publisher:    publisher,
		loc:          loc,
		logger:       logger,
	}
}

// Handle executes the record activity command.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "RecordActivity", shared.ErrValidation, "invalid activity", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	result := &RecordActivityResult{
		UserID:       cmd.UserID,
		ActivityType: cmd.Type,
		RecordedAt:   timestamp,
	}

	lock := h.lockFor(cmd.UserID)
	lock.Lock()
	defer lock.Unlock()

	if err := h.updateStreak(ctx, cmd, timestamp, result); err != nil {
		return nil, err
	}

	if err := h.evaluateAchievements(ctx, cmd, result); err != nil {
		// Achievements are derived state and can be re-evaluated on the
		// next activity. The streak update already succeeded.
		h.logger.Error("achievement evaluation failed",
			"user_id", cmd.UserID, "error", err)
	}

	h.notifyStreak(ctx, cmd.UserID, result)

	return result, nil
}

// lockFor returns the lock stripe for a user.
func (h *RecordActivityHandler) lockFor(userID string) *sync.Mutex {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(userID))
	return &h.locks[hash.Sum32()%streakLockStripes]
}

// updateStreak touches the user's daily streak and persists it.
func (h *RecordActivityHandler) updateStreak(
	ctx context.Context,
	cmd RecordActivityCommand,
	timestamp time.Time,
	result *RecordActivityResult,
) error {
	streak, err := h.users.GetStreak(ctx, cmd.UserID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return shared.WrapError("command", "RecordActivity", shared.ErrExternalService, "cannot load streak", err)
		}
		streak = user.StreakState{}
	}

	previous := streak.CurrentStreak
	touch := streak.Touch(timestamp, h.loc)

	if touch.Changed {
		if err := h.users.SaveStreak(ctx, cmd.UserID, streak); err != nil {
			return shared.WrapError("command", "RecordActivity", shared.ErrExternalService, "cannot save streak", err)
		}
	}

	result.CurrentStreak = streak.CurrentStreak
	result.LongestStreak = streak.LongestStreak
	result.StreakExtended = touch.Extended
	result.StreakBroken = touch.Broken
	if touch.Broken {
		result.PreviousStreak = previous
	}

	if h.publisher != nil {
		if touch.Extended {
			_ = h.publisher.Publish(shared.NewStreakExtendedEvent(cmd.UserID, streak.CurrentStreak, streak.LongestStreak))
		}
		if touch.Broken {
			_ = h.publisher.Publish(shared.NewStreakBrokenEvent(cmd.UserID, result.PreviousStreak, streak.LastActiveDate))
		}
	}

	return nil
}

// evaluateAchievements re-reads lifetime counters and awards every
// newly crossed threshold. Awarding is idempotent: already earned
// types are skipped, and the repository ignores duplicate inserts.
func (h *RecordActivityHandler) evaluateAchievements(
	ctx context.Context,
	cmd RecordActivityCommand,
	result *RecordActivityResult,
) error {
	counters, err := h.counters.LifetimeCounters(ctx, cmd.UserID)
	if err != nil {
		return fmt.Errorf("lifetime counters: %w", err)
	}
	counters.CurrentStreak = result.CurrentStreak
	if counters.CompanyID == "" {
		counters.CompanyID = cmd.CompanyID
	}

	earned, err := h.achievements.ListEarnedTypes(ctx, cmd.UserID)
	if err != nil {
		return fmt.Errorf("earned types: %w", err)
	}

	awarded := h.engine.Evaluate(counters, earned)

	for _, a := range awarded {
		created, err := h.achievements.Save(ctx, a)
		if err != nil {
			h.logger.Error("achievement save failed",
				"user_id", cmd.UserID, "type", a.Type, "error", err)
			continue
		}
		if !created {
			// Lost the race to a concurrent activity. Not an error.
			continue
		}

		result.NewAchievements = append(result.NewAchievements, a)

		if h.publisher != nil {
			_ = h.publisher.Publish(shared.NewAchievementEarnedEvent(a.UserID, a.CompanyID, string(a.Type), a.Title))
		}
		h.notifyAchievement(ctx, a)
	}

	return nil
}

// notifyAchievement dispatches an achievement notification (best-effort).
func (h *RecordActivityHandler) notifyAchievement(ctx context.Context, a achievement.Achievement) {
	if h.dispatcher == nil {
		return
	}

	n, err := notification.NewAchievementNotification(
		notification.NotificationID(uuid.NewString()),
		notification.RecipientID(a.UserID),
		notification.AchievementPayload{
			AchievementType: string(a.Type),
			Title:           a.Title,
			Description:     a.Description,
		},
	)
	if err != nil {
		h.logger.Error("achievement notification build failed", "user_id", a.UserID, "error", err)
		return
	}

	if err := h.dispatcher.Dispatch(ctx, n); err != nil {
		h.logger.Warn("achievement notification dispatch failed", "user_id", a.UserID, "error", err)
	}
}

// notifyStreak dispatches streak notifications (best-effort).
func (h *RecordActivityHandler) notifyStreak(ctx context.Context, userID string, result *RecordActivityResult) {
	if h.dispatcher == nil || (!result.StreakExtended && !result.StreakBroken) {
		return
	}

	payload := notification.StreakPayload{
		CurrentStreak: result.CurrentStreak,
		LongestStreak: result.LongestStreak,
		BrokenStreak:  result.PreviousStreak,
		IsRecord:      result.StreakExtended && result.CurrentStreak == result.LongestStreak,
	}

	n, err := notification.NewStreakNotification(
		notification.NotificationID(uuid.NewString()),
		notification.RecipientID(userID),
		result.StreakBroken,
		payload,
	)
	if err != nil {
		h.logger.Error("streak notification build failed", "user_id", userID, "error", err)
		return
	}

	if err := h.dispatcher.Dispatch(ctx, n); err != nil {
		h.logger.Warn("streak notification dispatch failed", "user_id", userID, "error", err)
	}
}
