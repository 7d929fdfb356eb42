// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the performance engine. Payloads are closed, typed structs -
// there is deliberately no open metadata map on events.
const (
	// Achievement events
	EventAchievementEarned EventType = "achievement.earned"

	// Streak events
	EventStreakExtended EventType = "streak.extended"
	EventStreakBroken   EventType = "streak.broken"

	// Leaderboard events
	EventRankChanged       EventType = "leaderboard.rank_changed"
	EventSnapshotPersisted EventType = "leaderboard.snapshot_persisted"

	// Activity events
	EventTaskCompleted   EventType = "activity.task_completed"
	EventTrackingStopped EventType = "activity.tracking_stopped"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string
}

// EventPublisher publishes domain events to interested subscribers.
// Publishing is best-effort: a failed publish never fails the operation
// that produced the event.
type EventPublisher interface {
	Publish(event Event) error
}

// EventHandler processes a single domain event.
type EventHandler func(event Event) error

// EventBus combines publishing with subscription management.
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error

	// Close shuts the bus down, waiting for in-flight handlers.
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementEarnedEvent is emitted when a lifetime counter crosses a threshold.
type AchievementEarnedEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	CompanyID       string `json:"company_id"`
	AchievementType string `json:"achievement_type"`
	Title           string `json:"title"`
}

// NewAchievementEarnedEvent creates an AchievementEarnedEvent.
func NewAchievementEarnedEvent(userID, companyID, achievementType, title string) AchievementEarnedEvent {
	return AchievementEarnedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementEarned, userID),
		UserID:          userID,
		CompanyID:       companyID,
		AchievementType: achievementType,
		Title:           title,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakExtendedEvent is emitted when a user's daily streak grows.
type StreakExtendedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	IsRecord      bool   `json:"is_record"`
}

// NewStreakExtendedEvent creates a StreakExtendedEvent.
func NewStreakExtendedEvent(userID string, current, longest int) StreakExtendedEvent {
	return StreakExtendedEvent{
		BaseEvent:     NewBaseEvent(EventStreakExtended, userID),
		UserID:        userID,
		CurrentStreak: current,
		LongestStreak: longest,
		IsRecord:      current == longest,
	}
}

// StreakBrokenEvent is emitted when a gap of more than one day resets a streak.
type StreakBrokenEvent struct {
	BaseEvent
	UserID       string    `json:"user_id"`
	BrokenStreak int       `json:"broken_streak"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// NewStreakBrokenEvent creates a StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, brokenStreak int, lastActive time.Time) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:    NewBaseEvent(EventStreakBroken, userID),
		UserID:       userID,
		BrokenStreak: brokenStreak,
		LastActiveAt: lastActive,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// RankChangedEvent is emitted when a snapshot run detects rank movement.
type RankChangedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	ScopeID      string `json:"scope_id"`
	PreviousRank int    `json:"previous_rank"`
	CurrentRank  int    `json:"current_rank"`
}

// NewRankChangedEvent creates a RankChangedEvent.
func NewRankChangedEvent(userID, scopeID string, previousRank, currentRank int) RankChangedEvent {
	return RankChangedEvent{
		BaseEvent:    NewBaseEvent(EventRankChanged, userID),
		UserID:       userID,
		ScopeID:      scopeID,
		PreviousRank: previousRank,
		CurrentRank:  currentRank,
	}
}

// SnapshotPersistedEvent is emitted after a snapshot replace commits.
type SnapshotPersistedEvent struct {
	BaseEvent
	ScopeID     string    `json:"scope_id"`
	PeriodType  string    `json:"period_type"`
	PeriodStart time.Time `json:"period_start"`
	EntryCount  int       `json:"entry_count"`
}

// NewSnapshotPersistedEvent creates a SnapshotPersistedEvent.
func NewSnapshotPersistedEvent(scopeID, periodType string, periodStart time.Time, entryCount int) SnapshotPersistedEvent {
	return SnapshotPersistedEvent{
		BaseEvent:   NewBaseEvent(EventSnapshotPersisted, scopeID),
		ScopeID:     scopeID,
		PeriodType:  periodType,
		PeriodStart: periodStart,
		EntryCount:  entryCount,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// TaskCompletedEvent is emitted by the platform when a user completes a task.
type TaskCompletedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	TaskID    string `json:"task_id"`
}

// NewTaskCompletedEvent creates a TaskCompletedEvent.
func NewTaskCompletedEvent(userID, companyID, taskID string) TaskCompletedEvent {
	return TaskCompletedEvent{
		BaseEvent: NewBaseEvent(EventTaskCompleted, userID),
		UserID:    userID,
		CompanyID: companyID,
		TaskID:    taskID,
	}
}

// TrackingStoppedEvent is emitted when a time tracking session ends.
type TrackingStoppedEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	CompanyID      string `json:"company_id"`
	MinutesTracked int    `json:"minutes_tracked"`
}

// NewTrackingStoppedEvent creates a TrackingStoppedEvent.
func NewTrackingStoppedEvent(userID, companyID string, minutesTracked int) TrackingStoppedEvent {
	return TrackingStoppedEvent{
		BaseEvent:      NewBaseEvent(EventTrackingStopped, userID),
		UserID:         userID,
		CompanyID:      companyID,
		MinutesTracked: minutesTracked,
	}
}
