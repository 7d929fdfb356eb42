// Package service contains infrastructure adapters that implement
// domain service interfaces.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/notification"
)

// LogDispatcher implements notification.Dispatcher by writing each
// notification to the structured log. It is the default delivery
// channel until a real push/email integration is configured, and
// doubles as an audit trail in front of one.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a dispatcher that logs notifications.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{
		logger: logger.With(slog.String("component", "notification_dispatcher")),
	}
}

// Dispatch logs the notification at Info level.
func (d *LogDispatcher) Dispatch(ctx context.Context, n *notification.Notification) error {
	if n == nil {
		return errors.New("notification cannot be nil")
	}

	attrs := []any{
		"notification_id", string(n.ID),
		"type", string(n.Type),
		"recipient_id", string(n.RecipientID),
		"message", n.Message,
	}

	switch {
	case n.Achievement != nil:
		attrs = append(attrs, "achievement_type", n.Achievement.AchievementType)
	case n.RankChange != nil:
		attrs = append(attrs,
			"scope_id", n.RankChange.ScopeID,
			"old_rank", n.RankChange.OldRank,
			"new_rank", n.RankChange.NewRank,
		)
	case n.Streak != nil:
		attrs = append(attrs, "current_streak", n.Streak.CurrentStreak)
	}

	d.logger.InfoContext(ctx, "notification dispatched", attrs...)
	return nil
}

// FanoutDispatcher delivers each notification to every child
// dispatcher. Delivery is best-effort per channel: one failing channel
// does not stop the others, and the first error is returned so callers
// can count failures.
type FanoutDispatcher struct {
	channels []notification.Dispatcher
	logger   *slog.Logger
}

// NewFanoutDispatcher creates a dispatcher that fans out to channels.
func NewFanoutDispatcher(logger *slog.Logger, channels ...notification.Dispatcher) *FanoutDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanoutDispatcher{channels: channels, logger: logger}
}

// Dispatch sends the notification through every channel.
func (d *FanoutDispatcher) Dispatch(ctx context.Context, n *notification.Notification) error {
	var firstErr error

	for _, ch := range d.channels {
		if err := ch.Dispatch(ctx, n); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			d.logger.Warn("notification channel failed",
				"notification_id", string(n.ID),
				"error", err,
			)
		}
	}

	return firstErr
}
