package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/notification"
)

type countingDispatcher struct {
	calls int
	err   error
}

func (d *countingDispatcher) Dispatch(ctx context.Context, n *notification.Notification) error {
	d.calls++
	return d.err
}

func sampleNotification(t *testing.T) *notification.Notification {
	t.Helper()
	n, err := notification.NewAchievementNotification(
		"n-1", "u-1",
		notification.AchievementPayload{
			AchievementType: "tasks_10",
			Title:           "Getting Things Done",
		},
	)
	require.NoError(t, err)
	return n
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher(slog.Default())

	assert.NoError(t, d.Dispatch(context.Background(), sampleNotification(t)))
	assert.Error(t, d.Dispatch(context.Background(), nil))
}

func TestFanoutDispatcherReachesAllChannels(t *testing.T) {
	first := &countingDispatcher{}
	second := &countingDispatcher{}
	d := NewFanoutDispatcher(slog.Default(), first, second)

	require.NoError(t, d.Dispatch(context.Background(), sampleNotification(t)))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestFanoutDispatcherContinuesPastFailure(t *testing.T) {
	failing := &countingDispatcher{err: errors.New("smtp down")}
	healthy := &countingDispatcher{}
	d := NewFanoutDispatcher(slog.Default(), failing, healthy)

	err := d.Dispatch(context.Background(), sampleNotification(t))
	assert.Error(t, err)
	assert.Equal(t, 1, healthy.calls)
}
