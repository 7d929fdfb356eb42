package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
}

func TestInMemoryBusRoutesByType(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var streaks, achievements int
	require.NoError(t, bus.Subscribe(shared.EventStreakExtended, func(e shared.Event) error {
		streaks++
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventAchievementEarned, func(e shared.Event) error {
		achievements++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewStreakExtendedEvent("u-1", 3, 5)))
	require.NoError(t, bus.Publish(shared.NewStreakExtendedEvent("u-1", 4, 5)))

	assert.Equal(t, 2, streaks)
	assert.Equal(t, 0, achievements)
}

func TestInMemoryBusGlobalHandler(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var seen []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		seen = append(seen, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewStreakBrokenEvent("u-1", 7, time.Now())))
	require.NoError(t, bus.Publish(shared.NewAchievementEarnedEvent("u-1", "acme", "tasks_10", "Getting Things Done")))

	assert.Equal(t, []shared.EventType{shared.EventStreakBroken, shared.EventAchievementEarned}, seen)
}

func TestInMemoryBusHandlerErrorDoesNotPropagate(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventStreakExtended, func(e shared.Event) error {
		return errors.New("handler exploded")
	}))

	// Delivery errors are logged, publishing itself stays best-effort.
	assert.NoError(t, bus.Publish(shared.NewStreakExtendedEvent("u-1", 2, 2)))
}

func TestInMemoryBusRejectsAfterClose(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewStreakExtendedEvent("u-1", 2, 2))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventStreakExtended, func(e shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)

	// Closing twice is a no-op.
	assert.NoError(t, bus.Close())
}

func TestInMemoryBusRejectsNil(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventStreakExtended, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}
