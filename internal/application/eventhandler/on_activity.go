// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/application/command"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACTIVITY HANDLER
// Обрабатывает активность пользователей, приходящую с платформы через
// шину событий: выполненные задачи и завершённые сессии трекинга.
//
// Каждое событие превращается в RecordActivityCommand: обновляется серия
// активных дней, проверяются пороги достижений, рассылаются уведомления.
// ═══════════════════════════════════════════════════════════════════════════

// rawPayloadEvent - событие с другого инстанса: конкретная структура
// осталась сериализованной, десериализуем по типу события.
type rawPayloadEvent interface {
	shared.Event
	RawPayload() json.RawMessage
}

// OnActivityHandler превращает события активности в команды записи.
type OnActivityHandler struct {
	recorder *command.RecordActivityHandler
	logger   *slog.Logger
	config   ActivityHandlerConfig
}

// ActivityHandlerConfig содержит конфигурацию обработчика.
type ActivityHandlerConfig struct {
	// HandleTimeout - лимит времени на обработку одного события.
	HandleTimeout time.Duration
}

// DefaultActivityHandlerConfig возвращает конфигурацию по умолчанию.
func DefaultActivityHandlerConfig() ActivityHandlerConfig {
	return ActivityHandlerConfig{
		HandleTimeout: 30 * time.Second,
	}
}

// NewOnActivityHandler создаёт новый обработчик событий активности.
func NewOnActivityHandler(
	recorder *command.RecordActivityHandler,
	logger *slog.Logger,
	config ActivityHandlerConfig,
) *OnActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.HandleTimeout <= 0 {
		config.HandleTimeout = DefaultActivityHandlerConfig().HandleTimeout
	}

	return &OnActivityHandler{
		recorder: recorder,
		logger:   logger.With("handler", "on_activity"),
		config:   config,
	}
}

// Register подписывает обработчик на события активности.
func (h *OnActivityHandler) Register(bus shared.EventBus) error {
	if err := bus.Subscribe(shared.EventTaskCompleted, h.Handle); err != nil {
		return fmt.Errorf("eventhandler: subscribe task_completed: %w", err)
	}
	if err := bus.Subscribe(shared.EventTrackingStopped, h.Handle); err != nil {
		return fmt.Errorf("eventhandler: subscribe tracking_stopped: %w", err)
	}
	return nil
}

// Handle обрабатывает событие активности.
// Реализует интерфейс shared.EventHandler.
func (h *OnActivityHandler) Handle(event shared.Event) error {
	cmd, ok := h.commandFor(event)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.HandleTimeout)
	defer cancel()

	result, err := h.recorder.Handle(ctx, cmd)
	if err != nil {
		h.logger.Error("failed to record activity",
			"event_type", event.EventType(),
			"user_id", cmd.UserID,
			"error", err,
		)
		return err
	}

	h.logger.Debug("activity recorded",
		"user_id", result.UserID,
		"activity_type", result.ActivityType,
		"current_streak", result.CurrentStreak,
		"new_achievements", len(result.NewAchievements),
	)

	return nil
}

// commandFor извлекает команду из типизированного или удалённого события.
func (h *OnActivityHandler) commandFor(event shared.Event) (command.RecordActivityCommand, bool) {
	switch e := event.(type) {
	case shared.TaskCompletedEvent:
		return command.RecordActivityCommand{
			UserID:    e.UserID,
			CompanyID: e.CompanyID,
			Type:      command.ActivityTypeTaskCompleted,
			TaskID:    e.TaskID,
			Timestamp: e.OccurredAt(),
		}, true

	case shared.TrackingStoppedEvent:
		return command.RecordActivityCommand{
			UserID:         e.UserID,
			CompanyID:      e.CompanyID,
			Type:           command.ActivityTypeTrackingStopped,
			MinutesTracked: e.MinutesTracked,
			Timestamp:      e.OccurredAt(),
		}, true

	case rawPayloadEvent:
		return h.commandFromRaw(e)

	default:
		h.logger.Warn("received unexpected event shape",
			"event_type", event.EventType(),
		)
		return command.RecordActivityCommand{}, false
	}
}

// commandFromRaw десериализует полезную нагрузку удалённого события.
func (h *OnActivityHandler) commandFromRaw(e rawPayloadEvent) (command.RecordActivityCommand, bool) {
	switch e.EventType() {
	case shared.EventTaskCompleted:
		var payload shared.TaskCompletedEvent
		if err := json.Unmarshal(e.RawPayload(), &payload); err != nil {
			h.logger.Error("cannot decode task_completed payload", "error", err)
			return command.RecordActivityCommand{}, false
		}
		return command.RecordActivityCommand{
			UserID:    payload.UserID,
			CompanyID: payload.CompanyID,
			Type:      command.ActivityTypeTaskCompleted,
			TaskID:    payload.TaskID,
			Timestamp: e.OccurredAt(),
		}, true

	case shared.EventTrackingStopped:
		var payload shared.TrackingStoppedEvent
		if err := json.Unmarshal(e.RawPayload(), &payload); err != nil {
			h.logger.Error("cannot decode tracking_stopped payload", "error", err)
			return command.RecordActivityCommand{}, false
		}
		return command.RecordActivityCommand{
			UserID:         payload.UserID,
			CompanyID:      payload.CompanyID,
			Type:           command.ActivityTypeTrackingStopped,
			MinutesTracked: payload.MinutesTracked,
			Timestamp:      e.OccurredAt(),
		}, true

	default:
		return command.RecordActivityCommand{}, false
	}
}
