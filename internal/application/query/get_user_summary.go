package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/achievement"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER SUMMARY QUERY
// Сводка по одному пользователю: метрики за сегодня, серия активных
// дней и полученные достижения. Мотивационная картина "как идёт день".
// ══════════════════════════════════════════════════════════════════════════════

// GetUserSummaryQuery содержит параметры запроса сводки.
type GetUserSummaryQuery struct {
	// UserID - ID пользователя.
	UserID string

	// Scope - область, в которой считать дневные метрики.
	Scope leaderboard.Scope

	// RecentAchievements - сколько последних достижений вернуть (0-20,
	// по умолчанию 5).
	RecentAchievements int
}

// Validate проверяет корректность параметров.
func (q *GetUserSummaryQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if !q.Scope.IsValid() {
		return errors.New("scope is invalid")
	}
	if q.RecentAchievements < 0 {
		return errors.New("recent_achievements cannot be negative")
	}
	if q.RecentAchievements == 0 {
		q.RecentAchievements = 5
	}
	if q.RecentAchievements > 20 {
		q.RecentAchievements = 20
	}
	return nil
}

// DailyMetricsDTO - метрики пользователя за сегодняшний день.
type DailyMetricsDTO struct {
	// TasksCompleted - выполнено задач сегодня.
	TasksCompleted int `json:"tasks_completed"`

	// TotalMinutes - затрекано минут сегодня.
	TotalMinutes int `json:"total_minutes"`

	// PointsEarned - заработано очков сегодня.
	PointsEarned int `json:"points_earned"`
}

// StreakDTO - состояние серии активных дней.
type StreakDTO struct {
	// Current - текущая серия.
	Current int `json:"current"`

	// Longest - рекордная серия.
	Longest int `json:"longest"`

	// ActiveToday - была ли активность сегодня.
	ActiveToday bool `json:"active_today"`

	// LastActiveDate - дата последней активности (nil = активности не было).
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
}

// AchievementSummaryDTO - краткая запись о достижении.
type AchievementSummaryDTO struct {
	// Type - тип достижения.
	Type string `json:"type"`

	// Title - заголовок.
	Title string `json:"title"`

	// EarnedAt - когда получено.
	EarnedAt time.Time `json:"earned_at"`
}

// GetUserSummaryResult содержит сводку по пользователю.
type GetUserSummaryResult struct {
	// UserID - ID пользователя.
	UserID string `json:"user_id"`

	// Today - метрики за сегодняшний день.
	Today DailyMetricsDTO `json:"today"`

	// Streak - состояние серии.
	Streak StreakDTO `json:"streak"`

	// TotalAchievements - всего достижений.
	TotalAchievements int `json:"total_achievements"`

	// RecentAchievements - последние достижения.
	RecentAchievements []AchievementSummaryDTO `json:"recent_achievements"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetUserSummaryHandler обрабатывает запросы сводки пользователя.
type GetUserSummaryHandler struct {
	users        user.Repository
	metrics      leaderboard.MetricsReader
	achievements achievement.Repository
	periods      *period.Resolver
	logger       *slog.Logger
}

// NewGetUserSummaryHandler создаёт новый обработчик сводки.
func NewGetUserSummaryHandler(
	users user.Repository,
	metrics leaderboard.MetricsReader,
	achievements achievement.Repository,
	periods *period.Resolver,
	logger *slog.Logger,
) *GetUserSummaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetUserSummaryHandler{
		users:        users,
		metrics:      metrics,
		achievements: achievements,
		periods:      periods,
		logger:       logger,
	}
}

// Handle выполняет запрос сводки.
func (h *GetUserSummaryHandler) Handle(ctx context.Context, query GetUserSummaryQuery) (*GetUserSummaryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetUserSummary", shared.ErrValidation, "invalid summary query", err)
	}

	window, err := h.periods.Resolve(period.TypeDaily, nil, nil)
	if err != nil {
		return nil, shared.WrapError("query", "GetUserSummary", shared.ErrInvalidWindow, "cannot resolve daily window", err)
	}

	result := &GetUserSummaryResult{
		UserID:      query.UserID,
		GeneratedAt: time.Now().UTC(),
	}

	// Метрики за сегодня. Отсутствие активности не ошибка: нули.
	metrics, err := h.metrics.GetUserMetrics(ctx, query.Scope, query.UserID, window)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, shared.WrapError("query", "GetUserSummary", shared.ErrExternalService, "cannot read daily metrics", err)
	}
	result.Today = DailyMetricsDTO{
		TasksCompleted: metrics.TasksCompleted,
		TotalMinutes:   metrics.TotalMinutes,
		PointsEarned:   metrics.PointsEarned,
	}

	// Серия. Пользователь без единой активности получает нулевую серию.
	streak, err := h.users.GetStreak(ctx, query.UserID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, shared.WrapError("query", "GetUserSummary", shared.ErrExternalService, "cannot read streak", err)
	}
	result.Streak = h.buildStreakDTO(streak, window.Start)

	// Достижения.
	earned, err := h.achievements.ListByUser(ctx, query.UserID)
	if err != nil {
		h.logger.Warn("achievements unavailable for summary",
			"user_id", query.UserID, "error", err)
	} else {
		result.TotalAchievements = len(earned)
		result.RecentAchievements = recentAchievements(earned, query.RecentAchievements)
	}

	return result, nil
}

// buildStreakDTO формирует DTO серии относительно начала сегодняшнего дня.
func (h *GetUserSummaryHandler) buildStreakDTO(streak user.StreakState, dayStart time.Time) StreakDTO {
	dto := StreakDTO{
		Current: streak.CurrentStreak,
		Longest: streak.LongestStreak,
	}

	if !streak.LastActiveDate.IsZero() {
		t := streak.LastActiveDate
		dto.LastActiveDate = &t
		dto.ActiveToday = !t.Before(dayStart)
	}

	return dto
}

// recentAchievements возвращает первые n достижений.
// ListByUser отдаёт их отсортированными по времени получения (новые первыми).
func recentAchievements(earned []achievement.Achievement, n int) []AchievementSummaryDTO {
	if len(earned) < n {
		n = len(earned)
	}

	dtos := make([]AchievementSummaryDTO, 0, n)
	for _, a := range earned[:n] {
		dtos = append(dtos, AchievementSummaryDTO{
			Type:     string(a.Type),
			Title:    a.Title,
			EarnedAt: a.EarnedAt,
		})
	}
	return dtos
}
