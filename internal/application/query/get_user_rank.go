package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER RANK QUERY
// Получает текущую позицию пользователя в лидерборде вместе с ближайшими
// соседями. Отвечает на вопрос "где я нахожусь и кто рядом".
// ══════════════════════════════════════════════════════════════════════════════

// MaxNeighbors - максимум соседей с каждой стороны.
const MaxNeighbors = 5

// GetUserRankQuery содержит параметры запроса позиции пользователя.
type GetUserRankQuery struct {
	// UserID - ID пользователя.
	UserID string

	// Scope - область лидерборда.
	Scope leaderboard.Scope

	// PeriodType - тип периода (пустая строка = ALL_TIME).
	PeriodType string

	// Neighbors - сколько соседей включить с каждой стороны (0-5, по умолчанию 1).
	Neighbors int
}

// Validate проверяет корректность параметров запроса.
func (q *GetUserRankQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if !q.Scope.IsValid() {
		return errors.New("scope is invalid")
	}
	if q.Neighbors < 0 {
		return errors.New("neighbors cannot be negative")
	}
	if q.Neighbors == 0 {
		q.Neighbors = 1
	}
	if q.Neighbors > MaxNeighbors {
		q.Neighbors = MaxNeighbors
	}
	return nil
}

// UserRankDTO - позиция пользователя с контекстом вокруг неё.
type UserRankDTO struct {
	// UserID - ID пользователя.
	UserID string `json:"user_id"`

	// Rank - текущая позиция (плотная нумерация).
	Rank int `json:"rank"`

	// TotalParticipants - всего участников в области.
	TotalParticipants int `json:"total_participants"`

	// Percentile - процентиль (100 = первый, 0 = последний).
	Percentile float64 `json:"percentile"`

	// Score - итоговый балл производительности.
	Score float64 `json:"score"`

	// Trend - направление изменения позиции: "up", "down", "stable".
	Trend string `json:"trend"`

	// PreviousRank - позиция в предыдущем периоде (nil = не было).
	PreviousRank *int `json:"previous_rank,omitempty"`

	// ScoreToNextRank - сколько баллов до участника выше (0 = лидер).
	ScoreToNextRank float64 `json:"score_to_next_rank"`

	// ScoreAheadOfNext - отрыв от участника ниже (0 = последний).
	ScoreAheadOfNext float64 `json:"score_ahead_of_next"`

	// TasksCompleted - выполнено задач за период.
	TasksCompleted int `json:"tasks_completed"`

	// TotalMinutes - затрекано минут за период.
	TotalMinutes int `json:"total_minutes"`

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int `json:"current_streak"`
}

// GetUserRankResult содержит результат запроса позиции.
type GetUserRankResult struct {
	// User - позиция пользователя.
	User UserRankDTO `json:"user"`

	// Neighbors - соседние записи лидерборда (включая самого пользователя).
	Neighbors []LeaderboardEntryDTO `json:"neighbors"`

	// Period - тип периода.
	Period string `json:"period"`

	// StartDate - начало окна периода.
	StartDate time.Time `json:"start_date"`

	// EndDate - конец окна периода (nil = открытое окно).
	EndDate *time.Time `json:"end_date,omitempty"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetUserRankHandler обрабатывает запросы позиции пользователя.
// Переиспользует конвейер построения лидерборда целиком: кеш,
// подсчёт баллов, ранжирование и тренды.
type GetUserRankHandler struct {
	leaderboards *GetLeaderboardHandler
	logger       *slog.Logger
}

// NewGetUserRankHandler создаёт новый обработчик.
func NewGetUserRankHandler(leaderboards *GetLeaderboardHandler, logger *slog.Logger) *GetUserRankHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetUserRankHandler{
		leaderboards: leaderboards,
		logger:       logger,
	}
}

// Handle выполняет запрос позиции пользователя.
func (h *GetUserRankHandler) Handle(ctx context.Context, query GetUserRankQuery) (*GetUserRankResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetUserRank", shared.ErrValidation, "invalid user rank query", err)
	}

	pt, err := period.ParseType(query.PeriodType)
	if err != nil {
		return nil, shared.WrapError("query", "GetUserRank", shared.ErrInvalidWindow, "unknown period type", err)
	}

	window, err := h.leaderboards.periods.Resolve(pt, nil, nil)
	if err != nil {
		return nil, shared.WrapError("query", "GetUserRank", shared.ErrInvalidWindow, "cannot resolve period window", err)
	}

	ranked := h.leaderboards.tryGetFromCache(ctx, query.Scope, window)
	if ranked == nil {
		ranked, err = h.leaderboards.build(ctx, query.Scope, window)
		if err != nil {
			return nil, err
		}
		h.leaderboards.trySetCache(ctx, query.Scope, window, ranked)
	}

	idx := -1
	for i, e := range ranked {
		if e.UserID == query.UserID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, shared.WrapError("query", "GetUserRank", shared.ErrNotFound,
			"user has no activity in this scope and period", nil)
	}

	return &GetUserRankResult{
		User:        h.buildUserDTO(ranked, idx),
		Neighbors:   h.buildNeighbors(ranked, idx, query.Neighbors),
		Period:      string(window.Type),
		StartDate:   window.Start,
		EndDate:     window.End,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// buildUserDTO формирует DTO позиции с отрывами от соседей.
func (h *GetUserRankHandler) buildUserDTO(ranked []leaderboard.RankedEntry, idx int) UserRankDTO {
	e := ranked[idx]
	total := len(ranked)

	dto := UserRankDTO{
		UserID:            e.UserID,
		Rank:              int(e.Rank),
		TotalParticipants: total,
		Score:             float64(e.PerformanceScore),
		Trend:             string(e.Trend),
		TasksCompleted:    e.TasksCompleted,
		TotalMinutes:      e.TotalMinutes,
		CurrentStreak:     e.CurrentStreak,
	}

	if e.PreviousRank != nil {
		r := int(*e.PreviousRank)
		dto.PreviousRank = &r
	}

	if total > 0 {
		dto.Percentile = 100.0 - float64(int(e.Rank)-1)/float64(total)*100.0
	}

	if idx > 0 {
		dto.ScoreToNextRank = float64(ranked[idx-1].PerformanceScore - e.PerformanceScore)
	}
	if idx < total-1 {
		dto.ScoreAheadOfNext = float64(e.PerformanceScore - ranked[idx+1].PerformanceScore)
	}

	return dto
}

// buildNeighbors возвращает срез записей вокруг позиции пользователя.
func (h *GetUserRankHandler) buildNeighbors(ranked []leaderboard.RankedEntry, idx, span int) []LeaderboardEntryDTO {
	from := idx - span
	if from < 0 {
		from = 0
	}
	to := idx + span + 1
	if to > len(ranked) {
		to = len(ranked)
	}

	dtos := make([]LeaderboardEntryDTO, 0, to-from)
	for _, e := range ranked[from:to] {
		dtos = append(dtos, toDTO(e))
	}
	return dtos
}
