// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Строит лидерборд производительности для области (компания, проект,
// подпроект) за период. Конвейер: окно периода -> метрики участников ->
// очки -> ранги -> тренды -> усечение.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultLimit - количество записей по умолчанию.
const DefaultLimit = 50

// MaxLimit - максимальное количество записей.
const MaxLimit = 100

// metricsConcurrency ограничивает число параллельных чтений метрик.
const metricsConcurrency = 8

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Scope - область лидерборда.
	Scope leaderboard.Scope

	// PeriodType - тип периода (пустая строка = ALL_TIME).
	PeriodType string

	// StartDate, EndDate - явные границы периода. Если заданы,
	// имеют приоритет над PeriodType.
	StartDate *time.Time
	EndDate   *time.Time

	// Limit - количество записей (по умолчанию 50, максимум 100).
	Limit int
}

// Validate проверяет корректность параметров запроса и нормализует лимит.
func (q *GetLeaderboardQuery) Validate() error {
	if !q.Scope.IsValid() {
		return leaderboard.ErrInvalidScope
	}
	if q.Limit < 0 || q.Limit > MaxLimit {
		return shared.ErrInvalidLimit
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	return nil
}

// LeaderboardEntryDTO - DTO для записи лидерборда (Data Transfer Object).
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1, плотная нумерация).
	Rank int `json:"rank"`

	// UserID - ID пользователя.
	UserID string `json:"user_id"`

	// Score - итоговый балл производительности (0.0 - 100.0).
	Score float64 `json:"score"`

	// Trend - направление изменения позиции: "up", "down", "stable".
	Trend string `json:"trend"`

	// PreviousRank - позиция в предыдущем периоде (nil = не было).
	PreviousRank *int `json:"previous_rank,omitempty"`

	// TasksCompleted - выполнено задач за период.
	TasksCompleted int `json:"tasks_completed"`

	// TotalMinutes - затрекано минут за период.
	TotalMinutes int `json:"total_minutes"`

	// PointsEarned - заработано очков за период.
	PointsEarned int `json:"points_earned"`

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int `json:"current_streak"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Entries - записи лидерборда (усечённые до лимита).
	Entries []LeaderboardEntryDTO `json:"entries"`

	// Period - тип периода.
	Period string `json:"period"`

	// StartDate - начало окна периода.
	StartDate time.Time `json:"start_date"`

	// EndDate - конец окна периода (nil = открытое окно).
	EndDate *time.Time `json:"end_date,omitempty"`

	// TotalParticipants - количество участников до усечения.
	TotalParticipants int `json:"total_participants"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	metrics   leaderboard.MetricsReader
	snapshots leaderboard.SnapshotRepository
	cache     leaderboard.Cache
	periods   *period.Resolver
	scorer    *leaderboard.Calculator
	ranker    *leaderboard.Ranker
	logger    *slog.Logger
}

// NewGetLeaderboardHandler создаёт новый обработчик запроса лидерборда.
// cache может быть nil - тогда каждый запрос строит лидерборд заново.
func NewGetLeaderboardHandler(
	metrics leaderboard.MetricsReader,
	snapshots leaderboard.SnapshotRepository,
	cache leaderboard.Cache,
	periods *period.Resolver,
	logger *slog.Logger,
) *GetLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardHandler{
		metrics:   metrics,
		snapshots: snapshots,
		cache:     cache,
		periods:   periods,
		scorer:    leaderboard.NewCalculator(),
		ranker:    leaderboard.NewRanker(),
		logger:    logger,
	}
}

// Handle выполняет запрос на получение лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	// Валидация входных данных
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, "invalid leaderboard query", err)
	}

	pt, err := period.ParseType(query.PeriodType)
	if err != nil && query.StartDate == nil && query.EndDate == nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrInvalidWindow, "unknown period type", err)
	}

	window, err := h.periods.Resolve(pt, query.StartDate, query.EndDate)
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrInvalidWindow, "cannot resolve period window", err)
	}

	// Попытка получить из кеша (только для именованных периодов:
	// произвольные окна кешировать бессмысленно).
	if cached := h.tryGetFromCache(ctx, query.Scope, window); cached != nil {
		return h.buildResult(cached, window, query.Limit), nil
	}

	ranked, err := h.build(ctx, query.Scope, window)
	if err != nil {
		return nil, err
	}

	h.trySetCache(ctx, query.Scope, window, ranked)

	return h.buildResult(ranked, window, query.Limit), nil
}

// Build строит полный (неусечённый) лидерборд. Используется также
// фоновой задачей снапшотов, которой нужны все участники.
func (h *GetLeaderboardHandler) Build(ctx context.Context, scope leaderboard.Scope, window period.Window) ([]leaderboard.RankedEntry, error) {
	return h.build(ctx, scope, window)
}

func (h *GetLeaderboardHandler) build(ctx context.Context, scope leaderboard.Scope, window period.Window) ([]leaderboard.RankedEntry, error) {
	userIDs, err := h.metrics.ListScopeUsers(ctx, scope)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrScopeNotFound, "scope not found", err)
		}
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrExternalService, "cannot list scope members", err)
	}

	metrics := h.collectMetrics(ctx, scope, window, userIDs)

	scored := h.scorer.ScoreAll(metrics)
	ranked := h.ranker.Rank(scored)

	previous, err := h.previousRanks(ctx, scope, window)
	if err != nil {
		// Тренды не критичны: без предыдущего окна все stable.
		h.logger.Warn("previous ranks unavailable, trends default to stable",
			"scope", scope.ID(), "error", err)
		previous = map[string]leaderboard.Rank{}
	}
	leaderboard.ApplyPreviousRanks(ranked, previous)

	return ranked, nil
}

// collectMetrics читает метрики участников параллельно. Ошибка чтения
// одного участника исключает его из выдачи, но не прерывает запрос.
func (h *GetLeaderboardHandler) collectMetrics(
	ctx context.Context,
	scope leaderboard.Scope,
	window period.Window,
	userIDs []string,
) []leaderboard.UserMetrics {
	results := make([]*leaderboard.UserMetrics, len(userIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metricsConcurrency)

	for i, userID := range userIDs {
		g.Go(func() error {
			m, err := h.metrics.GetUserMetrics(gctx, scope, userID, window)
			if err != nil {
				h.logger.Warn("excluding user from leaderboard: metrics read failed",
					"scope", scope.ID(), "user_id", userID, "error", err)
				return nil
			}
			results[i] = &m
			return nil
		})
	}

	// Горутины никогда не возвращают ошибку, Wait нужен только как барьер.
	_ = g.Wait()

	metrics := make([]leaderboard.UserMetrics, 0, len(results))
	for _, m := range results {
		if m != nil {
			metrics = append(metrics, *m)
		}
	}
	return metrics
}

// previousRanks возвращает ранги предыдущего окна. Для кастомных дат
// и отсутствующих снапшотов возвращает пустую карту.
func (h *GetLeaderboardHandler) previousRanks(
	ctx context.Context,
	scope leaderboard.Scope,
	window period.Window,
) (map[string]leaderboard.Rank, error) {
	prev, err := h.periods.Previous(window)
	if err != nil {
		if errors.Is(err, shared.ErrNoPreviousWindow) {
			return map[string]leaderboard.Rank{}, nil
		}
		return nil, err
	}

	return h.snapshots.PreviousRanks(ctx, scope, prev)
}

// tryGetFromCache пытается получить готовый лидерборд из кеша.
func (h *GetLeaderboardHandler) tryGetFromCache(
	ctx context.Context,
	scope leaderboard.Scope,
	window period.Window,
) []leaderboard.RankedEntry {
	if h.cache == nil || window.Type == period.TypeCustom {
		return nil
	}

	ranked, ok, err := h.cache.GetRanked(ctx, scope, window.Type)
	if err != nil || !ok {
		return nil
	}
	return ranked
}

// trySetCache кладёт готовый лидерборд в кеш (best-effort).
func (h *GetLeaderboardHandler) trySetCache(
	ctx context.Context,
	scope leaderboard.Scope,
	window period.Window,
	ranked []leaderboard.RankedEntry,
) {
	if h.cache == nil || window.Type == period.TypeCustom {
		return
	}

	if err := h.cache.SetRanked(ctx, scope, window.Type, ranked); err != nil {
		h.logger.Warn("leaderboard cache write failed", "scope", scope.ID(), "error", err)
	}
}

// buildResult формирует итоговый результат с усечением до лимита.
func (h *GetLeaderboardHandler) buildResult(
	ranked []leaderboard.RankedEntry,
	window period.Window,
	limit int,
) *GetLeaderboardResult {
	total := len(ranked)
	truncated := h.ranker.Truncate(ranked, limit)

	dtos := make([]LeaderboardEntryDTO, len(truncated))
	for i, e := range truncated {
		dtos[i] = toDTO(e)
	}

	return &GetLeaderboardResult{
		Entries:           dtos,
		Period:            string(window.Type),
		StartDate:         window.Start,
		EndDate:           window.End,
		TotalParticipants: total,
		GeneratedAt:       time.Now().UTC(),
	}
}

// toDTO конвертирует доменную сущность в DTO.
func toDTO(e leaderboard.RankedEntry) LeaderboardEntryDTO {
	dto := LeaderboardEntryDTO{
		Rank:           int(e.Rank),
		UserID:         e.UserID,
		Score:          float64(e.PerformanceScore),
		Trend:          string(e.Trend),
		TasksCompleted: e.TasksCompleted,
		TotalMinutes:   e.TotalMinutes,
		PointsEarned:   e.PointsEarned,
		CurrentStreak:  e.CurrentStreak,
	}

	if e.PreviousRank != nil {
		r := int(*e.PreviousRank)
		dto.PreviousRank = &r
	}

	return dto
}
