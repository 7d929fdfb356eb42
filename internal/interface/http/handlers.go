package http

import (
	"net/http"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/application/query"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "Chrono Performance Hub API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":       "/health",
			"leaderboard":  "/api/v1/leaderboard",
			"rank":         "/api/v1/users/{id}/rank",
			"summary":      "/api/v1/users/{id}/summary",
			"achievements": "/api/v1/users/{id}/achievements",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard.
//
// Query parameters:
//   - company_id (required), project_id, subproject_id - scope selection
//   - period - DAILY | WEEKLY | MONTHLY | QUARTERLY | YEARLY | ALL_TIME
//   - start_date, end_date - custom window, "2006-01-02", overrides period
//   - limit - max entries to return (1-100, default 50)
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	scope, ok := parseScope(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid_scope", "company_id is required; subproject_id requires project_id")
		return
	}

	startDate, err := parseDateParam(r, "start_date")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_date", "start_date must be formatted as 2006-01-02")
		return
	}
	endDate, err := parseDateParam(r, "end_date")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_date", "end_date must be formatted as 2006-01-02")
		return
	}

	q := query.GetLeaderboardQuery{
		Scope:      scope,
		PeriodType: getQueryParam(r, "period", ""),
		StartDate:  startDate,
		EndDate:    endDate,
		Limit:      getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		switch {
		case shared.IsValidation(err):
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case shared.IsInvalidWindow(err):
			writeJSONError(w, http.StatusBadRequest, "invalid_period", err.Error())
		case shared.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "scope_not_found", "Scope does not exist")
		default:
			s.logger.Error("failed to get leaderboard", "error", err, "scope", scope.ID())
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get leaderboard")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseScope builds the leaderboard scope from query parameters.
func parseScope(r *http.Request) (leaderboard.Scope, bool) {
	companyID := r.URL.Query().Get("company_id")
	projectID := r.URL.Query().Get("project_id")
	subProjectID := r.URL.Query().Get("subproject_id")

	if companyID == "" {
		return leaderboard.Scope{}, false
	}
	if subProjectID != "" && projectID == "" {
		return leaderboard.Scope{}, false
	}

	switch {
	case subProjectID != "":
		return leaderboard.SubProjectScope(companyID, projectID, subProjectID), true
	case projectID != "":
		return leaderboard.ProjectScope(companyID, projectID), true
	default:
		return leaderboard.CompanyScope(companyID), true
	}
}

// parseDateParam parses an optional date query parameter.
func parseDateParam(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}

	t, err := time.ParseInLocation(timeutil.FormatDate, raw, timeutil.DefaultTZ)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetUserRank handles GET /api/v1/users/{id}/rank.
//
// Query parameters:
//   - company_id (required), project_id, subproject_id - scope selection
//   - period - DAILY | WEEKLY | MONTHLY | QUARTERLY | YEARLY | ALL_TIME
//   - neighbors - leaderboard entries to include on each side (0-5, default 1)
func (s *Server) handleGetUserRank(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserRankHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "User rank handler not configured")
		return
	}

	scope, ok := parseScope(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid_scope", "company_id is required; subproject_id requires project_id")
		return
	}

	q := query.GetUserRankQuery{
		UserID:     r.PathValue("id"),
		Scope:      scope,
		PeriodType: getQueryParam(r, "period", ""),
		Neighbors:  getQueryParamInt(r, "neighbors", 0),
	}

	result, err := s.deps.GetUserRankHandler.Handle(r.Context(), q)
	if err != nil {
		switch {
		case shared.IsValidation(err):
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case shared.IsInvalidWindow(err):
			writeJSONError(w, http.StatusBadRequest, "invalid_period", err.Error())
		case shared.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "not_found", "User has no activity in this scope and period")
		default:
			s.logger.Error("failed to get user rank", "error", err, "user_id", q.UserID, "scope", scope.ID())
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get user rank")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetUserSummary handles GET /api/v1/users/{id}/summary.
//
// Query parameters:
//   - company_id (required), project_id, subproject_id - scope selection
//   - recent - recent achievements to include (0-20, default 5)
func (s *Server) handleGetUserSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserSummaryHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "User summary handler not configured")
		return
	}

	scope, ok := parseScope(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid_scope", "company_id is required; subproject_id requires project_id")
		return
	}

	q := query.GetUserSummaryQuery{
		UserID:             r.PathValue("id"),
		Scope:              scope,
		RecentAchievements: getQueryParamInt(r, "recent", 0),
	}

	result, err := s.deps.GetUserSummaryHandler.Handle(r.Context(), q)
	if err != nil {
		if shared.IsValidation(err) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.Error("failed to get user summary", "error", err, "user_id", q.UserID, "scope", scope.ID())
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get user summary")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// achievementDTO is the wire representation of an earned achievement.
type achievementDTO struct {
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EarnedAt    time.Time `json:"earned_at"`
}

// handleGetUserAchievements handles GET /api/v1/users/{id}/achievements.
func (s *Server) handleGetUserAchievements(w http.ResponseWriter, r *http.Request) {
	if s.deps.Achievements == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Achievement repository not configured")
		return
	}

	userID := r.PathValue("id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	earned, err := s.deps.Achievements.ListByUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list achievements", "error", err, "user_id", userID)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to list achievements")
		return
	}

	dtos := make([]achievementDTO, 0, len(earned))
	for _, a := range earned {
		dtos = append(dtos, achievementDTO{
			Type:        string(a.Type),
			Title:       a.Title,
			Description: a.Description,
			EarnedAt:    a.EarnedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"achievements": dtos,
	})
}
