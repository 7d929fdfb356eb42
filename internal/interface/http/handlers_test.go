package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrono-hub/chrono-performance-hub/internal/application/query"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/achievement"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeMetricsReader struct {
	users   []string
	metrics map[string]leaderboard.UserMetrics
	listErr error
}

func (f *fakeMetricsReader) GetUserMetrics(_ context.Context, _ leaderboard.Scope, userID string, _ period.Window) (leaderboard.UserMetrics, error) {
	m, ok := f.metrics[userID]
	if !ok {
		return leaderboard.UserMetrics{}, shared.ErrNotFound
	}
	return m, nil
}

func (f *fakeMetricsReader) ListScopeUsers(_ context.Context, _ leaderboard.Scope) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.users, nil
}

type fakeSnapshotRepo struct{}

func (fakeSnapshotRepo) Replace(_ context.Context, _ leaderboard.Scope, _ period.Window, _ []leaderboard.RankedEntry) error {
	return nil
}

func (fakeSnapshotRepo) PreviousRanks(_ context.Context, _ leaderboard.Scope, _ period.Window) (map[string]leaderboard.Rank, error) {
	return map[string]leaderboard.Rank{}, nil
}

func (fakeSnapshotRepo) PruneBefore(_ context.Context, _ leaderboard.Scope, _ period.Type, _ int) (int64, error) {
	return 0, nil
}

type fakeAchievementRepo struct {
	achievements []achievement.Achievement
	err          error
}

func (f *fakeAchievementRepo) Save(_ context.Context, _ achievement.Achievement) (bool, error) {
	return false, nil
}

func (f *fakeAchievementRepo) ListEarnedTypes(_ context.Context, _ string) (map[achievement.Type]bool, error) {
	return nil, nil
}

func (f *fakeAchievementRepo) ListByUser(_ context.Context, _ string) ([]achievement.Achievement, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.achievements, nil
}

type fakeUserRepo struct {
	streaks map[string]user.StreakState
}

func (f *fakeUserRepo) GetByID(_ context.Context, userID string) (*user.User, error) {
	return &user.User{ID: userID}, nil
}

func (f *fakeUserRepo) GetStreak(_ context.Context, userID string) (user.StreakState, error) {
	s, ok := f.streaks[userID]
	if !ok {
		return user.StreakState{}, shared.ErrUserNotFound
	}
	return s, nil
}

func (f *fakeUserRepo) SaveStreak(_ context.Context, userID string, streak user.StreakState) error {
	if f.streaks == nil {
		f.streaks = make(map[string]user.StreakState)
	}
	f.streaks[userID] = streak
	return nil
}

type fakeHealthChecker struct {
	status HealthStatus
}

func (f *fakeHealthChecker) Check(_ context.Context) HealthStatus {
	return f.status
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func testServer(t *testing.T, deps Dependencies) *Server {
	t.Helper()
	config := DefaultConfig()
	config.RateLimitPerMinute = 0
	return NewServer(config, deps)
}

func leaderboardDeps(metrics *fakeMetricsReader) Dependencies {
	resolver := period.NewResolver(nil)
	handler := query.NewGetLeaderboardHandler(metrics, fakeSnapshotRepo{}, nil, resolver, nil)
	return Dependencies{GetLeaderboardHandler: handler}
}

func rankDeps(metrics *fakeMetricsReader) Dependencies {
	resolver := period.NewResolver(nil)
	leaderboards := query.NewGetLeaderboardHandler(metrics, fakeSnapshotRepo{}, nil, resolver, nil)
	return Dependencies{GetUserRankHandler: query.NewGetUserRankHandler(leaderboards, nil)}
}

func summaryDeps(metrics *fakeMetricsReader, users *fakeUserRepo, achievements *fakeAchievementRepo) Dependencies {
	resolver := period.NewResolver(nil)
	handler := query.NewGetUserSummaryHandler(users, metrics, achievements, resolver, nil)
	return Dependencies{GetUserSummaryHandler: handler}
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleGetLeaderboard(t *testing.T) {
	metrics := &fakeMetricsReader{
		users: []string{"u1", "u2"},
		metrics: map[string]leaderboard.UserMetrics{
			"u1": {UserID: "u1", TasksCompleted: 5, TotalMinutes: 300, PointsEarned: 50},
			"u2": {UserID: "u2", TasksCompleted: 20, TotalMinutes: 900, PointsEarned: 200},
		},
	}
	s := testServer(t, leaderboardDeps(metrics))

	rec := doRequest(s, http.MethodGet, "/api/v1/leaderboard?company_id=acme&period=WEEKLY")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	require.True(t, body["success"].(bool))

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "WEEKLY", data["period"])

	entries := data["entries"].([]interface{})
	require.Len(t, entries, 2)

	first := entries[0].(map[string]interface{})
	assert.Equal(t, "u2", first["user_id"])
	assert.Equal(t, float64(1), first["rank"])
}

func TestHandleGetLeaderboardRequiresCompanyID(t *testing.T) {
	s := testServer(t, leaderboardDeps(&fakeMetricsReader{}))

	rec := doRequest(s, http.MethodGet, "/api/v1/leaderboard?period=WEEKLY")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.False(t, body["success"].(bool))
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "invalid_scope", errObj["code"])
}

func TestHandleGetLeaderboardRejectsOrphanSubProject(t *testing.T) {
	s := testServer(t, leaderboardDeps(&fakeMetricsReader{}))

	rec := doRequest(s, http.MethodGet, "/api/v1/leaderboard?company_id=acme&subproject_id=sp1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetLeaderboardRejectsUnknownPeriod(t *testing.T) {
	s := testServer(t, leaderboardDeps(&fakeMetricsReader{users: []string{"u1"}}))

	rec := doRequest(s, http.MethodGet, "/api/v1/leaderboard?company_id=acme&period=FORTNIGHTLY")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "invalid_period", errObj["code"])
}

func TestHandleGetLeaderboardRejectsBadDate(t *testing.T) {
	s := testServer(t, leaderboardDeps(&fakeMetricsReader{}))

	rec := doRequest(s, http.MethodGet, "/api/v1/leaderboard?company_id=acme&start_date=29-08-2026")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "invalid_date", errObj["code"])
}

func TestHandleGetLeaderboardCustomWindow(t *testing.T) {
	metrics := &fakeMetricsReader{
		users: []string{"u1"},
		metrics: map[string]leaderboard.UserMetrics{
			"u1": {UserID: "u1", TasksCompleted: 3, TotalMinutes: 120, PointsEarned: 30},
		},
	}
	s := testServer(t, leaderboardDeps(metrics))

	rec := doRequest(s, http.MethodGet,
		"/api/v1/leaderboard?company_id=acme&start_date=2026-08-01&end_date=2026-08-08")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "CUSTOM", data["period"])
}

func TestHandleGetLeaderboardUnknownScope(t *testing.T) {
	metrics := &fakeMetricsReader{listErr: shared.ErrScopeNotFound}
	s := testServer(t, leaderboardDeps(metrics))

	rec := doRequest(s, http.MethodGet, "/api/v1/leaderboard?company_id=no-such-company&period=WEEKLY")
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.False(t, body["success"].(bool))
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "scope_not_found", errObj["code"])
}

func TestHandleGetLeaderboardInternalError(t *testing.T) {
	metrics := &fakeMetricsReader{listErr: errors.New("db down")}
	s := testServer(t, leaderboardDeps(metrics))

	rec := doRequest(s, http.MethodGet, "/api/v1/leaderboard?company_id=acme&period=DAILY")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGetUserAchievements(t *testing.T) {
	earnedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	repo := &fakeAchievementRepo{
		achievements: []achievement.Achievement{
			{
				UserID:      "u1",
				CompanyID:   "acme",
				Type:        achievement.Type("tasks_10"),
				Title:       "Getting Things Done",
				Description: "Complete 10 tasks",
				EarnedAt:    earnedAt,
			},
		},
	}
	s := testServer(t, Dependencies{Achievements: repo})

	rec := doRequest(s, http.MethodGet, "/api/v1/users/u1/achievements")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "u1", data["user_id"])

	list := data["achievements"].([]interface{})
	require.Len(t, list, 1)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "tasks_10", first["type"])
	assert.Equal(t, "Getting Things Done", first["title"])
}

func TestHandleGetUserAchievementsEmpty(t *testing.T) {
	s := testServer(t, Dependencies{Achievements: &fakeAchievementRepo{}})

	rec := doRequest(s, http.MethodGet, "/api/v1/users/u9/achievements")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	list := data["achievements"].([]interface{})
	assert.Empty(t, list)
}

func TestHandleGetUserAchievementsRepoError(t *testing.T) {
	s := testServer(t, Dependencies{Achievements: &fakeAchievementRepo{err: errors.New("db down")}})

	rec := doRequest(s, http.MethodGet, "/api/v1/users/u1/achievements")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGetUserRank(t *testing.T) {
	metrics := &fakeMetricsReader{
		users: []string{"u1", "u2", "u3"},
		metrics: map[string]leaderboard.UserMetrics{
			"u1": {UserID: "u1", TasksCompleted: 30, TotalMinutes: 900, PointsEarned: 300},
			"u2": {UserID: "u2", TasksCompleted: 20, TotalMinutes: 600, PointsEarned: 200},
			"u3": {UserID: "u3", TasksCompleted: 10, TotalMinutes: 300, PointsEarned: 100},
		},
	}
	s := testServer(t, rankDeps(metrics))

	rec := doRequest(s, http.MethodGet, "/api/v1/users/u2/rank?company_id=acme&period=WEEKLY&neighbors=1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})

	userData := data["user"].(map[string]interface{})
	assert.Equal(t, "u2", userData["user_id"])
	assert.Equal(t, float64(2), userData["rank"])
	assert.Equal(t, float64(3), userData["total_participants"])

	neighbors := data["neighbors"].([]interface{})
	require.Len(t, neighbors, 3)
}

func TestHandleGetUserRankRequiresScope(t *testing.T) {
	s := testServer(t, rankDeps(&fakeMetricsReader{}))

	rec := doRequest(s, http.MethodGet, "/api/v1/users/u1/rank?period=WEEKLY")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "invalid_scope", errObj["code"])
}

func TestHandleGetUserRankUnknownUser(t *testing.T) {
	metrics := &fakeMetricsReader{
		users:   []string{"u1"},
		metrics: map[string]leaderboard.UserMetrics{"u1": {UserID: "u1", TasksCompleted: 1}},
	}
	s := testServer(t, rankDeps(metrics))

	rec := doRequest(s, http.MethodGet, "/api/v1/users/ghost/rank?company_id=acme&period=WEEKLY")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "not_found", errObj["code"])
}

func TestHandleGetUserRankRejectsUnknownPeriod(t *testing.T) {
	s := testServer(t, rankDeps(&fakeMetricsReader{users: []string{"u1"}}))

	rec := doRequest(s, http.MethodGet, "/api/v1/users/u1/rank?company_id=acme&period=FORTNIGHTLY")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetUserSummary(t *testing.T) {
	metrics := &fakeMetricsReader{
		metrics: map[string]leaderboard.UserMetrics{
			"u1": {UserID: "u1", TasksCompleted: 4, TotalMinutes: 120, PointsEarned: 40},
		},
	}
	users := &fakeUserRepo{streaks: map[string]user.StreakState{
		"u1": {CurrentStreak: 5, LongestStreak: 9, LastActiveDate: time.Now().UTC()},
	}}
	achievements := &fakeAchievementRepo{achievements: []achievement.Achievement{
		{Type: achievement.Type("streak_7"), Title: "Week of Fire", EarnedAt: time.Now().UTC()},
	}}
	s := testServer(t, summaryDeps(metrics, users, achievements))

	rec := doRequest(s, http.MethodGet, "/api/v1/users/u1/summary?company_id=acme")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "u1", data["user_id"])

	today := data["today"].(map[string]interface{})
	assert.Equal(t, float64(4), today["tasks_completed"])

	streak := data["streak"].(map[string]interface{})
	assert.Equal(t, float64(5), streak["current"])
	assert.Equal(t, true, streak["active_today"])

	assert.Equal(t, float64(1), data["total_achievements"])
}

func TestHandleGetUserSummaryUnknownUserIsZeroed(t *testing.T) {
	s := testServer(t, summaryDeps(&fakeMetricsReader{}, &fakeUserRepo{}, &fakeAchievementRepo{}))

	rec := doRequest(s, http.MethodGet, "/api/v1/users/ghost/summary?company_id=acme")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	today := data["today"].(map[string]interface{})
	assert.Equal(t, float64(0), today["tasks_completed"])
}

func TestHandleGetUserSummaryRequiresScope(t *testing.T) {
	s := testServer(t, summaryDeps(&fakeMetricsReader{}, &fakeUserRepo{}, &fakeAchievementRepo{}))

	rec := doRequest(s, http.MethodGet, "/api/v1/users/u1/summary")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	checker := &fakeHealthChecker{status: HealthStatus{Healthy: true, Ready: true}}
	s := testServer(t, Dependencies{HealthChecker: checker})

	rec := doRequest(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.status = HealthStatus{Healthy: false, Message: "postgres unreachable"}
	rec = doRequest(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleReadyAndLive(t *testing.T) {
	s := testServer(t, Dependencies{
		HealthChecker: &fakeHealthChecker{status: HealthStatus{Healthy: true, Ready: true}},
	})

	rec := doRequest(s, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/live")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	s := testServer(t, Dependencies{})

	rec := doRequest(s, http.MethodGet, "/live")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
