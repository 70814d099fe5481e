package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/taskquest/taskquest-api/internal/models"
	"go.uber.org/zap"
)

func gamificationRouter(engine *mockHandlerEngine) *mux.Router {
	router := mux.NewRouter()
	handler := NewGamificationHandler(engine, zap.NewNop())
	handler.RegisterRoutes(router.PathPrefix("/api/v1/gamification").Subrouter())
	return router
}

func TestGetStatsCreatesRowOnFirstAccess(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	engine := &mockHandlerEngine{stats: &models.UserStats{UserID: user.ID, Points: 120, Level: 2, DaysStreak: 3}}
	router := gamificationRouter(engine)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/gamification/stats", nil, user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats models.UserStats
	decodeData(t, rec.Body.Bytes(), &stats)
	if stats.Points != 120 || stats.Level != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGetNewAchievementsAlwaysReturnsArray(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	router := gamificationRouter(&mockHandlerEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/gamification/achievements/new", nil, user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(envelope.Data) != "[]" {
		t.Errorf("data = %s, expected an empty array rather than null", envelope.Data)
	}
}

func TestMarkAchievementsViewed(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	engine := &mockHandlerEngine{}
	router := gamificationRouter(engine)

	body := map[string]any{"achievement_ids": []int64{3, 7}}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/gamification/achievements/viewed", body, user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(engine.marked) != 2 || engine.marked[0] != 3 || engine.marked[1] != 7 {
		t.Errorf("marked = %v, expected [3 7]", engine.marked)
	}

	// An empty list is accepted as a no-op.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/gamification/achievements/viewed", map[string]any{"achievement_ids": []int64{}}, user))
	if rec.Code != http.StatusOK {
		t.Errorf("empty list status = %d, expected 200", rec.Code)
	}
}

func TestGetBadgesIncludesDetails(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	engine := &mockHandlerEngine{badges: []*models.UserAchievement{
		{
			ID:       1,
			UserID:   user.ID,
			BadgeID:  4,
			EarnedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			Badge:    &models.AchievementBadge{ID: 4, Name: "Priority Handler", Type: models.BadgeTypePriority},
		},
	}}
	router := gamificationRouter(engine)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/gamification/badges", nil, user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var badges []*models.UserAchievement
	decodeData(t, rec.Body.Bytes(), &badges)
	if len(badges) != 1 || badges[0].Badge == nil || badges[0].Badge.Name != "Priority Handler" {
		t.Errorf("badges = %+v, expected the joined badge details", badges)
	}
}

func TestGamificationRoutesRequireUser(t *testing.T) {
	t.Parallel()

	router := gamificationRouter(&mockHandlerEngine{})
	for _, target := range []string{
		"/api/v1/gamification/stats",
		"/api/v1/gamification/achievements/new",
		"/api/v1/gamification/badges",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodGet, target, nil, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, expected 401", target, rec.Code)
		}
	}
}
