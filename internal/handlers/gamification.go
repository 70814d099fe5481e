package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	logpkg "github.com/taskquest/taskquest-api/internal/logger"
	"github.com/taskquest/taskquest-api/internal/models"
	"github.com/taskquest/taskquest-api/internal/request"
	"github.com/taskquest/taskquest-api/internal/validation"
	"go.uber.org/zap"
)

// GamificationHandler serves progress, achievement, and badge requests.
type GamificationHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewGamificationHandler creates a new gamification handler
func NewGamificationHandler(engine Engine, logger *zap.Logger) *GamificationHandler {
	return &GamificationHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers gamification routes on the given router. The
// router should already carry the /gamification prefix.
func (h *GamificationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/achievements/new", h.GetNewAchievements).Methods("GET")
	r.HandleFunc("/achievements/viewed", h.MarkAchievementsViewed).Methods("POST")
	r.HandleFunc("/badges", h.GetBadges).Methods("GET")
}

// MarkViewedRequest carries the achievement ids the client has shown.
type MarkViewedRequest struct {
	AchievementIDs []int64 `json:"achievement_ids"`
}

// GetStats returns the user's progress snapshot, creating the zero-value row
// on first access.
func (h *GamificationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	stats, err := h.engine.InitializeUserStats(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("get_stats_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetNewAchievements returns achievements the client has not shown yet.
func (h *GamificationHandler) GetNewAchievements(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	achievements, err := h.engine.GetNewAchievements(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("get_new_achievements_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load achievements")
		return
	}
	if achievements == nil {
		achievements = []*models.UserAchievement{}
	}
	respondJSON(w, http.StatusOK, achievements)
}

// MarkAchievementsViewed flags the given achievements as displayed so they
// leave the notification feed. An empty list is a no-op.
func (h *GamificationHandler) MarkAchievementsViewed(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req MarkViewedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	if err := h.engine.MarkAchievementsAsDisplayed(r.Context(), user.ID, req.AchievementIDs); err != nil {
		h.logger.Error("mark_achievements_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to mark achievements")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"marked": len(req.AchievementIDs)})
}

// GetBadges returns everything the user has earned, with badge details.
func (h *GamificationHandler) GetBadges(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	badges, err := h.engine.GetUserBadgesWithDetails(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("get_badges_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load badges")
		return
	}
	if badges == nil {
		badges = []*models.UserAchievement{}
	}
	respondJSON(w, http.StatusOK, badges)
}
