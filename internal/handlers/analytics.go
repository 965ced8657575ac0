package handlers

import (
	"errors"
	"net/http"

	"github.com/hoopstat/analytics-engine/internal/logic"
)

// GetPlayerAnalytics returns the latest persisted snapshot for a player
// @Summary Player Analytics Snapshot
// @Tags Analytics
// @Produce json
// @Param id path int true "Player ID"
// @Success 200 {object} models.PlayerAnalyticsSnapshot
// @Failure 404 {object} map[string]string "Not Found"
// @Router /players/{id}/analytics [get]
func (h *Handler) GetPlayerAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.errorResponse(w, http.StatusBadRequest, "Invalid player ID")
		return
	}

	snap, err := h.analytics.LatestPlayerSnapshot(r.Context(), id)
	h.record(w, snap, err, "player_id", id)
}

// GetTeamAnalytics returns the latest persisted snapshot for a team
// @Summary Team Analytics Snapshot
// @Tags Analytics
// @Produce json
// @Param id path int true "Team ID"
// @Success 200 {object} models.TeamAnalyticsSnapshot
// @Failure 404 {object} map[string]string "Not Found"
// @Router /teams/{id}/analytics [get]
func (h *Handler) GetTeamAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.errorResponse(w, http.StatusBadRequest, "Invalid team ID")
		return
	}

	snap, err := h.analytics.LatestTeamSnapshot(r.Context(), id)
	h.record(w, snap, err, "team_id", id)
}

// GetGamePrediction returns the latest prediction for a game
// @Summary Game Prediction
// @Tags Analytics
// @Produce json
// @Param id path int true "Game ID"
// @Success 200 {object} models.GamePrediction
// @Failure 404 {object} map[string]string "Not Found"
// @Router /games/{id}/prediction [get]
func (h *Handler) GetGamePrediction(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.errorResponse(w, http.StatusBadRequest, "Invalid game ID")
		return
	}

	pred, err := h.analytics.LatestGamePrediction(r.Context(), id)
	h.record(w, pred, err, "game_id", id)
}

func (h *Handler) record(w http.ResponseWriter, v interface{}, err error, key string, id int64) {
	if errors.Is(err, logic.ErrNotFound) {
		h.errorResponse(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		h.logger.Errorw("Failed to read analytics", key, id, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to read analytics")
		return
	}
	h.jsonResponse(w, http.StatusOK, v)
}
