package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoopstat/analytics-engine/internal/logic"
	"github.com/hoopstat/analytics-engine/internal/models"
	"github.com/hoopstat/analytics-engine/internal/scheduler"
	"github.com/hoopstat/analytics-engine/internal/worker"
)

// TriggerJob handles POST /api/v1/jobs/{job}
// @Summary Trigger Analytics Job
// @Description Queues a job for one entity, or for every entity when entity_id is omitted
// @Tags Jobs
// @Accept json
// @Produce json
// @Security AdminToken
// @Param job path string true "Job type" Enums(aggregate_player, aggregate_team, compute_team_trends, predict_game, predict_player_performance, on_game_finished, cleanup_old_predictions, consolidate_snapshots, validate_integrity)
// @Param body body models.JobRequest false "Target and window"
// @Success 202 {object} models.JobAccepted
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /jobs/{job} [post]
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	jobType := models.JobType(chi.URLParam(r, "job"))
	if !jobType.Valid() {
		h.errorResponse(w, http.StatusNotFound, "Unknown job")
		return
	}
	if jobType == models.JobRealtimeGameData {
		h.errorResponse(w, http.StatusBadRequest, "Live updates go through /api/v1/games/{id}/live")
		return
	}

	var req models.JobRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "Invalid job request: "+err.Error())
		return
	}

	job := models.NewJob(jobType, req.EntityID, req.Days)
	if jobType == models.JobGameFinished {
		if req.EntityID == nil {
			h.errorResponse(w, http.StatusBadRequest, "entity_id is required for on_game_finished")
			return
		}
		job = worker.GameFinishedJob(*req.EntityID)
	}

	queued, ok, err := h.queue.Enqueue(r.Context(), job)
	if err != nil {
		h.logger.Errorw("Failed to enqueue job", "job", jobType, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}
	h.accepted(w, queued, ok)
}

// GameFinished handles POST /api/v1/games/{id}/finished
// @Summary Schedule Post-Game Cascade
// @Tags Jobs
// @Produce json
// @Security AdminToken
// @Param id path int true "Game ID"
// @Success 202 {object} models.JobAccepted
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /games/{id}/finished [post]
func (h *Handler) GameFinished(w http.ResponseWriter, r *http.Request) {
	gameID, ok := idParam(r, "id")
	if !ok {
		h.errorResponse(w, http.StatusBadRequest, "Invalid game ID")
		return
	}

	game, err := h.games.GetGame(r.Context(), gameID)
	if errors.Is(err, logic.ErrNotFound) {
		h.errorResponse(w, http.StatusNotFound, "Game not found")
		return
	}
	if err != nil {
		h.logger.Errorw("Failed to load game", "game_id", gameID, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to load game")
		return
	}
	if game.Status != models.GameFinished {
		h.errorResponse(w, http.StatusConflict, "Game is "+string(game.Status))
		return
	}

	queued, ok, err := worker.ScheduleGameFinished(r.Context(), h.queue, gameID, h.postGameDelay)
	if err != nil {
		h.logger.Errorw("Failed to schedule post-game cascade", "game_id", gameID, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to schedule cascade")
		return
	}
	h.accepted(w, queued, ok)
}

// LiveUpdate handles POST /api/v1/games/{id}/live
// @Summary Live Game Update
// @Description Queues scores, status and player lines for realtime processing
// @Tags Realtime
// @Accept json
// @Produce json
// @Security AdminToken
// @Param id path int true "Game ID"
// @Param body body models.LiveGameUpdate true "Update"
// @Success 202 {object} models.JobAccepted
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /games/{id}/live [post]
func (h *Handler) LiveUpdate(w http.ResponseWriter, r *http.Request) {
	gameID, ok := idParam(r, "id")
	if !ok {
		h.errorResponse(w, http.StatusBadRequest, "Invalid game ID")
		return
	}

	var update models.LiveGameUpdate
	if err := h.decodeBody(w, r, &update); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "Invalid live update: "+err.Error())
		return
	}

	if _, err := h.games.GetGame(r.Context(), gameID); err != nil {
		if errors.Is(err, logic.ErrNotFound) {
			h.errorResponse(w, http.StatusNotFound, "Game not found")
			return
		}
		h.logger.Errorw("Failed to load game", "game_id", gameID, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to load game")
		return
	}

	job, err := worker.RealtimeJob(gameID, update)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	queued, ok, err := h.queue.Enqueue(r.Context(), job)
	if err != nil {
		h.logger.Errorw("Failed to enqueue live update", "game_id", gameID, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to enqueue live update")
		return
	}
	h.accepted(w, queued, ok)
}

// GetSchedule handles GET /api/v1/schedule
// @Summary Recurring Jobs
// @Tags Jobs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /schedule [get]
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	entries := []scheduler.EntryStatus{}
	if h.schedule != nil {
		entries = h.schedule.Schedule()
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"enabled": h.schedule != nil,
		"entries": entries,
	})
}

func (h *Handler) accepted(w http.ResponseWriter, job models.Job, queued bool) {
	status := "queued"
	if !queued {
		status = "duplicate"
	}
	h.jsonResponse(w, http.StatusAccepted, models.JobAccepted{
		JobID:  job.ID,
		Type:   job.Type,
		Queue:  job.Type.Queue(),
		Status: status,
	})
}
