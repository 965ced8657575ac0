package logic

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
)

// RealtimeResult summarises what a live update changed.
type RealtimeResult struct {
	GameID        int64             `json:"game_id"`
	Status        models.GameStatus `json:"status"`
	Finished      bool              `json:"finished"` // true only on the update that ended the game
	LinesUpdated  int               `json:"lines_updated"`
	LinesSkipped  int               `json:"lines_skipped"`
	StatusIgnored bool              `json:"status_ignored"`
}

// RealtimeDeps are the collaborators of the live update processor.
type RealtimeDeps struct {
	Games       GameStore
	BoxScores   BoxScoreStore
	Rosters     RosterStore
	Predictions PredictionService
	Forms       FormCache
}

type realtimeService struct {
	deps   RealtimeDeps
	logger *zap.SugaredLogger
}

func NewRealtimeService(deps RealtimeDeps, logger *zap.Logger) RealtimeService {
	if deps.Forms == nil {
		deps.Forms = noopFormCache{}
	}
	return &realtimeService{deps: deps, logger: logger.Sugar()}
}

// ProcessGameData applies one live feed update. A missing game yields a nil
// result. Updates to a game that is already FINISHED are ignored.
func (s *realtimeService) ProcessGameData(ctx context.Context, gameID int64, update models.LiveGameUpdate) (*RealtimeResult, error) {
	game, err := s.deps.Games.GetGame(ctx, gameID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warnw("Live update for unknown game", "game_id", gameID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}

	res := &RealtimeResult{GameID: gameID, Status: game.Status}
	if game.Status == models.GameFinished {
		s.logger.Infow("Ignoring live update for finished game", "game_id", gameID)
		res.StatusIgnored = update.Status != "" && update.Status != models.GameFinished
		return res, nil
	}

	home, away := game.HomeScore, game.AwayScore
	if update.HomeScore != nil {
		home = *update.HomeScore
	}
	if update.AwayScore != nil {
		away = *update.AwayScore
	}

	status := game.Status
	if update.Status != "" {
		if game.Status.CanTransition(update.Status) {
			status = update.Status
		} else {
			s.logger.Warnw("Rejected status transition", "game_id", gameID, "from", game.Status, "to", update.Status)
			res.StatusIgnored = true
		}
	}

	// Lines before status: FINISHED locks the box score.
	for _, line := range update.PlayerStats {
		ok, err := s.applyLine(ctx, game, line)
		if err != nil {
			return res, fmt.Errorf("player %d line: %w", line.PlayerID, err)
		}
		if ok {
			res.LinesUpdated++
		} else {
			res.LinesSkipped++
		}
	}

	err = s.deps.Games.UpdateGameLive(ctx, gameID, home, away, status)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warnw("Game finished before live update applied", "game_id", gameID)
		res.StatusIgnored = true
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("update game: %w", err)
	}
	res.Status = status

	if status == models.GameFinished {
		res.Finished = true
		if _, err := s.deps.Predictions.EvaluateGame(ctx, gameID); err != nil {
			s.logger.Errorw("Prediction evaluation failed", "game_id", gameID, "error", err)
		}
		if err := s.deps.Forms.Invalidate(ctx, game.HomeTeamID, game.AwayTeamID); err != nil {
			s.logger.Warnw("Form cache invalidation failed", "game_id", gameID, "error", err)
		}
		s.logger.Infow("Game finished via live feed", "game_id", gameID, "home_score", home, "away_score", away)
	}
	return res, nil
}

func (s *realtimeService) applyLine(ctx context.Context, game *models.Game, line models.LivePlayerStat) (bool, error) {
	rec, err := s.deps.BoxScores.GetPlayerGameRecord(ctx, line.PlayerID, game.ID)
	if errors.Is(err, ErrNotFound) {
		player, perr := s.deps.Rosters.GetPlayer(ctx, line.PlayerID)
		if errors.Is(perr, ErrNotFound) {
			s.logger.Warnw("Skipping line for unknown player", "player_id", line.PlayerID, "game_id", game.ID)
			return false, nil
		}
		if perr != nil {
			return false, perr
		}
		teamID := line.TeamID
		if teamID == 0 {
			teamID = player.TeamID
		}
		rec = &models.PlayerGameRecord{
			PlayerID: line.PlayerID,
			GameID:   game.ID,
			TeamID:   teamID,
			GameDate: game.DateTime,
		}
	} else if err != nil {
		return false, err
	}

	line.Apply(rec)
	err = s.deps.BoxScores.UpsertPlayerGameRecord(ctx, rec)
	if errors.Is(err, ErrGameFinished) {
		s.logger.Warnw("Dropping stale line for finished game", "player_id", line.PlayerID, "game_id", game.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
