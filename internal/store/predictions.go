package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hoopstat/analytics-engine/internal/models"
)

func (p *Postgres) CreateGamePrediction(ctx context.Context, pred *models.GamePrediction) error {
	if pred.ID == uuid.Nil {
		pred.ID = uuid.New()
	}
	home, err := json.Marshal(pred.HomeQuarters)
	if err != nil {
		return fmt.Errorf("marshal home quarters: %w", err)
	}
	away, err := json.Marshal(pred.AwayQuarters)
	if err != nil {
		return fmt.Errorf("marshal away quarters: %w", err)
	}
	factors, err := json.Marshal(pred.KeyMatchupFactors)
	if err != nil {
		return fmt.Errorf("marshal matchup factors: %w", err)
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO game_predictions (
			id, game_id, home_team_win_probability, predicted_home_score, predicted_away_score,
			home_quarters, away_quarters, key_matchup_factors, prediction_accuracy, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pred.ID, pred.GameID, pred.HomeWinProbability, pred.PredictedHomeScore, pred.PredictedAwayScore,
		home, away, factors, pred.Accuracy, pred.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert game prediction: %w", err)
	}
	return nil
}

func (p *Postgres) GamePredictionCreatedSince(ctx context.Context, gameID int64, since time.Time) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM game_predictions WHERE game_id = $1 AND created_at >= $2)`,
		gameID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("recent game prediction: %w", err)
	}
	return exists, nil
}

func (p *Postgres) LatestGamePrediction(ctx context.Context, gameID int64) (*models.GamePrediction, error) {
	var pred models.GamePrediction
	var home, away, factors []byte
	err := p.db.QueryRow(ctx, `
		SELECT id, game_id, home_team_win_probability, predicted_home_score, predicted_away_score,
			home_quarters, away_quarters, key_matchup_factors, prediction_accuracy, created_at
		FROM game_predictions
		WHERE game_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, gameID,
	).Scan(&pred.ID, &pred.GameID, &pred.HomeWinProbability, &pred.PredictedHomeScore,
		&pred.PredictedAwayScore, &home, &away, &factors, &pred.Accuracy, &pred.CreatedAt)
	if err != nil {
		return nil, notFound(err, "latest game prediction")
	}
	if err := json.Unmarshal(home, &pred.HomeQuarters); err != nil {
		return nil, fmt.Errorf("decode home quarters: %w", err)
	}
	if err := json.Unmarshal(away, &pred.AwayQuarters); err != nil {
		return nil, fmt.Errorf("decode away quarters: %w", err)
	}
	if err := json.Unmarshal(factors, &pred.KeyMatchupFactors); err != nil {
		return nil, fmt.Errorf("decode matchup factors: %w", err)
	}
	return &pred, nil
}

// SetPredictionAccuracy only writes a NULL accuracy so a finished game is scored once.
func (p *Postgres) SetPredictionAccuracy(ctx context.Context, predictionID uuid.UUID, accuracy float64) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE game_predictions SET prediction_accuracy = $2
		WHERE id = $1 AND prediction_accuracy IS NULL`, predictionID, accuracy)
	if err != nil {
		return false, fmt.Errorf("set prediction accuracy: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) UpsertPlayerPrediction(ctx context.Context, pred *models.PlayerPerformancePrediction) error {
	if pred.ID == uuid.Nil {
		pred.ID = uuid.New()
	}
	factors, err := json.Marshal(pred.Factors)
	if err != nil {
		return fmt.Errorf("marshal prediction factors: %w", err)
	}

	// The stored id is kept on conflict.
	err = p.db.QueryRow(ctx, `
		INSERT INTO player_performance_predictions (
			id, player_id, game_id, predicted_points, predicted_rebounds, predicted_assists,
			predicted_steals, predicted_blocks, predicted_minutes, predicted_efficiency,
			confidence_score, factors, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (player_id, game_id) DO UPDATE SET
			predicted_points = EXCLUDED.predicted_points,
			predicted_rebounds = EXCLUDED.predicted_rebounds,
			predicted_assists = EXCLUDED.predicted_assists,
			predicted_steals = EXCLUDED.predicted_steals,
			predicted_blocks = EXCLUDED.predicted_blocks,
			predicted_minutes = EXCLUDED.predicted_minutes,
			predicted_efficiency = EXCLUDED.predicted_efficiency,
			confidence_score = EXCLUDED.confidence_score,
			factors = EXCLUDED.factors,
			created_at = EXCLUDED.created_at
		RETURNING id`,
		pred.ID, pred.PlayerID, pred.GameID, pred.PredictedPoints, pred.PredictedRebounds,
		pred.PredictedAssists, pred.PredictedSteals, pred.PredictedBlocks, pred.PredictedMinutes,
		pred.PredictedEfficiency, pred.ConfidenceScore, factors, pred.CreatedAt,
	).Scan(&pred.ID)
	if err != nil {
		return fmt.Errorf("upsert player prediction: %w", err)
	}
	return nil
}

func (p *Postgres) PlayerPredictionCreatedSince(ctx context.Context, playerID, gameID int64, since time.Time) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM player_performance_predictions
			WHERE player_id = $1 AND game_id = $2 AND created_at >= $3
		)`, playerID, gameID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("recent player prediction: %w", err)
	}
	return exists, nil
}

func (p *Postgres) DeletePredictionsBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	games, err := p.db.Exec(ctx, `DELETE FROM game_predictions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("delete game predictions: %w", err)
	}
	players, err := p.db.Exec(ctx, `DELETE FROM player_performance_predictions WHERE created_at < $1`, cutoff)
	if err != nil {
		return games.RowsAffected(), 0, fmt.Errorf("delete player predictions: %w", err)
	}
	return games.RowsAffected(), players.RowsAffected(), nil
}
