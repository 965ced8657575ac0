package models

import (
	"time"

	"github.com/google/uuid"
)

// QuarterScores is a four-quarter split of a predicted final score.
type QuarterScores struct {
	Q1 int `json:"q1"`
	Q2 int `json:"q2"`
	Q3 int `json:"q3"`
	Q4 int `json:"q4"`
}

// Total returns the sum of all quarters.
func (q QuarterScores) Total() int {
	return q.Q1 + q.Q2 + q.Q3 + q.Q4
}

// MatchupPlayer describes one side of a key player matchup
type MatchupPlayer struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Position   string  `json:"position"`
	Efficiency float64 `json:"efficiency"`
}

// KeyMatchup compares two same-position players
type KeyMatchup struct {
	HomePlayer  MatchupPlayer `json:"home_player"`
	AwayPlayer  MatchupPlayer `json:"away_player"`
	Advantage   string        `json:"advantage"`    // strong_home, slight_home, even, slight_away, strong_away
	ImpactLevel string        `json:"impact_level"` // high, medium, low
}

// MatchupFactors is the structured rationale stored with a game prediction
type MatchupFactors struct {
	KeyPlayerMatchups []KeyMatchup `json:"key_player_matchups"`
	HomeAdvantage     string       `json:"home_advantage"` // strong, moderate, slight, none
	PredictedPace     string       `json:"predicted_pace"` // fast, moderate, slow
}

// GamePrediction forecasts the outcome of an upcoming game.
// Accuracy stays nil until the game finishes and is evaluated once.
type GamePrediction struct {
	ID                 uuid.UUID      `json:"id"`
	GameID             int64          `json:"game_id"`
	HomeWinProbability float64        `json:"home_team_win_probability"`
	PredictedHomeScore int            `json:"predicted_home_score"`
	PredictedAwayScore int            `json:"predicted_away_score"`
	HomeQuarters       QuarterScores  `json:"home_quarters"`
	AwayQuarters       QuarterScores  `json:"away_quarters"`
	KeyMatchupFactors  MatchupFactors `json:"key_matchup_factors"`
	Accuracy           *float64       `json:"prediction_accuracy"`
	CreatedAt          time.Time      `json:"created_at"`
}

// PredictionFactors summarises why a player prediction looks the way it does
type PredictionFactors struct {
	RecentForm        string `json:"recent_form"`        // good, average, poor
	MatchupHistory    string `json:"matchup_history"`    // favorable, neutral, unfavorable
	MinutesProjection string `json:"minutes_projection"` // high, moderate, low
}

// PlayerPerformancePrediction forecasts one player's box score for a game.
// Unique on (PlayerID, GameID).
type PlayerPerformancePrediction struct {
	ID                  uuid.UUID         `json:"id"`
	PlayerID            int64             `json:"player_id"`
	GameID              int64             `json:"game_id"`
	PredictedPoints     int               `json:"predicted_points"`
	PredictedRebounds   int               `json:"predicted_rebounds"`
	PredictedAssists    int               `json:"predicted_assists"`
	PredictedSteals     int               `json:"predicted_steals"`
	PredictedBlocks     int               `json:"predicted_blocks"`
	PredictedMinutes    int               `json:"predicted_minutes"`
	PredictedEfficiency float64           `json:"predicted_efficiency"`
	ConfidenceScore     float64           `json:"confidence_score"`
	Factors             PredictionFactors `json:"factors"`
	CreatedAt           time.Time         `json:"created_at"`
}
