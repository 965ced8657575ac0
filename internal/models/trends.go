package models

import "time"

type PeriodType string

const (
	PeriodWeek   PeriodType = "WEEK"
	PeriodMonth  PeriodType = "MONTH"
	PeriodSeason PeriodType = "SEASON"
	PeriodCustom PeriodType = "CUSTOM"
)

type StreakType string

const (
	StreakWin  StreakType = "WIN"
	StreakLoss StreakType = "LOSS"
)

// TeamPerformanceTrend aggregates a team over an explicit date range.
// Unique on (TeamID, PeriodStart, PeriodEnd, PeriodType).
type TeamPerformanceTrend struct {
	ID                   int64          `json:"id"`
	TeamID               int64          `json:"team_id"`
	PeriodStart          time.Time      `json:"period_start"`
	PeriodEnd            time.Time      `json:"period_end"`
	PeriodType           PeriodType     `json:"period_type"`
	GamesPlayed          int            `json:"games_played"`
	Wins                 int            `json:"wins"`
	Losses               int            `json:"losses"`
	PointsScoredAvg      float64        `json:"points_scored_avg"`
	PointsAllowedAvg     float64        `json:"points_allowed_avg"`
	QuartersScored       QuarterSplits  `json:"quarters_scored"`
	QuartersAllowed      QuarterSplits  `json:"quarters_allowed"`
	HomeWins             int            `json:"home_wins"`
	HomeLosses           int            `json:"home_losses"`
	AwayWins             int            `json:"away_wins"`
	AwayLosses           int            `json:"away_losses"`
	HomePointsScoredAvg  float64        `json:"home_points_scored_avg"`
	HomePointsAllowedAvg float64        `json:"home_points_allowed_avg"`
	AwayPointsScoredAvg  float64        `json:"away_points_scored_avg"`
	AwayPointsAllowedAvg float64        `json:"away_points_allowed_avg"`
	StreakType           StreakType     `json:"streak_type,omitempty"`
	StreakCount          int            `json:"streak_count"`
	TrendDirection       TrendDirection `json:"trend_direction"`
	OffensiveEfficiency  float64        `json:"offensive_efficiency"`
	DefensiveEfficiency  float64        `json:"defensive_efficiency"`
	Pace                 float64        `json:"pace"`
	UpdatedAt            time.Time      `json:"updated_at"`
}
