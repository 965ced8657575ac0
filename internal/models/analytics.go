package models

import "time"

// TrendDirection labels how recent performance compares with earlier performance.
type TrendDirection string

const (
	TrendImproving TrendDirection = "IMPROVING"
	TrendDeclining TrendDirection = "DECLINING"
	TrendStable    TrendDirection = "STABLE"
)

// PlayerAnalyticsSnapshot is the dated rolling aggregate for one player.
// Unique on (PlayerID, Date).
type PlayerAnalyticsSnapshot struct {
	ID                     int64          `json:"id"`
	PlayerID               int64          `json:"player_id"`
	Date                   time.Time      `json:"date"`
	PointsAvg              float64        `json:"points_avg"`
	ReboundsAvg            float64        `json:"rebounds_avg"`
	AssistsAvg             float64        `json:"assists_avg"`
	StealsAvg              float64        `json:"steals_avg"`
	BlocksAvg              float64        `json:"blocks_avg"`
	TurnoversAvg           float64        `json:"turnovers_avg"`
	MinutesAvg             float64        `json:"minutes_avg"`
	FieldGoalPercentage    float64        `json:"field_goal_percentage"`
	ThreePointPercentage   float64        `json:"three_point_percentage"`
	FreeThrowPercentage    float64        `json:"free_throw_percentage"`
	TrueShootingPercentage float64        `json:"true_shooting_percentage"`
	EfficiencyRating       float64        `json:"efficiency_rating"`
	Last10GamesRating      float64        `json:"last_10_games_rating"`
	TrendDirection         TrendDirection `json:"trend_direction"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// QuarterSplits holds per-quarter point averages.
type QuarterSplits struct {
	Q1 float64 `json:"q1"`
	Q2 float64 `json:"q2"`
	Q3 float64 `json:"q3"`
	Q4 float64 `json:"q4"`
}

// TeamAnalyticsSnapshot is the dated rolling aggregate for one team.
// Unique on (TeamID, Date).
type TeamAnalyticsSnapshot struct {
	ID                int64          `json:"id"`
	TeamID            int64          `json:"team_id"`
	Date              time.Time      `json:"date"`
	Wins              int            `json:"wins"`
	Losses            int            `json:"losses"`
	PointsScoredAvg   float64        `json:"points_scored_avg"`
	PointsAllowedAvg  float64        `json:"points_allowed_avg"`
	WinPercentage     float64        `json:"win_percentage"`
	OffensiveRating   float64        `json:"offensive_rating"`
	DefensiveRating   float64        `json:"defensive_rating"`
	NetRating         float64        `json:"net_rating"`
	Pace              float64        `json:"pace"`
	QuartersScored    QuarterSplits  `json:"quarters_scored"`
	QuartersAllowed   QuarterSplits  `json:"quarters_allowed"`
	HomeWinPercentage float64        `json:"home_win_percentage"`
	AwayWinPercentage float64        `json:"away_win_percentage"`
	TrendDirection    TrendDirection `json:"trend_direction"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// SnapshotKind selects the player or team snapshot table.
type SnapshotKind string

const (
	PlayerSnapshots SnapshotKind = "player"
	TeamSnapshots   SnapshotKind = "team"
)

// SnapshotKey identifies a stored snapshot row without its metrics.
type SnapshotKey struct {
	ID       int64
	EntityID int64
	Date     time.Time
}
