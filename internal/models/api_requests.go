package models

// LivePlayerStat is a partial box-score line from a live feed.
// Nil fields keep the stored value.
type LivePlayerStat struct {
	PlayerID               int64 `json:"player_id" validate:"required,gt=0"`
	TeamID                 int64 `json:"team_id,omitempty" validate:"gte=0"`
	Points                 *int  `json:"points,omitempty" validate:"omitempty,gte=0"`
	Rebounds               *int  `json:"rebounds,omitempty" validate:"omitempty,gte=0"`
	Assists                *int  `json:"assists,omitempty" validate:"omitempty,gte=0"`
	Steals                 *int  `json:"steals,omitempty" validate:"omitempty,gte=0"`
	Blocks                 *int  `json:"blocks,omitempty" validate:"omitempty,gte=0"`
	Turnovers              *int  `json:"turnovers,omitempty" validate:"omitempty,gte=0"`
	MinutesPlayed          *int  `json:"minutes_played,omitempty" validate:"omitempty,gte=0,lte=96"`
	FieldGoalsMade         *int  `json:"field_goals_made,omitempty" validate:"omitempty,gte=0"`
	FieldGoalsAttempted    *int  `json:"field_goals_attempted,omitempty" validate:"omitempty,gte=0"`
	ThreePointersMade      *int  `json:"three_pointers_made,omitempty" validate:"omitempty,gte=0"`
	ThreePointersAttempted *int  `json:"three_pointers_attempted,omitempty" validate:"omitempty,gte=0"`
	FreeThrowsMade         *int  `json:"free_throws_made,omitempty" validate:"omitempty,gte=0"`
	FreeThrowsAttempted    *int  `json:"free_throws_attempted,omitempty" validate:"omitempty,gte=0"`
}

// Apply merges the non-nil fields of s into rec.
func (s LivePlayerStat) Apply(rec *PlayerGameRecord) {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&rec.Points, s.Points)
	set(&rec.Rebounds, s.Rebounds)
	set(&rec.Assists, s.Assists)
	set(&rec.Steals, s.Steals)
	set(&rec.Blocks, s.Blocks)
	set(&rec.Turnovers, s.Turnovers)
	set(&rec.MinutesPlayed, s.MinutesPlayed)
	set(&rec.FieldGoalsMade, s.FieldGoalsMade)
	set(&rec.FieldGoalsAttempted, s.FieldGoalsAttempted)
	set(&rec.ThreePointersMade, s.ThreePointersMade)
	set(&rec.ThreePointersAttempted, s.ThreePointersAttempted)
	set(&rec.FreeThrowsMade, s.FreeThrowsMade)
	set(&rec.FreeThrowsAttempted, s.FreeThrowsAttempted)
}

// LiveGameUpdate is one push from the live scoring feed for a game.
type LiveGameUpdate struct {
	HomeScore   *int             `json:"home_score,omitempty" validate:"omitempty,gte=0"`
	AwayScore   *int             `json:"away_score,omitempty" validate:"omitempty,gte=0"`
	Status      GameStatus       `json:"status,omitempty" validate:"omitempty,oneof=SCHEDULED LIVE FINISHED POSTPONED"`
	PlayerStats []LivePlayerStat `json:"player_stats,omitempty" validate:"dive"`
}

// JobRequest triggers an analytics job from the ops API.
type JobRequest struct {
	EntityID *int64 `json:"entity_id,omitempty" validate:"omitempty,gt=0"`
	Days     int    `json:"days,omitempty" validate:"gte=0,lte=3650"`
}

type JobAccepted struct {
	JobID  string  `json:"job_id"`
	Type   JobType `json:"type"`
	Queue  Queue   `json:"queue"`
	Status string  `json:"status"`
}
