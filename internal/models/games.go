package models

import "time"

// GameStatus is the lifecycle state of a scheduled game.
type GameStatus string

const (
	GameScheduled GameStatus = "SCHEDULED"
	GameLive      GameStatus = "LIVE"
	GameFinished  GameStatus = "FINISHED"
	GamePostponed GameStatus = "POSTPONED"
)

// Valid reports whether s is a known status.
func (s GameStatus) Valid() bool {
	switch s {
	case GameScheduled, GameLive, GameFinished, GamePostponed:
		return true
	}
	return false
}

// CanTransition reports whether a game may move from s to next.
// FINISHED is terminal; a postponed game can only be rescheduled.
func (s GameStatus) CanTransition(next GameStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case GameScheduled:
		return next == GameLive || next == GameFinished || next == GamePostponed
	case GameLive:
		return next == GameFinished || next == GamePostponed
	case GamePostponed:
		return next == GameScheduled
	}
	return false
}

// Venue filters a team's games by the side it played on.
type Venue string

const (
	VenueAny  Venue = "any"
	VenueHome Venue = "home"
	VenueAway Venue = "away"
)

type Team struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Active       bool   `json:"active"`
}

type Player struct {
	ID       int64  `json:"id"`
	TeamID   int64  `json:"team_id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Active   bool   `json:"active"`
}

// Game is a single fixture between two teams.
type Game struct {
	ID         int64      `json:"id"`
	HomeTeamID int64      `json:"home_team_id"`
	AwayTeamID int64      `json:"away_team_id"`
	DateTime   time.Time  `json:"date_time"`
	Status     GameStatus `json:"status"`
	HomeScore  int        `json:"home_score"`
	AwayScore  int        `json:"away_score"`
}

func (g Game) Involves(teamID int64) bool {
	return g.HomeTeamID == teamID || g.AwayTeamID == teamID
}

func (g Game) IsHome(teamID int64) bool {
	return g.HomeTeamID == teamID
}

// Opponent returns the other side of the fixture from teamID's point of view.
func (g Game) Opponent(teamID int64) int64 {
	if g.HomeTeamID == teamID {
		return g.AwayTeamID
	}
	return g.HomeTeamID
}

// Scores returns (scored, allowed) for teamID.
func (g Game) Scores(teamID int64) (int, int) {
	if g.HomeTeamID == teamID {
		return g.HomeScore, g.AwayScore
	}
	return g.AwayScore, g.HomeScore
}

// Won reports a strict win for teamID. Ties count as neither win nor loss.
func (g Game) Won(teamID int64) bool {
	scored, allowed := g.Scores(teamID)
	return scored > allowed
}

func (g Game) Lost(teamID int64) bool {
	scored, allowed := g.Scores(teamID)
	return scored < allowed
}

// PlayerGameRecord is one box-score line for a player in a game.
type PlayerGameRecord struct {
	PlayerID               int64     `json:"player_id"`
	GameID                 int64     `json:"game_id"`
	TeamID                 int64     `json:"team_id"`
	GameDate               time.Time `json:"game_date"`
	Points                 int       `json:"points"`
	Rebounds               int       `json:"rebounds"`
	Assists                int       `json:"assists"`
	Steals                 int       `json:"steals"`
	Blocks                 int       `json:"blocks"`
	Turnovers              int       `json:"turnovers"`
	MinutesPlayed          int       `json:"minutes_played"`
	FieldGoalsMade         int       `json:"field_goals_made"`
	FieldGoalsAttempted    int       `json:"field_goals_attempted"`
	ThreePointersMade      int       `json:"three_pointers_made"`
	ThreePointersAttempted int       `json:"three_pointers_attempted"`
	FreeThrowsMade         int       `json:"free_throws_made"`
	FreeThrowsAttempted    int       `json:"free_throws_attempted"`
}
