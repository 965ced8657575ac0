package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hoopstat/analytics-engine/internal/logic"
	"github.com/hoopstat/analytics-engine/internal/models"
)

// Postgres implements the primary stores on a pgx pool.
type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

var (
	_ logic.GameStore       = (*Postgres)(nil)
	_ logic.BoxScoreReader  = (*Postgres)(nil)
	_ logic.BoxScoreStore   = (*Postgres)(nil)
	_ logic.RosterStore     = (*Postgres)(nil)
	_ logic.SnapshotStore   = (*Postgres)(nil)
	_ logic.PredictionStore = (*Postgres)(nil)
)

// notFound maps pgx.ErrNoRows onto ErrNotFound and wraps everything else.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// =============================================================================
// GAMES
// =============================================================================

const gameColumns = `id, home_team_id, away_team_id, date_time, status, home_score, away_score`

func scanGame(row scanner) (models.Game, error) {
	var g models.Game
	var status string
	err := row.Scan(&g.ID, &g.HomeTeamID, &g.AwayTeamID, &g.DateTime, &status, &g.HomeScore, &g.AwayScore)
	g.Status = models.GameStatus(status)
	return g, err
}

func (p *Postgres) queryGames(ctx context.Context, what, sql string, args ...any) ([]models.Game, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", what, err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", what, err)
	}
	return games, nil
}

func (p *Postgres) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	g, err := scanGame(p.db.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID))
	if err != nil {
		return nil, notFound(err, "get game")
	}
	return &g, nil
}

func (p *Postgres) FinishedTeamGames(ctx context.Context, teamID int64, from, to time.Time) ([]models.Game, error) {
	return p.queryGames(ctx, "finished team games", `
		SELECT `+gameColumns+`
		FROM games
		WHERE status = 'FINISHED'
		  AND (home_team_id = $1 OR away_team_id = $1)
		  AND date_time >= $2 AND date_time < $3
		ORDER BY date_time ASC, id ASC`, teamID, from, to)
}

// venueClause restricts games to the side teamID ($1) played on.
func venueClause(venue models.Venue) string {
	switch venue {
	case models.VenueHome:
		return "home_team_id = $1"
	case models.VenueAway:
		return "away_team_id = $1"
	default:
		return "(home_team_id = $1 OR away_team_id = $1)"
	}
}

func (p *Postgres) RecentFinishedTeamGames(ctx context.Context, teamID int64, venue models.Venue, limit int) ([]models.Game, error) {
	return p.queryGames(ctx, "recent team games", `
		SELECT `+gameColumns+`
		FROM games
		WHERE status = 'FINISHED' AND `+venueClause(venue)+`
		ORDER BY date_time DESC, id DESC
		LIMIT $2`, teamID, limit)
}

func (p *Postgres) HeadToHead(ctx context.Context, teamA, teamB int64, limit int) ([]models.Game, error) {
	return p.queryGames(ctx, "head to head", `
		SELECT `+gameColumns+`
		FROM games
		WHERE status = 'FINISHED'
		  AND ((home_team_id = $1 AND away_team_id = $2) OR (home_team_id = $2 AND away_team_id = $1))
		ORDER BY date_time DESC, id DESC
		LIMIT $3`, teamA, teamB, limit)
}

func (p *Postgres) UpcomingGames(ctx context.Context, from, to time.Time) ([]models.Game, error) {
	return p.queryGames(ctx, "upcoming games", `
		SELECT `+gameColumns+`
		FROM games
		WHERE status = 'SCHEDULED' AND date_time >= $1 AND date_time < $2
		ORDER BY date_time ASC, id ASC`, from, to)
}

// UpdateGameLive never touches a FINISHED row.
func (p *Postgres) UpdateGameLive(ctx context.Context, gameID int64, homeScore, awayScore int, status models.GameStatus) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE games SET home_score = $2, away_score = $3, status = $4
		WHERE id = $1 AND status <> 'FINISHED'`,
		gameID, homeScore, awayScore, string(status))
	if err != nil {
		return fmt.Errorf("update game %d: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update game %d: %w", gameID, ErrNotFound)
	}
	return nil
}

// =============================================================================
// BOX SCORES
// =============================================================================

const lineColumns = `s.player_id, s.game_id, s.team_id, g.date_time,
	s.points, s.rebounds, s.assists, s.steals, s.blocks, s.turnovers, s.minutes_played,
	s.field_goals_made, s.field_goals_attempted, s.three_pointers_made, s.three_pointers_attempted,
	s.free_throws_made, s.free_throws_attempted`

func scanLine(row scanner) (models.PlayerGameRecord, error) {
	var r models.PlayerGameRecord
	err := row.Scan(&r.PlayerID, &r.GameID, &r.TeamID, &r.GameDate,
		&r.Points, &r.Rebounds, &r.Assists, &r.Steals, &r.Blocks, &r.Turnovers, &r.MinutesPlayed,
		&r.FieldGoalsMade, &r.FieldGoalsAttempted, &r.ThreePointersMade, &r.ThreePointersAttempted,
		&r.FreeThrowsMade, &r.FreeThrowsAttempted)
	return r, err
}

func (p *Postgres) queryLines(ctx context.Context, what, sql string, args ...any) ([]models.PlayerGameRecord, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var lines []models.PlayerGameRecord
	for rows.Next() {
		r, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", what, err)
		}
		lines = append(lines, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", what, err)
	}
	return lines, nil
}

func (p *Postgres) PlayerGameLog(ctx context.Context, playerID int64, from, to time.Time) ([]models.PlayerGameRecord, error) {
	return p.queryLines(ctx, "player game log", `
		SELECT `+lineColumns+`
		FROM player_game_stats s
		JOIN games g ON g.id = s.game_id
		WHERE s.player_id = $1 AND g.status = 'FINISHED'
		  AND g.date_time >= $2 AND g.date_time < $3
		ORDER BY g.date_time DESC, g.id DESC`, playerID, from, to)
}

func (p *Postgres) RecentPlayerGames(ctx context.Context, playerID int64, limit int) ([]models.PlayerGameRecord, error) {
	return p.queryLines(ctx, "recent player games", `
		SELECT `+lineColumns+`
		FROM player_game_stats s
		JOIN games g ON g.id = s.game_id
		WHERE s.player_id = $1 AND g.status = 'FINISHED'
		ORDER BY g.date_time DESC, g.id DESC
		LIMIT $2`, playerID, limit)
}

func (p *Postgres) PlayerGamesVsTeam(ctx context.Context, playerID, opponentID int64, limit int) ([]models.PlayerGameRecord, error) {
	return p.queryLines(ctx, "player games vs team", `
		SELECT `+lineColumns+`
		FROM player_game_stats s
		JOIN games g ON g.id = s.game_id
		WHERE s.player_id = $1 AND g.status = 'FINISHED'
		  AND (g.home_team_id = $2 OR g.away_team_id = $2)
		  AND s.team_id <> $2
		ORDER BY g.date_time DESC, g.id DESC
		LIMIT $3`, playerID, opponentID, limit)
}

func (p *Postgres) GameBoxScore(ctx context.Context, gameID int64) ([]models.PlayerGameRecord, error) {
	return p.queryLines(ctx, "game box score", `
		SELECT `+lineColumns+`
		FROM player_game_stats s
		JOIN games g ON g.id = s.game_id
		WHERE s.game_id = $1
		ORDER BY s.player_id`, gameID)
}

func (p *Postgres) GetPlayerGameRecord(ctx context.Context, playerID, gameID int64) (*models.PlayerGameRecord, error) {
	r, err := scanLine(p.db.QueryRow(ctx, `
		SELECT `+lineColumns+`
		FROM player_game_stats s
		JOIN games g ON g.id = s.game_id
		WHERE s.player_id = $1 AND s.game_id = $2`, playerID, gameID))
	if err != nil {
		return nil, notFound(err, "get player game record")
	}
	return &r, nil
}

// UpsertPlayerGameRecord writes nothing once the game is FINISHED.
func (p *Postgres) UpsertPlayerGameRecord(ctx context.Context, rec *models.PlayerGameRecord) error {
	tag, err := p.db.Exec(ctx, `
		INSERT INTO player_game_stats (
			player_id, game_id, team_id, points, rebounds, assists, steals, blocks, turnovers,
			minutes_played, field_goals_made, field_goals_attempted, three_pointers_made,
			three_pointers_attempted, free_throws_made, free_throws_attempted
		)
		SELECT $1::bigint, $2::bigint, $3::bigint, $4::int, $5::int, $6::int, $7::int, $8::int, $9::int,
			$10::int, $11::int, $12::int, $13::int, $14::int, $15::int, $16::int
		WHERE NOT EXISTS (SELECT 1 FROM games WHERE id = $2::bigint AND status = 'FINISHED')
		ON CONFLICT (player_id, game_id) DO UPDATE SET
			team_id = EXCLUDED.team_id,
			points = EXCLUDED.points,
			rebounds = EXCLUDED.rebounds,
			assists = EXCLUDED.assists,
			steals = EXCLUDED.steals,
			blocks = EXCLUDED.blocks,
			turnovers = EXCLUDED.turnovers,
			minutes_played = EXCLUDED.minutes_played,
			field_goals_made = EXCLUDED.field_goals_made,
			field_goals_attempted = EXCLUDED.field_goals_attempted,
			three_pointers_made = EXCLUDED.three_pointers_made,
			three_pointers_attempted = EXCLUDED.three_pointers_attempted,
			free_throws_made = EXCLUDED.free_throws_made,
			free_throws_attempted = EXCLUDED.free_throws_attempted`,
		rec.PlayerID, rec.GameID, rec.TeamID, rec.Points, rec.Rebounds, rec.Assists, rec.Steals,
		rec.Blocks, rec.Turnovers, rec.MinutesPlayed, rec.FieldGoalsMade, rec.FieldGoalsAttempted,
		rec.ThreePointersMade, rec.ThreePointersAttempted, rec.FreeThrowsMade, rec.FreeThrowsAttempted)
	if err != nil {
		return fmt.Errorf("upsert player game record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upsert player %d game %d: %w", rec.PlayerID, rec.GameID, logic.ErrGameFinished)
	}
	return nil
}

// =============================================================================
// ROSTERS
// =============================================================================

func (p *Postgres) queryPlayers(ctx context.Context, what, sql string, args ...any) ([]models.Player, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var pl models.Player
		if err := rows.Scan(&pl.ID, &pl.TeamID, &pl.Name, &pl.Position, &pl.Active); err != nil {
			return nil, fmt.Errorf("%s scan: %w", what, err)
		}
		players = append(players, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", what, err)
	}
	return players, nil
}

func (p *Postgres) ActivePlayers(ctx context.Context) ([]models.Player, error) {
	return p.queryPlayers(ctx, "active players",
		`SELECT id, team_id, name, position, active FROM players WHERE active ORDER BY id`)
}

func (p *Postgres) TeamRoster(ctx context.Context, teamID int64) ([]models.Player, error) {
	return p.queryPlayers(ctx, "team roster",
		`SELECT id, team_id, name, position, active FROM players WHERE team_id = $1 AND active ORDER BY id`, teamID)
}

func (p *Postgres) GetPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	var pl models.Player
	err := p.db.QueryRow(ctx,
		`SELECT id, team_id, name, position, active FROM players WHERE id = $1`, playerID,
	).Scan(&pl.ID, &pl.TeamID, &pl.Name, &pl.Position, &pl.Active)
	if err != nil {
		return nil, notFound(err, "get player")
	}
	return &pl, nil
}

func (p *Postgres) ActiveTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, name, abbreviation, active FROM teams WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("active teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Abbreviation, &t.Active); err != nil {
			return nil, fmt.Errorf("active teams scan: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active teams rows: %w", err)
	}
	return teams, nil
}
