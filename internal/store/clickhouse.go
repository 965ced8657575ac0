package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/logic"
	"github.com/hoopstat/analytics-engine/internal/models"
)

// ClickHouseArchive keeps finished box scores in ClickHouse and can serve
// player game logs from that copy. Only FINISHED games are ever archived.
type ClickHouseArchive struct {
	conn    driver.Conn
	breaker *gobreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

var (
	_ logic.BoxScoreArchiver = (*ClickHouseArchive)(nil)
	_ logic.BoxScoreReader   = (*ClickHouseArchive)(nil)
)

func NewClickHouseArchive(conn driver.Conn, logger *zap.Logger) *ClickHouseArchive {
	sugar := logger.Sugar()
	return &ClickHouseArchive{
		conn:    conn,
		breaker: newBreaker("clickhouse-archive", sugar),
		logger:  sugar,
	}
}

// newBreaker trips after three consecutive failures and probes again after 30s.
func newBreaker(name string, logger *zap.SugaredLogger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnw("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

const archiveColumns = `player_id, game_id, team_id, home_team_id, away_team_id, game_date,
	points, rebounds, assists, steals, blocks, turnovers, minutes_played,
	field_goals_made, field_goals_attempted, three_pointers_made, three_pointers_attempted,
	free_throws_made, free_throws_attempted`

// ArchiveGame appends the game's lines in a single batch.
func (a *ClickHouseArchive) ArchiveGame(ctx context.Context, game models.Game, lines []models.PlayerGameRecord) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := a.breaker.Execute(func() (interface{}, error) {
		batch, err := a.conn.PrepareBatch(ctx, "INSERT INTO hoops_archive.player_game_stats ("+archiveColumns+")")
		if err != nil {
			return nil, fmt.Errorf("prepare archive batch: %w", err)
		}
		for _, l := range lines {
			err := batch.Append(
				l.PlayerID, l.GameID, l.TeamID, game.HomeTeamID, game.AwayTeamID, game.DateTime.UTC(),
				int32(l.Points), int32(l.Rebounds), int32(l.Assists), int32(l.Steals), int32(l.Blocks),
				int32(l.Turnovers), int32(l.MinutesPlayed),
				int32(l.FieldGoalsMade), int32(l.FieldGoalsAttempted),
				int32(l.ThreePointersMade), int32(l.ThreePointersAttempted),
				int32(l.FreeThrowsMade), int32(l.FreeThrowsAttempted),
			)
			if err != nil {
				_ = batch.Abort()
				return nil, fmt.Errorf("append archive row: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return nil, fmt.Errorf("send archive batch: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("archive game %d: %w", game.ID, err)
	}
	a.logger.Infow("archived box score", "game_id", game.ID, "lines", len(lines))
	return nil
}

func (a *ClickHouseArchive) queryLines(ctx context.Context, what, query string, args ...any) ([]models.PlayerGameRecord, error) {
	out, err := a.breaker.Execute(func() (interface{}, error) {
		rows, err := a.conn.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var lines []models.PlayerGameRecord
		for rows.Next() {
			var (
				rec                                                    models.PlayerGameRecord
				homeTeam, awayTeam                                     int64
				pts, reb, ast, stl, blk, tov, mins, fgm, fga, tpm, tpa int32
				ftm, fta                                               int32
			)
			if err := rows.Scan(&rec.PlayerID, &rec.GameID, &rec.TeamID, &homeTeam, &awayTeam, &rec.GameDate,
				&pts, &reb, &ast, &stl, &blk, &tov, &mins, &fgm, &fga, &tpm, &tpa, &ftm, &fta); err != nil {
				return nil, fmt.Errorf("scan: %w", err)
			}
			rec.Points, rec.Rebounds, rec.Assists = int(pts), int(reb), int(ast)
			rec.Steals, rec.Blocks, rec.Turnovers, rec.MinutesPlayed = int(stl), int(blk), int(tov), int(mins)
			rec.FieldGoalsMade, rec.FieldGoalsAttempted = int(fgm), int(fga)
			rec.ThreePointersMade, rec.ThreePointersAttempted = int(tpm), int(tpa)
			rec.FreeThrowsMade, rec.FreeThrowsAttempted = int(ftm), int(fta)
			lines = append(lines, rec)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows: %w", err)
		}
		return lines, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	lines, _ := out.([]models.PlayerGameRecord)
	return lines, nil
}

func (a *ClickHouseArchive) PlayerGameLog(ctx context.Context, playerID int64, from, to time.Time) ([]models.PlayerGameRecord, error) {
	return a.queryLines(ctx, "archived game log", `
		SELECT `+archiveColumns+`
		FROM hoops_archive.player_game_stats FINAL
		WHERE player_id = ? AND game_date >= ? AND game_date < ?
		ORDER BY game_date DESC, game_id DESC`, playerID, from.UTC(), to.UTC())
}

func (a *ClickHouseArchive) RecentPlayerGames(ctx context.Context, playerID int64, limit int) ([]models.PlayerGameRecord, error) {
	return a.queryLines(ctx, "archived recent games", `
		SELECT `+archiveColumns+`
		FROM hoops_archive.player_game_stats FINAL
		WHERE player_id = ?
		ORDER BY game_date DESC, game_id DESC
		LIMIT ?`, playerID, limit)
}

func (a *ClickHouseArchive) PlayerGamesVsTeam(ctx context.Context, playerID, opponentID int64, limit int) ([]models.PlayerGameRecord, error) {
	return a.queryLines(ctx, "archived games vs team", `
		SELECT `+archiveColumns+`
		FROM hoops_archive.player_game_stats FINAL
		WHERE player_id = ? AND (home_team_id = ? OR away_team_id = ?) AND team_id != ?
		ORDER BY game_date DESC, game_id DESC
		LIMIT ?`, playerID, opponentID, opponentID, opponentID, limit)
}
