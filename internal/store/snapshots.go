package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hoopstat/analytics-engine/internal/models"
)

func (p *Postgres) UpsertPlayerSnapshot(ctx context.Context, s *models.PlayerAnalyticsSnapshot) error {
	err := p.db.QueryRow(ctx, `
		INSERT INTO player_analytics_snapshots (
			player_id, date, points_avg, rebounds_avg, assists_avg, steals_avg, blocks_avg,
			turnovers_avg, minutes_avg, field_goal_percentage, three_point_percentage,
			free_throw_percentage, true_shooting_percentage, efficiency_rating,
			last_10_games_rating, trend_direction, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		ON CONFLICT (player_id, date) DO UPDATE SET
			points_avg = EXCLUDED.points_avg,
			rebounds_avg = EXCLUDED.rebounds_avg,
			assists_avg = EXCLUDED.assists_avg,
			steals_avg = EXCLUDED.steals_avg,
			blocks_avg = EXCLUDED.blocks_avg,
			turnovers_avg = EXCLUDED.turnovers_avg,
			minutes_avg = EXCLUDED.minutes_avg,
			field_goal_percentage = EXCLUDED.field_goal_percentage,
			three_point_percentage = EXCLUDED.three_point_percentage,
			free_throw_percentage = EXCLUDED.free_throw_percentage,
			true_shooting_percentage = EXCLUDED.true_shooting_percentage,
			efficiency_rating = EXCLUDED.efficiency_rating,
			last_10_games_rating = EXCLUDED.last_10_games_rating,
			trend_direction = EXCLUDED.trend_direction,
			updated_at = NOW()
		RETURNING id, updated_at`,
		s.PlayerID, s.Date, s.PointsAvg, s.ReboundsAvg, s.AssistsAvg, s.StealsAvg, s.BlocksAvg,
		s.TurnoversAvg, s.MinutesAvg, s.FieldGoalPercentage, s.ThreePointPercentage,
		s.FreeThrowPercentage, s.TrueShootingPercentage, s.EfficiencyRating,
		s.Last10GamesRating, string(s.TrendDirection),
	).Scan(&s.ID, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert player snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) LatestPlayerSnapshot(ctx context.Context, playerID int64) (*models.PlayerAnalyticsSnapshot, error) {
	var s models.PlayerAnalyticsSnapshot
	var trend string
	err := p.db.QueryRow(ctx, `
		SELECT id, player_id, date, points_avg, rebounds_avg, assists_avg, steals_avg, blocks_avg,
			turnovers_avg, minutes_avg, field_goal_percentage, three_point_percentage,
			free_throw_percentage, true_shooting_percentage, efficiency_rating,
			last_10_games_rating, trend_direction, updated_at
		FROM player_analytics_snapshots
		WHERE player_id = $1
		ORDER BY date DESC
		LIMIT 1`, playerID,
	).Scan(&s.ID, &s.PlayerID, &s.Date, &s.PointsAvg, &s.ReboundsAvg, &s.AssistsAvg, &s.StealsAvg,
		&s.BlocksAvg, &s.TurnoversAvg, &s.MinutesAvg, &s.FieldGoalPercentage, &s.ThreePointPercentage,
		&s.FreeThrowPercentage, &s.TrueShootingPercentage, &s.EfficiencyRating,
		&s.Last10GamesRating, &trend, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "latest player snapshot")
	}
	s.TrendDirection = models.TrendDirection(trend)
	return &s, nil
}

func (p *Postgres) UpsertTeamSnapshot(ctx context.Context, s *models.TeamAnalyticsSnapshot) error {
	scored, err := json.Marshal(s.QuartersScored)
	if err != nil {
		return fmt.Errorf("marshal quarters scored: %w", err)
	}
	allowed, err := json.Marshal(s.QuartersAllowed)
	if err != nil {
		return fmt.Errorf("marshal quarters allowed: %w", err)
	}

	err = p.db.QueryRow(ctx, `
		INSERT INTO team_analytics_snapshots (
			team_id, date, wins, losses, points_scored_avg, points_allowed_avg, win_percentage,
			offensive_rating, defensive_rating, net_rating, pace, quarters_scored, quarters_allowed,
			home_win_percentage, away_win_percentage, trend_direction, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		ON CONFLICT (team_id, date) DO UPDATE SET
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			points_scored_avg = EXCLUDED.points_scored_avg,
			points_allowed_avg = EXCLUDED.points_allowed_avg,
			win_percentage = EXCLUDED.win_percentage,
			offensive_rating = EXCLUDED.offensive_rating,
			defensive_rating = EXCLUDED.defensive_rating,
			net_rating = EXCLUDED.net_rating,
			pace = EXCLUDED.pace,
			quarters_scored = EXCLUDED.quarters_scored,
			quarters_allowed = EXCLUDED.quarters_allowed,
			home_win_percentage = EXCLUDED.home_win_percentage,
			away_win_percentage = EXCLUDED.away_win_percentage,
			trend_direction = EXCLUDED.trend_direction,
			updated_at = NOW()
		RETURNING id, updated_at`,
		s.TeamID, s.Date, s.Wins, s.Losses, s.PointsScoredAvg, s.PointsAllowedAvg, s.WinPercentage,
		s.OffensiveRating, s.DefensiveRating, s.NetRating, s.Pace, scored, allowed,
		s.HomeWinPercentage, s.AwayWinPercentage, string(s.TrendDirection),
	).Scan(&s.ID, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert team snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) LatestTeamSnapshot(ctx context.Context, teamID int64) (*models.TeamAnalyticsSnapshot, error) {
	var s models.TeamAnalyticsSnapshot
	var scored, allowed []byte
	var trend string
	err := p.db.QueryRow(ctx, `
		SELECT id, team_id, date, wins, losses, points_scored_avg, points_allowed_avg, win_percentage,
			offensive_rating, defensive_rating, net_rating, pace, quarters_scored, quarters_allowed,
			home_win_percentage, away_win_percentage, trend_direction, updated_at
		FROM team_analytics_snapshots
		WHERE team_id = $1
		ORDER BY date DESC
		LIMIT 1`, teamID,
	).Scan(&s.ID, &s.TeamID, &s.Date, &s.Wins, &s.Losses, &s.PointsScoredAvg, &s.PointsAllowedAvg,
		&s.WinPercentage, &s.OffensiveRating, &s.DefensiveRating, &s.NetRating, &s.Pace,
		&scored, &allowed, &s.HomeWinPercentage, &s.AwayWinPercentage, &trend, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "latest team snapshot")
	}
	if err := json.Unmarshal(scored, &s.QuartersScored); err != nil {
		return nil, fmt.Errorf("decode quarters scored: %w", err)
	}
	if err := json.Unmarshal(allowed, &s.QuartersAllowed); err != nil {
		return nil, fmt.Errorf("decode quarters allowed: %w", err)
	}
	s.TrendDirection = models.TrendDirection(trend)
	return &s, nil
}

func (p *Postgres) UpsertTeamTrend(ctx context.Context, t *models.TeamPerformanceTrend) error {
	scored, err := json.Marshal(t.QuartersScored)
	if err != nil {
		return fmt.Errorf("marshal quarters scored: %w", err)
	}
	allowed, err := json.Marshal(t.QuartersAllowed)
	if err != nil {
		return fmt.Errorf("marshal quarters allowed: %w", err)
	}

	err = p.db.QueryRow(ctx, `
		INSERT INTO team_performance_trends (
			team_id, period_start, period_end, period_type, games_played, wins, losses,
			points_scored_avg, points_allowed_avg, quarters_scored, quarters_allowed,
			home_wins, home_losses, away_wins, away_losses,
			home_points_scored_avg, home_points_allowed_avg, away_points_scored_avg, away_points_allowed_avg,
			streak_type, streak_count, trend_direction,
			offensive_efficiency, defensive_efficiency, pace, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, NOW())
		ON CONFLICT (team_id, period_start, period_end, period_type) DO UPDATE SET
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			points_scored_avg = EXCLUDED.points_scored_avg,
			points_allowed_avg = EXCLUDED.points_allowed_avg,
			quarters_scored = EXCLUDED.quarters_scored,
			quarters_allowed = EXCLUDED.quarters_allowed,
			home_wins = EXCLUDED.home_wins,
			home_losses = EXCLUDED.home_losses,
			away_wins = EXCLUDED.away_wins,
			away_losses = EXCLUDED.away_losses,
			home_points_scored_avg = EXCLUDED.home_points_scored_avg,
			home_points_allowed_avg = EXCLUDED.home_points_allowed_avg,
			away_points_scored_avg = EXCLUDED.away_points_scored_avg,
			away_points_allowed_avg = EXCLUDED.away_points_allowed_avg,
			streak_type = EXCLUDED.streak_type,
			streak_count = EXCLUDED.streak_count,
			trend_direction = EXCLUDED.trend_direction,
			offensive_efficiency = EXCLUDED.offensive_efficiency,
			defensive_efficiency = EXCLUDED.defensive_efficiency,
			pace = EXCLUDED.pace,
			updated_at = NOW()
		RETURNING id, updated_at`,
		t.TeamID, t.PeriodStart, t.PeriodEnd, string(t.PeriodType), t.GamesPlayed, t.Wins, t.Losses,
		t.PointsScoredAvg, t.PointsAllowedAvg, scored, allowed,
		t.HomeWins, t.HomeLosses, t.AwayWins, t.AwayLosses,
		t.HomePointsScoredAvg, t.HomePointsAllowedAvg, t.AwayPointsScoredAvg, t.AwayPointsAllowedAvg,
		string(t.StreakType), t.StreakCount, string(t.TrendDirection),
		t.OffensiveEfficiency, t.DefensiveEfficiency, t.Pace,
	).Scan(&t.ID, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert team trend: %w", err)
	}
	return nil
}

// snapshotTable maps a kind onto its table and entity column.
func snapshotTable(kind models.SnapshotKind) (table, entity string, err error) {
	switch kind {
	case models.PlayerSnapshots:
		return "player_analytics_snapshots", "player_id", nil
	case models.TeamSnapshots:
		return "team_analytics_snapshots", "team_id", nil
	}
	return "", "", fmt.Errorf("unknown snapshot kind %q", kind)
}

func (p *Postgres) SnapshotKeysBefore(ctx context.Context, kind models.SnapshotKind, cutoff time.Time) ([]models.SnapshotKey, error) {
	table, entity, err := snapshotTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.Query(ctx,
		`SELECT id, `+entity+`, date FROM `+table+` WHERE date < $1 ORDER BY `+entity+`, date`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("snapshot keys: %w", err)
	}
	defer rows.Close()

	var keys []models.SnapshotKey
	for rows.Next() {
		var k models.SnapshotKey
		if err := rows.Scan(&k.ID, &k.EntityID, &k.Date); err != nil {
			return nil, fmt.Errorf("snapshot keys scan: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot keys rows: %w", err)
	}
	return keys, nil
}

func (p *Postgres) DeleteSnapshots(ctx context.Context, kind models.SnapshotKind, ids []int64) (int64, error) {
	table, _, err := snapshotTable(kind)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := p.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) queryIDs(ctx context.Context, what, sql string, args ...any) ([]int64, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s scan: %w", what, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", what, err)
	}
	return ids, nil
}

// InvalidPlayerSnapshots checks each player's latest snapshot.
func (p *Postgres) InvalidPlayerSnapshots(ctx context.Context, minEff, maxEff float64) ([]int64, error) {
	return p.queryIDs(ctx, "invalid player snapshots", `
		SELECT player_id FROM (
			SELECT DISTINCT ON (player_id) player_id, efficiency_rating, field_goal_percentage
			FROM player_analytics_snapshots
			ORDER BY player_id, date DESC
		) latest
		WHERE efficiency_rating < $1 OR efficiency_rating > $2
		   OR field_goal_percentage < 0 OR field_goal_percentage > 100
		ORDER BY player_id`, minEff, maxEff)
}

// InvalidTeamSnapshots checks each team's latest snapshot.
func (p *Postgres) InvalidTeamSnapshots(ctx context.Context) ([]int64, error) {
	return p.queryIDs(ctx, "invalid team snapshots", `
		SELECT team_id FROM (
			SELECT DISTINCT ON (team_id) team_id, win_percentage
			FROM team_analytics_snapshots
			ORDER BY team_id, date DESC
		) latest
		WHERE win_percentage < 0 OR win_percentage > 100
		ORDER BY team_id`)
}
