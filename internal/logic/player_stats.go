package logic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hoopstat/analytics-engine/internal/models"
)

const lastGamesWindow = 10

type playerAnalyticsService struct {
	stats     BoxScoreReader
	snapshots SnapshotStore
	opts      Options
	logger    *zap.SugaredLogger
}

func NewPlayerAnalyticsService(stats BoxScoreReader, snapshots SnapshotStore, opts Options, logger *zap.Logger) PlayerAnalyticsService {
	return &playerAnalyticsService{
		stats:     stats,
		snapshots: snapshots,
		opts:      opts.withDefaults(),
		logger:    logger.Sugar(),
	}
}

func (s *playerAnalyticsService) AggregatePlayer(ctx context.Context, playerID int64, days int) (*models.PlayerAnalyticsSnapshot, error) {
	if days <= 0 {
		days = 30
	}
	today := s.opts.today()
	from := s.opts.dayStart(today.AddDate(0, 0, -days))
	to := s.opts.dayStart(today.AddDate(0, 0, 1))

	var window, last10 []models.PlayerGameRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		window, err = s.stats.PlayerGameLog(gctx, playerID, from, to)
		if err != nil {
			return fmt.Errorf("player game log: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		last10, err = s.stats.RecentPlayerGames(gctx, playerID, lastGamesWindow)
		if err != nil {
			return fmt.Errorf("recent player games: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(window) == 0 {
		s.logger.Debugw("No games in window, skipping player", "player_id", playerID, "days", days)
		return nil, nil
	}

	snap := BuildPlayerSnapshot(playerID, today, days, window, last10, s.opts.TrendThreshold, s.opts.Location)
	if err := s.snapshots.UpsertPlayerSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("upsert player snapshot: %w", err)
	}
	snapshotsWritten.WithLabelValues(string(models.PlayerSnapshots)).Inc()
	return snap, nil
}

// BuildPlayerSnapshot derives a snapshot from the window's lines and the
// player's last ten games. window must not be empty.
func BuildPlayerSnapshot(playerID int64, today time.Time, days int, window, last10 []models.PlayerGameRecord, threshold float64, loc *time.Location) *models.PlayerAnalyticsSnapshot {
	n := len(window)
	pts := make([]float64, 0, n)
	reb := make([]float64, 0, n)
	ast := make([]float64, 0, n)
	stl := make([]float64, 0, n)
	blk := make([]float64, 0, n)
	tov := make([]float64, 0, n)
	mins := make([]float64, 0, n)
	eff := make([]float64, 0, n)

	var fgm, fga, tpm, tpa, ftm, fta int
	var recent, earlier []float64
	midpoint := today.AddDate(0, 0, -days/2)

	for _, r := range window {
		pts = append(pts, float64(r.Points))
		reb = append(reb, float64(r.Rebounds))
		ast = append(ast, float64(r.Assists))
		stl = append(stl, float64(r.Steals))
		blk = append(blk, float64(r.Blocks))
		tov = append(tov, float64(r.Turnovers))
		mins = append(mins, float64(r.MinutesPlayed))

		e := GameEfficiency(r)
		eff = append(eff, e)
		if CalendarDay(r.GameDate, loc).Before(midpoint) {
			earlier = append(earlier, e)
		} else {
			recent = append(recent, e)
		}

		fgm += r.FieldGoalsMade
		fga += r.FieldGoalsAttempted
		tpm += r.ThreePointersMade
		tpa += r.ThreePointersAttempted
		ftm += r.FreeThrowsMade
		fta += r.FreeThrowsAttempted
	}

	var l10Pts, l10FGA, l10FTA int
	l10Eff := make([]float64, 0, len(last10))
	for _, r := range last10 {
		l10Pts += r.Points
		l10FGA += r.FieldGoalsAttempted
		l10FTA += r.FreeThrowsAttempted
		l10Eff = append(l10Eff, GameEfficiency(r))
	}

	return &models.PlayerAnalyticsSnapshot{
		PlayerID:               playerID,
		Date:                   today,
		PointsAvg:              round2(mean(pts)),
		ReboundsAvg:            round2(mean(reb)),
		AssistsAvg:             round2(mean(ast)),
		StealsAvg:              round2(mean(stl)),
		BlocksAvg:              round2(mean(blk)),
		TurnoversAvg:           round2(mean(tov)),
		MinutesAvg:             round2(mean(mins)),
		FieldGoalPercentage:    round2(ShootingPercentage(fgm, fga)),
		ThreePointPercentage:   round2(ShootingPercentage(tpm, tpa)),
		FreeThrowPercentage:    round2(ShootingPercentage(ftm, fta)),
		TrueShootingPercentage: round2(TrueShooting(l10Pts, l10FGA, l10FTA)),
		EfficiencyRating:       round2(mean(eff)),
		Last10GamesRating:      round2(mean(l10Eff)),
		TrendDirection:         ClassifyTrend(recent, earlier, threshold),
	}
}
