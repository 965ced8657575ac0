package logic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hoopstat/analytics-engine/internal/models"
)

const ratingsWindow = 20

// Fixed share of a game's points attributed to each quarter.
var quarterWeights = [4]float64{0.23, 0.26, 0.24, 0.27}

type teamAnalyticsService struct {
	games     GameStore
	snapshots SnapshotStore
	opts      Options
	logger    *zap.SugaredLogger
}

func NewTeamAnalyticsService(games GameStore, snapshots SnapshotStore, opts Options, logger *zap.Logger) TeamAnalyticsService {
	return &teamAnalyticsService{
		games:     games,
		snapshots: snapshots,
		opts:      opts.withDefaults(),
		logger:    logger.Sugar(),
	}
}

// TeamGameSets groups the game lists a team snapshot is built from.
type TeamGameSets struct {
	Window []models.Game // FINISHED games in the window, oldest first
	Last   []models.Game // last 20 FINISHED games
	Home   []models.Game // last 20 FINISHED home games
	Away   []models.Game // last 20 FINISHED away games
}

func (s *teamAnalyticsService) AggregateTeam(ctx context.Context, teamID int64, days int) (*models.TeamAnalyticsSnapshot, error) {
	if days <= 0 {
		days = 30
	}
	today := s.opts.today()
	from := s.opts.dayStart(today.AddDate(0, 0, -days))
	to := s.opts.dayStart(today.AddDate(0, 0, 1))

	var sets TeamGameSets
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sets.Window, err = s.games.FinishedTeamGames(gctx, teamID, from, to)
		if err != nil {
			return fmt.Errorf("team window games: %w", err)
		}
		return nil
	})
	recent := []struct {
		venue models.Venue
		dst   *[]models.Game
	}{
		{models.VenueAny, &sets.Last},
		{models.VenueHome, &sets.Home},
		{models.VenueAway, &sets.Away},
	}
	for _, r := range recent {
		r := r
		g.Go(func() error {
			games, err := s.games.RecentFinishedTeamGames(gctx, teamID, r.venue, ratingsWindow)
			if err != nil {
				return fmt.Errorf("recent %s games: %w", r.venue, err)
			}
			*r.dst = games
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(sets.Window) == 0 {
		s.logger.Debugw("No games in window, skipping team", "team_id", teamID, "days", days)
		return nil, nil
	}

	snap := BuildTeamSnapshot(teamID, today, days, sets, s.opts.TrendThreshold, s.opts.Location)
	if err := s.snapshots.UpsertTeamSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("upsert team snapshot: %w", err)
	}
	snapshotsWritten.WithLabelValues(string(models.TeamSnapshots)).Inc()
	return snap, nil
}

// BuildTeamSnapshot derives a team snapshot. sets.Window must not be empty.
func BuildTeamSnapshot(teamID int64, today time.Time, days int, sets TeamGameSets, threshold float64, loc *time.Location) *models.TeamAnalyticsSnapshot {
	var wins, losses int
	scored := make([]float64, 0, len(sets.Window))
	allowed := make([]float64, 0, len(sets.Window))
	var recent, earlier []float64
	midpoint := today.AddDate(0, 0, -days/2)

	for _, g := range sets.Window {
		s, a := g.Scores(teamID)
		scored = append(scored, float64(s))
		allowed = append(allowed, float64(a))

		result := 0.0
		switch {
		case g.Won(teamID):
			wins++
			result = 100
		case g.Lost(teamID):
			losses++
		}
		if CalendarDay(g.DateTime, loc).Before(midpoint) {
			earlier = append(earlier, result)
		} else {
			recent = append(recent, result)
		}
	}

	ortg, drtg, pace := possessionRatings(teamID, sets.Last)
	scoredAvg := mean(scored)
	allowedAvg := mean(allowed)

	return &models.TeamAnalyticsSnapshot{
		TeamID:            teamID,
		Date:              today,
		Wins:              wins,
		Losses:            losses,
		PointsScoredAvg:   round2(scoredAvg),
		PointsAllowedAvg:  round2(allowedAvg),
		WinPercentage:     round2(percentage(wins, len(sets.Window))),
		OffensiveRating:   round2(ortg),
		DefensiveRating:   round2(drtg),
		NetRating:         round2(ortg - drtg),
		Pace:              round2(pace),
		QuartersScored:    splitQuarters(scoredAvg, quarterWeights),
		QuartersAllowed:   splitQuarters(allowedAvg, quarterWeights),
		HomeWinPercentage: round2(winShare(teamID, sets.Home)),
		AwayWinPercentage: round2(winShare(teamID, sets.Away)),
		TrendDirection:    ClassifyTrend(recent, earlier, threshold),
	}
}

// possessionRatings estimates offensive and defensive rating per 100
// possessions and the average pace over games.
func possessionRatings(teamID int64, games []models.Game) (ortg, drtg, pace float64) {
	if len(games) == 0 {
		return 0, 0, 0
	}
	var pts, opp int
	var poss, oppPoss float64
	for _, g := range games {
		s, a := g.Scores(teamID)
		pts += s
		opp += a
		poss += EstimatePossessions(s)
		oppPoss += EstimatePossessions(a)
	}
	if poss > 0 {
		ortg = float64(pts) / poss * 100
	}
	if oppPoss > 0 {
		drtg = float64(opp) / oppPoss * 100
	}
	pace = (poss + oppPoss) / (2 * float64(len(games)))
	return ortg, drtg, pace
}

func winShare(teamID int64, games []models.Game) float64 {
	wins := 0
	for _, g := range games {
		if g.Won(teamID) {
			wins++
		}
	}
	return percentage(wins, len(games))
}

func splitQuarters(total float64, weights [4]float64) models.QuarterSplits {
	return models.QuarterSplits{
		Q1: round2(total * weights[0]),
		Q2: round2(total * weights[1]),
		Q3: round2(total * weights[2]),
		Q4: round2(total * weights[3]),
	}
}
