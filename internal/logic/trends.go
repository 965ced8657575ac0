package logic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
)

// minTrendGames is the fewest games a period needs before it gets a direction.
const minTrendGames = 4

type trendService struct {
	games     GameStore
	snapshots SnapshotStore
	opts      Options
	logger    *zap.SugaredLogger
}

func NewTrendService(games GameStore, snapshots SnapshotStore, opts Options, logger *zap.Logger) TrendService {
	return &trendService{
		games:     games,
		snapshots: snapshots,
		opts:      opts.withDefaults(),
		logger:    logger.Sugar(),
	}
}

// Period is an inclusive calendar range a trend is computed over.
type Period struct {
	Type  models.PeriodType
	Start time.Time
	End   time.Time
}

// TrendPeriods returns the WEEK, MONTH and SEASON ranges ending today.
func TrendPeriods(today time.Time) []Period {
	return []Period{
		{Type: models.PeriodWeek, Start: today.AddDate(0, 0, -7), End: today},
		{Type: models.PeriodMonth, Start: today.AddDate(0, 0, -30), End: today},
		{Type: models.PeriodSeason, Start: SeasonStart(today), End: today},
	}
}

// SeasonStart returns October 1st of the season containing today. From
// January through June that is October of the previous year.
func SeasonStart(today time.Time) time.Time {
	year := today.Year()
	if today.Month() <= time.June {
		year--
	}
	return time.Date(year, time.October, 1, 0, 0, 0, 0, today.Location())
}

func (s *trendService) ComputeTeamTrends(ctx context.Context, teamID int64) (int, error) {
	today := s.opts.today()
	written := 0
	for _, p := range TrendPeriods(today) {
		games, err := s.games.FinishedTeamGames(ctx, teamID, s.opts.dayStart(p.Start), s.opts.dayStart(p.End.AddDate(0, 0, 1)))
		if err != nil {
			return written, fmt.Errorf("%s games: %w", p.Type, err)
		}
		if len(games) == 0 {
			s.logger.Debugw("No games in period", "team_id", teamID, "period", p.Type)
			continue
		}

		trend := BuildTrend(teamID, p, games, s.opts.TrendThreshold)
		if err := s.snapshots.UpsertTeamTrend(ctx, trend); err != nil {
			return written, fmt.Errorf("upsert %s trend: %w", p.Type, err)
		}
		snapshotsWritten.WithLabelValues("trend").Inc()
		written++
	}
	return written, nil
}

// BuildTrend aggregates games (chronological, non-empty) into one trend period.
func BuildTrend(teamID int64, p Period, games []models.Game, threshold float64) *models.TeamPerformanceTrend {
	t := &models.TeamPerformanceTrend{
		TeamID:      teamID,
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
		PeriodType:  p.Type,
		GamesPlayed: len(games),
	}

	var scored, allowed, homeScored, homeAllowed, awayScored, awayAllowed []float64
	results := make([]float64, 0, len(games))

	for _, g := range games {
		s, a := g.Scores(teamID)
		scored = append(scored, float64(s))
		allowed = append(allowed, float64(a))

		won, lost := g.Won(teamID), g.Lost(teamID)
		if won {
			t.Wins++
			results = append(results, 100)
		} else {
			if lost {
				t.Losses++
			}
			results = append(results, 0)
		}

		if g.IsHome(teamID) {
			homeScored = append(homeScored, float64(s))
			homeAllowed = append(homeAllowed, float64(a))
			if won {
				t.HomeWins++
			} else if lost {
				t.HomeLosses++
			}
		} else {
			awayScored = append(awayScored, float64(s))
			awayAllowed = append(awayAllowed, float64(a))
			if won {
				t.AwayWins++
			} else if lost {
				t.AwayLosses++
			}
		}
	}

	scoredAvg, allowedAvg := mean(scored), mean(allowed)
	t.PointsScoredAvg = round2(scoredAvg)
	t.PointsAllowedAvg = round2(allowedAvg)
	t.HomePointsScoredAvg = round2(mean(homeScored))
	t.HomePointsAllowedAvg = round2(mean(homeAllowed))
	t.AwayPointsScoredAvg = round2(mean(awayScored))
	t.AwayPointsAllowedAvg = round2(mean(awayAllowed))

	even := [4]float64{0.25, 0.25, 0.25, 0.25}
	t.QuartersScored = splitQuarters(scoredAvg, even)
	t.QuartersAllowed = splitQuarters(allowedAvg, even)

	ortg, drtg, pace := possessionRatings(teamID, games)
	t.OffensiveEfficiency = round2(ortg)
	t.DefensiveEfficiency = round2(drtg)
	t.Pace = round2(pace)

	t.StreakType, t.StreakCount = currentStreak(teamID, games)

	t.TrendDirection = models.TrendStable
	if len(results) >= minTrendGames {
		mid := len(results) / 2
		t.TrendDirection = ClassifyTrend(results[mid:], results[:mid], threshold)
	}
	return t
}

// currentStreak walks back from the most recent game. A tie ends the streak.
func currentStreak(teamID int64, games []models.Game) (models.StreakType, int) {
	var kind models.StreakType
	count := 0
	for i := len(games) - 1; i >= 0; i-- {
		var this models.StreakType
		switch {
		case games[i].Won(teamID):
			this = models.StreakWin
		case games[i].Lost(teamID):
			this = models.StreakLoss
		default:
			return kind, count
		}
		if count == 0 {
			kind = this
		} else if this != kind {
			break
		}
		count++
	}
	return kind, count
}
