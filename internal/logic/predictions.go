package logic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hoopstat/analytics-engine/internal/models"
)

const (
	formWindow        = 5
	headToHeadWindow  = 5
	opponentWindow    = 5
	maxKeyMatchups    = 3
	minPredictedScore = 70
	homeCourtBonus    = 10.0
)

// PredictionDeps are the stores a prediction service reads and writes.
type PredictionDeps struct {
	Games       GameStore
	Stats       BoxScoreReader
	Rosters     RosterStore
	Snapshots   SnapshotStore
	Predictions PredictionStore
	Forms       FormCache
}

type predictionService struct {
	deps   PredictionDeps
	opts   Options
	logger *zap.SugaredLogger
}

func NewPredictionService(deps PredictionDeps, opts Options, logger *zap.Logger) PredictionService {
	if deps.Forms == nil {
		deps.Forms = noopFormCache{}
	}
	return &predictionService{
		deps:   deps,
		opts:   opts.withDefaults(),
		logger: logger.Sugar(),
	}
}

// WinInputs are the signals combined into a home win probability.
// A nil snapshot on either side yields a neutral 50.
type WinInputs struct {
	HomeSnapshot *models.TeamAnalyticsSnapshot
	AwaySnapshot *models.TeamAnalyticsSnapshot
	HomeForm     Form
	AwayForm     Form
	HeadToHead   Form // meetings from the home team's point of view
}

func WinProbability(in WinInputs) float64 {
	if in.HomeSnapshot == nil || in.AwaySnapshot == nil {
		return 50
	}
	p := 50.0
	p += (in.HomeSnapshot.WinPercentage - in.AwaySnapshot.WinPercentage) * 0.3
	p += homeCourtBonus
	p += (in.HomeForm.Percentage() - in.AwayForm.Percentage()) * 0.4
	if in.HeadToHead.Games > 0 {
		p += (in.HeadToHead.Percentage() - 50) * 0.2
	}
	return clamp(p, 0, 100)
}

// PredictScores turns a win probability into final scores. Without
// snapshots both sides start from 100 and drift toward the favourite.
func PredictScores(p float64, home, away *models.TeamAnalyticsSnapshot) (int, int) {
	if home == nil || away == nil {
		shift := int(math.Abs(p-50) / 5)
		switch {
		case p > 50:
			return 100 + shift, 100 - shift
		case p < 50:
			return 100 - shift, 100 + shift
		}
		return 100, 100
	}
	margin := (p - 50) / 2.5
	homeBase := float64(int(home.PointsScoredAvg))
	awayBase := float64(int(away.PointsScoredAvg))
	return max(minPredictedScore, int(homeBase+margin/2)), max(minPredictedScore, int(awayBase-margin/2))
}

// SplitQuarters gives Q1-Q3 a quarter of the score each; Q4 takes the remainder.
func SplitQuarters(score int) models.QuarterScores {
	q := int(float64(score) * 0.25)
	return models.QuarterScores{Q1: q, Q2: q, Q3: q, Q4: score - 3*q}
}

func HomeAdvantageLabel(p float64) string {
	switch {
	case p > 65:
		return "strong"
	case p > 55:
		return "moderate"
	case p > 50:
		return "slight"
	}
	return "none"
}

func PaceLabel(total int) string {
	switch {
	case total > 220:
		return "fast"
	case total > 200:
		return "moderate"
	}
	return "slow"
}

// BuildMatchup labels a same-position pairing by efficiency.
func BuildMatchup(home models.MatchupPlayer, away models.MatchupPlayer) models.KeyMatchup {
	h, a := home.Efficiency, away.Efficiency
	advantage := "even"
	switch {
	case h > a*1.2:
		advantage = "strong_home"
	case h > a*1.05:
		advantage = "slight_home"
	case a > h*1.2:
		advantage = "strong_away"
	case a > h*1.05:
		advantage = "slight_away"
	}

	impact := "low"
	switch top := math.Max(h, a); {
	case top > 20:
		impact = "high"
	case top > 15:
		impact = "medium"
	}
	return models.KeyMatchup{HomePlayer: home, AwayPlayer: away, Advantage: advantage, ImpactLevel: impact}
}

// EvaluateAccuracy scores a prediction against the final result.
// The winner is worth 40 points and score closeness up to 60.
func EvaluateAccuracy(pred *models.GamePrediction, homeScore, awayScore int) float64 {
	predictedHomeWin := pred.HomeWinProbability > 50
	actualHomeWin := homeScore > awayScore
	winner := 0.0
	if predictedHomeWin == actualHomeWin {
		winner = 1
	}

	scoreAcc := 0.0
	if total := homeScore + awayScore; total > 0 {
		diff := math.Abs(float64(pred.PredictedHomeScore-homeScore)) + math.Abs(float64(pred.PredictedAwayScore-awayScore))
		scoreAcc = clamp(100*(1-diff/float64(total)), 0, 100)
	}
	return round2(winner*40 + scoreAcc*0.6)
}

func (s *predictionService) PredictGame(ctx context.Context, gameID int64) (*models.GamePrediction, error) {
	game, err := s.deps.Games.GetGame(ctx, gameID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warnw("Game not found, skipping prediction", "game_id", gameID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	if game.Status != models.GameScheduled {
		s.logger.Debugw("Game not scheduled, skipping prediction", "game_id", gameID, "status", game.Status)
		return nil, nil
	}

	now := s.opts.Now()
	recent, err := s.deps.Predictions.GamePredictionCreatedSince(ctx, gameID, now.Add(-s.opts.PredictionCooldown))
	if err != nil {
		return nil, fmt.Errorf("check recent prediction: %w", err)
	}
	if recent {
		s.logger.Debugw("Recent prediction exists", "game_id", gameID)
		return nil, nil
	}

	var (
		in                     WinInputs
		homeRoster, awayRoster []models.Player
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.HomeSnapshot, err = s.latestTeamSnapshot(gctx, game.HomeTeamID)
		return err
	})
	g.Go(func() (err error) {
		in.AwaySnapshot, err = s.latestTeamSnapshot(gctx, game.AwayTeamID)
		return err
	})
	g.Go(func() (err error) {
		in.HomeForm, err = s.recentForm(gctx, game.HomeTeamID)
		return err
	})
	g.Go(func() (err error) {
		in.AwayForm, err = s.recentForm(gctx, game.AwayTeamID)
		return err
	})
	g.Go(func() error {
		meetings, err := s.deps.Games.HeadToHead(gctx, game.HomeTeamID, game.AwayTeamID, headToHeadWindow)
		if err != nil {
			return fmt.Errorf("head to head: %w", err)
		}
		in.HeadToHead = formOf(game.HomeTeamID, meetings)
		return nil
	})
	g.Go(func() (err error) {
		homeRoster, err = s.deps.Rosters.TeamRoster(gctx, game.HomeTeamID)
		return err
	})
	g.Go(func() (err error) {
		awayRoster, err = s.deps.Rosters.TeamRoster(gctx, game.AwayTeamID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := WinProbability(in)
	homeScore, awayScore := PredictScores(p, in.HomeSnapshot, in.AwaySnapshot)

	matchups, err := s.keyMatchups(ctx, homeRoster, awayRoster)
	if err != nil {
		return nil, err
	}

	pred := &models.GamePrediction{
		ID:                 uuid.New(),
		GameID:             gameID,
		HomeWinProbability: round2(p),
		PredictedHomeScore: homeScore,
		PredictedAwayScore: awayScore,
		HomeQuarters:       SplitQuarters(homeScore),
		AwayQuarters:       SplitQuarters(awayScore),
		KeyMatchupFactors: models.MatchupFactors{
			KeyPlayerMatchups: matchups,
			HomeAdvantage:     HomeAdvantageLabel(p),
			PredictedPace:     PaceLabel(homeScore + awayScore),
		},
		CreatedAt: now,
	}
	if err := s.deps.Predictions.CreateGamePrediction(ctx, pred); err != nil {
		return nil, fmt.Errorf("create game prediction: %w", err)
	}
	predictionsCreated.WithLabelValues("game").Inc()
	s.logger.Infow("Game prediction created", "game_id", gameID, "home_win_probability", pred.HomeWinProbability,
		"home_score", homeScore, "away_score", awayScore)
	return pred, nil
}

func (s *predictionService) latestTeamSnapshot(ctx context.Context, teamID int64) (*models.TeamAnalyticsSnapshot, error) {
	snap, err := s.deps.Snapshots.LatestTeamSnapshot(ctx, teamID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("team %d snapshot: %w", teamID, err)
	}
	return snap, nil
}

func (s *predictionService) recentForm(ctx context.Context, teamID int64) (Form, error) {
	asOf := s.opts.today()
	if f, ok, err := s.deps.Forms.Get(ctx, teamID, asOf); err != nil {
		s.logger.Warnw("Form cache read failed", "team_id", teamID, "error", err)
	} else if ok {
		formCacheLookups.WithLabelValues("hit").Inc()
		return f, nil
	}
	formCacheLookups.WithLabelValues("miss").Inc()

	games, err := s.deps.Games.RecentFinishedTeamGames(ctx, teamID, models.VenueAny, formWindow)
	if err != nil {
		return Form{}, fmt.Errorf("team %d recent form: %w", teamID, err)
	}
	f := formOf(teamID, games)
	if err := s.deps.Forms.Set(ctx, teamID, asOf, f); err != nil {
		s.logger.Warnw("Form cache write failed", "team_id", teamID, "error", err)
	}
	return f, nil
}

func formOf(teamID int64, games []models.Game) Form {
	f := Form{Games: len(games)}
	for _, g := range games {
		if g.Won(teamID) {
			f.Wins++
		}
	}
	return f
}

// keyMatchups pairs the first home players that have a snapshot with the
// first same-position away player that has one.
func (s *predictionService) keyMatchups(ctx context.Context, homeRoster, awayRoster []models.Player) ([]models.KeyMatchup, error) {
	efficiency := make(map[int64]*float64)
	lookup := func(p models.Player) (*float64, error) {
		if e, ok := efficiency[p.ID]; ok {
			return e, nil
		}
		snap, err := s.deps.Snapshots.LatestPlayerSnapshot(ctx, p.ID)
		if errors.Is(err, ErrNotFound) {
			efficiency[p.ID] = nil
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("player %d snapshot: %w", p.ID, err)
		}
		e := snap.EfficiencyRating
		efficiency[p.ID] = &e
		return &e, nil
	}

	var homeKeys []models.Player
	for _, p := range homeRoster {
		if len(homeKeys) == maxKeyMatchups {
			break
		}
		e, err := lookup(p)
		if err != nil {
			return nil, err
		}
		if e != nil {
			homeKeys = append(homeKeys, p)
		}
	}

	matchups := []models.KeyMatchup{}
	for _, hp := range homeKeys {
		for _, ap := range awayRoster {
			if ap.Position != hp.Position {
				continue
			}
			ae, err := lookup(ap)
			if err != nil {
				return nil, err
			}
			if ae == nil {
				continue
			}
			he := *efficiency[hp.ID]
			matchups = append(matchups, BuildMatchup(
				models.MatchupPlayer{ID: hp.ID, Name: hp.Name, Position: hp.Position, Efficiency: he},
				models.MatchupPlayer{ID: ap.ID, Name: ap.Name, Position: ap.Position, Efficiency: *ae},
			))
			break
		}
	}
	return matchups, nil
}

func (s *predictionService) EvaluateGame(ctx context.Context, gameID int64) (*float64, error) {
	game, err := s.deps.Games.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	if game.Status != models.GameFinished {
		return nil, nil
	}

	pred, err := s.deps.Predictions.LatestGamePrediction(ctx, gameID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest prediction: %w", err)
	}
	if pred.Accuracy != nil {
		return pred.Accuracy, nil
	}

	acc := EvaluateAccuracy(pred, game.HomeScore, game.AwayScore)
	stored, err := s.deps.Predictions.SetPredictionAccuracy(ctx, pred.ID, acc)
	if err != nil {
		return nil, fmt.Errorf("set prediction accuracy: %w", err)
	}
	if stored {
		predictionAccuracy.Observe(acc)
		s.logger.Infow("Prediction evaluated", "game_id", gameID, "prediction_id", pred.ID, "accuracy", acc)
	}
	return &acc, nil
}

func (s *predictionService) PredictPlayers(ctx context.Context, gameID int64) (int, error) {
	game, err := s.deps.Games.GetGame(ctx, gameID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warnw("Game not found, skipping player predictions", "game_id", gameID)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get game: %w", err)
	}
	if game.Status != models.GameScheduled {
		return 0, nil
	}

	sides := []struct {
		team     int64
		opponent int64
	}{
		{game.HomeTeamID, game.AwayTeamID},
		{game.AwayTeamID, game.HomeTeamID},
	}

	created := 0
	var errs []error
	for _, side := range sides {
		roster, err := s.deps.Rosters.TeamRoster(ctx, side.team)
		if err != nil {
			return created, fmt.Errorf("team %d roster: %w", side.team, err)
		}
		for _, p := range roster {
			ok, err := s.predictPlayer(ctx, p.ID, side.opponent, gameID)
			if err != nil {
				s.logger.Errorw("Player prediction failed", "player_id", p.ID, "game_id", gameID, "error", err)
				errs = append(errs, fmt.Errorf("player %d: %w", p.ID, err))
				continue
			}
			if ok {
				created++
			}
		}
	}
	return created, errors.Join(errs...)
}

func (s *predictionService) predictPlayer(ctx context.Context, playerID, opponentID, gameID int64) (bool, error) {
	now := s.opts.Now()
	recent, err := s.deps.Predictions.PlayerPredictionCreatedSince(ctx, playerID, gameID, now.Add(-s.opts.PredictionCooldown))
	if err != nil {
		return false, fmt.Errorf("check recent prediction: %w", err)
	}
	if recent {
		return false, nil
	}

	var last, vs []models.PlayerGameRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		last, err = s.deps.Stats.RecentPlayerGames(gctx, playerID, lastGamesWindow)
		return err
	})
	g.Go(func() (err error) {
		vs, err = s.deps.Stats.PlayerGamesVsTeam(gctx, playerID, opponentID, opponentWindow)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("player history: %w", err)
	}

	pred := ProjectPlayer(last, vs)
	pred.ID = uuid.New()
	pred.PlayerID = playerID
	pred.GameID = gameID
	pred.CreatedAt = now
	if err := s.deps.Predictions.UpsertPlayerPrediction(ctx, pred); err != nil {
		return false, fmt.Errorf("upsert player prediction: %w", err)
	}
	predictionsCreated.WithLabelValues("player").Inc()
	return true, nil
}

type statLine struct {
	pts, reb, ast, stl, blk, min float64
}

func averageLine(recs []models.PlayerGameRecord) statLine {
	var pts, reb, ast, stl, blk, mins []float64
	for _, r := range recs {
		pts = append(pts, float64(r.Points))
		reb = append(reb, float64(r.Rebounds))
		ast = append(ast, float64(r.Assists))
		stl = append(stl, float64(r.Steals))
		blk = append(blk, float64(r.Blocks))
		mins = append(mins, float64(r.MinutesPlayed))
	}
	return statLine{mean(pts), mean(reb), mean(ast), mean(stl), mean(blk), mean(mins)}
}

// ProjectPlayer blends the player's recent games with games against the
// opponent, weighting the matchup history 70/30 when there is any. A player
// without recent games gets an all-zero projection with no confidence.
func ProjectPlayer(recent, vsOpponent []models.PlayerGameRecord) *models.PlayerPerformancePrediction {
	pred := &models.PlayerPerformancePrediction{}
	if len(recent) > 0 {
		r := averageLine(recent)
		pred.ConfidenceScore = 50
		if len(vsOpponent) > 0 {
			o := averageLine(vsOpponent)
			r = statLine{
				pts: 0.7*o.pts + 0.3*r.pts,
				reb: 0.7*o.reb + 0.3*r.reb,
				ast: 0.7*o.ast + 0.3*r.ast,
				stl: 0.7*o.stl + 0.3*r.stl,
				blk: 0.7*o.blk + 0.3*r.blk,
				min: 0.7*o.min + 0.3*r.min,
			}
			pred.ConfidenceScore = 75
		}
		pred.PredictedPoints = int(r.pts)
		pred.PredictedRebounds = int(r.reb)
		pred.PredictedAssists = int(r.ast)
		pred.PredictedSteals = int(r.stl)
		pred.PredictedBlocks = int(r.blk)
		pred.PredictedMinutes = int(r.min)
	}

	pred.PredictedEfficiency = round2(projectedEfficiency(
		float64(pred.PredictedPoints), float64(pred.PredictedRebounds), float64(pred.PredictedAssists),
		float64(pred.PredictedSteals), float64(pred.PredictedBlocks), float64(pred.PredictedMinutes),
	))
	pred.Factors = PlayerFactors(pred.PredictedEfficiency, pred.ConfidenceScore, pred.PredictedMinutes)
	return pred
}

func PlayerFactors(efficiency, confidence float64, minutes int) models.PredictionFactors {
	var f models.PredictionFactors
	switch {
	case efficiency > 15:
		f.RecentForm = "good"
	case efficiency > 10:
		f.RecentForm = "average"
	default:
		f.RecentForm = "poor"
	}
	switch {
	case confidence > 70:
		f.MatchupHistory = "favorable"
	case confidence > 50:
		f.MatchupHistory = "neutral"
	default:
		f.MatchupHistory = "unfavorable"
	}
	switch {
	case minutes > 30:
		f.MinutesProjection = "high"
	case minutes > 20:
		f.MinutesProjection = "moderate"
	default:
		f.MinutesProjection = "low"
	}
	return f
}
