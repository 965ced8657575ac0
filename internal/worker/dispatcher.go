package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/logic"
	"github.com/hoopstat/analytics-engine/internal/models"
)

// Enqueuer publishes follow-up jobs. *Pool satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job models.Job) (models.Job, bool, error)
	EnqueueAfter(ctx context.Context, job models.Job, delay time.Duration) (models.Job, bool, error)
}

// Defaults fill in job parameters the caller left at zero.
type Defaults struct {
	PlayerWindowDays        int
	TeamWindowDays          int
	GameLookaheadDays       int
	PlayerLookaheadDays     int
	PredictionRetentionDays int
	SnapshotRetentionDays   int
	PostGameDelay           time.Duration
}

// DispatcherConfig wires the analytics services to the queue.
// Archiver and Forms are optional.
type DispatcherConfig struct {
	Players     logic.PlayerAnalyticsService
	Teams       logic.TeamAnalyticsService
	Trends      logic.TrendService
	Predictions logic.PredictionService
	Maintenance logic.MaintenanceService
	Realtime    logic.RealtimeService

	Games     logic.GameStore
	Rosters   logic.RosterStore
	BoxScores logic.BoxScoreStore
	Archiver  logic.BoxScoreArchiver
	Forms     logic.FormCache

	Queue    Enqueuer
	Defaults Defaults
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// Dispatcher routes a job to its operation. A job without an entity fans out
// into one job per entity so each has its own retry boundary.
type Dispatcher struct {
	cfg    DispatcherConfig
	logger *zap.SugaredLogger
}

var _ Handler = (*Dispatcher)(nil)

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	d := cfg.Defaults
	if d.PlayerWindowDays <= 0 {
		d.PlayerWindowDays = 30
	}
	if d.TeamWindowDays <= 0 {
		d.TeamWindowDays = 30
	}
	if d.GameLookaheadDays <= 0 {
		d.GameLookaheadDays = 7
	}
	if d.PlayerLookaheadDays <= 0 {
		d.PlayerLookaheadDays = d.GameLookaheadDays
	}
	if d.PredictionRetentionDays <= 0 {
		d.PredictionRetentionDays = 30
	}
	if d.SnapshotRetentionDays <= 0 {
		d.SnapshotRetentionDays = 90
	}
	if d.PostGameDelay < 0 {
		d.PostGameDelay = 0
	}
	cfg.Defaults = d
	return &Dispatcher{cfg: cfg, logger: cfg.Logger.Sugar()}
}

// GameFinishedJob builds the post-game cascade job, deduplicated per game.
func GameFinishedJob(gameID int64) models.Job {
	job := models.ForEntity(models.JobGameFinished, gameID, 0)
	job.DedupKey = string(models.JobGameFinished) + ":" + strconv.FormatInt(gameID, 10)
	return job
}

// ScheduleGameFinished queues the cascade for gameID after delay.
func ScheduleGameFinished(ctx context.Context, q Enqueuer, gameID int64, delay time.Duration) (models.Job, bool, error) {
	return q.EnqueueAfter(ctx, GameFinishedJob(gameID), delay)
}

// RealtimeJob wraps a live update for the realtime queue.
func RealtimeJob(gameID int64, update models.LiveGameUpdate) (models.Job, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return models.Job{}, fmt.Errorf("marshal live update: %w", err)
	}
	job := models.ForEntity(models.JobRealtimeGameData, gameID, 0)
	job.Payload = payload
	return job, nil
}

func (d *Dispatcher) Handle(ctx context.Context, job models.Job) error {
	switch job.Type {
	case models.JobAggregatePlayer:
		return d.aggregatePlayer(ctx, job)
	case models.JobAggregateTeam:
		return d.aggregateTeam(ctx, job)
	case models.JobComputeTeamTrends:
		return d.computeTrends(ctx, job)
	case models.JobPredictGames:
		return d.predictGames(ctx, job)
	case models.JobPredictPlayers:
		return d.predictPlayers(ctx, job)
	case models.JobGameFinished:
		return d.gameFinished(ctx, job)
	case models.JobRealtimeGameData:
		return d.realtime(ctx, job)
	case models.JobCleanupPredictions:
		n, err := d.cfg.Maintenance.CleanupPredictions(ctx, orDefault(job.Days, d.cfg.Defaults.PredictionRetentionDays))
		if err != nil {
			return err
		}
		d.logger.Infow("Cleaned up predictions", "job", job.Type, "deleted", n)
		return nil
	case models.JobConsolidateSnapshots:
		n, err := d.cfg.Maintenance.ConsolidateSnapshots(ctx, orDefault(job.Days, d.cfg.Defaults.SnapshotRetentionDays))
		if err != nil {
			return err
		}
		d.logger.Infow("Consolidated snapshots", "job", job.Type, "deleted", n)
		return nil
	case models.JobValidateIntegrity:
		return d.validateIntegrity(ctx, job)
	}
	return fmt.Errorf("unknown job type %q", job.Type)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// fanOut enqueues one job of type t per id and reports how many were published.
// An entity whose enqueue fails is logged and skipped. It returns an error
// only when every enqueue failed.
func (d *Dispatcher) fanOut(ctx context.Context, t models.JobType, ids []int64, days int) (int, error) {
	var errs []error
	n := 0
	for _, id := range ids {
		_, ok, err := d.cfg.Queue.Enqueue(ctx, models.ForEntity(t, id, days))
		switch {
		case err != nil:
			d.logger.Errorw("Failed to fan out job", "job", t, "entity_id", id, "error", err)
			errs = append(errs, fmt.Errorf("%s %d: %w", t, id, err))
		case ok:
			n++
		}
	}
	d.logger.Infow("Fanned out jobs", "job", t, "count", n, "entities", len(ids), "failed", len(errs))
	if len(errs) > 0 && len(errs) == len(ids) {
		return n, errors.Join(errs...)
	}
	return n, nil
}

func (d *Dispatcher) aggregatePlayer(ctx context.Context, job models.Job) error {
	days := orDefault(job.Days, d.cfg.Defaults.PlayerWindowDays)
	if job.EntityID == nil {
		players, err := d.cfg.Rosters.ActivePlayers(ctx)
		if err != nil {
			return fmt.Errorf("list players: %w", err)
		}
		ids := make([]int64, len(players))
		for i, p := range players {
			ids[i] = p.ID
		}
		_, err = d.fanOut(ctx, models.JobAggregatePlayer, ids, days)
		return err
	}

	snap, err := d.cfg.Players.AggregatePlayer(ctx, *job.EntityID, days)
	if err != nil {
		return fmt.Errorf("aggregate player %d: %w", *job.EntityID, err)
	}
	if snap == nil {
		d.logger.Debugw("No games in window", "player_id", *job.EntityID, "days", days)
	}
	return nil
}

func (d *Dispatcher) activeTeamIDs(ctx context.Context) ([]int64, error) {
	teams, err := d.cfg.Rosters.ActiveTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	ids := make([]int64, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	return ids, nil
}

func (d *Dispatcher) aggregateTeam(ctx context.Context, job models.Job) error {
	days := orDefault(job.Days, d.cfg.Defaults.TeamWindowDays)
	if job.EntityID == nil {
		ids, err := d.activeTeamIDs(ctx)
		if err != nil {
			return err
		}
		_, err = d.fanOut(ctx, models.JobAggregateTeam, ids, days)
		return err
	}

	snap, err := d.cfg.Teams.AggregateTeam(ctx, *job.EntityID, days)
	if err != nil {
		return fmt.Errorf("aggregate team %d: %w", *job.EntityID, err)
	}
	if snap == nil {
		d.logger.Debugw("No games in window", "team_id", *job.EntityID, "days", days)
	}
	return nil
}

func (d *Dispatcher) computeTrends(ctx context.Context, job models.Job) error {
	if job.EntityID == nil {
		ids, err := d.activeTeamIDs(ctx)
		if err != nil {
			return err
		}
		_, err = d.fanOut(ctx, models.JobComputeTeamTrends, ids, 0)
		return err
	}

	n, err := d.cfg.Trends.ComputeTeamTrends(ctx, *job.EntityID)
	if err != nil {
		return fmt.Errorf("team trends %d: %w", *job.EntityID, err)
	}
	d.logger.Debugw("Computed team trends", "team_id", *job.EntityID, "periods", n)
	return nil
}

// upcomingGameIDs lists SCHEDULED games from the start of today through days ahead.
func (d *Dispatcher) upcomingGameIDs(ctx context.Context, days int) ([]int64, error) {
	y, m, dd := d.cfg.Now().In(d.cfg.Location).Date()
	from := time.Date(y, m, dd, 0, 0, 0, 0, d.cfg.Location)
	to := from.AddDate(0, 0, days+1)

	games, err := d.cfg.Games.UpcomingGames(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("upcoming games: %w", err)
	}
	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	return ids, nil
}

func (d *Dispatcher) predictGames(ctx context.Context, job models.Job) error {
	if job.EntityID == nil {
		ids, err := d.upcomingGameIDs(ctx, orDefault(job.Days, d.cfg.Defaults.GameLookaheadDays))
		if err != nil {
			return err
		}
		_, err = d.fanOut(ctx, models.JobPredictGames, ids, 0)
		return err
	}

	pred, err := d.cfg.Predictions.PredictGame(ctx, *job.EntityID)
	if err != nil {
		return fmt.Errorf("predict game %d: %w", *job.EntityID, err)
	}
	if pred != nil {
		d.logger.Infow("Game prediction created",
			"game_id", *job.EntityID,
			"home_win_probability", pred.HomeWinProbability,
			"home", pred.PredictedHomeScore,
			"away", pred.PredictedAwayScore,
		)
	}
	return nil
}

func (d *Dispatcher) predictPlayers(ctx context.Context, job models.Job) error {
	if job.EntityID == nil {
		ids, err := d.upcomingGameIDs(ctx, orDefault(job.Days, d.cfg.Defaults.PlayerLookaheadDays))
		if err != nil {
			return err
		}
		_, err = d.fanOut(ctx, models.JobPredictPlayers, ids, 0)
		return err
	}

	n, err := d.cfg.Predictions.PredictPlayers(ctx, *job.EntityID)
	if err != nil {
		return fmt.Errorf("predict players for game %d: %w", *job.EntityID, err)
	}
	d.logger.Infow("Player predictions written", "game_id", *job.EntityID, "count", n)
	return nil
}

// gameFinished evaluates the prediction, archives the box score and
// re-aggregates both teams, their trends and every player who logged a line.
func (d *Dispatcher) gameFinished(ctx context.Context, job models.Job) error {
	if job.EntityID == nil {
		return fmt.Errorf("%s requires a game id", job.Type)
	}
	gameID := *job.EntityID

	game, err := d.cfg.Games.GetGame(ctx, gameID)
	if errors.Is(err, logic.ErrNotFound) {
		d.logger.Warnw("Finished game not found", "game_id", gameID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load game %d: %w", gameID, err)
	}
	if game.Status != models.GameFinished {
		d.logger.Warnw("Cascade skipped, game not finished", "game_id", gameID, "status", game.Status)
		return nil
	}

	if acc, err := d.cfg.Predictions.EvaluateGame(ctx, gameID); err != nil {
		return fmt.Errorf("evaluate game %d: %w", gameID, err)
	} else if acc != nil {
		d.logger.Infow("Prediction evaluated", "game_id", gameID, "accuracy", *acc)
	}

	if d.cfg.Forms != nil {
		if err := d.cfg.Forms.Invalidate(ctx, game.HomeTeamID, game.AwayTeamID); err != nil {
			d.logger.Warnw("Form cache invalidation failed", "game_id", gameID, "error", err)
		}
	}

	lines, err := d.cfg.BoxScores.GameBoxScore(ctx, gameID)
	if err != nil {
		return fmt.Errorf("box score %d: %w", gameID, err)
	}

	if d.cfg.Archiver != nil {
		if err := d.cfg.Archiver.ArchiveGame(ctx, *game, lines); err != nil {
			d.logger.Errorw("Archiving box score failed", "game_id", gameID, "error", err)
		}
	}

	teams := []int64{game.HomeTeamID, game.AwayTeamID}
	seen := make(map[int64]bool, len(lines))
	var players []int64
	for _, l := range lines {
		if !seen[l.PlayerID] {
			seen[l.PlayerID] = true
			players = append(players, l.PlayerID)
		}
	}

	var errs []error
	if _, err := d.fanOut(ctx, models.JobAggregateTeam, teams, d.cfg.Defaults.TeamWindowDays); err != nil {
		errs = append(errs, err)
	}
	if _, err := d.fanOut(ctx, models.JobComputeTeamTrends, teams, 0); err != nil {
		errs = append(errs, err)
	}
	if _, err := d.fanOut(ctx, models.JobAggregatePlayer, players, d.cfg.Defaults.PlayerWindowDays); err != nil {
		errs = append(errs, err)
	}

	d.logger.Infow("Post-game cascade queued", "game_id", gameID, "teams", len(teams), "players", len(players))
	return errors.Join(errs...)
}

func (d *Dispatcher) realtime(ctx context.Context, job models.Job) error {
	if job.EntityID == nil {
		return fmt.Errorf("%s requires a game id", job.Type)
	}
	gameID := *job.EntityID

	var update models.LiveGameUpdate
	if err := json.Unmarshal(job.Payload, &update); err != nil {
		// A malformed payload will not get better on retry.
		d.logger.Errorw("Dropping malformed live update", "game_id", gameID, "error", err)
		return nil
	}

	res, err := d.cfg.Realtime.ProcessGameData(ctx, gameID, update)
	if err != nil {
		return fmt.Errorf("live update %d: %w", gameID, err)
	}
	if res == nil {
		d.logger.Warnw("Live update for unknown game", "game_id", gameID)
		return nil
	}
	if res.Finished {
		if _, _, err := ScheduleGameFinished(ctx, d.cfg.Queue, gameID, d.cfg.Defaults.PostGameDelay); err != nil {
			return fmt.Errorf("schedule cascade for game %d: %w", gameID, err)
		}
		d.logger.Infow("Game finished, cascade scheduled", "game_id", gameID, "delay", d.cfg.Defaults.PostGameDelay)
	}
	return nil
}

func (d *Dispatcher) validateIntegrity(ctx context.Context, job models.Job) error {
	report, err := d.cfg.Maintenance.FindIntegrityViolations(ctx)
	if err != nil {
		return err
	}
	if report.Empty() {
		d.logger.Infow("Integrity check passed", "job", job.Type)
		return nil
	}

	d.logger.Warnw("Integrity violations found, re-aggregating",
		"players", report.PlayerIDs,
		"teams", report.TeamIDs,
	)
	_, perr := d.fanOut(ctx, models.JobAggregatePlayer, report.PlayerIDs, d.cfg.Defaults.PlayerWindowDays)
	_, terr := d.fanOut(ctx, models.JobAggregateTeam, report.TeamIDs, d.cfg.Defaults.TeamWindowDays)
	return errors.Join(perr, terr)
}
