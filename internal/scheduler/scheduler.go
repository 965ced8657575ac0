// Package scheduler publishes the recurring analytics jobs on a cron schedule.
// Jobs only go onto the queue here; the worker pool runs them.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/models"
)

const enqueueTimeout = 30 * time.Second

// Enqueuer publishes a job. *worker.Pool satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job models.Job) (models.Job, bool, error)
}

// Windows are the day counts carried on scheduled jobs.
type Windows struct {
	PlayerWindowDays        int
	TeamWindowDays          int
	GameLookaheadDays       int
	PlayerLookaheadDays     int
	PredictionRetentionDays int
	SnapshotRetentionDays   int
}

// Entry is one recurring job.
type Entry struct {
	Name string         `json:"name"`
	Spec string         `json:"spec"`
	Job  models.JobType `json:"job"`
	Days int            `json:"days,omitempty"`
}

// EntryStatus is an Entry with its run times.
type EntryStatus struct {
	Entry
	Next time.Time  `json:"next_run"`
	Prev *time.Time `json:"prev_run,omitempty"`
}

// Entries returns the recurring schedule.
func Entries(w Windows) []Entry {
	return []Entry{
		{Name: "daily_player_aggregation", Spec: "0 4 * * *", Job: models.JobAggregatePlayer, Days: w.PlayerWindowDays},
		{Name: "daily_team_aggregation", Spec: "30 4 * * *", Job: models.JobAggregateTeam, Days: w.TeamWindowDays},
		{Name: "daily_team_trends", Spec: "0 5 * * *", Job: models.JobComputeTeamTrends},
		{Name: "daily_game_predictions", Spec: "0 6 * * *", Job: models.JobPredictGames, Days: w.GameLookaheadDays},
		{Name: "daily_player_predictions", Spec: "0 7 * * *", Job: models.JobPredictPlayers, Days: w.PlayerLookaheadDays},
		{Name: "weekly_prediction_cleanup", Spec: "0 2 * * 1", Job: models.JobCleanupPredictions, Days: w.PredictionRetentionDays},
		{Name: "weekly_snapshot_consolidation", Spec: "0 3 * * 1", Job: models.JobConsolidateSnapshots, Days: w.SnapshotRetentionDays},
		{Name: "integrity_check", Spec: "0 1 */2 * *", Job: models.JobValidateIntegrity},
	}
}

type Config struct {
	Queue    Enqueuer
	Windows  Windows
	Location *time.Location
	Logger   *zap.Logger
	Now      func() time.Time
}

type scheduled struct {
	Entry
	id cron.EntryID
}

// Scheduler wraps a cron.Cron loaded with Entries.
type Scheduler struct {
	cron    *cron.Cron
	queue   Enqueuer
	loc     *time.Location
	now     func() time.Time
	logger  *zap.SugaredLogger
	entries []scheduled

	mu      sync.Mutex
	running bool
}

// New registers every entry without starting the cron loop.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cl := cronLogger{cfg.Logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		queue:  cfg.Queue,
		loc:    cfg.Location,
		now:    cfg.Now,
		logger: cfg.Logger.Sugar(),
	}

	for _, e := range Entries(cfg.Windows) {
		e := e
		id, err := s.cron.AddFunc(e.Spec, func() { s.enqueue(e) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", e.Name, err)
		}
		s.entries = append(s.entries, scheduled{Entry: e, id: id})
	}
	return s, nil
}

func (s *Scheduler) enqueue(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	job, ok, err := s.queue.Enqueue(ctx, models.NewJob(e.Job, nil, e.Days))
	if err != nil {
		s.logger.Errorw("Scheduled job enqueue failed", "schedule", e.Name, "job", e.Job, "error", err)
		return
	}
	if !ok {
		s.logger.Warnw("Scheduled job deduplicated", "schedule", e.Name, "job", e.Job)
		return
	}
	s.logger.Infow("Scheduled job enqueued", "schedule", e.Name, "job", e.Job, "jobID", job.ID, "days", e.Days)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Infow("Scheduler started", "entries", len(s.entries), "timezone", s.loc.String())
}

// Stop waits for running entries until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

// Schedule lists every entry with its next run in the configured timezone.
func (s *Scheduler) Schedule() []EntryStatus {
	now := s.now().In(s.loc)
	out := make([]EntryStatus, 0, len(s.entries))
	for _, e := range s.entries {
		ce := s.cron.Entry(e.id)
		st := EntryStatus{Entry: e.Entry}
		if ce.Schedule != nil {
			st.Next = ce.Schedule.Next(now)
		}
		if !ce.Prev.IsZero() {
			prev := ce.Prev
			st.Prev = &prev
		}
		out = append(out, st)
	}
	return out
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
