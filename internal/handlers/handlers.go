package handlers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hoopstat/analytics-engine/internal/models"
	"github.com/hoopstat/analytics-engine/internal/scheduler"
	"github.com/hoopstat/analytics-engine/internal/worker"
)

// MaxBodySize limits the size of request bodies to 1MB
const MaxBodySize = 1048576

// JobQueue is the worker pool as seen by the API
type JobQueue interface {
	worker.Enqueuer
	QueueDepth(ctx context.Context) (int64, error)
}

// Pinger is satisfied by *pgxpool.Pool and clickhouse driver.Conn
type Pinger interface {
	Ping(ctx context.Context) error
}

type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// AnalyticsReader serves the latest persisted analytics records
type AnalyticsReader interface {
	LatestPlayerSnapshot(ctx context.Context, playerID int64) (*models.PlayerAnalyticsSnapshot, error)
	LatestTeamSnapshot(ctx context.Context, teamID int64) (*models.TeamAnalyticsSnapshot, error)
	LatestGamePrediction(ctx context.Context, gameID int64) (*models.GamePrediction, error)
}

type GameReader interface {
	GetGame(ctx context.Context, gameID int64) (*models.Game, error)
}

type ScheduleLister interface {
	Schedule() []scheduler.EntryStatus
}

type Config struct {
	Queue      JobQueue
	Postgres   Pinger
	ClickHouse Pinger // nil when the archive is disabled
	Redis      RedisPinger
	Analytics  AnalyticsReader
	Games      GameReader
	Schedule   ScheduleLister // nil when the scheduler is disabled
	Logger     *zap.Logger

	AdminToken     string
	PostGameDelay  time.Duration
	AllowedOrigins []string
	RatePerSecond  int
	RateBurst      int
}

type Handler struct {
	queue         JobQueue
	pg            Pinger
	ch            Pinger
	redis         RedisPinger
	analytics     AnalyticsReader
	games         GameReader
	schedule      ScheduleLister
	logger        *zap.SugaredLogger
	validator     *validator.Validate
	adminHash     string
	postGameDelay time.Duration
	origins       []string
	liveLimiter   *rate.Limiter
}

// newValidator adds the cross-field rules that tags cannot express on
// optional fields.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateLiveLine, models.LivePlayerStat{})
	return v
}

// validateLiveLine rejects makes above attempts when both are present.
func validateLiveLine(sl validator.StructLevel) {
	line := sl.Current().Interface().(models.LivePlayerStat)
	pairs := []struct {
		made, attempted *int
		field, tag      string
	}{
		{line.FieldGoalsMade, line.FieldGoalsAttempted, "FieldGoalsMade", "field_goals_made"},
		{line.ThreePointersMade, line.ThreePointersAttempted, "ThreePointersMade", "three_pointers_made"},
		{line.FreeThrowsMade, line.FreeThrowsAttempted, "FreeThrowsMade", "free_throws_made"},
	}
	for _, p := range pairs {
		if p.made != nil && p.attempted != nil && *p.made > *p.attempted {
			sl.ReportError(*p.made, p.field, p.tag, "ltefield", "")
		}
	}
	if line.ThreePointersMade != nil && line.FieldGoalsMade != nil && *line.ThreePointersMade > *line.FieldGoalsMade {
		sl.ReportError(*line.ThreePointersMade, "ThreePointersMade", "three_pointers_made", "ltefield", "")
	}
}

func New(cfg Config) *Handler {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	h := &Handler{
		queue:         cfg.Queue,
		pg:            cfg.Postgres,
		ch:            cfg.ClickHouse,
		redis:         cfg.Redis,
		analytics:     cfg.Analytics,
		games:         cfg.Games,
		schedule:      cfg.Schedule,
		logger:        cfg.Logger.Sugar(),
		validator:     newValidator(),
		postGameDelay: cfg.PostGameDelay,
		origins:       cfg.AllowedOrigins,
		liveLimiter:   rate.NewLimiter(limit, burst),
	}
	if cfg.AdminToken != "" {
		h.adminHash = hashToken(cfg.AdminToken)
	}
	return h
}
