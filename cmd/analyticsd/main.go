package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/hoopstat/analytics-engine/docs"
	"github.com/hoopstat/analytics-engine/internal/config"
	"github.com/hoopstat/analytics-engine/internal/handlers"
	"github.com/hoopstat/analytics-engine/internal/listener"
	"github.com/hoopstat/analytics-engine/internal/logic"
	"github.com/hoopstat/analytics-engine/internal/models"
	"github.com/hoopstat/analytics-engine/internal/scheduler"
	"github.com/hoopstat/analytics-engine/internal/store"
	"github.com/hoopstat/analytics-engine/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// @title Hoops Analytics Engine
// @version 1.0
// @description Ops API for the basketball analytics engine: job triggers, live updates and debug reads.
// @BasePath /api/v1
// @securityDefinitions.apikey AdminToken
// @in header
// @name X-Admin-Token
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Analytics engine failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	sugar := logger.Sugar()

	// Postgres
	pg, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := store.MigratePostgres(ctx, pg); err != nil {
		return err
	}
	sugar.Info("Connected to Postgres")

	// Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	sugar.Info("Connected to Redis")

	primary := store.NewPostgres(pg)

	// ClickHouse archive (optional)
	var (
		chConn   driver.Conn
		archive  *store.ClickHouseArchive
		archiver logic.BoxScoreArchiver
	)
	if cfg.ArchiveEnabled() {
		chOpts, err := clickhouse.ParseDSN(cfg.ClickHouseURL)
		if err != nil {
			return fmt.Errorf("parse clickhouse dsn: %w", err)
		}
		chConn, err = clickhouse.Open(chOpts)
		if err != nil {
			return fmt.Errorf("open clickhouse: %w", err)
		}
		defer chConn.Close()
		if err := chConn.Ping(ctx); err != nil {
			return fmt.Errorf("ping clickhouse: %w", err)
		}
		if err := store.MigrateClickHouse(ctx, chConn); err != nil {
			return err
		}
		archive = store.NewClickHouseArchive(chConn, logger)
		archiver = archive
		sugar.Info("Connected to ClickHouse archive")
	}

	var stats logic.BoxScoreReader = primary
	if cfg.StatsSource == config.StatsSourceClickHouse {
		stats = archive
	}

	// Rosters from the league MySQL database when configured
	var rosters logic.RosterStore = primary
	if cfg.RosterMySQLDSN != "" {
		mysqlRosters, err := store.OpenMySQLRosters(ctx, cfg.RosterMySQLDSN, logger)
		if err != nil {
			return err
		}
		defer mysqlRosters.Close()
		rosters = mysqlRosters
		sugar.Info("Using MySQL roster source")
	}

	// Analytics services
	opts := logic.Options{
		TrendThreshold:     cfg.TrendThreshold,
		PredictionCooldown: cfg.PredictionCooldown,
		Location:           cfg.Location,
	}
	forms := logic.NewRedisFormCache(rdb, cfg.FormCacheTTL)

	players := logic.NewPlayerAnalyticsService(stats, primary, opts, logger)
	teams := logic.NewTeamAnalyticsService(primary, primary, opts, logger)
	trends := logic.NewTrendService(primary, primary, opts, logger)
	predictions := logic.NewPredictionService(logic.PredictionDeps{
		Games:       primary,
		Stats:       stats,
		Rosters:     rosters,
		Snapshots:   primary,
		Predictions: primary,
		Forms:       forms,
	}, opts, logger)
	maintenance := logic.NewMaintenanceService(primary, primary, opts, logger)
	realtime := logic.NewRealtimeService(logic.RealtimeDeps{
		Games:       primary,
		BoxScores:   primary,
		Rosters:     rosters,
		Predictions: predictions,
		Forms:       forms,
	}, logger)

	// Queue and workers
	broker := worker.NewRedisBroker(rdb, logger)
	if err := broker.EnsureGroups(ctx); err != nil {
		return err
	}

	var dispatcher *worker.Dispatcher
	pool := worker.NewPool(worker.PoolConfig{
		WorkerCount: cfg.WorkerCount,
		FetchCount:  int64(cfg.FetchCount),
		FetchBlock:  cfg.FetchBlock,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		ReclaimIdle: cfg.ReclaimIdle,
		Broker:      broker,
		Handler: worker.HandlerFunc(func(ctx context.Context, job models.Job) error {
			return dispatcher.Handle(ctx, job)
		}),
		Logger: logger,
	})
	dispatcher = worker.NewDispatcher(worker.DispatcherConfig{
		Players:     players,
		Teams:       teams,
		Trends:      trends,
		Predictions: predictions,
		Maintenance: maintenance,
		Realtime:    realtime,
		Games:       primary,
		Rosters:     rosters,
		BoxScores:   primary,
		Archiver:    archiver,
		Forms:       forms,
		Queue:       pool,
		Defaults: worker.Defaults{
			PlayerWindowDays:        cfg.PlayerWindowDays,
			TeamWindowDays:          cfg.TeamWindowDays,
			GameLookaheadDays:       cfg.GameLookaheadDays,
			PlayerLookaheadDays:     cfg.PlayerLookaheadDays,
			PredictionRetentionDays: cfg.PredictionRetentionDays,
			SnapshotRetentionDays:   cfg.SnapshotRetentionDays,
			PostGameDelay:           cfg.PostGameDelay,
		},
		Location: cfg.Location,
		Logger:   logger,
	})
	pool.Start(ctx)
	defer pool.Stop()

	// Recurring jobs
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched, err = scheduler.New(scheduler.Config{
			Queue: pool,
			Windows: scheduler.Windows{
				PlayerWindowDays:        cfg.PlayerWindowDays,
				TeamWindowDays:          cfg.TeamWindowDays,
				GameLookaheadDays:       cfg.GameLookaheadDays,
				PlayerLookaheadDays:     cfg.PlayerLookaheadDays,
				PredictionRetentionDays: cfg.PredictionRetentionDays,
				SnapshotRetentionDays:   cfg.SnapshotRetentionDays,
			},
			Location: cfg.Location,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	// Postgres NOTIFY bridge
	if cfg.ListenGameEvents {
		l := listener.New(listener.Config{
			DSN:           cfg.PostgresURL,
			Queue:         pool,
			PostGameDelay: cfg.PostGameDelay,
			Logger:        logger,
		})
		go func() {
			if err := l.Run(ctx); err != nil {
				sugar.Errorw("Game event listener stopped", "error", err)
			}
		}()
	}

	// HTTP
	hcfg := handlers.Config{
		Queue:          pool,
		Postgres:       pg,
		Redis:          rdb,
		Analytics:      primary,
		Games:          primary,
		Logger:         logger,
		AdminToken:     cfg.AdminToken,
		PostGameDelay:  cfg.PostGameDelay,
		AllowedOrigins: cfg.AllowedOrigins,
		RatePerSecond:  cfg.RateLimitPerSecond,
		RateBurst:      cfg.RateLimitBurst,
	}
	if chConn != nil {
		hcfg.ClickHouse = chConn
	}
	if sched != nil {
		hcfg.Schedule = sched
	}
	h := handlers.New(hcfg)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		sugar.Infow("Analytics engine listening",
			"addr", srv.Addr,
			"env", cfg.Env,
			"stats_source", cfg.StatsSource,
			"archive", cfg.ArchiveEnabled(),
			"scheduler", cfg.SchedulerEnabled,
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		sugar.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("HTTP shutdown failed", "error", err)
	}
	return nil
}
