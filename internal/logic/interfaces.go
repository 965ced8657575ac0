package logic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hoopstat/analytics-engine/internal/models"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrGameFinished is returned when a write targets a FINISHED game's box score.
var ErrGameFinished = errors.New("game already finished")

// RedisClient defines the subset of Redis used by the form cache
type RedisClient interface {
	HGet(ctx context.Context, key string, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// GameStore reads and updates game results. Ranges are [from, to).
type GameStore interface {
	GetGame(ctx context.Context, gameID int64) (*models.Game, error)
	// FinishedTeamGames returns FINISHED games in the range, oldest first.
	FinishedTeamGames(ctx context.Context, teamID int64, from, to time.Time) ([]models.Game, error)
	// RecentFinishedTeamGames returns up to limit FINISHED games, newest first.
	RecentFinishedTeamGames(ctx context.Context, teamID int64, venue models.Venue, limit int) ([]models.Game, error)
	// HeadToHead returns up to limit FINISHED meetings in either venue, newest first.
	HeadToHead(ctx context.Context, teamA, teamB int64, limit int) ([]models.Game, error)
	// UpcomingGames returns SCHEDULED games in the range, soonest first.
	UpcomingGames(ctx context.Context, from, to time.Time) ([]models.Game, error)
	UpdateGameLive(ctx context.Context, gameID int64, homeScore, awayScore int, status models.GameStatus) error
}

// BoxScoreReader serves player game logs from FINISHED games.
type BoxScoreReader interface {
	// PlayerGameLog returns lines for games in [from, to), newest first.
	PlayerGameLog(ctx context.Context, playerID int64, from, to time.Time) ([]models.PlayerGameRecord, error)
	// RecentPlayerGames returns the player's last limit lines, newest first.
	RecentPlayerGames(ctx context.Context, playerID int64, limit int) ([]models.PlayerGameRecord, error)
	// PlayerGamesVsTeam returns the last limit lines in games against opponentID.
	PlayerGamesVsTeam(ctx context.Context, playerID, opponentID int64, limit int) ([]models.PlayerGameRecord, error)
}

// BoxScoreStore reads and writes per-game stat lines regardless of game status.
type BoxScoreStore interface {
	GameBoxScore(ctx context.Context, gameID int64) ([]models.PlayerGameRecord, error)
	GetPlayerGameRecord(ctx context.Context, playerID, gameID int64) (*models.PlayerGameRecord, error)
	// UpsertPlayerGameRecord refuses lines of a FINISHED game with ErrGameFinished.
	UpsertPlayerGameRecord(ctx context.Context, rec *models.PlayerGameRecord) error
}

// BoxScoreArchiver copies finished box scores to long-term storage.
type BoxScoreArchiver interface {
	ArchiveGame(ctx context.Context, game models.Game, lines []models.PlayerGameRecord) error
}

// RosterStore reads players and teams.
type RosterStore interface {
	ActivePlayers(ctx context.Context) ([]models.Player, error)
	ActiveTeams(ctx context.Context) ([]models.Team, error)
	// TeamRoster returns the team's active players ordered by id.
	TeamRoster(ctx context.Context, teamID int64) ([]models.Player, error)
	GetPlayer(ctx context.Context, playerID int64) (*models.Player, error)
}

// SnapshotStore persists dated snapshots and trend periods.
type SnapshotStore interface {
	UpsertPlayerSnapshot(ctx context.Context, snap *models.PlayerAnalyticsSnapshot) error
	UpsertTeamSnapshot(ctx context.Context, snap *models.TeamAnalyticsSnapshot) error
	LatestPlayerSnapshot(ctx context.Context, playerID int64) (*models.PlayerAnalyticsSnapshot, error)
	LatestTeamSnapshot(ctx context.Context, teamID int64) (*models.TeamAnalyticsSnapshot, error)
	UpsertTeamTrend(ctx context.Context, trend *models.TeamPerformanceTrend) error
	SnapshotKeysBefore(ctx context.Context, kind models.SnapshotKind, cutoff time.Time) ([]models.SnapshotKey, error)
	DeleteSnapshots(ctx context.Context, kind models.SnapshotKind, ids []int64) (int64, error)
	// InvalidPlayerSnapshots returns ids of players whose latest snapshot has an
	// efficiency outside [minEff, maxEff] or a field goal percentage outside [0,100].
	InvalidPlayerSnapshots(ctx context.Context, minEff, maxEff float64) ([]int64, error)
	// InvalidTeamSnapshots returns ids of teams whose latest win percentage is outside [0,100].
	InvalidTeamSnapshots(ctx context.Context) ([]int64, error)
}

// PredictionStore persists game and player predictions.
type PredictionStore interface {
	CreateGamePrediction(ctx context.Context, pred *models.GamePrediction) error
	GamePredictionCreatedSince(ctx context.Context, gameID int64, since time.Time) (bool, error)
	LatestGamePrediction(ctx context.Context, gameID int64) (*models.GamePrediction, error)
	// SetPredictionAccuracy stores accuracy once; it reports false when already set.
	SetPredictionAccuracy(ctx context.Context, predictionID uuid.UUID, accuracy float64) (bool, error)
	UpsertPlayerPrediction(ctx context.Context, pred *models.PlayerPerformancePrediction) error
	PlayerPredictionCreatedSince(ctx context.Context, playerID, gameID int64, since time.Time) (bool, error)
	DeletePredictionsBefore(ctx context.Context, cutoff time.Time) (games int64, players int64, err error)
}

// Service interfaces

type PlayerAnalyticsService interface {
	// AggregatePlayer upserts today's snapshot; nil means no games in the window.
	AggregatePlayer(ctx context.Context, playerID int64, days int) (*models.PlayerAnalyticsSnapshot, error)
}

type TeamAnalyticsService interface {
	AggregateTeam(ctx context.Context, teamID int64, days int) (*models.TeamAnalyticsSnapshot, error)
}

type TrendService interface {
	ComputeTeamTrends(ctx context.Context, teamID int64) (int, error)
}

type PredictionService interface {
	// PredictGame returns nil when the game does not qualify or a recent prediction exists.
	PredictGame(ctx context.Context, gameID int64) (*models.GamePrediction, error)
	PredictPlayers(ctx context.Context, gameID int64) (int, error)
	// EvaluateGame scores the latest prediction of a FINISHED game once.
	EvaluateGame(ctx context.Context, gameID int64) (*float64, error)
}

type MaintenanceService interface {
	CleanupPredictions(ctx context.Context, days int) (int64, error)
	ConsolidateSnapshots(ctx context.Context, days int) (int64, error)
	FindIntegrityViolations(ctx context.Context) (*IntegrityReport, error)
}

type RealtimeService interface {
	ProcessGameData(ctx context.Context, gameID int64, update models.LiveGameUpdate) (*RealtimeResult, error)
}
