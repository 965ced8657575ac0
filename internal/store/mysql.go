package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hoopstat/analytics-engine/internal/logic"
	"github.com/hoopstat/analytics-engine/internal/models"
)

// MySQLRosters reads players and teams from the league's MySQL database.
// Calls go through a circuit breaker; a missing row is not a failure.
type MySQLRosters struct {
	db      *sql.DB
	breaker *gobreaker.CircuitBreaker
}

var _ logic.RosterStore = (*MySQLRosters)(nil)

// rosterDSN normalises a DSN so DATETIME columns scan into time.Time and
// a stalled league database cannot hang a job.
func rosterDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse roster dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	return cfg.FormatDSN(), nil
}

// OpenMySQLRosters connects to the roster database and verifies it with a ping.
func OpenMySQLRosters(ctx context.Context, dsn string, logger *zap.Logger) (*MySQLRosters, error) {
	normalised, err := rosterDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", normalised)
	if err != nil {
		return nil, fmt.Errorf("open roster database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping roster database: %w", err)
	}
	return &MySQLRosters{db: db, breaker: newBreaker("mysql-rosters", logger.Sugar())}, nil
}

func (m *MySQLRosters) Close() error {
	return m.db.Close()
}

func (m *MySQLRosters) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLRosters) queryPlayers(ctx context.Context, what, query string, args ...any) ([]models.Player, error) {
	out, err := m.breaker.Execute(func() (interface{}, error) {
		rows, err := m.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var players []models.Player
		for rows.Next() {
			var p models.Player
			if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &p.Position, &p.Active); err != nil {
				return nil, fmt.Errorf("scan: %w", err)
			}
			players = append(players, p)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows: %w", err)
		}
		return players, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	players, _ := out.([]models.Player)
	return players, nil
}

func (m *MySQLRosters) ActivePlayers(ctx context.Context) ([]models.Player, error) {
	return m.queryPlayers(ctx, "active players",
		"SELECT id, team_id, name, position, active FROM players WHERE active = 1 ORDER BY id")
}

func (m *MySQLRosters) TeamRoster(ctx context.Context, teamID int64) ([]models.Player, error) {
	return m.queryPlayers(ctx, "team roster",
		"SELECT id, team_id, name, position, active FROM players WHERE team_id = ? AND active = 1 ORDER BY id", teamID)
}

func (m *MySQLRosters) GetPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	var p models.Player
	var missing bool
	_, err := m.breaker.Execute(func() (interface{}, error) {
		err := m.db.QueryRowContext(ctx,
			"SELECT id, team_id, name, position, active FROM players WHERE id = ?", playerID,
		).Scan(&p.ID, &p.TeamID, &p.Name, &p.Position, &p.Active)
		if errors.Is(err, sql.ErrNoRows) {
			missing = true
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	if missing {
		return nil, fmt.Errorf("get player %d: %w", playerID, ErrNotFound)
	}
	return &p, nil
}

func (m *MySQLRosters) ActiveTeams(ctx context.Context) ([]models.Team, error) {
	out, err := m.breaker.Execute(func() (interface{}, error) {
		rows, err := m.db.QueryContext(ctx,
			"SELECT id, name, abbreviation, active FROM teams WHERE active = 1 ORDER BY id")
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var teams []models.Team
		for rows.Next() {
			var t models.Team
			if err := rows.Scan(&t.ID, &t.Name, &t.Abbreviation, &t.Active); err != nil {
				return nil, fmt.Errorf("scan: %w", err)
			}
			teams = append(teams, t)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows: %w", err)
		}
		return teams, nil
	})
	if err != nil {
		return nil, fmt.Errorf("active teams: %w", err)
	}
	teams, _ := out.([]models.Team)
	return teams, nil
}
