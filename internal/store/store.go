// Package store holds the persistence adapters behind the logic interfaces:
// PostgreSQL is the primary store, ClickHouse archives finished box scores
// and MySQL can serve rosters from the league database.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hoopstat/analytics-engine/internal/logic"
)

// ErrNotFound is the logic sentinel so callers can match either name.
var ErrNotFound = logic.ErrNotFound

//go:embed migrations/postgres.sql
var postgresSchema string

//go:embed migrations/clickhouse.sql
var clickhouseSchema string

// DB is the subset of pgxpool.Pool the Postgres store needs
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// MigratePostgres installs the schema and the game status trigger.
// Every statement is idempotent.
func MigratePostgres(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

// MigrateClickHouse creates the archive database and table.
func MigrateClickHouse(ctx context.Context, conn driver.Conn) error {
	for _, stmt := range splitStatements(clickhouseSchema) {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return nil
}

// The ClickHouse driver only takes one statement per Exec.
func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if trimmed := strings.TrimSpace(stmt); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type scanner interface {
	Scan(dest ...any) error
}
