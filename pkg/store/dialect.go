package store

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies the database engine behind a Store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect normalizes a user supplied driver name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", name)
	}
}

// driverName is the name registered with database/sql.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// ExplainPrefix returns the statement prefix that makes the database return
// its execution plan instead of result rows. Postgres reports actual run
// statistics; SQLite only exposes the chosen strategy.
func (d Dialect) ExplainPrefix() string {
	if d == DialectPostgres {
		return "EXPLAIN ANALYZE "
	}
	return "EXPLAIN QUERY PLAN "
}

// analyzes reports whether ExplainPrefix executes the statement itself.
func (d Dialect) analyzes() bool {
	return d == DialectPostgres
}

// bind rewrites '?' placeholders into the dialect's native form.
func (d Dialect) bind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (d Dialect) indexExistsQuery() string {
	if d == DialectPostgres {
		return "SELECT COUNT(*) FROM pg_indexes WHERE indexname = ?"
	}
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?"
}

func (d Dialect) schema() []string {
	if d == DialectPostgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS orders (
				id BIGINT PRIMARY KEY,
				customer_id INTEGER NOT NULL,
				amount NUMERIC(12,2) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS employees (
				id BIGINT PRIMARY KEY,
				salary INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS leases (
				name TEXT PRIMARY KEY,
				holder_id TEXT NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				version BIGINT NOT NULL DEFAULT 1,
				epoch BIGINT NOT NULL DEFAULT 1
			)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL,
			amount REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			id INTEGER PRIMARY KEY,
			salary INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS leases (
			name TEXT PRIMARY KEY,
			holder_id TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			epoch INTEGER NOT NULL DEFAULT 1
		)`,
	}
}
