package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Store manages the database connection and the demo schema.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore opens the database described by dialect and dsn, verifies the
// connection and creates the demo schema if it does not exist.
// For SQLite it enables WAL mode for concurrency and durability.
func NewStore(dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s db: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s db: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	s := &Store{db: db, dialect: dialect}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// NewSQLiteStore is shorthand for a file backed SQLite store.
func NewSQLiteStore(dbPath string) (*Store, error) {
	return NewStore(DialectSQLite, dbPath)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports which engine the store talks to.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) migrate() error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Exec runs a statement for its side effect.
func (s *Store) Exec(ctx context.Context, query string) error {
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// QueryScalar runs a statement returning a single integer. SQL NULL reads as 0.
func (s *Store) QueryScalar(ctx context.Context, query string) (int64, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, fmt.Errorf("scalar query failed: %w", err)
	}
	return v.Int64, nil
}

// QueryInts fetches the first column of every row, in result order.
func (s *Store) QueryInts(ctx context.Context, query string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v sql.NullInt64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v.Int64)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return out, nil
}

// QueryLines returns the last column of every row as text, in result order.
// Plan output puts the human readable text in the last column for both
// supported engines.
func (s *Store) QueryLines(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, nil
	}

	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}

	var lines []string
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		lines = append(lines, vals[len(vals)-1].String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return lines, nil
}

// Explain executes query and returns its plan lines. Postgres runs it
// under EXPLAIN ANALYZE. SQLite has no analyzing form, so the statement is
// run and drained first and a "rows=N" line follows the query plan.
func (s *Store) Explain(ctx context.Context, query string) ([]string, error) {
	if s.dialect.analyzes() {
		return s.QueryLines(ctx, s.dialect.ExplainPrefix()+query)
	}

	n, err := s.drain(ctx, query)
	if err != nil {
		return nil, err
	}
	lines, err := s.QueryLines(ctx, s.dialect.ExplainPrefix()+query)
	if err != nil {
		return nil, err
	}
	return append(lines, fmt.Sprintf("rows=%d", n)), nil
}

// drain runs query, reads every row and returns how many there were.
func (s *Store) drain(ctx context.Context, query string) (int, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to read columns: %w", err)
	}
	vals := make([]sql.RawBytes, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return 0, fmt.Errorf("failed to scan row: %w", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("row iteration failed: %w", err)
	}
	return n, nil
}

// IndexExists reports whether an index with the given name is present.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.bind(s.dialect.indexExistsQuery()), name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", name, err)
	}
	return n > 0, nil
}
