package store

import (
	"context"
	"fmt"
)

// SeedCounts controls how many demo rows are generated.
type SeedCounts struct {
	Orders    int
	Employees int
}

// Seed fills the demo tables with deterministic data. Tables that already
// hold rows are left untouched, so repeated daemon starts are cheap.
func (s *Store) Seed(ctx context.Context, counts SeedCounts) error {
	if err := s.seedTable(ctx, "orders", counts.Orders,
		"INSERT INTO orders (id, customer_id, amount) VALUES (?, ?, ?)",
		func(i int) []any {
			return []any{i, i % 1000, float64(i%500) + 0.99}
		}); err != nil {
		return err
	}

	return s.seedTable(ctx, "employees", counts.Employees,
		"INSERT INTO employees (id, salary) VALUES (?, ?)",
		func(i int) []any {
			return []any{i, 30000 + (i*37)%70000}
		})
}

func (s *Store) seedTable(ctx context.Context, table string, n int, insert string, row func(i int) []any) error {
	if n <= 0 {
		return nil
	}

	existing, err := s.QueryScalar(ctx, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return fmt.Errorf("failed to count %s: %w", table, err)
	}
	if existing > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.bind(insert))
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i := 1; i <= n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("failed to seed %s row %d: %w", table, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s seed: %w", table, err)
	}
	return nil
}
