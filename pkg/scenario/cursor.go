package scenario

import (
	"context"
	"fmt"
	"time"
)

const (
	CursorScenarioID = "cursor"

	cursorFetchQuery = "SELECT salary FROM employees"
	cursorSumQuery   = "SELECT SUM(salary) FROM employees"

	CursorSlowMessage      = "Row-by-row cursor simulation in application code.\nEach row is processed individually, which does not scale."
	CursorOptimizedMessage = "Set-based aggregation using SQL SUM().\nDatabase engine handles aggregation efficiently."
)

// CursorAlgorithm contrasts summing salaries one row at a time in the
// application with a single SUM() computed by the database. Only timing
// and the narrative are reported; the sum itself is not.
func CursorAlgorithm() Algorithm {
	return Algorithm{
		ID:    CursorScenarioID,
		Label: "Cursor vs Set-Based Aggregation",
		Descriptions: map[Variant]string{
			VariantSlow:      "Cursor-based aggregation",
			VariantOptimized: "Set-based aggregation",
		},
		Explanation: Explanation{
			Slow: []string{
				"Rows are processed one by one in application code",
				"Every row costs a loop iteration and a round of CPU overhead",
				"The database cannot apply its own optimizations",
			},
			Optimized: []string{
				"Aggregation happens inside the database engine",
				"The engine uses optimized algorithms and memory access",
				"Cost grows far more slowly as the table grows",
			},
		},
		Run: runCursor,
	}
}

func runCursor(ctx context.Context, db Database, v Variant, d Delays) (Result, error) {
	start := time.Now()

	if v == VariantSlow {
		salaries, err := db.QueryInts(ctx, cursorFetchQuery)
		if err != nil {
			return Result{}, fmt.Errorf("query failed: %w", err)
		}
		sumRowByRow(salaries, d.PerRow)

		return Result{
			ElapsedMillis: time.Since(start).Milliseconds(),
			Output:        CursorSlowMessage,
		}, nil
	}

	if _, err := db.QueryScalar(ctx, cursorSumQuery); err != nil {
		return Result{}, fmt.Errorf("query failed: %w", err)
	}

	return Result{
		ElapsedMillis: time.Since(start).Milliseconds(),
		Output:        CursorOptimizedMessage,
	}, nil
}

// sumRowByRow accumulates values, pausing perRow after each element.
func sumRowByRow(values []int64, perRow time.Duration) int64 {
	var total int64
	for _, v := range values {
		total += v
		sleep(perRow)
	}
	return total
}
