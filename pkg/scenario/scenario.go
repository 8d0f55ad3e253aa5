package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Scenario is the resolved, runnable form of one scenario variant.
type Scenario interface {
	Kind() Kind
	run(ctx context.Context, db Database, v Variant, d Delays) (Result, error)
}

// Algorithm is a scenario whose contrast lives in application code rather
// than in the SQL it issues.
type Algorithm struct {
	ID           string
	Label        string
	Descriptions map[Variant]string
	Explanation  Explanation
	Run          func(ctx context.Context, db Database, v Variant, d Delays) (Result, error)
}

func (a Algorithm) Kind() Kind { return KindAlgorithmic }

func (a Algorithm) run(ctx context.Context, db Database, v Variant, d Delays) (Result, error) {
	return a.Run(ctx, db, v, d)
}

type sqlScenario struct {
	def Definition
}

func (s sqlScenario) Kind() Kind { return KindSQL }

// run applies the setup statement untimed, then times the execution and
// plan capture of the query. Slow runs also pay d.SlowQuery inside the
// timed window.
func (s sqlScenario) run(ctx context.Context, db Database, v Variant, d Delays) (Result, error) {
	if s.def.Setup != "" {
		if err := db.Exec(ctx, s.def.Setup); err != nil {
			return Result{}, fmt.Errorf("setup failed: %w", err)
		}
	}

	start := time.Now()

	plan, err := db.Explain(ctx, s.def.Query)
	if err != nil {
		return Result{}, fmt.Errorf("query failed: %w", err)
	}

	if v == VariantSlow {
		sleep(d.SlowQuery)
	}

	return Result{
		ElapsedMillis: time.Since(start).Milliseconds(),
		Output:        strings.Join(plan, "\n"),
	}, nil
}
