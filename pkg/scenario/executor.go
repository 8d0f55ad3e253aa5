package scenario

import (
	"context"
	"errors"
	"fmt"
)

// Options tune the executor. The zero value runs without demo delays,
// with permissive variant parsing and no run serialization.
type Options struct {
	Delays Delays
	// StrictVariants rejects tags other than "slow" and "optimized"
	// instead of treating them as optimized.
	StrictVariants bool
	// Locker, when set, serializes setup and measurement per scenario id.
	Locker Locker
}

// Executor runs scenarios against a database.
//
// It holds no mutable state besides the read-only registry. Setup
// statements do mutate shared database objects, so concurrent runs of one
// scenario race unless Options.Locker is set.
type Executor struct {
	db       Database
	registry *Registry
	opts     Options
}

func NewExecutor(db Database, registry *Registry, opts Options) *Executor {
	return &Executor{db: db, registry: registry, opts: opts}
}

// Scenarios lists the catalog the executor resolves against.
func (e *Executor) Scenarios() []Summary {
	return e.registry.List()
}

// Run parses the variant tag and runs the scenario.
func (e *Executor) Run(ctx context.Context, scenarioID, variant string) (Result, error) {
	v, err := ParseVariant(variant, e.opts.StrictVariants)
	if err != nil {
		ScenarioRunsTotal.WithLabelValues(metricScenario(e.registry, scenarioID), "invalid", "invalid_variant").Inc()
		return Result{}, err
	}
	if string(v) != variant {
		fmt.Printf(`{"level":"warn","msg":"variant_fallback_optimized","scenario":%q,"variant":%q}`+"\n", scenarioID, variant)
	}
	return e.RunVariant(ctx, scenarioID, v)
}

// RunVariant resolves and runs one variant of a scenario.
func (e *Executor) RunVariant(ctx context.Context, scenarioID string, v Variant) (Result, error) {
	sc, err := e.registry.Resolve(scenarioID, v)
	if err != nil {
		ScenarioRunsTotal.WithLabelValues(metricScenario(e.registry, scenarioID), string(v), "unknown_scenario").Inc()
		return Result{}, err
	}

	if e.opts.Locker != nil {
		unlock, err := e.opts.Locker.Lock(ctx, scenarioID)
		if err != nil {
			ScenarioRunsTotal.WithLabelValues(scenarioID, string(v), "lock_failed").Inc()
			return Result{}, err
		}
		defer unlock()
	}

	res, err := sc.run(ctx, e.db, v, e.opts.Delays)
	if err != nil {
		ScenarioRunsTotal.WithLabelValues(scenarioID, string(v), "error").Inc()
		fmt.Printf(`{"level":"error","msg":"scenario_run_failed","scenario":%q,"variant":%q,"kind":%q,"error":%q}`+"\n",
			scenarioID, v, sc.Kind(), err.Error())
		return Result{}, err
	}

	ScenarioRunsTotal.WithLabelValues(scenarioID, string(v), "ok").Inc()
	ScenarioElapsedMs.WithLabelValues(scenarioID, string(v)).Set(float64(res.ElapsedMillis))
	fmt.Printf(`{"level":"info","msg":"scenario_run_completed","scenario":%q,"variant":%q,"kind":%q,"elapsed_ms":%d}`+"\n",
		scenarioID, v, sc.Kind(), res.ElapsedMillis)

	return res, nil
}

// Compare runs the slow variant and then the optimized one.
func (e *Executor) Compare(ctx context.Context, scenarioID string) (Comparison, error) {
	slow, err := e.RunVariant(ctx, scenarioID, VariantSlow)
	if err != nil {
		return Comparison{}, err
	}
	optimized, err := e.RunVariant(ctx, scenarioID, VariantOptimized)
	if err != nil {
		return Comparison{}, err
	}

	c := Comparison{ScenarioID: scenarioID, Slow: slow, Optimized: optimized}
	if optimized.ElapsedMillis > 0 {
		c.Speedup = float64(slow.ElapsedMillis) / float64(optimized.ElapsedMillis)
	}
	return c, nil
}

// metricScenario keeps caller supplied ids out of metric labels.
func metricScenario(r *Registry, id string) string {
	if _, err := r.Resolve(id, VariantSlow); err == nil {
		return id
	}
	if _, err := r.Resolve(id, VariantOptimized); err == nil {
		return id
	}
	return "unrecognized"
}

// IsClientError reports whether err stems from bad caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownScenario) || errors.Is(err, ErrInvalidVariant)
}
