package scenario

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScenarioRunsTotal counts runs by outcome (ok, unknown_scenario, error).
	ScenarioRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlperf_scenario_runs_total",
			Help: "Total number of scenario runs",
		},
		[]string{"scenario", "variant", "outcome"},
	)

	// ScenarioElapsedMs tracks the elapsed time of the latest run
	ScenarioElapsedMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sqlperf_scenario_elapsed_ms",
			Help: "Elapsed milliseconds of the most recent scenario run",
		},
		[]string{"scenario", "variant"},
	)
)

func init() {
	prometheus.MustRegister(ScenarioRunsTotal)
	prometheus.MustRegister(ScenarioElapsedMs)
}
