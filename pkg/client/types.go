package client

import (
	"errors"
	"fmt"
	"time"
)

// Types mirror pkg/api so that importing the SDK does not pull in the
// database drivers.

// RunRequest asks the daemon to run one scenario variant.
type RunRequest struct {
	// ScenarioID is the catalog id, e.g. "missing-index" or "cursor".
	ScenarioID string `json:"scenarioId"`
	// Variant is "slow" or "optimized".
	Variant string `json:"variant"`
}

// RunResult is the outcome of a single run.
type RunResult struct {
	ScenarioID string `json:"scenarioId"`
	// Variant is the variant that actually ran.
	Variant string `json:"variant"`
	// TimeMs is the elapsed wall-clock time in milliseconds.
	TimeMs int64 `json:"timeMs"`
	// Plan is the captured query plan or an explanatory note.
	Plan string `json:"plan"`
	// Insight is "index_scan", "table_scan" or "unknown".
	Insight string `json:"insight"`
}

// Comparison holds back-to-back slow and optimized runs.
type Comparison struct {
	ScenarioID string    `json:"scenarioId"`
	Slow       RunResult `json:"slow"`
	Optimized  RunResult `json:"optimized"`
	Speedup    float64   `json:"speedup"`
}

// Scenario describes a catalog entry.
type Scenario struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	Kind         string            `json:"kind"`
	Descriptions map[string]string `json:"descriptions"`
	Explanation  Explanation       `json:"explanation"`
}

// Explanation holds the narrative bullets for each side of a comparison.
type Explanation struct {
	Slow      []string `json:"slow"`
	Optimized []string `json:"optimized"`
}

// ScaleEstimate projects scan cost for a table of Rows rows.
type ScaleEstimate struct {
	Rows            int64 `json:"rows"`
	TableScanMillis int64 `json:"tableScanMs"`
	IndexScanMillis int64 `json:"indexScanMs"`
}

// Status represents the health check response.
type Status struct {
	Status string `json:"status"`
}

var (
	// ErrUnknownScenario matches APIErrors for ids the daemon does not know.
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrScenarioBusy matches APIErrors for runs that could not get their lock.
	ErrScenarioBusy = errors.New("scenario busy")
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	// RetryAfter is the daemon's Retry-After hint on busy responses.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Code, e.StatusCode)
}

// Is lets callers use errors.Is with the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnknownScenario:
		return e.Code == "unknown_scenario"
	case ErrScenarioBusy:
		return e.Code == "scenario_busy"
	}
	return false
}
