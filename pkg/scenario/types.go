package scenario

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownScenario means the id is neither an algorithmic scenario nor
	// present in the catalog for the requested variant.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrInvalidVariant is only returned when strict variant parsing is on.
	ErrInvalidVariant = errors.New("invalid variant")

	// ErrLockTimeout means a serialized run could not obtain its lock in time.
	ErrLockTimeout = errors.New("timed out waiting for scenario lock")
)

// Database is the subset of the store the executor needs.
type Database interface {
	// Exec runs a statement for its side effect.
	Exec(ctx context.Context, query string) error
	// QueryScalar runs a statement returning one integer.
	QueryScalar(ctx context.Context, query string) (int64, error)
	// QueryInts returns the first column of every row, in order.
	QueryInts(ctx context.Context, query string) ([]int64, error)
	// Explain returns the execution plan of query, one line per row.
	Explain(ctx context.Context, query string) ([]string, error)
}

// Result is the outcome of a single scenario run.
type Result struct {
	ElapsedMillis int64  `json:"timeMs"`
	Output        string `json:"plan"`
}

// Comparison holds back-to-back slow and optimized runs of one scenario.
type Comparison struct {
	ScenarioID string  `json:"scenarioId"`
	Slow       Result  `json:"slow"`
	Optimized  Result  `json:"optimized"`
	Speedup    float64 `json:"speedup"`
}

// Delays are simulated costs injected to keep demo timings distinguishable.
// They are not measurements; set both to zero for real benchmarking.
type Delays struct {
	// PerRow is paid after each element in row-at-a-time processing.
	PerRow time.Duration
	// SlowQuery is paid once after the plan capture of a slow SQL run.
	SlowQuery time.Duration
}

// DefaultDelays returns the documented demo values.
func DefaultDelays() Delays {
	return Delays{
		PerRow:    time.Millisecond,
		SlowQuery: 25 * time.Millisecond,
	}
}

// sleep blocks for d. Demo delays are not tied to the request context.
func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
