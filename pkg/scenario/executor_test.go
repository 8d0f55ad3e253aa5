package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/sqlperf/pkg/store"
)

const (
	testEmployees = 20
	indexName     = "idx_orders_customer"
)

// spyDB wraps a real store and observes the executor's calls.
type spyDB struct {
	*store.Store
	beforeExplain func()
	setupDelay    time.Duration
	intsCalls     int
	scalarCalls   int
}

func (s *spyDB) Exec(ctx context.Context, query string) error {
	time.Sleep(s.setupDelay)
	return s.Store.Exec(ctx, query)
}

func (s *spyDB) Explain(ctx context.Context, query string) ([]string, error) {
	if s.beforeExplain != nil {
		s.beforeExplain()
	}
	return s.Store.Explain(ctx, query)
}

func (s *spyDB) QueryInts(ctx context.Context, query string) ([]int64, error) {
	s.intsCalls++
	return s.Store.QueryInts(ctx, query)
}

func (s *spyDB) QueryScalar(ctx context.Context, query string) (int64, error) {
	s.scalarCalls++
	return s.Store.QueryScalar(ctx, query)
}

func setupExecutor(t *testing.T, opts Options) (*Executor, *spyDB) {
	t.Helper()
	return setupSeededExecutor(t, opts, 2000)
}

func setupSeededExecutor(t *testing.T, opts Options, orders int) (*Executor, *spyDB) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sqlperf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Seed(context.Background(), store.SeedCounts{Orders: orders, Employees: testEmployees}))

	reg, err := NewRegistry()
	require.NoError(t, err)

	db := &spyDB{Store: st}
	return NewExecutor(db, reg, opts), db
}

func TestRunMissingIndexSlow(t *testing.T) {
	exec, db := setupExecutor(t, Options{Delays: DefaultDelays()})
	ctx := context.Background()

	// Start from the optimized state so the slow setup has work to do.
	require.NoError(t, db.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id)"))

	var existedAtMeasure bool
	db.beforeExplain = func() {
		exists, err := db.IndexExists(ctx, indexName)
		require.NoError(t, err)
		existedAtMeasure = exists
	}

	res, err := exec.Run(ctx, "missing-index", "slow")
	require.NoError(t, err)

	assert.False(t, existedAtMeasure, "index must be absent when the slow query is measured")
	assert.GreaterOrEqual(t, res.ElapsedMillis, int64(25))
	assert.NotEmpty(t, res.Output)
	assert.Equal(t, InsightTableScan, ClassifyPlan(res.Output))
}

func TestRunMissingIndexOptimized(t *testing.T) {
	exec, db := setupExecutor(t, Options{Delays: DefaultDelays()})
	ctx := context.Background()

	var existedAtMeasure bool
	db.beforeExplain = func() {
		exists, err := db.IndexExists(ctx, indexName)
		require.NoError(t, err)
		existedAtMeasure = exists
	}

	res, err := exec.Run(ctx, "missing-index", "optimized")
	require.NoError(t, err)
	assert.True(t, existedAtMeasure, "index must be present when the optimized query is measured")
	assert.GreaterOrEqual(t, res.ElapsedMillis, int64(0))
	assert.Contains(t, res.Output, indexName)
	assert.Equal(t, InsightIndexScan, ClassifyPlan(res.Output))

	// Setup is re-appliable
	_, err = exec.Run(ctx, "missing-index", "optimized")
	require.NoError(t, err)
}

func TestRunMissingIndexSlowTwice(t *testing.T) {
	exec, _ := setupExecutor(t, Options{})
	ctx := context.Background()

	_, err := exec.Run(ctx, "missing-index", "slow")
	require.NoError(t, err)
	_, err = exec.Run(ctx, "missing-index", "slow")
	require.NoError(t, err)
}

func TestRunMissingIndexSlowMeasuresExecution(t *testing.T) {
	if testing.Short() {
		t.Skip("seeds a large table")
	}
	exec, _ := setupSeededExecutor(t, Options{}, 400000)

	res, err := exec.Run(context.Background(), "missing-index", "slow")
	require.NoError(t, err)

	// Without demo delays the only cost left is scanning the table.
	assert.Greater(t, res.ElapsedMillis, int64(0))
	assert.Contains(t, res.Output, "rows=400")
}

func TestSetupRunsOutsideTimer(t *testing.T) {
	for _, variant := range []string{"slow", "optimized"} {
		t.Run(variant, func(t *testing.T) {
			exec, db := setupExecutor(t, Options{})
			db.setupDelay = 50 * time.Millisecond

			res, err := exec.Run(context.Background(), "missing-index", variant)
			require.NoError(t, err)
			assert.Less(t, res.ElapsedMillis, int64(50))
		})
	}
}

func TestOptimizedSkipsSlowQueryDelay(t *testing.T) {
	exec, _ := setupExecutor(t, Options{Delays: Delays{SlowQuery: time.Second}})

	res, err := exec.Run(context.Background(), "missing-index", "optimized")
	require.NoError(t, err)
	assert.Less(t, res.ElapsedMillis, int64(500))
}

// captureStdout returns what fn printed to stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestRunLogsQuoteCallerInput(t *testing.T) {
	exec, _ := setupExecutor(t, Options{})
	id := `x","level":"fatal`

	out := captureStdout(t, func() {
		_, err := exec.Run(context.Background(), id, "fast")
		require.ErrorIs(t, err, ErrUnknownScenario)
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		assert.NotEqual(t, "fatal", entry["level"])
		assert.Equal(t, id, entry["scenario"])
	}
}

func TestRunCursor(t *testing.T) {
	exec, db := setupExecutor(t, Options{Delays: DefaultDelays()})
	ctx := context.Background()

	slow, err := exec.Run(ctx, "cursor", "slow")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, slow.ElapsedMillis, int64(testEmployees))
	assert.Contains(t, slow.Output, "Row-by-row")
	assert.Equal(t, 1, db.intsCalls)
	assert.Equal(t, 0, db.scalarCalls)

	optimized, err := exec.Run(ctx, "cursor", "optimized")
	require.NoError(t, err)
	assert.Contains(t, optimized.Output, "Set-based aggregation")
	assert.Equal(t, 1, db.intsCalls, "optimized cursor must not fetch rows")
	assert.Equal(t, 1, db.scalarCalls)
}

func TestRunCursorBypassesCatalog(t *testing.T) {
	// A catalog entry named cursor must not shadow the algorithm.
	catalog := []byte(`
scenarios:
  - id: cursor
    slow:
      query: SELECT 1
`)
	reg, err := LoadRegistry(catalog, CursorAlgorithm())
	require.NoError(t, err)

	sc, err := reg.Resolve("cursor", VariantSlow)
	require.NoError(t, err)
	assert.Equal(t, KindAlgorithmic, sc.Kind())
}

func TestRunUnknownScenario(t *testing.T) {
	exec, _ := setupExecutor(t, Options{})

	_, err := exec.Run(context.Background(), "unknown-id", "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownScenario))
	assert.True(t, IsClientError(err))
}

func TestRunVariantPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("permissive falls back to optimized", func(t *testing.T) {
		exec, db := setupExecutor(t, Options{})
		_, err := exec.Run(ctx, "missing-index", "fast")
		require.NoError(t, err)

		exists, err := db.IndexExists(ctx, indexName)
		require.NoError(t, err)
		assert.True(t, exists, "unrecognized variant should run the optimized setup")
	})

	t.Run("strict rejects unknown tags", func(t *testing.T) {
		exec, _ := setupExecutor(t, Options{StrictVariants: true})
		_, err := exec.Run(ctx, "missing-index", "fast")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidVariant))
		assert.True(t, IsClientError(err))
	})
}

// failingDB fails every call with err.
type failingDB struct {
	err       error
	explained bool
}

func (f *failingDB) Exec(ctx context.Context, query string) error { return f.err }
func (f *failingDB) QueryScalar(ctx context.Context, query string) (int64, error) {
	return 0, f.err
}
func (f *failingDB) QueryInts(ctx context.Context, query string) ([]int64, error) {
	return nil, f.err
}
func (f *failingDB) Explain(ctx context.Context, query string) ([]string, error) {
	f.explained = true
	return nil, f.err
}

func TestRunPropagatesDatabaseErrors(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	boom := errors.New("disk I/O error")

	db := &failingDB{err: boom}
	exec := NewExecutor(db, reg, Options{})

	_, err = exec.Run(context.Background(), "missing-index", "optimized")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "setup failed")
	assert.False(t, db.explained, "query must not run after a failed setup")
	assert.False(t, IsClientError(err))

	_, err = exec.Run(context.Background(), "cursor", "optimized")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "query failed")
}

func TestCompare(t *testing.T) {
	exec, _ := setupExecutor(t, Options{Delays: DefaultDelays()})

	c, err := exec.Compare(context.Background(), "missing-index")
	require.NoError(t, err)
	assert.Equal(t, "missing-index", c.ScenarioID)
	assert.GreaterOrEqual(t, c.Slow.ElapsedMillis, int64(25))
	assert.Equal(t, InsightIndexScan, ClassifyPlan(c.Optimized.Output))
	if c.Optimized.ElapsedMillis > 0 {
		assert.InDelta(t, float64(c.Slow.ElapsedMillis)/float64(c.Optimized.ElapsedMillis), c.Speedup, 0.0001)
	} else {
		assert.Zero(t, c.Speedup)
	}

	_, err = exec.Compare(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrUnknownScenario))
}

func TestRunWithLocker(t *testing.T) {
	exec, _ := setupExecutor(t, Options{Locker: NewLocalLocker()})

	errs := make(chan error, 4)
	for _, v := range []string{"slow", "optimized", "slow", "optimized"} {
		go func(v string) {
			_, err := exec.Run(context.Background(), "missing-index", v)
			errs <- err
		}(v)
	}
	for i := 0; i < 4; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestSumRowByRow(t *testing.T) {
	assert.Equal(t, int64(60), sumRowByRow([]int64{10, 20, 30}, 0))
	assert.Equal(t, int64(0), sumRowByRow(nil, 0))
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		tag     string
		strict  bool
		want    Variant
		wantErr bool
	}{
		{"slow", false, VariantSlow, false},
		{"optimized", false, VariantOptimized, false},
		{"SLOW", false, VariantOptimized, false},
		{"", false, VariantOptimized, false},
		{"slow", true, VariantSlow, false},
		{"optimized", true, VariantOptimized, false},
		{"Slow", true, "", true},
		{"", true, "", true},
	}

	for _, tt := range tests {
		got, err := ParseVariant(tt.tag, tt.strict)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidVariant, "tag %q", tt.tag)
			continue
		}
		require.NoError(t, err, "tag %q", tt.tag)
		assert.Equal(t, tt.want, got, "tag %q strict=%v", tt.tag, tt.strict)
	}
}

func TestClassifyPlan(t *testing.T) {
	tests := []struct {
		plan string
		want Insight
	}{
		{"SCAN orders", InsightTableScan},
		{"SEARCH orders USING INDEX idx_orders_customer (customer_id=?)", InsightIndexScan},
		{"Seq Scan on orders  (cost=0.00..1791.00 rows=50 width=14)", InsightTableScan},
		{"Bitmap Heap Scan on orders\n  ->  Bitmap Index Scan on idx_orders_customer", InsightIndexScan},
		{strings.ToUpper(CursorSlowMessage), InsightUnknown},
		{"", InsightUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPlan(tt.plan), "plan %q", tt.plan)
	}
}
