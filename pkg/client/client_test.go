package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Run(t *testing.T) {
	tests := []struct {
		name         string
		serverStatus int
		serverBody   string
		wantErr      error
		wantTimeMs   int64
	}{
		{
			name:         "OK",
			serverStatus: http.StatusOK,
			serverBody:   `{"scenarioId":"missing-index","variant":"slow","timeMs":31,"plan":"SCAN orders","insight":"table_scan"}`,
			wantTimeMs:   31,
		},
		{
			name:         "UnknownScenario",
			serverStatus: http.StatusNotFound,
			serverBody:   `{"error":"unknown_scenario"}`,
			wantErr:      ErrUnknownScenario,
		},
		{
			name:         "ServerError",
			serverStatus: http.StatusInternalServerError,
			serverBody:   `{"error":"scenario_failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/run" {
					t.Errorf("Expected path /api/run, got %s", r.URL.Path)
				}
				if r.Method != "POST" {
					t.Errorf("Expected method POST, got %s", r.Method)
				}

				var req RunRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("Failed to decode request: %v", err)
				}
				if req.ScenarioID != "missing-index" || req.Variant != "slow" {
					t.Errorf("Unexpected request: %+v", req)
				}

				w.WriteHeader(tt.serverStatus)
				w.Write([]byte(tt.serverBody))
			}))
			defer server.Close()

			c := NewClient(server.URL)
			got, err := c.Run(context.Background(), "missing-index", "slow")

			if tt.serverStatus != http.StatusOK {
				if err == nil {
					t.Fatalf("Run() expected error for status %d", tt.serverStatus)
				}
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.serverStatus {
					t.Errorf("Run() error = %v, want APIError with status %d", err, tt.serverStatus)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got.TimeMs != tt.wantTimeMs || got.Insight != "table_scan" {
				t.Errorf("Run() = %+v", got)
			}
		})
	}
}

func TestClient_RunValidation(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	if _, err := c.Run(context.Background(), "", "slow"); err == nil {
		t.Errorf("Expected error for empty scenario id")
	}
}

func TestClient_RetriesBusy(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"scenario_busy"}`))
			return
		}
		json.NewEncoder(w).Encode(Comparison{ScenarioID: "missing-index", Speedup: 12})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.Backoff = &ExponentialBackoff{Base: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}

	cmp, err := c.Compare(context.Background(), "missing-index")
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if cmp.Speedup != 12 {
		t.Errorf("Compare() speedup = %v, want 12", cmp.Speedup)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}

	// Retries exhausted
	calls.Store(-10)
	c.MaxRetries = 1
	_, err = c.Compare(context.Background(), "missing-index")
	if !errors.Is(err, ErrScenarioBusy) {
		t.Errorf("Expected ErrScenarioBusy, got %v", err)
	}
}

func TestClient_BusyParsesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"scenario_busy"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.MaxRetries = 0

	_, err := c.Run(context.Background(), "cursor", "slow")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", apiErr.RetryAfter)
	}
	if d := retryDelay(c.Backoff, 0, err); d < 2*time.Second {
		t.Errorf("retryDelay = %v, want at least the server hint", d)
	}
}

func TestClient_Scale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/scale" || r.URL.Query().Get("rows") != "100000" {
			t.Errorf("Unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"rows":100000,"tableScanMs":100,"indexScanMs":17}`))
	}))
	defer server.Close()

	est, err := NewClient(server.URL).Scale(context.Background(), 100000)
	if err != nil {
		t.Fatalf("Scale() error = %v", err)
	}
	if est.TableScanMillis != 100 || est.IndexScanMillis != 17 {
		t.Errorf("Scale() = %+v", est)
	}
}

func TestClient_Scenarios(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/scenarios" {
			t.Errorf("Expected path /api/scenarios, got %s", r.URL.Path)
		}
		w.Write([]byte(`[{"id":"cursor","label":"Cursor vs Set-Based Aggregation","kind":"algorithmic","descriptions":{"slow":"Cursor-based aggregation"},"explanation":{"slow":["Rows are processed one by one in application code"],"optimized":[]}}]`))
	}))
	defer server.Close()

	list, err := NewClient(server.URL).Scenarios(context.Background())
	if err != nil {
		t.Fatalf("Scenarios() error = %v", err)
	}
	if len(list) != 1 || list[0].Descriptions["slow"] != "Cursor-based aggregation" || len(list[0].Explanation.Slow) != 1 {
		t.Errorf("Scenarios() = %+v", list)
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			t.Errorf("Expected path /v1/health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Status{Status: "ok"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	status, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if status.Status != "ok" {
		t.Errorf("Ping() status = %s, want ok", status.Status)
	}
}
