package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmax-ai/sqlperf/pkg/scenario"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// ScenarioRunner is the core the transport drives.
type ScenarioRunner interface {
	Run(ctx context.Context, scenarioID, variant string) (scenario.Result, error)
	Compare(ctx context.Context, scenarioID string) (scenario.Comparison, error)
	Scenarios() []scenario.Summary
}

// Server encapsulates the HTTP API server
type Server struct {
	runner   ScenarioRunner
	server   *http.Server
	staticFS fs.FS

	// TLS Config
	tlsCertFile string
	tlsKeyFile  string
}

// NewServer creates a new API server instance
func NewServer(runner ScenarioRunner, addr string) *Server {
	mux := http.NewServeMux()

	s := &Server{runner: runner}

	// Register routes
	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/compare", s.handleCompare)
	mux.HandleFunc("/api/scenarios", s.handleScenarios)
	mux.HandleFunc("/api/scale", handleScale)

	// Static file handler (catch-all for the comparison page)
	mux.Handle("/", s.handleStatic())

	// Middleware: Logging, Panic Recovery, Security Headers, CORS
	handler := withLogging(withRecovery(withSecureHeaders(withCORS(mux))))

	// Use default port if addr is empty
	if addr == "" {
		addr = ":8091"
	}

	s.server = &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 5 * time.Second,
		// Slow cursor runs pay a per-row delay, allow them to finish.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetStaticFS sets the filesystem for serving static web assets
func (s *Server) SetStaticFS(fs fs.FS) {
	s.staticFS = fs
}

// SetTLS configures the server to use TLS
func (s *Server) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		fmt.Printf(`{"level":"info","msg":"server_starting_tls","addr":%q}`+"\n", s.server.Addr)
		if err := s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile); err != http.ErrServerClosed {
			return err
		}
	} else {
		fmt.Printf(`{"level":"info","msg":"server_starting","addr":%q}`+"\n", s.server.Addr)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println(`{"level":"info","msg":"server_stopping"}`)
	return s.server.Shutdown(ctx)
}

// handleRun executes one variant of a scenario.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}

	if req.ScenarioID == "" {
		http.Error(w, `{"error":"missing_required_fields"}`, http.StatusBadRequest)
		return
	}

	res, err := s.runner.Run(r.Context(), req.ScenarioID, req.Variant)
	if err != nil {
		writeScenarioError(w, r, req.ScenarioID, err)
		return
	}

	// Strict mode would have failed above, so the permissive reading is the
	// variant that actually ran.
	v, _ := scenario.ParseVariant(req.Variant, false)

	writeJSON(w, r, newRunResponse(req.ScenarioID, v, res))
}

// handleCompare runs slow then optimized for a scenario.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}

	if req.ScenarioID == "" {
		http.Error(w, `{"error":"missing_required_fields"}`, http.StatusBadRequest)
		return
	}

	c, err := s.runner.Compare(r.Context(), req.ScenarioID)
	if err != nil {
		writeScenarioError(w, r, req.ScenarioID, err)
		return
	}

	writeJSON(w, r, CompareResponse{
		ScenarioID: c.ScenarioID,
		Slow:       newRunResponse(c.ScenarioID, scenario.VariantSlow, c.Slow),
		Optimized:  newRunResponse(c.ScenarioID, scenario.VariantOptimized, c.Optimized),
		Speedup:    c.Speedup,
	})
}

// handleScenarios lists the catalog.
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, r, s.runner.Scenarios())
}

// handleScale projects table and index scan cost for ?rows=N.
func handleScale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	rows, err := strconv.ParseInt(r.URL.Query().Get("rows"), 10, 64)
	if err != nil || rows <= 0 {
		http.Error(w, `{"error":"invalid_rows"}`, http.StatusBadRequest)
		return
	}

	writeJSON(w, r, scenario.EstimateScale(rows))
}

func writeScenarioError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, scenario.ErrUnknownScenario):
		http.Error(w, `{"error":"unknown_scenario"}`, http.StatusNotFound)
	case errors.Is(err, scenario.ErrInvalidVariant):
		http.Error(w, `{"error":"invalid_variant","valid":["slow","optimized"]}`, http.StatusBadRequest)
	case errors.Is(err, scenario.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		http.Error(w, `{"error":"scenario_busy"}`, http.StatusServiceUnavailable)
	default:
		fmt.Printf(`{"level":"error","msg":"scenario_failed","trace_id":%q,"scenario":%q,"error":%q}`+"\n", getTraceID(r.Context()), id, err.Error())
		http.Error(w, `{"error":"scenario_failed"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_response","trace_id":%q,"error":%q}`+"\n", getTraceID(r.Context()), err.Error())
	}
}

// handleStatic serves the embedded comparison page
func (s *Server) handleStatic() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.staticFS == nil {
			http.NotFound(w, r)
			return
		}

		path := r.URL.Path

		// Skip API routes
		if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/v1/") {
			http.NotFound(w, r)
			return
		}

		path = strings.TrimPrefix(path, "/")
		if path == "" {
			path = "index.html"
		}

		// Try to serve the file directly
		if file, err := s.staticFS.Open(path); err == nil {
			defer file.Close()
			if stat, err := file.Stat(); err == nil && !stat.IsDir() {
				// Set content type based on extension
				if strings.HasSuffix(path, ".css") {
					w.Header().Set("Content-Type", "text/css")
				} else if strings.HasSuffix(path, ".js") {
					w.Header().Set("Content-Type", "application/javascript")
				} else if strings.HasSuffix(path, ".html") {
					w.Header().Set("Content-Type", "text/html")
				}
				io.Copy(w, file)
				return
			}
		}

		http.NotFound(w, r)
	})
}

// handleHealth returns simple status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Middleware: Panic Recovery
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Printf(`{"level":"error","msg":"panic_recovered","error":%q,"path":%q}`+"\n", fmt.Sprint(err), r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 1. Extract or Generate Trace ID
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}

		// 2. Inject into Context
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		// Wrap writer to capture status code
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		// 3. Set response header
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		fmt.Printf(`{"level":"info","msg":"http_request","trace_id":%q,"method":%q,"path":%q,"status":%d,"duration_ms":%d}`+"\n",
			traceID, r.Method, r.URL.Path, ww.status, duration.Milliseconds())
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback if random fails (unlikely)
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:;")
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		next.ServeHTTP(w, r)
	})
}

// Middleware: CORS for front ends served from another origin
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Trace-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
