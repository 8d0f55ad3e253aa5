package api

import "github.com/rmax-ai/sqlperf/pkg/scenario"

// RunRequest matches the POST /api/run body schema
type RunRequest struct {
	ScenarioID string `json:"scenarioId"`
	Variant    string `json:"variant"`
}

// RunResponse matches the response for POST /api/run
type RunResponse struct {
	ScenarioID string           `json:"scenarioId"`
	Variant    scenario.Variant `json:"variant"`
	TimeMs     int64            `json:"timeMs"`
	Plan       string           `json:"plan"`
	Insight    scenario.Insight `json:"insight"`
}

// CompareRequest matches the POST /api/compare body schema
type CompareRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// CompareResponse matches the response for POST /api/compare
type CompareResponse struct {
	ScenarioID string      `json:"scenarioId"`
	Slow       RunResponse `json:"slow"`
	Optimized  RunResponse `json:"optimized"`
	Speedup    float64     `json:"speedup"` // slow/optimized, 0 if optimized took 0ms
}

func newRunResponse(id string, v scenario.Variant, res scenario.Result) RunResponse {
	return RunResponse{
		ScenarioID: id,
		Variant:    v,
		TimeMs:     res.ElapsedMillis,
		Plan:       res.Output,
		Insight:    scenario.ClassifyPlan(res.Output),
	}
}
