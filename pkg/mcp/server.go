package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rmax-ai/sqlperf/pkg/client"
)

// Server adapts sqlperf-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"sqlperf",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"sqlperf://scenarios",
		"SQL Performance Scenarios",
		mcp.WithResourceDescription("Catalog of scenarios with their slow and optimized variants"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadScenarios)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"run_scenario",
		mcp.WithDescription("Run one variant of a performance scenario. Returns elapsed time and the query plan."),
		mcp.WithString("scenario_id", mcp.Required(), mcp.Description("Scenario id (e.g., 'missing-index', 'cursor')")),
		mcp.WithString("variant", mcp.Required(), mcp.Description("'slow' or 'optimized'")),
	), s.handleRunScenario)

	s.mcpServer.AddTool(mcp.NewTool(
		"compare_scenario",
		mcp.WithDescription("Run the slow and optimized variants back to back and report the speedup."),
		mcp.WithString("scenario_id", mcp.Required(), mcp.Description("Scenario id (e.g., 'missing-index', 'cursor')")),
	), s.handleCompareScenario)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"sqlperf-aware",
		mcp.WithPromptDescription("Explains sqlperf concepts (Scenarios, Variants, Plans)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadScenarios(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, err := s.apiClient.Scenarios(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scenarios: %w", err)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scenarios: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleRunScenario(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenarioID := mcp.ParseString(request, "scenario_id", "")
	variant := mcp.ParseString(request, "variant", "")

	res, err := s.apiClient.Run(ctx, scenarioID, variant)
	if err != nil {
		return toolError(err), nil
	}

	return mcp.NewToolResultText(formatRun(res)), nil
}

func (s *Server) handleCompareScenario(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenarioID := mcp.ParseString(request, "scenario_id", "")

	cmp, err := s.apiClient.Compare(ctx, scenarioID)
	if err != nil {
		return toolError(err), nil
	}

	var sb strings.Builder
	sb.WriteString(formatRun(cmp.Slow))
	sb.WriteString("\n\n")
	sb.WriteString(formatRun(cmp.Optimized))
	if cmp.Speedup > 0 {
		fmt.Fprintf(&sb, "\n\nSpeedup: %.1fx", cmp.Speedup)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatRun(res client.RunResult) string {
	return fmt.Sprintf("Variant: %s\nTime: %d ms\nInsight: %s\nPlan:\n%s", res.Variant, res.TimeMs, res.Insight, res.Plan)
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, client.ErrUnknownScenario) {
		return mcp.NewToolResultError("Unknown scenario. Read sqlperf://scenarios for valid ids.")
	}
	return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err))
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "sqlperf-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with sqlperf, a lab that demonstrates database optimizations.

Concepts:
- Scenario: a named performance contrast (e.g., 'missing-index', 'cursor').
- Variant: 'slow' runs the unoptimized path, 'optimized' the improved one.
- Plan: the execution plan captured while the query ran.
- Insight: whether the plan used an index or scanned the table.

Slow runs include a fixed artificial delay so the contrast is always visible;
do not read the absolute numbers as benchmarks. Setup statements change the
database (e.g., drop or create an index), so avoid running variants of the
same scenario in parallel.
`

	return mcp.NewGetPromptResult(
		"sqlperf-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
