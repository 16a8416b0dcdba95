package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/corrift/segmentd/internal/catalog"
	"github.com/corrift/segmentd/internal/workflow"
)

// NewMCPServer creates an MCP server exposing the segmentation tools and the
// population snapshot resource over stdio.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"segmentd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("segmentd: conversational audience segmentation for marketing campaigns."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("analyze_audience",
			mcp.WithDescription("Run a full audience segmentation analysis from a natural language marketing request."),
			mcp.WithString("prompt", mcp.Description("Marketing request in natural language"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session id for multi-turn refinement (optional)")),
		),
		mcpAnalyzeAudience(deps),
	)

	s.AddTool(
		mcp.NewTool("predict_metrics",
			mcp.WithDescription("Predict campaign metrics (conversion, revenue, ROI, reach) for a given audience size."),
			mcp.WithNumber("audience_size", mcp.Description("Number of customers in the audience"), mcp.Required()),
		),
		mcpPredictMetrics(deps),
	)

	s.AddTool(
		mcp.NewTool("list_features",
			mcp.WithDescription("List the population feature fields available for segmentation rules."),
			mcp.WithString("category", mcp.Description("Filter by feature category (optional)")),
		),
		mcpListFeatures(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"population://snapshot",
			"Population Snapshot",
			mcp.WithResourceDescription("Current mock population records as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourcePopulation(deps),
	)

	return s
}

func mcpAnalyzeAudience(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}
		sessionID := req.GetString("session_id", "")

		var terminal *workflow.Event
		for ev := range deps.Orchestrator.Run(ctx, workflow.Request{SessionID: sessionID, Input: prompt}) {
			if ev.Type.Terminal() {
				t := ev
				terminal = &t
			}
		}
		if terminal == nil {
			return mcpError("analysis ended without a result"), nil
		}

		b, err := json.Marshal(terminal)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpPredictMetrics(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		size, err := req.RequireInt("audience_size")
		if err != nil {
			return mcpError("audience_size is required"), nil
		}
		if size < 0 {
			return mcpError("audience_size must not be negative"), nil
		}

		pred := deps.Orchestrator.Predictor().Predict(size, 0, nil)
		b, err := json.Marshal(pred)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal prediction: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListFeatures(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		category := req.GetString("category", "")

		feats := catalog.All()
		if category != "" {
			feats = catalog.ByCategory(category)
		}

		b, err := json.Marshal(feats)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal features: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourcePopulation(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		snapshot := deps.Orchestrator.Population().Snapshot()
		b, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
