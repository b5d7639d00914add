package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/avolkhov/logly/internal/analyze"
	"github.com/avolkhov/logly/internal/detect"
	"github.com/avolkhov/logly/internal/model"
)

// toolTimeout caps each tool call; every tool is a bounded set of store reads.
const toolTimeout = 30 * time.Second

type handlers struct {
	analyzer *analyze.Analyzer
	detector *detect.Detector
}

func (h *handlers) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	hours := intArg(getArgs(request), "hours", 24)
	report := h.analyzer.SystemHealth(hours)
	return jsonResult(report)
}

func (h *handlers) handleGetSecurityPosture(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	hours := intArg(getArgs(request), "hours", 24)
	report, err := h.analyzer.SecurityPosture(hours)
	if err != nil {
		return errResult(fmt.Sprintf("security analysis failed: %v", err)), nil
	}
	return jsonResult(report)
}

func (h *handlers) handleGetErrorTrends(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	days := intArg(getArgs(request), "days", 7)
	report, err := h.analyzer.ErrorTrends(days)
	if err != nil {
		return errResult(fmt.Sprintf("trend analysis failed: %v", err)), nil
	}
	return jsonResult(report)
}

func (h *handlers) handleQueryIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	args := getArgs(request)
	hours := intArg(args, "hours", 24)
	issueType := stringArg(args, "type", "")

	issues := h.detector.DetectAll(detect.LastHours(hours))
	if issueType != "" {
		filtered := make([]model.Issue, 0, len(issues))
		for _, issue := range issues {
			if issue.Type == issueType {
				filtered = append(filtered, issue)
			}
		}
		issues = filtered
	}

	// Always an array, never null, for easier consumption by AI agents.
	if issues == nil {
		issues = []model.Issue{}
	}
	return jsonResult(map[string]any{
		"window_hours": hours,
		"count":        len(issues),
		"issues":       issues,
	})
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]any {
	if request.Params.Arguments == nil {
		return map[string]any{}
	}
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]any, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// intArg extracts a numeric argument, tolerating the float64 representation
// JSON decoding produces.
func intArg(args map[string]any, key string, defaultVal int) int {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	f, ok := val.(float64)
	if !ok || f <= 0 {
		return defaultVal
	}
	return int(f)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

// errResult creates an MCP tool error result (IsError=true).
// This is returned as a tool-level error, not a transport-level JSON-RPC error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
	}
}
