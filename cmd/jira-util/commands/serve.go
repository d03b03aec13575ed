package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/goblinsan/jira-util/pkg/config"
	"github.com/goblinsan/jira-util/pkg/engine"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

// JSON-RPC 2.0 types for MCP protocol
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP protocol types
type mcpInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    mcpCapabilities `json:"capabilities"`
	ServerInfo      mcpServerInfo   `json:"serverInfo"`
}

type mcpCapabilities struct {
	Tools *struct{} `json:"tools,omitempty"`
}

type mcpServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpToolsListResult struct {
	Tools []mcpToolDef `json:"tools"`
}

type mcpToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type mcpToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type mcpToolCallResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	toolReset   = "reset_fixtures"
	toolAssert  = "assert_fixtures"
	toolTrigger = "trigger_labels"
)

var resetToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "label": {"type": "string", "description": "Test-set label selecting the fixture issues (defaults to the configured label)"},
    "force_via": {"type": "string", "description": "Status to pass through when an issue already sits in its start status"}
  }
}`)

var assertToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "label": {"type": "string", "description": "Test-set label selecting the fixture issues (defaults to the configured label)"}
  }
}`)

var triggerToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "issue_key": {"type": "string", "description": "Trigger issue key (defaults to the configured trigger issue)"},
    "labels": {
      "type": "array",
      "items": {"type": "string"},
      "description": "One label toggles it off and on; several replace the issue's labels. Entries may be comma-separated."
    }
  },
  "required": ["labels"]
}`)

type resetArgs struct {
	Label    string `json:"label"`
	ForceVia string `json:"force_via"`
}

type assertArgs struct {
	Label string `json:"label"`
}

type triggerArgs struct {
	IssueKey string   `json:"issue_key"`
	Labels   []string `json:"labels"`
}

// serveRepository loads the configuration and backend for a tool call.
// Prompting is disabled because stdin carries the protocol.
var serveRepository = func() (engine.Repository, *config.Config, error) {
	cfg, err := requireConfig(false)
	if err != nil {
		return nil, nil, err
	}
	repo, err := newRepository(cfg)
	if err != nil {
		return nil, nil, err
	}
	return repo, cfg, nil
}

func handleMCPRequest(ctx context.Context, req jsonRPCRequest) jsonRPCResponse {
	switch req.Method {
	case "initialize":
		return jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mcpInitializeResult{
				ProtocolVersion: "2024-11-05",
				Capabilities:    mcpCapabilities{Tools: &struct{}{}},
				ServerInfo:      mcpServerInfo{Name: "jira-util", Version: Version},
			},
		}

	case "notifications/initialized":
		// Client acknowledgment, no response needed (notification, no ID)
		return jsonRPCResponse{}

	case "tools/list":
		return jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mcpToolsListResult{
				Tools: []mcpToolDef{
					{
						Name:        toolReset,
						Description: "Moves every issue carrying the test-set label back to the start status declared in its summary.",
						InputSchema: resetToolSchema,
					},
					{
						Name:        toolAssert,
						Description: "Checks every issue carrying the test-set label against the expected status declared in its summary. Read-only.",
						InputSchema: assertToolSchema,
					},
					{
						Name:        toolTrigger,
						Description: "Toggles or replaces labels on the trigger issue so that label-driven automation rules fire.",
						InputSchema: triggerToolSchema,
					},
				},
			},
		}

	case "tools/call":
		return handleToolCall(ctx, req)

	default:
		return jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &jsonRPCError{Code: -32601, Message: fmt.Sprintf("method not found: %s", req.Method)},
		}
	}
}

func toolError(req jsonRPCRequest, format string, args ...interface{}) jsonRPCResponse {
	return jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: mcpToolCallResult{
			Content: []mcpContent{{Type: "text", Text: fmt.Sprintf(format, args...)}},
			IsError: true,
		},
	}
}

func handleToolCall(ctx context.Context, req jsonRPCRequest) jsonRPCResponse {
	var params mcpToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &jsonRPCError{Code: -32602, Message: fmt.Sprintf("invalid params: %v", err)},
		}
	}

	switch params.Name {
	case toolReset, toolAssert, toolTrigger:
	default:
		return toolError(req, "unknown tool: %s", params.Name)
	}

	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage(`{}`)
	}

	var (
		result interface{}
		failed bool
	)
	switch params.Name {
	case toolReset:
		var args resetArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return toolError(req, "failed to parse arguments: %v", err)
		}
		repo, cfg, err := serveRepository()
		if err != nil {
			return toolError(req, "failed to create repository: %v", err)
		}
		label := args.Label
		if label == "" {
			label = cfg.DefaultLabel
		}
		report, err := engine.RunReset(ctx, repo, label, engine.ResetOptions{ForceVia: args.ForceVia, Logger: slog.Default()})
		if err != nil {
			return toolError(req, "reset failed: %v", err)
		}
		result, failed = report, !report.OverallSuccess

	case toolAssert:
		var args assertArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return toolError(req, "failed to parse arguments: %v", err)
		}
		repo, cfg, err := serveRepository()
		if err != nil {
			return toolError(req, "failed to create repository: %v", err)
		}
		label := args.Label
		if label == "" {
			label = cfg.DefaultLabel
		}
		report, err := engine.RunAssert(ctx, repo, label, engine.AssertOptions{Logger: slog.Default()})
		if err != nil {
			return toolError(req, "assert failed: %v", err)
		}
		result, failed = report, !report.OverallSuccess

	case toolTrigger:
		var args triggerArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return toolError(req, "failed to parse arguments: %v", err)
		}
		repo, cfg, err := serveRepository()
		if err != nil {
			return toolError(req, "failed to create repository: %v", err)
		}
		key := args.IssueKey
		if key == "" {
			key = cfg.TriggerIssueKey
		}
		res, err := engine.Trigger(ctx, repo, key, args.Labels, engine.TriggerOptions{
			ToggleDelay: cfg.ToggleDelay,
			Logger:      slog.Default(),
		})
		if err != nil {
			return toolError(req, "trigger failed: %v", err)
		}
		result = res
	}

	out, err := json.Marshal(result)
	if err != nil {
		return toolError(req, "failed to encode result: %v", err)
	}
	return jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: mcpToolCallResult{
			Content: []mcpContent{{Type: "text", Text: string(out)}},
			IsError: failed,
		},
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio",
	Long: `Run the MCP server so AI agents can reset, assert and trigger fixtures via
the Model Context Protocol over stdin/stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
		encoder := json.NewEncoder(os.Stdout)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var req jsonRPCRequest
			if err := json.Unmarshal(line, &req); err != nil {
				resp := jsonRPCResponse{
					JSONRPC: "2.0",
					Error:   &jsonRPCError{Code: -32700, Message: fmt.Sprintf("parse error: %v", err)},
				}
				encoder.Encode(resp)
				continue
			}

			resp := handleMCPRequest(cmd.Context(), req)
			// Notifications (no ID) don't get a response
			if resp.JSONRPC == "" {
				continue
			}
			if err := encoder.Encode(resp); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}

		return scanner.Err()
	},
}
