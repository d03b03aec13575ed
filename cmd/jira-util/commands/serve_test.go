package commands

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/goblinsan/jira-util/pkg/config"
	"github.com/goblinsan/jira-util/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withServeRepository(t *testing.T, repo engine.Repository, err error) {
	t.Helper()
	prev := serveRepository
	serveRepository = func() (engine.Repository, *config.Config, error) {
		if err != nil {
			return nil, nil, err
		}
		return repo, &config.Config{DefaultLabel: "rule-testing", TriggerIssueKey: "TAPS-212"}, nil
	}
	t.Cleanup(func() { serveRepository = prev })
}

func callTool(t *testing.T, name, args string) mcpToolCallResult {
	t.Helper()
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`7`),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name":"` + name + `","arguments":` + args + `}`),
	}
	resp := handleMCPRequest(context.Background(), req)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(mcpToolCallResult)
	require.True(t, ok, "expected mcpToolCallResult, got %T", resp.Result)
	require.Len(t, result.Content, 1)
	return result
}

func TestHandleMCPRequest_Initialize(t *testing.T) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	}
	resp := handleMCPRequest(context.Background(), req)

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Nil(t, resp.Error)
	result, ok := resp.Result.(mcpInitializeResult)
	require.True(t, ok, "expected mcpInitializeResult, got %T", resp.Result)
	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Equal(t, "jira-util", result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)
}

func TestHandleMCPRequest_Initialized(t *testing.T) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	}
	resp := handleMCPRequest(context.Background(), req)

	// Notifications get no response.
	assert.Empty(t, resp.JSONRPC)
}

func TestHandleMCPRequest_ToolsList(t *testing.T) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	}
	resp := handleMCPRequest(context.Background(), req)

	assert.Nil(t, resp.Error)
	result, ok := resp.Result.(mcpToolsListResult)
	require.True(t, ok, "expected mcpToolsListResult, got %T", resp.Result)
	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		assert.True(t, json.Valid(tool.InputSchema), "tool %s has an invalid input schema", tool.Name)
	}
	assert.Equal(t, []string{"reset_fixtures", "assert_fixtures", "trigger_labels"}, names)
}

func TestHandleMCPRequest_UnknownMethod(t *testing.T) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`3`),
		Method:  "unknown/method",
	}
	resp := handleMCPRequest(context.Background(), req)

	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestHandleToolCall_UnknownTool(t *testing.T) {
	result := callTool(t, "nonexistent", `{}`)
	assert.True(t, result.IsError)
}

func TestHandleToolCall_InvalidParams(t *testing.T) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`5`),
		Method:  "tools/call",
		Params:  json.RawMessage(`not-json`),
	}
	resp := handleMCPRequest(context.Background(), req)

	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}

func TestHandleToolCall_InvalidArguments(t *testing.T) {
	withServeRepository(t, newFakeRepo(), nil)
	result := callTool(t, "reset_fixtures", `"not-an-object"`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "failed to parse arguments")
}

func TestHandleToolCall_ConfigError(t *testing.T) {
	withServeRepository(t, nil, errors.New("invalid configuration"))
	result := callTool(t, "assert_fixtures", `{}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "invalid configuration")
}

func TestHandleToolCall_ResetDefaultsLabel(t *testing.T) {
	repo := newFakeRepo(fixtureIssue("T-1", "Done", "To Do", "Done"))
	withServeRepository(t, repo, nil)

	result := callTool(t, "reset_fixtures", `{}`)
	assert.False(t, result.IsError)

	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &report))
	assert.Equal(t, engine.ModeReset, report.Mode)
	assert.Equal(t, "rule-testing", report.Label)
	assert.Equal(t, 1, report.Counts.Updated)
	assert.Equal(t, "To Do", repo.issues["T-1"].Status)
}

func TestHandleToolCall_AssertFailureFlagsError(t *testing.T) {
	repo := newFakeRepo(fixtureIssue("T-1", "To Do", "To Do", "Done"))
	repo.issues["T-1"].Labels = []string{"nightly"}
	withServeRepository(t, repo, nil)

	result := callTool(t, "assert_fixtures", `{"label":"nightly"}`)
	assert.True(t, result.IsError)

	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &report))
	assert.Equal(t, "nightly", report.Label)
	assert.Equal(t, 1, report.Counts.Failed)
	assert.False(t, report.OverallSuccess)
}

func TestHandleToolCall_TriggerToggles(t *testing.T) {
	trigger := fixtureIssue("TAPS-212", "Open", "Open", "Open")
	trigger.Labels = []string{"run-rules"}
	repo := newFakeRepo(trigger)
	withServeRepository(t, repo, nil)

	result := callTool(t, "trigger_labels", `{"labels":["run-rules"]}`)
	assert.False(t, result.IsError, result.Content[0].Text)

	var res engine.TriggerResult
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &res))
	assert.Equal(t, "TAPS-212", res.Key)
	assert.True(t, res.WasRemoved)
	assert.Equal(t, []string{"get:TAPS-212", "labels:TAPS-212:", "labels:TAPS-212:run-rules"}, repo.calls)
}

func TestHandleToolCall_TriggerWithoutLabels(t *testing.T) {
	withServeRepository(t, newFakeRepo(), nil)
	result := callTool(t, "trigger_labels", `{"issue_key":"TAPS-1","labels":[]}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "trigger failed")
}

func TestHandleMCPRequest_IDPreserved(t *testing.T) {
	resp := handleMCPRequest(context.Background(), jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`"abc-123"`),
		Method:  "tools/list",
	})
	assert.Equal(t, `"abc-123"`, string(resp.ID))

	resp = handleMCPRequest(context.Background(), jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`42`),
		Method:  "initialize",
	})
	assert.Equal(t, `42`, string(resp.ID))
}
