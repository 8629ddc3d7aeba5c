package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DatanoiseTV/contextmcp/internal/contextstore"
)

func setupTestApp(t *testing.T, history bool) *App {
	t.Helper()
	cfg := &Config{
		Workspace:    filepath.Join(t.TempDir(), "demo"),
		Capacity:     100,
		DefaultLimit: 10,
		LogLevel:     "info",
		History:      history,
	}
	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return res, tc.Text
}

func TestHandlers_AddThenGet(t *testing.T) {
	app := setupTestApp(t, false)

	res, text := callTool(t, app.addContextHandler, map[string]any{
		"content": "Use JWT", "type": "decision", "importance": 8.0, "tags": []any{"auth"},
	})
	require.False(t, res.IsError, text)
	var added contextstore.Context
	require.NoError(t, json.Unmarshal([]byte(text), &added))
	assert.Equal(t, "Use JWT", added.Content)
	assert.Equal(t, app.cfg.Workspace, added.ProjectPath)

	res, text = callTool(t, app.getContextHandler, map[string]any{"limit": 10.0})
	require.False(t, res.IsError, text)
	var list []contextstore.Context
	require.NoError(t, json.Unmarshal([]byte(text), &list))
	require.Len(t, list, 1)
	assert.Equal(t, added.ID, list[0].ID)

	_, err := os.Stat(app.cfg.StorePath())
	assert.NoError(t, err)
}

func TestHandlers_ErrorsAreToolResults(t *testing.T) {
	app := setupTestApp(t, false)

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
		prefix  string
	}{
		{name: "missing type", handler: app.addContextHandler, args: map[string]any{"content": "x"}, prefix: "Invalid parameters"},
		{name: "blank content", handler: app.addContextHandler, args: map[string]any{"content": " ", "type": "code"}, prefix: "Invalid context"},
		{name: "unknown id", handler: app.deleteContextHandler, args: map[string]any{"id": "42"}, prefix: "Not found"},
		{name: "history off", handler: app.historyHandler, args: map[string]any{"id": "42"}, prefix: "Revision history is not enabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, text := callTool(t, tt.handler, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, text, tt.prefix)
		})
	}
}

func TestHandlers_ProjectInfo(t *testing.T) {
	app := setupTestApp(t, false)
	_, text := callTool(t, app.projectInfoHandler, nil)
	assert.JSONEq(t, `{"projectName":"demo","workspacePath":"`+app.cfg.Workspace+`","contextCount":0}`, text)
}

func TestHandlers_HistoryOnDisk(t *testing.T) {
	app := setupTestApp(t, true)
	require.NotNil(t, app.history)

	_, text := callTool(t, app.addContextHandler, map[string]any{"content": "first", "type": "code"})
	var added contextstore.Context
	require.NoError(t, json.Unmarshal([]byte(text), &added))
	res, text := callTool(t, app.deleteContextHandler, map[string]any{"id": added.ID})
	require.False(t, res.IsError, text)

	res, text = callTool(t, app.historyHandler, map[string]any{"id": added.ID})
	require.False(t, res.IsError, text)
	var hist contextstore.ContextHistory
	require.NoError(t, json.Unmarshal([]byte(text), &hist))
	require.Len(t, hist.Revisions, 2)
	assert.Equal(t, contextstore.OpDelete, hist.Revisions[1].Op)
}

func TestNewApp_RejectsInvalidConfig(t *testing.T) {
	_, err := NewApp(context.Background(), &Config{Workspace: t.TempDir()}, nil)
	assert.Error(t, err)
}

func TestNewMCPServer(t *testing.T) {
	app := setupTestApp(t, false)
	assert.NotNil(t, app.newMCPServer())
}
