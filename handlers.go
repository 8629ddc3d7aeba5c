package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/DatanoiseTV/contextmcp/internal/contextstore"
	"github.com/DatanoiseTV/contextmcp/internal/tools"
)

// App wires the context store, its optional history and the command facade
// for both the MCP server and the interactive mode.
type App struct {
	cfg     *Config
	store   *contextstore.Store
	history *contextstore.History
	tools   *tools.Facade
	logger  *slog.Logger
}

// NewApp builds an App from cfg. History and the file watcher are optional;
// if either fails to start the App runs without it.
func NewApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger}

	var rec contextstore.Recorder
	if cfg.History {
		h, err := contextstore.OpenHistory(cfg.HistoryPath())
		if err != nil {
			logger.Warn("Revision history unavailable", "path", cfg.HistoryPath(), "error", err)
		} else {
			a.history = h
			rec = h
		}
	}

	a.store = contextstore.New(contextstore.Config{
		Path:        cfg.StorePath(),
		ProjectPath: cfg.Workspace,
		Capacity:    cfg.Capacity,
		Logger:      logger,
		Recorder:    rec,
	})
	a.tools = tools.New(a.store, tools.Options{
		Workspace:    cfg.Workspace,
		DefaultLimit: cfg.DefaultLimit,
		History:      a.history,
		Logger:       logger,
	})

	if cfg.Watch {
		if err := contextstore.Watch(ctx, a.store, logger); err != nil {
			logger.Warn("File watcher unavailable", "path", cfg.StorePath(), "error", err)
		}
	}
	return a, nil
}

// Close releases the revision history, if open.
func (a *App) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

// call runs a facade command and turns the outcome into a tool result.
// Failures are reported as error results, never as Go errors.
func (a *App) call(ctx context.Context, name string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)

	out, err := a.tools.Call(ctx, name, args)
	if err != nil {
		a.logger.WarnContext(ctx, "Command failed", "name", name, "error", err)
		return mcp.NewToolResultError(describeError(err)), nil
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func describeError(err error) string {
	var pe *tools.ParamError
	switch {
	case errors.As(err, &pe):
		return fmt.Sprintf("Invalid parameters: %v", err)
	case contextstore.IsValidation(err):
		return fmt.Sprintf("Invalid context: %v", err)
	case contextstore.IsNotFound(err):
		return fmt.Sprintf("Not found: %v", err)
	case contextstore.IsStorage(err):
		return fmt.Sprintf("Storage failure, change kept in memory only: %v", err)
	case errors.Is(err, tools.ErrHistoryDisabled):
		return "Revision history is not enabled; set history: true in config.yaml"
	}
	return fmt.Sprintf("Failed: %v", err)
}

// getContextHandler handles the get_context tool.
func (a *App) getContextHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.call(ctx, tools.GetContext, request)
}

// addContextHandler handles the add_context tool.
func (a *App) addContextHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.call(ctx, tools.AddContext, request)
}

// searchContextsHandler handles the search_contexts tool.
func (a *App) searchContextsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.call(ctx, tools.SearchContexts, request)
}

// projectInfoHandler handles the get_project_info tool.
func (a *App) projectInfoHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.call(ctx, tools.GetProjectInfo, request)
}

// updateContextHandler is reachable from the interactive mode only.
func (a *App) updateContextHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.call(ctx, tools.UpdateContext, request)
}

func (a *App) deleteContextHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.call(ctx, tools.DeleteContext, request)
}

func (a *App) deleteContextsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.call(ctx, tools.DeleteContexts, request)
}

// historyHandler handles the context_history tool.
func (a *App) historyHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.call(ctx, tools.ContextHistory, request)
}

// newMCPServer registers the query tools. Update and delete stay out of the
// headless server.
func (a *App) newMCPServer() *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool(tools.GetContext,
		mcp.WithDescription("Returns the most recent project contexts, newest first."),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum number of contexts to return (default %d)", a.cfg.DefaultLimit))),
		mcp.WithString("type", mcp.Description("Only return contexts of this type"),
			mcp.Enum("all", "conversation", "decision", "code", "issue")),
	), a.getContextHandler)

	s.AddTool(mcp.NewTool(tools.AddContext,
		mcp.WithDescription("Stores a new context entry for this project."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The text to remember")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Kind of context"),
			mcp.Enum("conversation", "decision", "code", "issue")),
		mcp.WithNumber("importance", mcp.Description("Importance from 1 to 10 (default 5)"), mcp.Min(1), mcp.Max(10)),
		mcp.WithArray("tags", mcp.Description("Free-form labels"), mcp.Items(map[string]any{"type": "string"})),
	), a.addContextHandler)

	s.AddTool(mcp.NewTool(tools.SearchContexts,
		mcp.WithDescription("Case-insensitive substring search over context content and type."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for")),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum number of matches (default %d)", a.cfg.DefaultLimit))),
		mcp.WithString("type", mcp.Description("Only match contexts of this type"),
			mcp.Enum("all", "conversation", "decision", "code", "issue")),
		mcp.WithString("date_range", mcp.Description("Only match recent contexts"),
			mcp.Enum("all", "today", "week", "month")),
	), a.searchContextsHandler)

	s.AddTool(mcp.NewTool(tools.GetProjectInfo,
		mcp.WithDescription("Reports the project name, workspace path and number of stored contexts."),
	), a.projectInfoHandler)

	if a.tools.HistoryEnabled() {
		s.AddTool(mcp.NewTool(tools.ContextHistory,
			mcp.WithDescription("Lists every recorded revision of one context, including after deletion."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Context ID")),
		), a.historyHandler)
	}
	return s
}
