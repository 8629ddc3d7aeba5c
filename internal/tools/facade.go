// Package tools maps named commands with loosely typed arguments onto the
// context store. Both the MCP server and the interactive mode go through it.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/DatanoiseTV/contextmcp/internal/contextstore"
)

// Command names.
const (
	GetContext     = "get_context"
	AddContext     = "add_context"
	SearchContexts = "search_contexts"
	GetProjectInfo = "get_project_info"
	UpdateContext  = "update_context"
	DeleteContext  = "delete_context"
	DeleteContexts = "delete_contexts"
	ContextHistory = "context_history"
)

// DefaultLimit is used when get_context or search_contexts omit a limit.
const DefaultLimit = 10

// ErrHistoryDisabled is returned by context_history when no history is open.
var ErrHistoryDisabled = errors.New("revision history is not enabled")

// ProjectInfo is the result of get_project_info.
type ProjectInfo struct {
	ProjectName   string `json:"projectName"`
	WorkspacePath string `json:"workspacePath"`
	ContextCount  int    `json:"contextCount"`
}

// DeleteResult acknowledges delete_context.
type DeleteResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// DeleteManyResult acknowledges delete_contexts.
type DeleteManyResult struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted"`
}

// Options configures a Facade.
type Options struct {
	// Workspace is reported by get_project_info.
	Workspace string
	// DefaultLimit overrides DefaultLimit when positive.
	DefaultLimit int
	// History backs context_history; nil disables it.
	History *contextstore.History
	Logger  *slog.Logger
}

// Facade validates command parameters and delegates to the store.
type Facade struct {
	store        *contextstore.Store
	history      *contextstore.History
	workspace    string
	defaultLimit int
	logger       *slog.Logger
}

// New returns a Facade over store.
func New(store *contextstore.Store, opts Options) *Facade {
	f := &Facade{
		store:        store,
		history:      opts.History,
		workspace:    opts.Workspace,
		defaultLimit: opts.DefaultLimit,
		logger:       opts.Logger,
	}
	if f.defaultLimit <= 0 {
		f.defaultLimit = DefaultLimit
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	if f.workspace == "" {
		f.workspace = store.ProjectPath()
	}
	return f
}

// HistoryEnabled reports whether context_history can be served.
func (f *Facade) HistoryEnabled() bool { return f.history != nil }

// Call runs the named command. Parameter problems are *ParamError; store
// failures keep their contextstore error type.
func (f *Facade) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	f.logger.DebugContext(ctx, "Command", "name", name)
	switch name {
	case GetContext:
		return f.GetContext(ctx, args)
	case AddContext:
		return f.AddContext(ctx, args)
	case SearchContexts:
		return f.SearchContexts(ctx, args)
	case GetProjectInfo:
		return f.GetProjectInfo(ctx)
	case UpdateContext:
		return f.UpdateContext(ctx, args)
	case DeleteContext:
		return f.DeleteContext(ctx, args)
	case DeleteContexts:
		return f.DeleteContexts(ctx, args)
	case ContextHistory:
		return f.ContextHistory(ctx, args)
	}
	return nil, &ParamError{Reason: fmt.Sprintf("unknown command %q", name)}
}

// GetContext returns the most recent entries, optionally of one type.
func (f *Facade) GetContext(ctx context.Context, args map[string]any) ([]contextstore.Context, error) {
	limit, err := f.limit(args)
	if err != nil {
		return nil, err
	}
	t, err := typeFilter(args)
	if err != nil {
		return nil, err
	}
	return f.store.Query(ctx, contextstore.Filter{Type: t, Limit: limit})
}

// AddContext creates an entry.
func (f *Facade) AddContext(ctx context.Context, args map[string]any) (contextstore.Context, error) {
	content, err := requireString(args, "content")
	if err != nil {
		return contextstore.Context{}, err
	}
	raw, err := requireString(args, "type")
	if err != nil {
		return contextstore.Context{}, err
	}
	t, err := entryType(raw)
	if err != nil {
		return contextstore.Context{}, err
	}
	importance, _, err := importance(args)
	if err != nil {
		return contextstore.Context{}, err
	}
	tags, _, err := optStrings(args, "tags")
	if err != nil {
		return contextstore.Context{}, err
	}

	c, err := f.store.Add(ctx, contextstore.NewContext{
		Content:    content,
		Type:       t,
		Importance: importance,
		Tags:       tags,
	})
	if err != nil {
		return contextstore.Context{}, err
	}
	return c, nil
}

// SearchContexts runs a substring search with optional type and date filters.
func (f *Facade) SearchContexts(ctx context.Context, args map[string]any) ([]contextstore.Context, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}
	limit, err := f.limit(args)
	if err != nil {
		return nil, err
	}
	t, err := typeFilter(args)
	if err != nil {
		return nil, err
	}
	rawRange, _, err := optString(args, "date_range")
	if err != nil {
		return nil, err
	}
	dr, err := contextstore.ParseDateRange(rawRange)
	if err != nil {
		return nil, &ParamError{Param: "date_range", Reason: "must be one of today, week, month, all"}
	}
	return f.store.Query(ctx, contextstore.Filter{
		Query: strings.TrimSpace(query),
		Type:  t,
		Range: dr,
		Limit: limit,
	})
}

// GetProjectInfo reports the workspace and how many entries it holds.
func (f *Facade) GetProjectInfo(ctx context.Context) (ProjectInfo, error) {
	n, err := f.store.Count(ctx)
	if err != nil {
		return ProjectInfo{}, err
	}
	return ProjectInfo{
		ProjectName:   filepath.Base(f.workspace),
		WorkspacePath: f.workspace,
		ContextCount:  n,
	}, nil
}

// UpdateContext applies the supplied fields to one entry.
func (f *Facade) UpdateContext(ctx context.Context, args map[string]any) (contextstore.Context, error) {
	id, err := requireID(args)
	if err != nil {
		return contextstore.Context{}, err
	}

	var p contextstore.Patch
	if content, ok, err := optString(args, "content"); err != nil {
		return contextstore.Context{}, err
	} else if ok {
		p.Content = &content
	}
	if raw, ok, err := optString(args, "type"); err != nil {
		return contextstore.Context{}, err
	} else if ok {
		t, err := entryType(raw)
		if err != nil {
			return contextstore.Context{}, err
		}
		p.Type = &t
	}
	if n, ok, err := importance(args); err != nil {
		return contextstore.Context{}, err
	} else if ok {
		p.Importance = &n
	}
	if tags, ok, err := optStrings(args, "tags"); err != nil {
		return contextstore.Context{}, err
	} else if ok {
		p.Tags = &tags
	}
	if p.Empty() {
		return contextstore.Context{}, &ParamError{Reason: "nothing to update: supply content, type, importance or tags"}
	}

	c, err := f.store.Update(ctx, id, p)
	if err != nil {
		return contextstore.Context{}, err
	}
	return c, nil
}

// DeleteContext removes one entry.
func (f *Facade) DeleteContext(ctx context.Context, args map[string]any) (DeleteResult, error) {
	id, err := requireID(args)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := f.store.Delete(ctx, id); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Success: true, ID: id}, nil
}

// DeleteContexts removes every listed entry, ignoring unknown ids.
func (f *Facade) DeleteContexts(ctx context.Context, args map[string]any) (DeleteManyResult, error) {
	ids, ok, err := optStrings(args, "ids")
	if err != nil {
		return DeleteManyResult{}, err
	}
	if !ok {
		return DeleteManyResult{}, &ParamError{Param: "ids", Reason: "is required"}
	}
	n, err := f.store.DeleteMany(ctx, ids)
	if err != nil {
		return DeleteManyResult{}, err
	}
	return DeleteManyResult{Success: true, Deleted: n}, nil
}

// ContextHistory returns the recorded revisions of one entry.
func (f *Facade) ContextHistory(ctx context.Context, args map[string]any) (*contextstore.ContextHistory, error) {
	id, err := requireID(args)
	if err != nil {
		return nil, err
	}
	if f.history == nil {
		return nil, ErrHistoryDisabled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.history.Get(id)
}

func (f *Facade) limit(args map[string]any) (int, error) {
	n, ok, err := optInt(args, "limit")
	if err != nil {
		return 0, err
	}
	if !ok {
		return f.defaultLimit, nil
	}
	if n < 1 {
		return 0, &ParamError{Param: "limit", Reason: "must be at least 1"}
	}
	return n, nil
}

func importance(args map[string]any) (int, bool, error) {
	n, ok, err := optInt(args, "importance")
	if err != nil || !ok {
		return 0, false, err
	}
	if n < contextstore.MinImportance || n > contextstore.MaxImportance {
		return 0, false, &ParamError{Param: "importance", Reason: "must be between 1 and 10"}
	}
	return n, true, nil
}

func requireID(args map[string]any) (string, error) {
	id, err := requireString(args, "id")
	if err != nil {
		return "", err
	}
	if id = strings.TrimSpace(id); id == "" {
		return "", &ParamError{Param: "id", Reason: "must not be empty"}
	}
	return id, nil
}

func entryType(raw string) (contextstore.Type, error) {
	t := contextstore.Type(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", &ParamError{Param: "type", Reason: "must be one of conversation, decision, code, issue"}
	}
	return t, nil
}

// typeFilter reads the optional type filter; "all" and absence both mean no
// filtering.
func typeFilter(args map[string]any) (contextstore.Type, error) {
	raw, ok, err := optString(args, "type")
	if err != nil || !ok {
		return "", err
	}
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == string(contextstore.TypeAll) {
		return contextstore.TypeAll, nil
	}
	return entryType(raw)
}
