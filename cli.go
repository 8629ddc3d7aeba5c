package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
)

var (
	errColor    = color.New(color.FgRed)
	promptColor = color.New(color.FgCyan, color.Bold)
)

// updateFields are the keys accepted by "update <id> <field>=<value>...".
var updateFields = map[string]bool{"content": true, "type": true, "importance": true, "tags": true}

// runInteractiveCLI starts an interactive command-line interface over the same
// handlers the MCP server uses, plus the update and delete commands.
func (a *App) runInteractiveCLI(ctx context.Context, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, WelcomeMsg)
	fmt.Fprintln(out, HelpMsg)

	scanner := bufio.NewScanner(in)
	for {
		promptColor.Fprint(out, "\n"+PromptStr)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		if ctx.Err() != nil {
			return
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := strings.ToLower(parts[0])
		switch cmd {
		case "exit", "quit":
			return

		case "add":
			if len(parts) < 3 {
				fmt.Fprintln(out, "Usage: add <type> [importance] <content>")
				continue
			}
			a.cliAdd(ctx, out, parts[1], parts[2:])

		case "list":
			args := map[string]any{}
			if len(parts) > 1 {
				args["limit"] = parts[1]
			}
			a.cliRun(ctx, out, a.getContextHandler, args)

		case "search":
			if len(parts) < 2 {
				fmt.Fprintln(out, "Usage: search <query>")
				continue
			}
			a.cliRun(ctx, out, a.searchContextsHandler, map[string]any{"query": strings.Join(parts[1:], " ")})

		case "update":
			if len(parts) < 3 {
				fmt.Fprintln(out, "Usage: update <id> <field>=<value>...")
				continue
			}
			args, err := parseUpdateArgs(parts[2:])
			if err != nil {
				errColor.Fprintf(out, "Error: %v\n", err)
				continue
			}
			args["id"] = parts[1]
			a.cliRun(ctx, out, a.updateContextHandler, args)

		case "delete":
			if len(parts) < 2 {
				fmt.Fprintln(out, "Usage: delete <id>")
				continue
			}
			a.cliRun(ctx, out, a.deleteContextHandler, map[string]any{"id": parts[1]})

		case "delete-many":
			if len(parts) < 2 {
				fmt.Fprintln(out, "Usage: delete-many <id>...")
				continue
			}
			ids := make([]any, 0, len(parts)-1)
			for _, id := range parts[1:] {
				ids = append(ids, id)
			}
			a.cliRun(ctx, out, a.deleteContextsHandler, map[string]any{"ids": ids})

		case "info":
			a.cliRun(ctx, out, a.projectInfoHandler, nil)

		case "history":
			if len(parts) < 2 {
				fmt.Fprintln(out, "Usage: history <id>")
				continue
			}
			a.cliRun(ctx, out, a.historyHandler, map[string]any{"id": parts[1]})

		default:
			fmt.Fprintln(out, UnknownCmdMsg)
		}
	}
}

// cliAdd treats the first word as the importance when it is a number.
func (a *App) cliAdd(ctx context.Context, out io.Writer, typ string, rest []string) {
	args := map[string]any{"type": typ}
	if _, err := strconv.Atoi(rest[0]); err == nil && len(rest) > 1 {
		args["importance"] = rest[0]
		rest = rest[1:]
	}
	args["content"] = strings.Join(rest, " ")
	a.cliRun(ctx, out, a.addContextHandler, args)
}

// cliRun executes a handler and prints its text, errors in red.
func (a *App) cliRun(ctx context.Context, out io.Writer, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(ctx, req)
	if err != nil {
		errColor.Fprintf(out, "Error: %v\n", err)
		return
	}
	text := ""
	if len(res.Content) > 0 {
		if tc, ok := res.Content[0].(mcp.TextContent); ok {
			text = tc.Text
		}
	}
	switch {
	case res.IsError:
		errColor.Fprintf(out, "Error: %s\n", text)
	case text == "[]":
		fmt.Fprintln(out, NoContextsMsg)
	default:
		fmt.Fprintln(out, text)
	}
}

// parseUpdateArgs reads field=value tokens. Words without a known field
// prefix continue the previous value, so content may contain spaces.
func parseUpdateArgs(tokens []string) (map[string]any, error) {
	values := map[string][]string{}
	var order []string
	current := ""
	for _, tok := range tokens {
		if key, val, ok := strings.Cut(tok, "="); ok && updateFields[strings.ToLower(key)] {
			current = strings.ToLower(key)
			if _, seen := values[current]; !seen {
				order = append(order, current)
			}
			values[current] = []string{val}
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("expected <field>=<value>, got %q (fields: content, type, importance, tags)", tok)
		}
		values[current] = append(values[current], tok)
	}

	args := make(map[string]any, len(order))
	for _, key := range order {
		args[key] = strings.Join(values[key], " ")
	}
	return args, nil
}
