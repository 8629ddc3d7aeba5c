package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, app *App, script string) string {
	t.Helper()
	var out bytes.Buffer
	app.runInteractiveCLI(context.Background(), strings.NewReader(script), &out)
	return out.String()
}

func TestCLI_Session(t *testing.T) {
	app := setupTestApp(t, false)

	out := runCLI(t, app, strings.Join([]string{
		"list",
		"add decision 8 Use JWT for auth",
		"add issue flaky login test",
		"search jwt",
		"info",
		"bogus",
		"exit",
		"add code never reached",
	}, "\n"))

	assert.Contains(t, out, WelcomeMsg)
	assert.Contains(t, out, NoContextsMsg)
	assert.Contains(t, out, `"content": "Use JWT for auth"`)
	assert.Contains(t, out, `"importance": 8`)
	assert.Contains(t, out, `"content": "flaky login test"`)
	assert.Contains(t, out, `"contextCount": 2`)
	assert.Contains(t, out, UnknownCmdMsg)

	n, err := app.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCLI_UpdateAndDelete(t *testing.T) {
	app := setupTestApp(t, false)
	ctx := context.Background()

	runCLI(t, app, "add code 3 first draft\nadd code second\n")
	list, err := app.store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	older, newer := list[1], list[0]

	out := runCLI(t, app, "update "+older.ID+" content=final version importance=9 tags=a,b\n")
	assert.NotContains(t, out, "Error")
	got, err := app.store.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "final version", got.Content)
	assert.Equal(t, 9, got.Importance)
	assert.Equal(t, []string{"a", "b"}, got.Tags)

	out = runCLI(t, app, "update "+older.ID+" nonsense\n")
	assert.Contains(t, out, "Error")

	out = runCLI(t, app, "delete-many "+older.ID+" "+newer.ID+" missing\n")
	assert.Contains(t, out, `"deleted": 2`)

	out = runCLI(t, app, "delete "+older.ID+"\n")
	assert.Contains(t, out, "Not found")
}

func TestParseUpdateArgs(t *testing.T) {
	args, err := parseUpdateArgs(strings.Fields("type=issue content=a b c tags="))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "issue", "content": "a b c", "tags": ""}, args)

	_, err = parseUpdateArgs([]string{"loose"})
	assert.Error(t, err)

	args, err = parseUpdateArgs(strings.Fields("content=x=y"))
	require.NoError(t, err)
	assert.Equal(t, "x=y", args["content"])
}
