package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, workspace, body string) {
	t.Helper()
	dir := filepath.Join(workspace, StoreDirName)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	ws := t.TempDir()
	cfg, err := LoadConfig(ws, nil)
	require.NoError(t, err)

	assert.Equal(t, ws, cfg.Workspace)
	assert.Equal(t, 100, cfg.Capacity)
	assert.Equal(t, 10, cfg.DefaultLimit)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.History)
	assert.False(t, cfg.Watch)
	assert.Equal(t, filepath.Join(ws, ".context-manager", "contexts.json"), cfg.StorePath())
	assert.Equal(t, filepath.Join(ws, ".context-manager", "history"), cfg.HistoryPath())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	ws := t.TempDir()
	writeConfigFile(t, ws, "capacity: 20\ndefault_limit: 3\nhistory: true\nlog_level: debug\n")

	cfg, err := LoadConfig(ws, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Capacity)
	assert.Equal(t, 3, cfg.DefaultLimit)
	assert.True(t, cfg.History)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("CONTEXT_MANAGER_CAPACITY", "7")
	t.Setenv("CONTEXT_MANAGER_WATCH", "true")
	cfg, err = LoadConfig(ws, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Capacity)
	assert.Equal(t, 3, cfg.DefaultLimit)
	assert.True(t, cfg.Watch)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "zero capacity", body: "capacity: 0\n"},
		{name: "negative limit", body: "default_limit: -1\n"},
		{name: "bad level", body: "log_level: chatty\n"},
		{name: "malformed yaml", body: "capacity: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := t.TempDir()
			writeConfigFile(t, ws, tt.body)
			_, err := LoadConfig(ws, nil)
			assert.Error(t, err)
		})
	}
}

func TestResolveWorkspace(t *testing.T) {
	flagDir := t.TempDir()
	envDir := t.TempDir()
	t.Setenv(WorkspaceEnv, envDir)

	ws, err := ResolveWorkspace(flagDir)
	require.NoError(t, err)
	assert.Equal(t, flagDir, ws)

	ws, err = ResolveWorkspace("")
	require.NoError(t, err)
	assert.Equal(t, envDir, ws)

	t.Setenv(WorkspaceEnv, "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	ws, err = ResolveWorkspace("")
	require.NoError(t, err)
	assert.Equal(t, wd, ws)
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{LogLevel: "warn", LogFile: filepath.Join(t.TempDir(), "logs", "context.log")}
	logger, closer, err := newLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, closer)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
	assert.Contains(t, string(data), "k=v")

	_, _, err = newLogger(&Config{LogLevel: "loud"})
	assert.Error(t, err)
}
