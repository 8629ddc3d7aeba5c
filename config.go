package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/DatanoiseTV/contextmcp/internal/contextstore"
	"github.com/DatanoiseTV/contextmcp/internal/tools"
)

// Config holds application configuration from
// <workspace>/.context-manager/config.yaml and CONTEXT_MANAGER_* variables.
type Config struct {
	Workspace    string `mapstructure:"-"`
	Capacity     int    `mapstructure:"capacity"`
	DefaultLimit int    `mapstructure:"default_limit"`
	LogLevel     string `mapstructure:"log_level"`
	LogFile      string `mapstructure:"log_file"`
	History      bool   `mapstructure:"history"`
	Watch        bool   `mapstructure:"watch"`
}

// ResolveWorkspace picks the workspace root: the flag value, then
// WORKSPACE_PATH, then the current directory.
func ResolveWorkspace(flagValue string) (string, error) {
	ws := flagValue
	if ws == "" {
		ws = os.Getenv(WorkspaceEnv)
	}
	if ws == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		ws = wd
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace %q: %w", ws, err)
	}
	return abs, nil
}

// LoadConfig reads configuration for workspace. A missing config file is not
// an error; defaults and environment variables apply.
func LoadConfig(workspace string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	v := viper.New()
	v.SetDefault("capacity", contextstore.DefaultCapacity)
	v.SetDefault("default_limit", tools.DefaultLimit)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("history", false)
	v.SetDefault("watch", false)

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(workspace, StoreDirName))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Debug("Config file not found, using defaults and environment variables", "dir", filepath.Join(workspace, StoreDirName))
	} else {
		logger.Debug("Loaded config", "path", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Workspace = workspace

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("config: workspace is required")
	}
	if c.Capacity < 1 {
		return fmt.Errorf("config: capacity must be at least 1, got %d", c.Capacity)
	}
	if c.DefaultLimit < 1 {
		return fmt.Errorf("config: default_limit must be at least 1, got %d", c.DefaultLimit)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// StorePath is the location of contexts.json.
func (c *Config) StorePath() string {
	return filepath.Join(c.Workspace, StoreDirName, StoreFileName)
}

// HistoryPath is the badger directory used when history is enabled.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Workspace, StoreDirName, HistoryDirName)
}
