package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	testMode := flag.Bool("t", false, "Run in interactive CLI mode")
	workspaceFlag := flag.String("workspace", "", "Workspace root (default $"+WorkspaceEnv+" or the current directory)")
	showVersion := flag.Bool("v", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", ServerName, ServerVersion)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *workspaceFlag, *testMode); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ServerName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, workspaceFlag string, testMode bool) error {
	workspace, err := ResolveWorkspace(workspaceFlag)
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(workspace, nil)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close history", "error", err)
		}
	}()

	if testMode {
		app.runInteractiveCLI(ctx, os.Stdin, os.Stdout)
		return nil
	}

	logger.Info("Context manager starting on stdio", "workspace", workspace, "store", cfg.StorePath(), "history", app.history != nil)
	if err := server.ServeStdio(app.newMCPServer()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
