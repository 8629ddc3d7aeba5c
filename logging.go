package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return l, nil
}

// newLogger builds the process logger. It writes to stderr, since stdout
// carries the MCP transport, or to a rotated file when log_file is set. The
// returned closer is nil unless a file was opened.
func newLogger(cfg *Config) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	opts := &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
	}

	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		opts.NoColor = true
		return slog.New(tint.NewHandler(lj, opts)), lj, nil
	}

	opts.NoColor = !isatty.IsTerminal(os.Stderr.Fd())
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), opts)), nil, nil
}
