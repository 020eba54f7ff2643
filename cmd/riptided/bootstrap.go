package main

import (
	"fmt"
	"strings"

	"riptide/internal/config"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return cfg, nil
}

// resolveLogLevel prefers the flag over the configured level.
func resolveLogLevel(cfg *config.Config, flag string) string {
	if level := strings.ToLower(strings.TrimSpace(flag)); level != "" {
		return level
	}
	if cfg == nil {
		return "info"
	}
	return cfg.Logging.Level
}
