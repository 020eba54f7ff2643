package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateAccounts(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DownloadRoot) == "" {
		return errors.New("paths.download_root must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if err := ensurePositiveMap(map[string]int{
		"workers.download_workers":      c.Workers.DownloadWorkers,
		"workers.queue_workers":         c.Workers.QueueWorkers,
		"workers.poll_interval_ms":      c.Workers.PollIntervalMS,
		"workers.idle_claim_backoff_ms": c.Workers.IdleClaimBackoffMS,
	}); err != nil {
		return err
	}
	if c.Workers.RetryIntervalSeconds < 0 {
		return errors.New("workers.retry_interval_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if _, ok := supportedMediaFormats[c.Output.MediaFormat]; !ok {
		return fmt.Errorf("output.media_format %q is not supported", c.Output.MediaFormat)
	}
	switch c.Output.M3UFormat {
	case "m3u", "m3u8":
	default:
		return fmt.Errorf("output.m3u_format must be m3u or m3u8, got %q", c.Output.M3UFormat)
	}
	if c.Output.MaxPathLength < 16 {
		return errors.New("output.max_path_length must be at least 16")
	}
	if strings.ContainsAny(c.Output.IllegalCharacterReplacement, `/\:*?"<>|`) {
		return errors.New("output.illegal_character_replacement must not contain path separators or reserved characters")
	}
	return nil
}

func (c *Config) validateAccounts() error {
	seen := make(map[string]struct{}, len(c.Accounts))
	for i, acct := range c.Accounts {
		if acct.Service == "" {
			return fmt.Errorf("accounts[%d].service must be set", i)
		}
		key := acct.Service + "/" + acct.UUID
		if _, dup := seen[key]; dup {
			return fmt.Errorf("accounts[%d]: duplicate account %q for service %q", i, acct.UUID, acct.Service)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
