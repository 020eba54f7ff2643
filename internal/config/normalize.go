package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkers()
	c.normalizeOutput()
	c.normalizeAccounts()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadRoot) == "" {
		c.Paths.DownloadRoot = defaultDownloadRoot
	}
	if c.Paths.DownloadRoot, err = expandPath(c.Paths.DownloadRoot); err != nil {
		return fmt.Errorf("paths.download_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("RIPTIDE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeWorkers() {
	if c.Workers.DownloadWorkers <= 0 {
		c.Workers.DownloadWorkers = defaultDownloadWorkers
	}
	if c.Workers.QueueWorkers <= 0 {
		c.Workers.QueueWorkers = defaultQueueWorkers
	}
	if c.Workers.PollIntervalMS <= 0 {
		c.Workers.PollIntervalMS = defaultPollIntervalMS
	}
	if c.Workers.IdleClaimBackoffMS <= 0 {
		c.Workers.IdleClaimBackoffMS = defaultIdleClaimBackoffMS
	}
	if c.Workers.RetryIntervalSeconds < 0 {
		c.Workers.RetryIntervalSeconds = 0
	}
	if c.Workers.DownloadDelaySeconds < 0 {
		c.Workers.DownloadDelaySeconds = 0
	}
	if c.Workers.MetadataRate < 0 {
		c.Workers.MetadataRate = 0
	}
	if c.Workers.BandwidthLimitKBps < 0 {
		c.Workers.BandwidthLimitKBps = 0
	}
}

func (c *Config) normalizeOutput() {
	c.Output.MediaFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Output.MediaFormat), "."))
	if c.Output.MediaFormat == "" {
		c.Output.MediaFormat = defaultMediaFormat
	}
	c.Output.M3UFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Output.M3UFormat), "."))
	if c.Output.M3UFormat == "" {
		c.Output.M3UFormat = defaultM3UFormat
	}
	if c.Output.MaxPathLength <= 0 {
		c.Output.MaxPathLength = defaultMaxPathLength
	}
	if strings.TrimSpace(c.Output.TrackPathFormatter) == "" {
		c.Output.TrackPathFormatter = defaultTrackPathFormatter
	}
	if strings.TrimSpace(c.Output.PodcastPathFormatter) == "" {
		c.Output.PodcastPathFormatter = defaultPodcastPathFormatter
	}
	if strings.TrimSpace(c.Output.VideoPathFormatter) == "" {
		c.Output.VideoPathFormatter = defaultVideoPathFormatter
	}
	if strings.TrimSpace(c.Output.M3UNameFormatter) == "" {
		c.Output.M3UNameFormatter = defaultM3UNameFormatter
	}
	c.Output.FFmpegPath = strings.TrimSpace(c.Output.FFmpegPath)
	c.Output.YtDlpPath = strings.TrimSpace(c.Output.YtDlpPath)
	if c.Output.EmbedLyrics {
		c.Output.DownloadLyrics = true
	}
}

func (c *Config) normalizeAccounts() {
	for i := range c.Accounts {
		acct := &c.Accounts[i]
		acct.Service = strings.ToLower(strings.TrimSpace(acct.Service))
		acct.Name = strings.TrimSpace(acct.Name)
		acct.UUID = strings.TrimSpace(acct.UUID)
		acct.Token = strings.TrimSpace(acct.Token)
		if acct.UUID == "" {
			acct.UUID = acct.Name
		}
	}
}

func (c *Config) normalizeHistory() error {
	var err error
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}
