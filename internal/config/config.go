package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DownloadRoot string `toml:"download_root"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Workers controls download concurrency and pacing.
type Workers struct {
	DownloadWorkers      int     `toml:"download_workers"`
	QueueWorkers         int     `toml:"queue_workers"`
	PollIntervalMS       int     `toml:"poll_interval_ms"`
	IdleClaimBackoffMS   int     `toml:"idle_claim_backoff_ms"`
	RetryIntervalSeconds int     `toml:"retry_interval_seconds"`
	DownloadDelaySeconds int     `toml:"download_delay_seconds"`
	MetadataRate         float64 `toml:"metadata_rate"`
	BandwidthLimitKBps   int     `toml:"bandwidth_limit_kbps"`
}

// Output controls file naming and post-processing.
type Output struct {
	TrackPathFormatter          string `toml:"track_path_formatter"`
	PodcastPathFormatter        string `toml:"podcast_path_formatter"`
	VideoPathFormatter          string `toml:"video_path_formatter"`
	MediaFormat                 string `toml:"media_format"`
	RawMediaDownload            bool   `toml:"raw_media_download"`
	MaxPathLength               int    `toml:"max_path_length"`
	IllegalCharacterReplacement string `toml:"illegal_character_replacement"`
	OverwriteExistingMetadata   bool   `toml:"overwrite_existing_metadata"`
	EmbedMetadata               bool   `toml:"embed_metadata"`
	EmbedThumbnail              bool   `toml:"embed_thumbnail"`
	DownloadLyrics              bool   `toml:"download_lyrics"`
	EmbedLyrics                 bool   `toml:"embed_lyrics"`
	CreateM3U                   bool   `toml:"create_m3u"`
	M3UNameFormatter            string `toml:"m3u_name_formatter"`
	M3UFormat                   string `toml:"m3u_format"`
	FFmpegPath                  string `toml:"ffmpeg_path"`
	YtDlpPath                   string `toml:"ytdlp_path"`
}

// Account is one login for a media service.
type Account struct {
	Service string `toml:"service"`
	Name    string `toml:"name"`
	UUID    string `toml:"uuid"`
	Token   string `toml:"token"`
	Active  bool   `toml:"active"`
}

// AccountOptions tunes account selection.
type AccountOptions struct {
	Rotate bool `toml:"rotate"`
}

// History configures the SQLite download archive.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Downloads      bool   `toml:"downloads"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for riptide.
//
// Configuration sections by subsystem:
//   - Paths: download root, state/log directories and API bind address
//   - Workers: worker counts, polling, retry and pacing intervals
//   - Output: path templates, media format and post-processing toggles
//   - Accounts: per-service logins handed to collaborators
//   - History: optional SQLite archive of completed downloads
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths          Paths          `toml:"paths"`
	Workers        Workers        `toml:"workers"`
	Output         Output         `toml:"output"`
	Accounts       []Account      `toml:"accounts"`
	AccountOptions AccountOptions `toml:"accounts_opts"`
	History        History        `toml:"history"`
	Logging        Logging        `toml:"logging"`
	Notifications  Notifications  `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("riptide.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadRoot, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && c.History.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// SocketPath is the unix socket the daemon serves IPC on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "riptide.sock")
}

// LockPath is the flock file guarding the single daemon instance.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "riptide.lock")
}

// PIDPath holds the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "riptide.pid")
}

// DaemonLogPath points at the current daemon run's log file.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "riptide.log")
}

// FFmpegBinary returns the ffmpeg executable name or configured path.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Output.FFmpegPath); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// YtDlpBinary returns the yt-dlp executable name or configured path.
func (c *Config) YtDlpBinary() string {
	if bin := strings.TrimSpace(c.Output.YtDlpPath); bin != "" {
		return bin
	}
	return "yt-dlp"
}

// PollInterval is how long an idle download worker waits before claiming again.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workers.PollIntervalMS) * time.Millisecond
}

// IdleBackoff is how long queue-fill workers sleep when nothing is pending.
func (c *Config) IdleBackoff() time.Duration {
	return time.Duration(c.Workers.IdleClaimBackoffMS) * time.Millisecond
}

// RetryInterval is the retry sweep period. Zero disables the sweeper.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Workers.RetryIntervalSeconds) * time.Second
}

// DownloadDelay is the pause each worker takes after finishing an item.
func (c *Config) DownloadDelay() time.Duration {
	return time.Duration(c.Workers.DownloadDelaySeconds) * time.Second
}

// ActiveAccounts returns the enabled accounts for service, in configured order.
func (c *Config) ActiveAccounts(service string) []Account {
	var out []Account
	for _, acct := range c.Accounts {
		if acct.Active && strings.EqualFold(acct.Service, service) {
			out = append(out, acct)
		}
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML, masking secrets.
func (c *Config) Encode() ([]byte, error) {
	masked := *c
	if masked.Paths.APIToken != "" {
		masked.Paths.APIToken = "********"
	}
	masked.Accounts = make([]Account, len(c.Accounts))
	for i, acct := range c.Accounts {
		if acct.Token != "" {
			acct.Token = "********"
		}
		masked.Accounts[i] = acct
	}
	return toml.Marshal(masked)
}
