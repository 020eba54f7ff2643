package config

const (
	defaultConfigPath           = "~/.config/riptide/config.toml"
	defaultDownloadRoot         = "~/Music/riptide"
	defaultStateDir             = "~/.local/share/riptide"
	defaultLogDir               = "~/.local/share/riptide/logs"
	defaultHistoryPath          = "~/.local/share/riptide/history.db"
	defaultAPIBind              = "127.0.0.1:7489"
	defaultDownloadWorkers      = 1
	defaultQueueWorkers         = 1
	defaultPollIntervalMS       = 200
	defaultIdleClaimBackoffMS   = 1000
	defaultRetryIntervalSeconds = 300
	defaultTrackPathFormatter   = "{album_artist}/{album}/{track_number}. {name}"
	defaultPodcastPathFormatter = "{album}/{name}"
	defaultVideoPathFormatter   = "{artist}/{name}"
	defaultMediaFormat          = "mp3"
	defaultMaxPathLength        = 260
	defaultIllegalCharReplace   = "-"
	defaultM3UNameFormatter     = "{playlist_name} by {playlist_by}"
	defaultM3UFormat            = "m3u8"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultNotifyRequestTimeout = 10
)

var supportedMediaFormats = map[string]struct{}{
	"mp3":  {},
	"m4a":  {},
	"flac": {},
	"ogg":  {},
	"opus": {},
	"wav":  {},
	"mp4":  {},
	"mkv":  {},
	"webm": {},
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadRoot: defaultDownloadRoot,
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Workers: Workers{
			DownloadWorkers:      defaultDownloadWorkers,
			QueueWorkers:         defaultQueueWorkers,
			PollIntervalMS:       defaultPollIntervalMS,
			IdleClaimBackoffMS:   defaultIdleClaimBackoffMS,
			RetryIntervalSeconds: defaultRetryIntervalSeconds,
		},
		Output: Output{
			TrackPathFormatter:          defaultTrackPathFormatter,
			PodcastPathFormatter:        defaultPodcastPathFormatter,
			VideoPathFormatter:          defaultVideoPathFormatter,
			MediaFormat:                 defaultMediaFormat,
			MaxPathLength:               defaultMaxPathLength,
			IllegalCharacterReplacement: defaultIllegalCharReplace,
			EmbedMetadata:               true,
			EmbedThumbnail:              true,
			M3UNameFormatter:            defaultM3UNameFormatter,
			M3UFormat:                   defaultM3UFormat,
		},
		History: History{
			Path: defaultHistoryPath,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Downloads:      true,
			Errors:         true,
		},
	}
}
