// Package deps reports whether the external binaries riptide shells out to
// are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"riptide/internal/config"
)

// Requirement defines an external dependency riptide relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the binaries needed by the configured output settings.
// ffmpeg is mandatory unless every download is kept in its source format with
// no tagging.
func Requirements(cfg *config.Config) []Requirement {
	ffmpegOptional := cfg.Output.RawMediaDownload && !cfg.Output.EmbedMetadata && !cfg.Output.EmbedThumbnail
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Converts media and embeds tags and artwork",
			Optional:    ffmpegOptional,
		},
		{
			Name:        "yt-dlp",
			Command:     cfg.YtDlpBinary(),
			Description: "Resolves and downloads media for the ytdlp service",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if resolved, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
				status.Command = resolved
			}
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable, non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
