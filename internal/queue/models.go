package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a queue item. Values are user-facing labels.
type Status string

const (
	StatusWaiting           Status = "Waiting"
	StatusDownloading       Status = "Downloading"
	StatusConverting        Status = "Converting"
	StatusEmbeddingMetadata Status = "Embedding Metadata"
	StatusSettingThumbnail  Status = "Setting Thumbnail"
	StatusGettingLyrics     Status = "Getting Lyrics"
	StatusAddingToM3U       Status = "Adding To M3U"
	StatusDownloaded        Status = "Downloaded"
	StatusAlreadyExists     Status = "Already Exists"
	StatusUnavailable       Status = "Unavailable"
	StatusFailed            Status = "Failed"
	StatusCancelled         Status = "Cancelled"
	StatusDeleted           Status = "Deleted"
)

var allStatuses = []Status{
	StatusWaiting,
	StatusDownloading,
	StatusConverting,
	StatusEmbeddingMetadata,
	StatusSettingThumbnail,
	StatusGettingLyrics,
	StatusAddingToM3U,
	StatusDownloaded,
	StatusAlreadyExists,
	StatusUnavailable,
	StatusFailed,
	StatusCancelled,
	StatusDeleted,
}

var statusLookup = func() map[string]Status {
	set := make(map[string]Status, len(allStatuses))
	for _, status := range allStatuses {
		set[normalizeStatusKey(string(status))] = status
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusDownloaded:    {},
	StatusAlreadyExists: {},
	StatusUnavailable:   {},
	StatusFailed:        {},
	StatusCancelled:     {},
	StatusDeleted:       {},
}

// completedStatuses are cleared by ClearCompleted.
var completedStatuses = map[Status]struct{}{
	StatusDownloaded:    {},
	StatusAlreadyExists: {},
	StatusCancelled:     {},
	StatusDeleted:       {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts user input ("already-exists", "failed") into a known Status.
func ParseStatus(value string) (Status, bool) {
	key := normalizeStatusKey(value)
	if key == "" {
		return "", false
	}
	status, ok := statusLookup[key]
	return status, ok
}

func normalizeStatusKey(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(value)
}

// IsTerminal reports whether no worker will act on the status without external intervention.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsProcessing reports whether the status reflects an in-flight download pass.
func (s Status) IsProcessing() bool {
	return s != StatusWaiting && !s.IsTerminal() && s != ""
}

// Item is one unit of media to download.
type Item struct {
	LocalID        string    `json:"local_id"`
	Service        string    `json:"item_service"`
	Type           string    `json:"item_type"`
	ItemID         string    `json:"item_id"`
	Status         Status    `json:"item_status"`
	Available      bool      `json:"available"`
	ParentCategory string    `json:"parent_category"`
	PlaylistName   string    `json:"playlist_name,omitempty"`
	PlaylistBy     string    `json:"playlist_by,omitempty"`
	PlaylistNumber string    `json:"playlist_number,omitempty"`
	FilePath       string    `json:"file_path,omitempty"`
	Progress       int       `json:"progress"`
	Name           string    `json:"item_name,omitempty"`
	By             string    `json:"item_by,omitempty"`
	URL            string    `json:"item_url,omitempty"`
	Thumbnail      string    `json:"item_thumbnail,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsPlaylistItem reports whether the item belongs to a playlist grouping.
func (i Item) IsPlaylistItem() bool {
	return strings.EqualFold(strings.TrimSpace(i.ParentCategory), "playlist")
}

// SetProgress updates status and percent together, clamping percent to 0-100.
func (i *Item) SetProgress(status Status, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	i.Status = status
	i.Progress = percent
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.Progress = 0
	i.ErrorMessage = strings.TrimSpace(message)
}

// PendingEntry carries just enough to fetch metadata for an item that has not
// been queued yet.
type PendingEntry struct {
	LocalID        string `json:"local_id"`
	Service        string `json:"item_service"`
	Type           string `json:"item_type"`
	ItemID         string `json:"item_id"`
	ParentCategory string `json:"parent_category"`
	PlaylistName   string `json:"playlist_name,omitempty"`
	PlaylistBy     string `json:"playlist_by,omitempty"`
	PlaylistNumber string `json:"playlist_number,omitempty"`
	URL            string `json:"item_url,omitempty"`
}

var localIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("riptide.local-id"))

// LocalID derives the stable dedup key for a service item.
func LocalID(service, itemID string) string {
	key := strings.ToLower(strings.TrimSpace(service)) + ":" + strings.TrimSpace(itemID)
	return uuid.NewSHA1(localIDNamespace, []byte(key)).String()
}
