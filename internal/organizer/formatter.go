package organizer

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"riptide/internal/config"
	"riptide/internal/provider"
	"riptide/internal/queue"
	"riptide/internal/textutil"
)

// ErrPathTooLong reports that no stem fits under the configured path length.
var ErrPathTooLong = errors.New("path exceeds maximum length")

// TempPrefix marks in-flight downloads next to their final location.
const TempPrefix = ".riptide-"

// TempSuffix ends the name of an in-flight download.
const TempSuffix = ".part"

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Formatter expands path templates for queue items.
type Formatter struct {
	root      string
	track     string
	podcast   string
	video     string
	m3uName   string
	m3uExt    string
	maxLength int
	sanitizer textutil.Sanitizer
}

// NewFormatter builds a formatter from the output section of cfg.
func NewFormatter(cfg *config.Config) *Formatter {
	return &Formatter{
		root:      cfg.Paths.DownloadRoot,
		track:     cfg.Output.TrackPathFormatter,
		podcast:   cfg.Output.PodcastPathFormatter,
		video:     cfg.Output.VideoPathFormatter,
		m3uName:   cfg.Output.M3UNameFormatter,
		m3uExt:    cfg.Output.M3UFormat,
		maxLength: cfg.Output.MaxPathLength,
		sanitizer: textutil.NewSanitizer(cfg.Output.IllegalCharacterReplacement),
	}
}

// Template returns the path template used for itemType.
func (f *Formatter) Template(itemType string) string {
	switch strings.ToLower(strings.TrimSpace(itemType)) {
	case "podcast_episode", "podcast":
		return f.podcast
	case "episode", "movie", "video":
		return f.video
	default:
		return f.track
	}
}

// Path returns the absolute destination for item with extension ext.
func (f *Formatter) Path(meta provider.Metadata, item queue.Item, ext string) (string, error) {
	values := Placeholders(meta, item)
	rel := f.expand(f.Template(item.Type), values)
	if rel == "" {
		rel = f.sanitizer.Segment(firstNonEmpty(meta.Title, item.ItemID, item.LocalID))
	}
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return "", fmt.Errorf("format path for %s: empty extension", item.LocalID)
	}
	full := filepath.Join(f.root, rel) + "." + ext
	return truncate(full, f.maxLength, SiblingReserve)
}

// M3UPath returns the playlist file for item under the download root.
func (f *Formatter) M3UPath(item queue.Item) string {
	values := map[string]string{
		"playlist_name": item.PlaylistName,
		"playlist_by":   item.PlaylistBy,
		"service":       item.Service,
	}
	name := f.sanitizer.Segment(f.expand(f.m3uName, values))
	if name == "" {
		name = "playlist"
	}
	return filepath.Join(f.root, name+"."+f.m3uExt)
}

// expand substitutes sanitized values into template and returns a cleaned
// relative path. Empty segments are dropped.
func (f *Formatter) expand(template string, values map[string]string) string {
	segments := strings.Split(filepath.ToSlash(template), "/")
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		expanded := placeholderPattern.ReplaceAllStringFunc(segment, func(match string) string {
			key := match[1 : len(match)-1]
			return f.sanitizer.Segment(values[key])
		})
		expanded = strings.TrimLeft(strings.TrimSpace(expanded), " .-")
		expanded = strings.TrimRight(clip(expanded, MaxNameBytes), " .")
		if expanded == "" {
			continue
		}
		out = append(out, expanded)
	}
	return filepath.Join(out...)
}

// Placeholders returns the raw template values for meta and item. Keys from
// meta.Extra are included unless they shadow a built-in key.
func Placeholders(meta provider.Metadata, item queue.Item) map[string]string {
	values := map[string]string{
		"service":         item.Service,
		"service_id":      item.ItemID,
		"name":            firstNonEmpty(meta.Title, item.Name),
		"artist":          firstOf(meta.Artists),
		"artists":         firstNonEmpty(meta.ArtistString(), item.By),
		"album":           meta.Album,
		"album_artist":    firstNonEmpty(firstOf(meta.AlbumArtists), firstOf(meta.Artists)),
		"track_number":    padded(meta.TrackNumber),
		"disc_number":     positive(meta.DiscNumber),
		"year":            meta.ReleaseYear,
		"genre":           strings.Join(meta.Genre, ", "),
		"explicit":        "",
		"playlist_name":   item.PlaylistName,
		"playlist_by":     item.PlaylistBy,
		"playlist_number": item.PlaylistNumber,
	}
	if meta.Explicit {
		values["explicit"] = "[E]"
	}
	for key, value := range meta.Extra {
		if _, exists := values[key]; !exists {
			values[key] = value
		}
	}
	return values
}

// TempPath returns the in-flight file used while downloading to finalPath.
func TempPath(finalPath string) string {
	return filepath.Join(filepath.Dir(finalPath), TempPrefix+filepath.Base(finalPath)+TempSuffix)
}

func padded(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("%02d", n)
}

func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func firstOf(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	return firstOf(values)
}
