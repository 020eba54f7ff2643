package postprocess

import (
	"strconv"
	"strings"

	"riptide/internal/provider"
	"riptide/internal/queue"
)

// TagsFromMetadata builds the tag set written by EmbedMetadata. Lyrics are
// included only when embedLyrics is set.
func TagsFromMetadata(meta provider.Metadata, item queue.Item, lyrics string, embedLyrics bool) Tags {
	tags := Tags{
		"title":        meta.Title,
		"artist":       meta.ArtistString(),
		"album":        meta.Album,
		"album_artist": strings.Join(meta.AlbumArtists, ", "),
		"date":         meta.ReleaseYear,
		"genre":        strings.Join(meta.Genre, ", "),
		"comment":      meta.ItemURL,
	}
	if meta.TrackNumber > 0 {
		tags["track"] = strconv.Itoa(meta.TrackNumber)
	}
	if meta.DiscNumber > 0 {
		tags["disc"] = strconv.Itoa(meta.DiscNumber)
	}
	if item.IsPlaylistItem() && item.PlaylistName != "" {
		tags["grouping"] = item.PlaylistName
	}
	if meta.Explicit {
		tags["itunesadvisory"] = "1"
	}
	if embedLyrics && strings.TrimSpace(lyrics) != "" {
		tags["lyrics"] = lyrics
	}
	return tags
}
