// Package textutil turns free-form metadata (titles, artist names, playlist
// names) into strings that are safe to use as path segments.
package textutil
