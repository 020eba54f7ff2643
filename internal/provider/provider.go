// Package provider defines the collaborator contracts a streaming service
// implements to take part in the download pipeline, plus the service-keyed
// registry the workers consult.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"riptide/internal/accounts"
	"riptide/internal/queue"
)

// Metadata describes one downloadable item as reported by its service.
type Metadata struct {
	Title        string
	Artists      []string
	Album        string
	AlbumArtists []string
	TrackNumber  int
	DiscNumber   int
	ReleaseYear  string
	Duration     time.Duration
	Genre        []string
	IsPlayable   bool
	ImageURL     string
	ItemURL      string
	SourceFormat string
	Explicit     bool
	Lyrics       string
	Extra        map[string]string
}

// ArtistString joins the track artists for display and tagging.
func (m Metadata) ArtistString() string {
	return strings.Join(m.Artists, ", ")
}

// TransferRequest carries everything a Transferer needs to write one item.
type TransferRequest struct {
	Service  string
	ItemType string
	ItemID   string
	Token    accounts.Token
	Metadata Metadata
	// TempPath is the file the transfer must write. The worker moves it into
	// place once the transfer returns nil.
	TempPath string
}

// Fetcher resolves item metadata.
type Fetcher interface {
	FetchMetadata(ctx context.Context, token accounts.Token, itemType, itemID string) (Metadata, error)
}

// Transferer writes media bytes to req.TempPath, reporting percent progress.
// Implementations must check ctx between chunks and return ErrCancelled once
// it is done.
type Transferer interface {
	Transfer(ctx context.Context, req TransferRequest, onProgress func(percent int)) error
}

// LyricsProvider is optionally implemented by collaborators with lyric sources.
type LyricsProvider interface {
	Lyrics(ctx context.Context, token accounts.Token, itemType, itemID string, meta Metadata) (string, error)
}

// Resolver expands a user supplied URL into pending entries.
type Resolver interface {
	Match(url string) bool
	Resolve(ctx context.Context, token accounts.Token, url string) ([]queue.PendingEntry, error)
}

// Collaborator is the minimum a service must implement to download items.
type Collaborator interface {
	Fetcher
	Transferer
}

type resolverEntry struct {
	service  string
	resolver Resolver
}

// Registry maps service names to collaborators and keeps resolvers in
// registration order.
type Registry struct {
	mu            sync.RWMutex
	collaborators map[string]Collaborator
	resolvers     []resolverEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{collaborators: make(map[string]Collaborator)}
}

// Register adds a collaborator for service. A collaborator that also
// implements Resolver is registered as one.
func (r *Registry) Register(service string, c Collaborator) error {
	service = normalizeService(service)
	if service == "" {
		return fmt.Errorf("register collaborator: service name required")
	}
	if c == nil {
		return fmt.Errorf("register collaborator %q: nil collaborator", service)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.collaborators[service]; exists {
		return fmt.Errorf("register collaborator %q: already registered", service)
	}
	r.collaborators[service] = c
	if resolver, ok := c.(Resolver); ok {
		r.resolvers = append(r.resolvers, resolverEntry{service: service, resolver: resolver})
	}
	return nil
}

// RegisterResolver adds a standalone resolver whose entries belong to service.
func (r *Registry) RegisterResolver(service string, resolver Resolver) {
	if resolver == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers = append(r.resolvers, resolverEntry{service: normalizeService(service), resolver: resolver})
}

// Lookup returns the collaborator for service.
func (r *Registry) Lookup(service string) (Collaborator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collaborators[normalizeService(service)]
	return c, ok
}

// ResolverFor returns the first resolver, in registration order, that matches url.
func (r *Registry) ResolverFor(url string) (string, Resolver, bool) {
	url = strings.TrimSpace(url)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.resolvers {
		if entry.resolver.Match(url) {
			return entry.service, entry.resolver, true
		}
	}
	return "", nil, false
}

// Services lists registered collaborator names in sorted order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.collaborators))
	for name := range r.collaborators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeService(service string) string {
	return strings.ToLower(strings.TrimSpace(service))
}
