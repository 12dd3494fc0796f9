// Package discovery searches a remote music catalog and brings results into
// the library, falling back to cached catalog rows when offline.
package discovery

import (
	"context"
	"errors"
	"sort"
	"sync"

	"genesis/model"
)

var (
	ErrUpstreamUnavailable = errors.New("catalog unavailable")
	ErrTrackNotFound       = errors.New("catalog track not found")
	ErrNoAudio             = errors.New("catalog track has no audio")
	ErrAlreadyInLibrary    = errors.New("track already in library")
)

// Source is a remote catalog.
type Source interface {
	Name() string
	Search(ctx context.Context, query string) ([]model.TrackDescriptor, error)
	// Lookup returns nil, nil when the catalog has no track with id.
	Lookup(ctx context.Context, id string) (*model.TrackDescriptor, error)
}

// Sources holds the registered catalogs.
type Sources struct {
	mu       sync.RWMutex
	sources  map[string]Source
	fallback string
}

func NewSources() *Sources {
	return &Sources{sources: make(map[string]Source)}
}

// Register adds s under its name. The first source registered is the default.
func (m *Sources) Register(s Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[s.Name()] = s
	if m.fallback == "" {
		m.fallback = s.Name()
	}
}

// Get returns the named source, or the default for an empty name.
func (m *Sources) Get(name string) (Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = m.fallback
	}
	s, ok := m.sources[name]
	return s, ok
}

// Default returns the first registered source, or nil.
func (m *Sources) Default() Source {
	s, _ := m.Get("")
	return s
}

// Names lists registered sources alphabetically.
func (m *Sources) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
