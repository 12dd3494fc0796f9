// Package resource manages handles to locally owned media and artwork.
//
// A handle is a URL path under Prefix that the HTTP server resolves back to
// its bytes. Handles must be released exactly once by whoever created them.
package resource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"genesis/logger"
	"genesis/storage"

	"github.com/google/uuid"
)

// Prefix is the URL path under which handles are served.
const Prefix = "/blob/"

// ErrReleased is returned when opening an unknown or released handle.
var ErrReleased = errors.New("resource handle released")

// Handle is a playable reference to local bytes.
type Handle string

// ID returns the registry key of h.
func (h Handle) ID() string {
	return strings.TrimPrefix(string(h), Prefix)
}

// IsHandle reports whether ref was issued by a Registry.
func IsHandle(ref string) bool {
	return strings.HasPrefix(ref, Prefix)
}

// Source produces a fresh reader over the bytes behind a handle.
type Source interface {
	Open(ctx context.Context) (io.ReadSeekCloser, error)
}

// Bytes is an in-memory Source.
type Bytes []byte

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

func (b Bytes) Open(context.Context) (io.ReadSeekCloser, error) {
	return nopCloser{bytes.NewReader(b)}, nil
}

// Object is a Source reading one blob store key.
type Object struct {
	Store storage.BlobStore
	Key   string
}

func (o Object) Open(ctx context.Context) (io.ReadSeekCloser, error) {
	r, _, err := o.Store.Open(ctx, o.Key)
	return r, err
}

type entry struct {
	src         Source
	contentType string
	created     time.Time
}

// Registry issues and resolves handles.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Create registers src and returns its handle.
func (r *Registry) Create(src Source, contentType string) Handle {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = &entry{src: src, contentType: contentType, created: time.Now()}
	r.mu.Unlock()
	return Handle(Prefix + id)
}

// Release drops h. Releasing an unknown or already released handle is a
// logged no-op and returns false.
func (r *Registry) Release(h Handle) bool {
	if h == "" {
		return false
	}
	r.mu.Lock()
	_, ok := r.entries[h.ID()]
	delete(r.entries, h.ID())
	r.mu.Unlock()

	if !ok {
		logger.Warn("release of unknown resource handle", logger.String("handle", string(h)))
	}
	return ok
}

// Open resolves a handle id to a reader, its content type and creation time.
func (r *Registry) Open(ctx context.Context, id string) (io.ReadSeekCloser, string, time.Time, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, "", time.Time{}, ErrReleased
	}

	rs, err := e.src.Open(ctx)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return rs, e.contentType, e.created, nil
}

// Live returns the number of unreleased handles.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
