// Package library holds the authoritative in-memory set of tracks, mirrored
// to the track store, and owns every track's resource handles.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"genesis/core/lyrics"
	"genesis/core/metadata"
	"genesis/core/notify"
	"genesis/core/resource"
	"genesis/logger"
	"genesis/model"
	"genesis/repository"
	"genesis/storage"

	"github.com/samber/lo"
)

var (
	ErrNotFound  = errors.New("track not found")
	ErrDuplicate = errors.New("track already in library")
	ErrNoMedia   = errors.New("track has no media")
)

// EventKind says what happened to the tracks of an Event.
type EventKind int

const (
	Added EventKind = iota
	Removed
	Updated
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "updated"
	}
}

// Event is delivered to subscribers after a mutation has been applied.
type Event struct {
	Kind   EventKind
	Tracks []model.Track
}

// Options wires a Registry.
type Options struct {
	Store    repository.TrackRepository
	Blobs    storage.BlobStore
	Handles  *resource.Registry
	Resolver metadata.Resolver
	Notifier notify.Notifier
}

// owned are the handles a track holds in the resource registry.
type owned struct {
	media resource.Handle
	cover resource.Handle
}

// Registry is safe for concurrent use. No lock is held across store, blob or
// resolver calls; every mutation re-validates after them.
type Registry struct {
	store    repository.TrackRepository
	blobs    storage.BlobStore
	handles  *resource.Registry
	resolver metadata.Resolver
	notifier notify.Notifier

	mu      sync.RWMutex
	order   []string
	tracks  map[string]*model.Track
	owned   map[string]owned
	pending map[string]bool

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// New creates an empty Registry. Call Hydrate to load the stored library.
func New(opts Options) *Registry {
	if opts.Handles == nil {
		opts.Handles = resource.NewRegistry()
	}
	if opts.Resolver == nil {
		opts.Resolver = metadata.NewResolver()
	}
	return &Registry{
		store:    opts.Store,
		blobs:    opts.Blobs,
		handles:  opts.Handles,
		resolver: opts.Resolver,
		notifier: notify.OrLog(opts.Notifier),
		tracks:   make(map[string]*model.Track),
		owned:    make(map[string]owned),
		pending:  make(map[string]bool),
		subs:     make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every later Event and returns its cancel func.
func (r *Registry) Subscribe(fn func(Event)) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) emit(kind EventKind, tracks ...model.Track) {
	if len(tracks) == 0 {
		return
	}
	r.subMu.Lock()
	fns := lo.Values(r.subs)
	r.subMu.Unlock()

	ev := Event{Kind: kind, Tracks: tracks}
	for _, fn := range fns {
		fn(ev)
	}
}

// Hydrate loads every downloaded track from the store. Catalog rows cached
// by discovery searches (not downloaded) are left to the offline search.
func (r *Registry) Hydrate(ctx context.Context) error {
	stored, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored tracks: %w", err)
	}

	var loaded []model.Track
	r.mu.Lock()
	for _, st := range stored {
		if !st.Downloaded {
			continue
		}
		if _, exists := r.tracks[st.ID]; exists {
			continue
		}
		t := *st
		t.SyncedLyrics = lyrics.ParseLRC(t.LyricsRaw)
		r.bindHandles(&t)
		r.insert(&t)
		loaded = append(loaded, t.Clone())
	}
	r.mu.Unlock()

	logger.Info("library hydrated", logger.Int("tracks", len(loaded)))
	r.emit(Added, loaded...)
	return nil
}

// bindHandles creates the handles of a locally stored track. Caller holds mu.
func (r *Registry) bindHandles(t *model.Track) {
	var h owned
	if t.MediaKey != "" {
		h.media = r.handles.Create(resource.Object{Store: r.blobs, Key: t.MediaKey}, t.MediaType)
		t.MediaRef = string(h.media)
	}
	if t.CoverKey != "" {
		h.cover = r.handles.Create(resource.Object{Store: r.blobs, Key: t.CoverKey}, t.CoverType)
		t.CoverRef = string(h.cover)
	} else if t.AlbumArtURL != "" {
		t.CoverRef = t.AlbumArtURL
	}
	if h.media != "" || h.cover != "" {
		r.owned[t.ID] = h
	}
}

// insert appends t. Caller holds mu.
func (r *Registry) insert(t *model.Track) {
	r.tracks[t.ID] = t
	r.order = append(r.order, t.ID)
}

// normalize builds a Track from a descriptor with display defaults applied.
func normalize(desc *model.TrackDescriptor) model.Track {
	t := model.Track{
		ID:             desc.ID,
		Title:          strings.TrimSpace(desc.Title),
		Artist:         strings.TrimSpace(desc.Artist),
		Album:          strings.TrimSpace(desc.Album),
		Duration:       desc.Duration,
		AudioURL:       desc.AudioURL,
		AlbumArtURL:    desc.AlbumArt,
		Tags:           desc.Tags,
		Bio:            desc.Bio,
		LyricsURL:      desc.LyricsURL,
		MBID:           desc.MBID,
		SimilarArtists: desc.SimilarArtists,
		LyricsRaw:      desc.Lyrics,
	}
	if t.Title == "" {
		t.Title = model.UnknownTitle
	}
	if t.Artist == "" {
		t.Artist = model.UnknownArtist
	}
	if t.Duration < 0 {
		t.Duration = 0
	}
	t.SyncedLyrics = lyrics.ParseLRC(t.LyricsRaw)
	return t
}

func (r *Registry) reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tracks[id]; exists || r.pending[id] {
		return ErrDuplicate
	}
	r.pending[id] = true
	return nil
}

func (r *Registry) unreserve(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Add stores raw media (and any embedded cover) for desc, persists the track
// and appends it to the library.
func (r *Registry) Add(ctx context.Context, desc *model.TrackDescriptor, raw *metadata.RawMedia) (model.Track, error) {
	if desc == nil || desc.ID == "" {
		return model.Track{}, fmt.Errorf("descriptor without id")
	}
	if raw == nil || len(raw.Data) == 0 {
		return model.Track{}, ErrNoMedia
	}
	if err := r.reserve(desc.ID); err != nil {
		return model.Track{}, err
	}
	defer r.unreserve(desc.ID)

	t := normalize(desc)
	t.Downloaded = true
	t.MediaKey = storage.MediaKey(t.ID)
	t.MediaType = metadata.ContentType(*raw)

	if err := r.blobs.Put(ctx, t.MediaKey, raw.Data, t.MediaType); err != nil {
		return model.Track{}, fmt.Errorf("failed to store media: %w", err)
	}
	if len(desc.Cover) > 0 {
		key := storage.CoverKey(t.ID)
		if err := r.blobs.Put(ctx, key, desc.Cover, desc.CoverType); err != nil {
			logger.Warn("failed to store cover", logger.String("track", t.ID), logger.ErrorField(err))
		} else {
			t.CoverKey = key
			t.CoverType = desc.CoverType
		}
	}

	if err := r.store.Put(ctx, &t); err != nil {
		r.removeBlobs(ctx, &t)
		return model.Track{}, fmt.Errorf("failed to persist track: %w", err)
	}

	r.mu.Lock()
	r.bindHandles(&t)
	r.insert(&t)
	added := t.Clone()
	r.mu.Unlock()

	r.emit(Added, added)
	return added, nil
}

// AddFiles resolves and adds a batch of files, reporting the outcome once.
func (r *Registry) AddFiles(ctx context.Context, files []metadata.RawMedia) []model.Track {
	var added []model.Track
	for i := range files {
		f := files[i]
		desc, err := r.resolver.Resolve(ctx, f)
		if err != nil {
			if !errors.Is(err, metadata.ErrUnsupported) {
				logger.Warn("metadata resolution failed", logger.String("file", f.Name), logger.ErrorField(err))
			}
			continue
		}
		t, err := r.Add(ctx, desc, &f)
		if err != nil {
			logger.Warn("failed to add track", logger.String("file", f.Name), logger.ErrorField(err))
			continue
		}
		added = append(added, t)
	}

	if len(added) == 0 {
		r.notifier.Notify("No valid audio files found.")
	} else {
		r.notifier.Notify(fmt.Sprintf("Added %d track(s).", len(added)))
	}
	return added
}

// AddRemote registers a URL-backed track for this session only. It is never
// written to the store.
func (r *Registry) AddRemote(desc *model.TrackDescriptor) (model.Track, error) {
	if desc == nil || desc.ID == "" || desc.AudioURL == "" {
		return model.Track{}, ErrNoMedia
	}
	t := normalize(desc)
	t.IsRemote = true
	t.MediaRef = desc.AudioURL
	t.CoverRef = desc.AlbumArt

	r.mu.Lock()
	if _, exists := r.tracks[t.ID]; exists || r.pending[t.ID] {
		r.mu.Unlock()
		return model.Track{}, ErrDuplicate
	}
	r.insert(&t)
	added := t.Clone()
	r.mu.Unlock()

	r.emit(Added, added)
	return added, nil
}

func (r *Registry) removeBlobs(ctx context.Context, t *model.Track) {
	for _, key := range []string{t.MediaKey, t.CoverKey} {
		if key == "" {
			continue
		}
		if err := r.blobs.Remove(ctx, key); err != nil {
			logger.Warn("failed to remove blob", logger.String("key", key), logger.ErrorField(err))
		}
	}
}

func (r *Registry) release(h owned) {
	r.handles.Release(h.media)
	r.handles.Release(h.cover)
}

// Remove drops a track, deletes it from the store unless it is remote and
// releases its handles after subscribers have been told.
func (r *Registry) Remove(ctx context.Context, id string) (model.Track, error) {
	r.mu.Lock()
	t, ok := r.tracks[id]
	if !ok {
		r.mu.Unlock()
		return model.Track{}, ErrNotFound
	}
	delete(r.tracks, id)
	r.order = lo.Without(r.order, id)
	h, hasHandles := r.owned[id]
	delete(r.owned, id)
	r.mu.Unlock()

	if hasHandles {
		defer r.release(h)
	}

	if !t.IsRemote {
		if err := r.store.Delete(ctx, id); err != nil {
			logger.Error("failed to delete track from store", logger.String("track", id), logger.ErrorField(err))
		}
		r.removeBlobs(ctx, t)
	}

	removed := t.Clone()
	r.emit(Removed, removed)
	return removed, nil
}

// RemoveMany removes every id and reports how many were removed.
func (r *Registry) RemoveMany(ctx context.Context, ids []string) int {
	n := 0
	for _, id := range lo.Uniq(ids) {
		if _, err := r.Remove(ctx, id); err == nil {
			n++
		}
	}
	if n == 0 {
		r.notifier.Notify("No tracks were removed.")
		return 0
	}
	r.notifier.Notify(fmt.Sprintf("Removed %d track(s).", n))
	return n
}

// Changes lists the editable fields; nil means unchanged.
type Changes struct {
	Title  *string `json:"title,omitempty"`
	Artist *string `json:"artist,omitempty"`
	Album  *string `json:"album,omitempty"`
	Lyrics *string `json:"lyrics,omitempty"`
}

// Update edits a track's metadata in place and persists it.
func (r *Registry) Update(ctx context.Context, id string, c Changes) (model.Track, error) {
	r.mu.Lock()
	t, ok := r.tracks[id]
	if !ok {
		r.mu.Unlock()
		return model.Track{}, ErrNotFound
	}
	if c.Title != nil {
		if title := strings.TrimSpace(*c.Title); title != "" {
			t.Title = title
		}
	}
	if c.Artist != nil {
		t.Artist = strings.TrimSpace(*c.Artist)
		if t.Artist == "" {
			t.Artist = model.UnknownArtist
		}
	}
	if c.Album != nil {
		t.Album = strings.TrimSpace(*c.Album)
	}
	if c.Lyrics != nil && *c.Lyrics != t.LyricsRaw {
		t.LyricsRaw = *c.Lyrics
		t.SyncedLyrics = lyrics.ParseLRC(t.LyricsRaw)
	}
	updated := t.Clone()
	r.mu.Unlock()

	if !updated.IsRemote {
		persisted := updated
		if err := r.store.Put(ctx, &persisted); err != nil {
			logger.Error("failed to persist track update", logger.String("track", id), logger.ErrorField(err))
		}

		// Remove may have run while the row was being written.
		r.mu.RLock()
		current, ok := r.tracks[id]
		var replaced model.Track
		if ok && current != t {
			replaced = current.Clone()
		}
		r.mu.RUnlock()
		switch {
		case !ok:
			if err := r.store.Delete(ctx, id); err != nil {
				logger.Error("failed to delete removed track from store", logger.String("track", id), logger.ErrorField(err))
			}
			return model.Track{}, ErrNotFound
		case current != t:
			if err := r.store.Put(ctx, &replaced); err != nil {
				logger.Error("failed to restore replaced track", logger.String("track", id), logger.ErrorField(err))
			}
			return model.Track{}, ErrNotFound
		}
	}

	r.emit(Updated, updated)
	return updated, nil
}

// Get returns a copy of the track with id.
func (r *Registry) Get(id string) (model.Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracks[id]
	if !ok {
		return model.Track{}, false
	}
	return t.Clone(), true
}

// Has reports whether id is in the library.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tracks[id]
	return ok
}

// List returns copies of every track in insertion order.
func (r *Registry) List() []model.Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.order, func(id string, _ int) model.Track {
		return r.tracks[id].Clone()
	})
}

// Len returns the number of tracks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Search matches query against title, artist and album, case-insensitively.
func (r *Registry) Search(query string) []model.Track {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r.List()
	}
	return lo.Filter(r.List(), func(t model.Track, _ int) bool {
		return strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Artist), q) ||
			strings.Contains(strings.ToLower(t.Album), q)
	})
}
