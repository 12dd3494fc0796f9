// Package playlist manages the user's named playlists, persisted as one
// record in the key/value store.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"genesis/core/notify"
	"genesis/logger"
	"genesis/model"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrEmptyName    = errors.New("playlist name cannot be empty")
	ErrNotFound     = errors.New("playlist not found")
	ErrEmptyQueue   = errors.New("queue is empty")
	ErrStorageWrite = errors.New("failed to write playlists")
)

// Store loads and saves the whole playlists record.
type Store interface {
	Load(ctx context.Context) (map[string]*model.Playlist, error)
	Save(ctx context.Context, playlists map[string]*model.Playlist) error
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, title, message string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, title, message string) (bool, error) {
	return f(ctx, title, message)
}

// Registry is safe for concurrent use.
type Registry struct {
	store    Store
	notifier notify.Notifier
	now      func() time.Time

	mu        sync.Mutex
	playlists map[string]*model.Playlist
	lastStamp int64
}

func New(store Store, n notify.Notifier) *Registry {
	return &Registry{
		store:     store,
		notifier:  notify.OrLog(n),
		now:       time.Now,
		playlists: make(map[string]*model.Playlist),
	}
}

// Load replaces the in-memory playlists with the stored record.
func (r *Registry) Load(ctx context.Context) error {
	stored, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load playlists: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.playlists = stored
	for _, p := range stored {
		r.lastStamp = max(r.lastStamp, p.CreatedAt)
	}
	logger.Info("playlists loaded", logger.Int("count", len(stored)))
	return nil
}

// save writes the record. Caller holds mu.
func (r *Registry) save(ctx context.Context) {
	if err := r.store.Save(ctx, r.playlists); err != nil {
		logger.Error("playlist write failed", logger.ErrorField(fmt.Errorf("%w: %v", ErrStorageWrite, err)))
	}
}

// stamp returns a creation time strictly after every earlier one. Caller holds mu.
func (r *Registry) stamp() int64 {
	ms := r.now().UnixMilli()
	if ms <= r.lastStamp {
		ms = r.lastStamp + 1
	}
	r.lastStamp = ms
	return ms
}

func (r *Registry) create(name string, trackIDs []string) (*model.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		r.notifier.Notify("Playlist name cannot be empty.")
		return nil, ErrEmptyName
	}
	p := &model.Playlist{
		ID:        uuid.New().String(),
		Name:      name,
		TrackIDs:  lo.Uniq(append([]string{}, trackIDs...)),
		CreatedAt: r.stamp(),
	}
	r.playlists[p.ID] = p
	return p.Clone(), nil
}

// Create adds an empty playlist named name (trimmed).
func (r *Registry) Create(ctx context.Context, name string) (*model.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.create(name, nil)
	if err != nil {
		return nil, err
	}
	r.save(ctx)
	return p, nil
}

// CreateFromQueue saves trackIDs (the play queue, in order) as a new playlist.
func (r *Registry) CreateFromQueue(ctx context.Context, name string, trackIDs []string) (*model.Playlist, error) {
	if len(trackIDs) == 0 {
		r.notifier.Notify("The queue is empty. Add some tracks first!")
		return nil, ErrEmptyQueue
	}

	r.mu.Lock()
	p, err := r.create(name, trackIDs)
	if err == nil {
		r.save(ctx)
	}
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.notifier.Notify(fmt.Sprintf("Playlist %q created with %d tracks.", p.Name, len(trackIDs)))
	return p, nil
}

func (r *Registry) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[id]
	if !ok {
		return ErrNotFound
	}
	p.Name = name
	r.save(ctx)
	return nil
}

// Delete removes the playlist if c confirms. It reports whether it was deleted.
func (r *Registry) Delete(ctx context.Context, id string, c Confirmer) (bool, error) {
	r.mu.Lock()
	p, ok := r.playlists[id]
	var name string
	if ok {
		name = p.Name
	}
	r.mu.Unlock()
	if !ok {
		return false, ErrNotFound
	}

	yes, err := c.Confirm(ctx, "Delete Playlist",
		fmt.Sprintf("Are you sure you want to permanently delete the playlist %q?", name))
	if err != nil {
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	if !yes {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.playlists[id]; !ok {
		return false, nil
	}
	delete(r.playlists, id)
	r.save(ctx)
	return true, nil
}

// AddTrack appends trackID. It returns false when the playlist is unknown
// or already holds the track.
func (r *Registry) AddTrack(ctx context.Context, playlistID, trackID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[playlistID]
	if !ok || p.Has(trackID) {
		return false
	}
	p.TrackIDs = append(p.TrackIDs, trackID)
	r.save(ctx)
	return true
}

// RemoveTrack drops trackID and reports whether anything was removed.
func (r *Registry) RemoveTrack(ctx context.Context, playlistID, trackID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[playlistID]
	if !ok {
		return false
	}
	kept := lo.Without(p.TrackIDs, trackID)
	if len(kept) == len(p.TrackIDs) {
		return false
	}
	p.TrackIDs = kept
	r.save(ctx)
	return true
}

func (r *Registry) Get(id string) (*model.Playlist, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// List returns copies of every playlist in creation order.
func (r *Registry) List() []*model.Playlist {
	r.mu.Lock()
	out := lo.MapToSlice(r.playlists, func(_ string, p *model.Playlist) *model.Playlist {
		return p.Clone()
	})
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}
