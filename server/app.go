package server

import (
	"context"
	"fmt"
	"math/rand/v2"

	"genesis/cache"
	"genesis/config"
	"genesis/core/discovery"
	"genesis/core/grouping"
	"genesis/core/library"
	"genesis/core/notify"
	"genesis/core/playback"
	"genesis/core/playlist"
	"genesis/core/resource"
	"genesis/logger"
	"genesis/repository"
	"genesis/storage"
)

// Deps are the stores an App is built on.
type Deps struct {
	Config  *config.Config
	Tracks  repository.TrackRepository
	Artists repository.ArtistRepository
	KV      cache.KVStore
	Blobs   storage.BlobStore
	Sources *discovery.Sources
	Rand    *rand.Rand // nil means a time-seeded source
}

// App holds the one authoritative instance of every component the HTTP
// layer talks to.
type App struct {
	cfg       *config.Config
	handles   *resource.Registry
	library   *library.Registry
	engine    *playback.Engine
	playlists *playlist.Registry
	sources   *discovery.Sources
	bridge    *discovery.Bridge
	artists   repository.ArtistRepository
	sorter    grouping.Sorter
	hub       *PlayerHub
	notifier  notify.Notifier
	detach    func()
}

// NewApp wires the components, loads the stored library and playlists and
// restores the last playback session.
func NewApp(ctx context.Context, d Deps) (*App, error) {
	if d.Sources == nil || d.Sources.Default() == nil {
		return nil, fmt.Errorf("no discovery source registered")
	}

	hub := NewPlayerHub()
	go hub.Run()
	notifier := notify.Multi{notify.Log{}, hub}
	handles := resource.NewRegistry()

	lib := library.New(library.Options{
		Store:    d.Tracks,
		Blobs:    d.Blobs,
		Handles:  handles,
		Notifier: notifier,
	})
	if err := lib.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	// Engine notices reach clients through its event stream.
	engine := playback.New(playback.Options{
		Output:   hub,
		Sessions: cache.NewSessionCache(d.KV),
		Tracks:   lib,
		Notifier: notify.Log{},
		Rand:     d.Rand,
	})
	unfollow := engine.Attach(lib)
	unsubscribe := hub.Attach(engine)

	if err := engine.Restore(ctx); err != nil {
		logger.Warn("failed to restore playback session", logger.ErrorField(err))
	}

	playlists := playlist.New(cache.NewPlaylistCache(d.KV), notifier)
	if err := playlists.Load(ctx); err != nil {
		logger.Warn("failed to load playlists", logger.ErrorField(err))
	}

	bridge := discovery.NewBridge(discovery.BridgeOptions{
		Source:   d.Sources.Default(),
		Tracks:   d.Tracks,
		Artists:  d.Artists,
		Library:  lib,
		Notifier: notifier,
	})

	logger.Info("app ready",
		logger.Int("tracks", lib.Len()),
		logger.Int("playlists", len(playlists.List())),
		logger.Strings("sources", d.Sources.Names()))

	return &App{
		cfg:       d.Config,
		handles:   handles,
		library:   lib,
		engine:    engine,
		playlists: playlists,
		sources:   d.Sources,
		bridge:    bridge,
		artists:   d.Artists,
		sorter:    grouping.NewSorter(d.Config.Locale),
		hub:       hub,
		notifier:  notifier,
		detach: func() {
			unsubscribe()
			unfollow()
		},
	}, nil
}

// Library exposes the library registry, for the importer.
func (a *App) Library() *library.Registry {
	return a.library
}

// Engine exposes the playback engine.
func (a *App) Engine() *playback.Engine {
	return a.engine
}

// Close stops the player hub and detaches the engine from the library.
func (a *App) Close() {
	a.detach()
	a.hub.Stop()
}
