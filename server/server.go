package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genesis/cache"
	"genesis/config"
	"genesis/core/discovery"
	"genesis/core/importer"
	"genesis/db"
	"genesis/logger"
	"genesis/repository"
	"genesis/storage"

	"github.com/gorilla/mux"
)

// corsMiddleware lets a separately served client call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Router builds the HTTP routes.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Catalog proxy
	router.HandleFunc("/discover", a.DiscoverHandler).Methods(http.MethodGet)
	router.HandleFunc("/download/{id}", a.DownloadInfoHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// Library
	api.HandleFunc("/library", a.GetLibraryHandler).Methods(http.MethodGet)
	api.HandleFunc("/library/search", a.SearchLibraryHandler).Methods(http.MethodGet)
	api.HandleFunc("/library/upload", a.UploadHandler).Methods(http.MethodPost)
	api.HandleFunc("/library/remove", a.RemoveTracksHandler).Methods(http.MethodPost)
	api.HandleFunc("/library/{id}", a.GetTrackHandler).Methods(http.MethodGet)
	api.HandleFunc("/library/{id}", a.UpdateTrackHandler).Methods(http.MethodPut)
	api.HandleFunc("/library/{id}", a.DeleteTrackHandler).Methods(http.MethodDelete)

	// Grouped views
	api.HandleFunc("/albums", a.GetAlbumsHandler).Methods(http.MethodGet)
	api.HandleFunc("/artists", a.GetArtistsHandler).Methods(http.MethodGet)
	api.HandleFunc("/artists/{name}/info", a.GetArtistInfoHandler).Methods(http.MethodGet)

	// Playlists
	api.HandleFunc("/playlists", a.ListPlaylistsHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlists", a.CreatePlaylistHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlists/from-queue", a.CreatePlaylistFromQueueHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}", a.GetPlaylistHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}", a.RenamePlaylistHandler).Methods(http.MethodPut)
	api.HandleFunc("/playlists/{id}", a.DeletePlaylistHandler).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id}/tracks", a.AddPlaylistTrackHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}/tracks/{trackId}", a.RemovePlaylistTrackHandler).Methods(http.MethodDelete)

	// Player
	api.HandleFunc("/player", a.GetPlayerHandler).Methods(http.MethodGet)
	api.HandleFunc("/player/{command}", a.PlayerCommandHandler).Methods(http.MethodPost)

	// Discovery
	api.HandleFunc("/discover", a.SearchCatalogHandler).Methods(http.MethodGet)
	api.HandleFunc("/discover/stream", a.StreamHandler).Methods(http.MethodPost)
	api.HandleFunc("/discover/{id}/download", a.DownloadTrackHandler).Methods(http.MethodPost)

	router.HandleFunc("/blob/{id}", a.BlobHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/ws/player", a.hub.ServeWS)

	// Browser client
	router.PathPrefix("/").Handler(webHandler(a.cfg.WebAppDir))
	return router
}

func openKV(cfg *config.Config) (cache.KVStore, error) {
	switch cfg.KVDriver {
	case "redis":
		if err := db.ConnectRedis(cfg); err != nil {
			return nil, err
		}
		return cache.NewRedisKV(db.RedisClient), nil
	case "memory":
		return cache.NewMemoryKV(), nil
	case "db", "":
		return repository.NewGormKV(db.GormDB), nil
	default:
		return nil, fmt.Errorf("unsupported KV_DRIVER %q", cfg.KVDriver)
	}
}

// OpenBlobStore opens the configured media store.
func OpenBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.StorageDriver {
	case "minio":
		return storage.NewMinioStore(ctx, cfg)
	case "disk", "":
		return storage.NewDiskStore(cfg.MediaDir)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

// NewSources registers the configured catalogs.
func NewSources(cfg *config.Config) *discovery.Sources {
	jamendo := discovery.NewJamendoClient(cfg.JamendoClientID)
	jamendo.SetBaseURL(cfg.JamendoAPIURL)
	jamendo.SetLimit(cfg.DiscoverLimit)

	sources := discovery.NewSources()
	sources.Register(jamendo)
	return sources
}

// Start connects the stores, builds the App and serves HTTP until SIGINT or
// SIGTERM.
func Start(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.ConnectGormDB(cfg); err != nil {
		return err
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrate(db.GormDB); err != nil {
		return err
	}

	kv, err := openKV(cfg)
	if err != nil {
		return err
	}
	defer db.CloseRedis()

	blobs, err := OpenBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	app, err := NewApp(ctx, Deps{
		Config:  cfg,
		Tracks:  repository.NewGormTrackRepository(db.GormDB),
		Artists: repository.NewGormArtistRepository(db.GormDB),
		KV:      kv,
		Blobs:   blobs,
		Sources: NewSources(cfg),
	})
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.ImportDir != "" {
		im := importer.New(cfg.ImportDir, app.Library())
		go func() {
			if err := im.Run(ctx); err != nil {
				logger.Error("importer stopped", logger.ErrorField(err))
			}
		}()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      app.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // uploads and media streaming
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", server.Addr), logger.String("web", cfg.WebAppDir))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
