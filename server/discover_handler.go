package server

import (
	"errors"
	"net/http"
	"strings"

	"genesis/core/discovery"
	"genesis/core/playback"
	"genesis/logger"
	"genesis/model"

	"github.com/gorilla/mux"
)

// DiscoverHandler proxies GET /discover?q= to the default catalog.
func (a *App) DiscoverHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		q = "popular"
	}
	tracks, err := a.sources.Default().Search(r.Context(), q)
	if err != nil {
		logger.Error("discover proxy failed", logger.String("query", q), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch discover data")
		return
	}
	if tracks == nil {
		tracks = []model.TrackDescriptor{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// DownloadInfoHandler answers GET /download/{id} with the track's audio URL
// and descriptor.
func (a *App) DownloadInfoHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	desc, err := a.sources.Default().Lookup(r.Context(), id)
	if err != nil {
		logger.Error("download lookup failed", logger.String("track", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to download track")
		return
	}
	if desc == nil || desc.AudioURL == "" {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"audioUrl":  desc.AudioURL,
		"trackData": desc,
	})
}

// SearchCatalogHandler is the client-facing search: it caches results and
// falls back to the local catalog cache when offline.
func (a *App) SearchCatalogHandler(w http.ResponseWriter, r *http.Request) {
	res := a.bridge.Search(r.Context(), r.URL.Query().Get("q"))
	if res.Tracks == nil {
		res.Tracks = []model.TrackDescriptor{}
	}
	writeJSON(w, http.StatusOK, res)
}

// DownloadTrackHandler adds a catalog track to the library.
func (a *App) DownloadTrackHandler(w http.ResponseWriter, r *http.Request) {
	t, err := a.bridge.Download(r.Context(), mux.Vars(r)["id"])
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, t)
	case errors.Is(err, discovery.ErrAlreadyInLibrary):
		writeJSON(w, http.StatusOK, t)
	case errors.Is(err, discovery.ErrTrackNotFound), errors.Is(err, discovery.ErrNoAudio):
		writeError(w, http.StatusNotFound, "Track not found")
	case errors.Is(err, discovery.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "Failed to download track")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to download track")
	}
}

type streamRequest struct {
	Track model.TrackDescriptor `json:"track"`
	Mode  string                `json:"mode"` // play (default), next or enqueue
}

// StreamHandler plays a catalog descriptor straight from its URL without
// adding it to the library.
func (a *App) StreamHandler(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	t, err := a.bridge.Stream(req.Track)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Track has no audio")
		return
	}

	entry := playback.ByTrack(t)
	switch req.Mode {
	case "", "play":
		err = a.engine.LoadQueue(entry, 0, false)
	case "next":
		err = a.engine.PlayNext(entry[0])
	case "enqueue":
		err = a.engine.Enqueue(entry...)
	default:
		writeError(w, http.StatusBadRequest, "Unknown stream mode")
		return
	}
	if err != nil {
		status, msg := commandError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, a.engine.Snapshot())
}
