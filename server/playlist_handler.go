package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"genesis/core/playlist"
	"genesis/model"

	"github.com/gorilla/mux"
)

type playlistRequest struct {
	Name    string `json:"name"`
	TrackID string `json:"trackId"`
}

func (a *App) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	list := a.playlists.List()
	if list == nil {
		list = []*model.Playlist{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := a.playlists.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePlaylistHandler creates an empty playlist from {"name"}.
func (a *App) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := a.playlists.Create(r.Context(), req.Name)
	if err != nil {
		writePlaylistError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// CreatePlaylistFromQueueHandler saves the current play queue as a playlist.
func (a *App) CreatePlaylistFromQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := a.playlists.CreateFromQueue(r.Context(), req.Name, a.engine.Snapshot().QueueIDs())
	if err != nil {
		writePlaylistError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *App) RenamePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := mux.Vars(r)["id"]
	if err := a.playlists.Rename(r.Context(), id, req.Name); err != nil {
		writePlaylistError(w, err)
		return
	}
	p, _ := a.playlists.Get(id)
	writeJSON(w, http.StatusOK, p)
}

// DeletePlaylistHandler deletes only when the request carries ?confirm=true,
// which answers the registry's confirmation prompt.
func (a *App) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	confirm := playlist.ConfirmFunc(func(context.Context, string, string) (bool, error) {
		return confirmed, nil
	})

	deleted, err := a.playlists.Delete(r.Context(), mux.Vars(r)["id"], confirm)
	if err != nil {
		writePlaylistError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusConflict, "Deletion not confirmed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddPlaylistTrackHandler appends {"trackId"}; adding a present track is a no-op.
func (a *App) AddPlaylistTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}
	id := mux.Vars(r)["id"]
	if _, ok := a.playlists.Get(id); !ok {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}
	added := a.playlists.AddTrack(r.Context(), id, req.TrackID)
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (a *App) RemovePlaylistTrackHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, ok := a.playlists.Get(vars["id"]); !ok {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}
	removed := a.playlists.RemoveTrack(r.Context(), vars["id"], vars["trackId"])
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func writePlaylistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playlist.ErrNotFound):
		writeError(w, http.StatusNotFound, "Playlist not found")
	case errors.Is(err, playlist.ErrEmptyName):
		writeError(w, http.StatusBadRequest, "Playlist name cannot be empty")
	case errors.Is(err, playlist.ErrEmptyQueue):
		writeError(w, http.StatusBadRequest, "The queue is empty")
	default:
		writeError(w, http.StatusInternalServerError, "Playlist operation failed")
	}
}
