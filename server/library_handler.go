package server

import (
	"errors"
	"io"
	"net/http"

	"genesis/core/library"
	"genesis/core/metadata"
	"genesis/logger"
	"genesis/model"

	"github.com/gorilla/mux"
)

const (
	maxUploadMemory = 32 << 20
	maxUploadSize   = 1 << 30
)

// GetLibraryHandler lists every track in insertion order.
func (a *App) GetLibraryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(a.library.List()))
}

// SearchLibraryHandler matches ?q= against title, artist and album.
func (a *App) SearchLibraryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(a.library.Search(r.URL.Query().Get("q"))))
}

func (a *App) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := a.library.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UploadHandler adds every file of the multipart "files" field.
func (a *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []metadata.RawMedia
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			logger.Warn("failed to open uploaded file", logger.String("file", fh.Filename), logger.ErrorField(err))
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			logger.Warn("failed to read uploaded file", logger.String("file", fh.Filename), logger.ErrorField(err))
			continue
		}
		files = append(files, metadata.RawMedia{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	added := a.library.AddFiles(r.Context(), files)
	writeJSON(w, http.StatusCreated, nonNil(added))
}

// UpdateTrackHandler edits title, artist, album or lyrics.
func (a *App) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	var c library.Changes
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	t, err := a.library.Update(r.Context(), mux.Vars(r)["id"], c)
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update track")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *App) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	_, err := a.library.Remove(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove track")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveTracksHandler removes {"ids": [...]} and reports the count.
func (a *App) RemoveTracksHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	n := a.library.RemoveMany(r.Context(), body.IDs)
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (a *App) GetAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sorter.Albums(a.library.List()))
}

func (a *App) GetArtistsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sorter.Artists(a.library.List()))
}

// GetArtistInfoHandler returns the cached catalog info for an artist.
func (a *App) GetArtistInfoHandler(w http.ResponseWriter, r *http.Request) {
	if a.artists == nil {
		writeError(w, http.StatusNotFound, "Artist not found")
		return
	}
	info, err := a.artists.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		logger.Error("failed to read artist info", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load artist")
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, "Artist not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil(tracks []model.Track) []model.Track {
	if tracks == nil {
		return []model.Track{}
	}
	return tracks
}
