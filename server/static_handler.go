package server

import (
	"errors"
	"net/http"

	"genesis/core/resource"
	"genesis/logger"

	"github.com/gorilla/mux"
)

// BlobHandler serves GET /blob/{id}, resolving a resource handle to its
// bytes. Range requests are honoured.
func (a *App) BlobHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rs, contentType, created, err := a.handles.Open(r.Context(), id)
	if errors.Is(err, resource.ErrReleased) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("failed to open resource", logger.String("handle", id), logger.ErrorField(err))
		http.Error(w, "File not available", http.StatusInternalServerError)
		return
	}
	defer rs.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, "", created, rs)
}

// webHandler serves the browser client.
func webHandler(dir string) http.Handler {
	return http.FileServer(http.Dir(dir))
}
