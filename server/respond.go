package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"genesis/logger"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
