package server

import (
	"errors"
	"fmt"
	"net/http"

	"genesis/core/playback"
	"genesis/model"

	"github.com/gorilla/mux"
)

var (
	errUnknownCommand = errors.New("unknown player command")
	errBadArgument    = errors.New("invalid command argument")
)

// playerRequest carries the arguments of every player command; each
// command reads the fields it needs.
type playerRequest struct {
	IDs      []string          `json:"ids"`
	ID       string            `json:"id"`
	Index    int               `json:"index"`
	Start    int               `json:"start"`
	Shuffle  bool              `json:"shuffle"`
	AutoPlay *bool             `json:"autoPlay"`
	Value    *float64          `json:"value"`
	On       *bool             `json:"on"`
	Mode     *model.RepeatMode `json:"mode"`
	From     int               `json:"from"`
	To       int               `json:"to"`
}

// runPlayerCommand applies one named command to the engine.
func runPlayerCommand(e *playback.Engine, name string, req playerRequest) error {
	switch name {
	case "play":
		e.Play()
	case "pause":
		e.Pause()
	case "toggle":
		e.TogglePlay()
	case "next":
		return e.Next()
	case "prev":
		return e.Prev()
	case "seek":
		if req.Value == nil {
			return fmt.Errorf("%w: seek needs value", errBadArgument)
		}
		e.Seek(*req.Value)
	case "volume":
		if req.Value == nil {
			return fmt.Errorf("%w: volume needs value", errBadArgument)
		}
		e.SetVolume(*req.Value)
	case "shuffle":
		if req.On == nil {
			e.ToggleShuffle()
		} else {
			e.SetShuffle(*req.On)
		}
	case "repeat":
		if req.Mode == nil {
			e.CycleRepeat()
			return nil
		}
		if err := e.SetRepeat(*req.Mode); err != nil {
			return fmt.Errorf("%w: %v", errBadArgument, err)
		}
	case "queue":
		return e.LoadQueue(playback.ByID(req.IDs...), req.Start, req.Shuffle)
	case "load":
		autoPlay := req.AutoPlay == nil || *req.AutoPlay
		return e.LoadTrackAt(req.Index, autoPlay)
	case "reorder":
		return e.Reorder(req.From, req.To)
	case "play-next":
		return e.PlayNext(playback.Entry{ID: req.ID})
	case "enqueue":
		ids := req.IDs
		if len(ids) == 0 && req.ID != "" {
			ids = []string{req.ID}
		}
		return e.Enqueue(playback.ByID(ids...)...)
	case "dequeue":
		if !e.Dequeue(req.ID) {
			return fmt.Errorf("%w: %s is not queued", errBadArgument, req.ID)
		}
	case "clear":
		e.ClearQueue()
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, name)
	}
	return nil
}

// commandError maps a command failure to a status and a client message.
func commandError(err error) (int, string) {
	switch {
	case errors.Is(err, errUnknownCommand):
		return http.StatusNotFound, "Unknown player command"
	case errors.Is(err, errBadArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, playback.ErrEmptyQueue):
		return http.StatusUnprocessableEntity, "No playable tracks to queue"
	case errors.Is(err, playback.ErrIndexOutOfRange):
		return http.StatusBadRequest, "Queue index out of range"
	case errors.Is(err, playback.ErrResourceMissing):
		return http.StatusUnprocessableEntity, "Track has no playable media"
	default:
		return http.StatusInternalServerError, "Player command failed"
	}
}

// GetPlayerHandler returns the engine snapshot.
func (a *App) GetPlayerHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Snapshot())
}

// PlayerCommandHandler runs POST /api/player/{command} and answers with the
// resulting snapshot.
func (a *App) PlayerCommandHandler(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := runPlayerCommand(a.engine, mux.Vars(r)["command"], req); err != nil {
		status, msg := commandError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, a.engine.Snapshot())
}
