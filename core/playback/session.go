package playback

import (
	"context"
	"fmt"

	"genesis/logger"
	"genesis/model"
)

// persist writes the session record, or clears it when nothing is loaded.
// Failures are logged and never undo the in-memory change. Caller holds mu.
func (e *Engine) persist() {
	if e.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	var err error
	if e.current < 0 || e.current >= len(e.queue) {
		err = e.sessions.Clear(ctx)
	} else {
		err = e.sessions.Save(ctx, model.SessionRecord{
			TrackID:     e.queue[e.current].ID,
			CurrentTime: e.position,
			Volume:      e.volume,
			IsShuffled:  e.shuffle,
			RepeatState: e.repeat,
		})
	}
	if err != nil {
		logger.Error("session write failed", logger.ErrorField(fmt.Errorf("%w: %v", ErrStorageWrite, err)))
	}
}

// Restore rebuilds the queue as the full library and rebinds the saved
// track paused, seeking to the saved position once the media is ready.
// Volume, shuffle and repeat are restored only together with the track.
func (e *Engine) Restore(ctx context.Context) error {
	var rec *model.SessionRecord
	if e.sessions != nil {
		var err error
		rec, err = e.sessions.Load(ctx)
		if err != nil {
			logger.Warn("failed to read playback session", logger.ErrorField(err))
			rec = nil
		}
	}
	library := e.tracks.List()

	return e.turn(func() error {
		e.detach()
		e.queue = library
		e.current = -1
		e.playing = false

		idx := -1
		if rec != nil {
			for i, t := range e.queue {
				if t.ID == rec.TrackID && t.Playable() {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			if rec != nil {
				logger.Info("saved track no longer in library", logger.String("track", rec.TrackID))
			}
			e.raise(EventQueue)
			return nil
		}

		t := e.queue[idx]
		e.current = idx
		e.token++
		e.bound = true
		e.pendingPlay = false
		e.pendingSeek = max(rec.CurrentTime, 0)
		e.position = e.pendingSeek
		e.duration = t.Duration
		e.out.Load(e.token, t.MediaRef)

		e.volume = clamp(rec.Volume, 0, 1)
		e.out.SetVolume(e.volume)
		e.shuffle = rec.IsShuffled
		e.repeat = rec.RepeatState
		if !e.repeat.Valid() {
			e.repeat = model.RepeatOff
		}

		logger.Info("playback session restored",
			logger.String("track", t.ID),
			logger.Float64("position", e.position))
		e.raise(EventTrack)
		e.raise(EventQueue)
		e.raise(EventSettings)
		return nil
	})
}
