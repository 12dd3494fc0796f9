package playback

import (
	"genesis/core/library"
	"genesis/logger"
)

// LibraryFeed is the subscription side of the library registry.
type LibraryFeed interface {
	Subscribe(fn func(library.Event)) func()
}

// Attach follows removals and edits in the library. The returned func stops
// following.
func (e *Engine) Attach(feed LibraryFeed) func() {
	return feed.Subscribe(e.HandleLibraryEvent)
}

// HandleLibraryEvent applies a library change to the queue. Removed tracks
// leave the queue; updated tracks replace their queued copies.
func (e *Engine) HandleLibraryEvent(ev library.Event) {
	switch ev.Kind {
	case library.Removed:
		_ = e.turn(func() error {
			for _, t := range ev.Tracks {
				if e.drop(t.ID) {
					logger.Debug("removed track dropped from queue", logger.String("track", t.ID))
				}
			}
			return nil
		})
	case library.Updated:
		_ = e.turn(func() error {
			changed, currentChanged := false, false
			for _, t := range ev.Tracks {
				for i := range e.queue {
					if e.queue[i].ID != t.ID {
						continue
					}
					e.queue[i] = t.Clone()
					changed = true
					if i == e.current {
						currentChanged = true
					}
				}
			}
			if currentChanged {
				e.raise(EventTrack)
			}
			if changed {
				e.raise(EventQueue)
			}
			return nil
		})
	}
}
