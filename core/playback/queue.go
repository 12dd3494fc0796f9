package playback

import (
	"fmt"

	"genesis/logger"
	"genesis/model"

	"github.com/samber/lo"
)

// Reorder moves the entry at from to to. The current index follows the
// moved entries so the same track stays current.
func (e *Engine) Reorder(from, to int) error {
	return e.turn(func() error {
		n := len(e.queue)
		if from < 0 || from >= n || to < 0 || to >= n {
			return fmt.Errorf("%w: move %d to %d", ErrIndexOutOfRange, from, to)
		}
		if from == to {
			return nil
		}

		moved := e.queue[from]
		q := append(e.queue[:from:from], e.queue[from+1:]...)
		q = append(q[:to], append([]model.Track{moved}, q[to:]...)...)
		e.queue = q

		switch {
		case e.current == from:
			e.current = to
		case from < e.current && to >= e.current:
			e.current--
		case from > e.current && to <= e.current:
			e.current++
		}
		e.raise(EventQueue)
		return nil
	})
}

// PlayNext inserts the track right after the current one. With nothing
// loaded it is put first and loaded.
func (e *Engine) PlayNext(entry Entry) error {
	return e.turn(func() error {
		tracks := e.resolve([]Entry{entry})
		if len(tracks) == 0 {
			return fmt.Errorf("%w: %s", ErrResourceMissing, entry.ID)
		}
		t := tracks[0]

		if e.current == -1 {
			e.queue = append([]model.Track{t}, e.queue...)
			if err := e.loadTrackAt(0, true); err != nil {
				e.raise(EventQueue)
				return err
			}
		} else {
			at := e.current + 1
			e.queue = append(e.queue[:at], append([]model.Track{t}, e.queue[at:]...)...)
			e.raise(EventQueue)
		}
		e.notice(fmt.Sprintf("%q will play next.", t.Title))
		return nil
	})
}

// Enqueue appends tracks that are not queued yet. With nothing loaded the
// last entry of the queue is loaded.
func (e *Engine) Enqueue(entries ...Entry) error {
	return e.turn(func() error {
		tracks := e.resolve(entries)
		if len(tracks) == 0 {
			return ErrEmptyQueue
		}

		queued := lo.SliceToMap(e.queue, func(t model.Track) (string, bool) { return t.ID, true })
		var added []model.Track
		for _, t := range tracks {
			if queued[t.ID] {
				continue
			}
			queued[t.ID] = true
			added = append(added, t)
		}
		e.queue = append(e.queue, added...)

		if e.current == -1 {
			if err := e.loadTrackAt(len(e.queue)-1, true); err != nil {
				logger.Warn("failed to load enqueued track", logger.ErrorField(err))
				e.raise(EventQueue)
			}
		} else if len(added) > 0 {
			e.raise(EventQueue)
		}

		if len(tracks) == 1 {
			e.notice(fmt.Sprintf("Added %q to queue.", tracks[0].Title))
		} else {
			e.notice(fmt.Sprintf("Added %d track(s) to queue.", len(added)))
		}
		return nil
	})
}

// Dequeue removes every queue entry with trackID. The library is untouched.
func (e *Engine) Dequeue(trackID string) bool {
	var removed bool
	_ = e.turn(func() error {
		removed = e.drop(trackID)
		return nil
	})
	return removed
}

// ClearQueue stops playback and empties the queue.
func (e *Engine) ClearQueue() {
	_ = e.turn(func() error {
		e.detach()
		e.queue = nil
		e.current = -1
		e.raise(EventQueue)
		e.raise(EventState)
		e.persist()
		return nil
	})
}

// drop removes all entries with id. When the current track goes, the entry
// now at the same slot is loaded, playing only if playback was active.
// Caller holds mu.
func (e *Engine) drop(id string) bool {
	before := 0
	wasCurrent := false
	kept := make([]model.Track, 0, len(e.queue))
	for i, t := range e.queue {
		if t.ID != id {
			kept = append(kept, t)
			continue
		}
		switch {
		case i < e.current:
			before++
		case i == e.current:
			wasCurrent = true
		}
	}
	if len(kept) == len(e.queue) {
		return false
	}

	if !wasCurrent {
		e.queue = kept
		if e.current >= 0 {
			e.current -= before
		}
		e.raise(EventQueue)
		e.persist()
		return true
	}

	resume := e.playing || e.pendingPlay
	e.detach()
	slot := e.current - before
	e.queue = kept
	e.current = -1

	if len(kept) > 0 {
		if err := e.loadTrackAt(slot%len(kept), resume); err == nil {
			return true
		}
	}
	e.raise(EventQueue)
	e.raise(EventState)
	e.persist()
	return true
}
