// Package playback implements the single playback engine: the queue, the
// current position in it, transport controls and the persisted session.
package playback

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"genesis/core/notify"
	"genesis/logger"
	"genesis/model"

	"github.com/samber/lo"
)

var (
	ErrEmptyQueue      = errors.New("no playable tracks to queue")
	ErrResourceMissing = errors.New("track has no playable resource")
	ErrIndexOutOfRange = errors.New("queue index out of range")
	ErrStorageWrite    = errors.New("failed to write playback session")
)

// rewindThreshold is how far into a track Prev restarts it instead of
// moving to the previous entry.
const rewindThreshold = 3.0

const defaultTimeout = 2 * time.Second

const msgLoadFailed = "Could not load the selected track for playback."

// Options wires an Engine. Only Tracks is needed for id resolution; a nil
// Output or Sessions disables that concern.
type Options struct {
	Output   Output
	Sessions SessionStore
	Tracks   TrackSource
	Notifier notify.Notifier
	Rand     *rand.Rand
	Timeout  time.Duration // per session write
}

// Engine is safe for concurrent use. Every exported method runs as one turn
// under mu; events raised during the turn reach listeners after it ends.
type Engine struct {
	out      Output
	sessions SessionStore
	tracks   TrackSource
	notifier notify.Notifier
	rng      *rand.Rand
	timeout  time.Duration

	mu          sync.Mutex
	queue       []model.Track
	current     int
	playing     bool
	bound       bool
	token       uint64
	pendingPlay bool
	pendingSeek float64 // -1 when none
	shuffle     bool
	repeat      model.RepeatMode
	volume      float64
	position    float64
	duration    float64
	events      []Event
	seq         uint64

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// New creates an Empty engine.
func New(opts Options) *Engine {
	if opts.Output == nil {
		opts.Output = nopOutput{}
	}
	if opts.Tracks == nil {
		opts.Tracks = emptySource{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Engine{
		out:         opts.Output,
		sessions:    opts.Sessions,
		tracks:      opts.Tracks,
		notifier:    notify.OrLog(opts.Notifier),
		rng:         opts.Rand,
		timeout:     opts.Timeout,
		current:     -1,
		pendingSeek: -1,
		volume:      1,
		subs:        make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every later Event and returns its cancel func.
func (e *Engine) Subscribe(fn func(Event)) func() {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

// turn runs fn under the lock and then delivers what it raised.
func (e *Engine) turn(fn func() error) error {
	e.mu.Lock()
	err := fn()
	events := e.events
	e.events = nil
	e.mu.Unlock()

	e.dispatch(events)
	return err
}

func (e *Engine) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	e.subMu.Lock()
	fns := lo.Values(e.subs)
	e.subMu.Unlock()

	for _, ev := range events {
		if ev.Type == EventNotice {
			e.notifier.Notify(ev.Message)
		}
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// raise queues an event for the end of the turn. Caller holds mu.
func (e *Engine) raise(t EventType) {
	e.seq++
	e.events = append(e.events, Event{Type: t, Seq: e.seq, State: e.snapshotLocked()})
}

// notice queues a user-visible message. Caller holds mu.
func (e *Engine) notice(msg string) {
	e.seq++
	e.events = append(e.events, Event{Type: EventNotice, Seq: e.seq, State: e.snapshotLocked(), Message: msg})
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Current returns a state event carrying the Seq of the last raised event.
func (e *Engine) Current() Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Event{Type: EventState, Seq: e.seq, State: e.snapshotLocked()}
}

func (e *Engine) snapshotLocked() State {
	s := State{
		Queue:        lo.Map(e.queue, func(t model.Track, _ int) model.Track { return t.Clone() }),
		CurrentIndex: e.current,
		IsPlaying:    e.playing,
		IsShuffled:   e.shuffle,
		RepeatState:  e.repeat,
		Volume:       e.volume,
		CurrentTime:  e.position,
		Duration:     e.duration,
	}
	if e.current >= 0 && e.current < len(e.queue) {
		cur := e.queue[e.current].Clone()
		s.Current = &cur
	}
	return s
}

// resolve turns entries into tracks, dropping ids the library does not know.
func (e *Engine) resolve(entries []Entry) []model.Track {
	var out []model.Track
	for _, en := range entries {
		if en.Track != nil {
			out = append(out, en.Track.Clone())
			continue
		}
		t, ok := e.tracks.Get(en.ID)
		if !ok {
			logger.Debug("dropping unknown queue entry", logger.String("track", en.ID))
			continue
		}
		out = append(out, t)
	}
	return out
}

// LoadQueue replaces the queue and starts playing at startIndex. With
// shuffle the resolved tracks are permuted and playback starts at 0.
func (e *Engine) LoadQueue(entries []Entry, startIndex int, shuffle bool) error {
	return e.turn(func() error {
		tracks := e.resolve(entries)
		if len(tracks) == 0 {
			e.notice(msgLoadFailed)
			return ErrEmptyQueue
		}
		if shuffle {
			e.rng.Shuffle(len(tracks), func(i, j int) {
				tracks[i], tracks[j] = tracks[j], tracks[i]
			})
			startIndex = 0
			if !e.shuffle {
				e.shuffle = true
				e.raise(EventSettings)
			}
		}
		if startIndex < 0 || startIndex >= len(tracks) {
			startIndex = 0
		}

		e.queue = tracks
		if err := e.loadTrackAt(startIndex, true); err != nil {
			e.detach()
			e.current = -1
			e.raise(EventQueue)
			e.persist()
			e.notice(msgLoadFailed)
			return err
		}
		return nil
	})
}

// LoadTrackAt binds the queue entry at index. With autoPlay playback starts
// once the output reports the media ready.
func (e *Engine) LoadTrackAt(index int, autoPlay bool) error {
	return e.turn(func() error {
		return e.loadTrackAt(index, autoPlay)
	})
}

func (e *Engine) loadTrackAt(index int, autoPlay bool) error {
	if index < 0 || index >= len(e.queue) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	t := e.queue[index]
	if !t.Playable() {
		logger.Warn("skipping track without media", logger.String("track", t.ID), logger.Int("index", index))
		return fmt.Errorf("%w: %s", ErrResourceMissing, t.ID)
	}

	e.current = index
	e.token++
	e.bound = true
	e.playing = false
	e.pendingPlay = autoPlay
	e.pendingSeek = -1
	e.position = 0
	e.duration = t.Duration
	e.out.Load(e.token, t.MediaRef)

	e.raise(EventTrack)
	e.raise(EventQueue)
	e.persist()
	return nil
}

// detach stops and unbinds the output. Caller holds mu.
func (e *Engine) detach() {
	if !e.bound {
		return
	}
	e.out.Pause()
	e.out.Unload()
	e.bound = false
	e.playing = false
	e.pendingPlay = false
	e.pendingSeek = -1
	e.position = 0
	e.duration = 0
	e.token++
}

func (e *Engine) Play() {
	_ = e.turn(func() error {
		e.play()
		return nil
	})
}

func (e *Engine) play() {
	if !e.bound {
		return
	}
	e.pendingPlay = false
	e.out.Play()
	e.playing = true
	e.raise(EventState)
}

func (e *Engine) Pause() {
	_ = e.turn(func() error {
		e.pause()
		return nil
	})
}

func (e *Engine) pause() {
	if !e.bound {
		return
	}
	e.pendingPlay = false
	e.out.Pause()
	e.playing = false
	e.raise(EventState)
}

// TogglePlay pauses when playing and plays otherwise.
func (e *Engine) TogglePlay() {
	_ = e.turn(func() error {
		if e.playing {
			e.pause()
		} else {
			e.play()
		}
		return nil
	})
}

// Next advances according to the shuffle and repeat settings. A candidate
// without media leaves the engine where it is.
func (e *Engine) Next() error {
	return e.turn(e.next)
}

func (e *Engine) next() error {
	n := len(e.queue)
	if n == 0 {
		return nil
	}

	idx := e.current + 1
	if e.shuffle {
		idx = e.rng.IntN(n)
	}

	if e.repeat == model.RepeatOne {
		if e.current != -1 {
			return e.loadTrackAt(e.current, true)
		}
		return nil
	}

	if idx >= n {
		if e.repeat != model.RepeatAll {
			e.pause()
			return nil
		}
		idx = 0
	}

	if !e.queue[idx].Playable() {
		logger.Warn("next track has no media", logger.String("track", e.queue[idx].ID), logger.Int("index", idx))
		return nil
	}
	return e.loadTrackAt(idx, true)
}

// Prev restarts the current track when more than three seconds in,
// otherwise steps back one entry, wrapping to the end.
func (e *Engine) Prev() error {
	return e.turn(func() error {
		n := len(e.queue)
		if n == 0 {
			return nil
		}
		if e.bound && e.position > rewindThreshold {
			e.out.Seek(0)
			e.position = 0
			e.raise(EventState)
			e.persist()
			return nil
		}

		idx := (e.current - 1 + n) % n
		if !e.queue[idx].Playable() {
			logger.Warn("previous track has no media", logger.String("track", e.queue[idx].ID), logger.Int("index", idx))
			return nil
		}
		return e.loadTrackAt(idx, true)
	})
}

func (e *Engine) SetShuffle(on bool) {
	_ = e.turn(func() error {
		e.shuffle = on
		e.raise(EventSettings)
		e.persist()
		return nil
	})
}

func (e *Engine) ToggleShuffle() {
	_ = e.turn(func() error {
		e.shuffle = !e.shuffle
		e.raise(EventSettings)
		e.persist()
		return nil
	})
}

// CycleRepeat moves Off -> All -> One -> Off and returns the new mode.
func (e *Engine) CycleRepeat() model.RepeatMode {
	var mode model.RepeatMode
	_ = e.turn(func() error {
		e.repeat = e.repeat.Next()
		mode = e.repeat
		e.raise(EventSettings)
		e.persist()
		return nil
	})
	return mode
}

func (e *Engine) SetRepeat(mode model.RepeatMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid repeat mode %d", mode)
	}
	return e.turn(func() error {
		e.repeat = mode
		e.raise(EventSettings)
		e.persist()
		return nil
	})
}

// Seek moves within the bound track, clamped to [0, duration]. It does
// nothing until the duration is known.
func (e *Engine) Seek(seconds float64) {
	_ = e.turn(func() error {
		if !e.bound || e.duration <= 0 {
			return nil
		}
		pos := clamp(seconds, 0, e.duration)
		e.out.Seek(pos)
		e.position = pos
		e.pendingSeek = -1
		e.raise(EventState)
		e.persist()
		return nil
	})
}

// SetVolume clamps v to [0, 1] and applies it.
func (e *Engine) SetVolume(v float64) {
	_ = e.turn(func() error {
		e.volume = clamp(v, 0, 1)
		e.out.SetVolume(e.volume)
		e.raise(EventSettings)
		e.persist()
		return nil
	})
}

// MediaReady reports that the media bound under token can play. A pending
// restore position is applied first, then a pending auto-play.
func (e *Engine) MediaReady(token uint64, duration float64) {
	_ = e.turn(func() error {
		if !e.bound || token != e.token {
			return nil
		}
		if duration > 0 {
			e.duration = duration
		}
		if e.pendingSeek >= 0 {
			pos := e.pendingSeek
			if e.duration > 0 {
				pos = clamp(pos, 0, e.duration)
			}
			e.pendingSeek = -1
			e.out.Seek(pos)
			e.position = pos
		}
		if e.pendingPlay {
			e.play()
			return nil
		}
		e.raise(EventState)
		return nil
	})
}

// MediaEnded reports that the media bound under token finished.
func (e *Engine) MediaEnded(token uint64) {
	_ = e.turn(func() error {
		if !e.bound || token != e.token {
			return nil
		}
		e.playing = false
		if err := e.next(); err != nil {
			logger.Warn("failed to advance after track end", logger.ErrorField(err))
		}
		return nil
	})
}

// TimeUpdate records the playback position reported by the output.
func (e *Engine) TimeUpdate(token uint64, position, duration float64) {
	_ = e.turn(func() error {
		if !e.bound || token != e.token || e.pendingSeek >= 0 {
			return nil
		}
		e.position = position
		if duration > 0 {
			e.duration = duration
		}
		e.persist()
		return nil
	})
}

// Token returns the current binding token, 0 before the first load.
func (e *Engine) Token() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.bound {
		return 0
	}
	return e.token
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
