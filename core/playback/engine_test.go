package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"genesis/cache"
	"genesis/core/library"
	"genesis/core/metadata"
	"genesis/core/notify"
	"genesis/core/resource"
	"genesis/internal/testutil"
	"genesis/model"
	"genesis/repository"
	"genesis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutput struct {
	mu     sync.Mutex
	cmds   []string
	token  uint64
	volume float64
}

func (o *fakeOutput) record(cmd string) {
	o.mu.Lock()
	o.cmds = append(o.cmds, cmd)
	o.mu.Unlock()
}

func (o *fakeOutput) Load(token uint64, ref string) {
	o.mu.Lock()
	o.token = token
	o.mu.Unlock()
	o.record("load " + ref)
}

func (o *fakeOutput) Unload()        { o.record("unload") }
func (o *fakeOutput) Play()          { o.record("play") }
func (o *fakeOutput) Pause()         { o.record("pause") }
func (o *fakeOutput) Seek(s float64) { o.record(fmt.Sprintf("seek %.1f", s)) }

func (o *fakeOutput) SetVolume(v float64) {
	o.mu.Lock()
	o.volume = v
	o.mu.Unlock()
	o.record(fmt.Sprintf("volume %.1f", v))
}

func (o *fakeOutput) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.cmds) == 0 {
		return ""
	}
	return o.cmds[len(o.cmds)-1]
}

func (o *fakeOutput) commands() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.cmds...)
}

func (o *fakeOutput) reset() {
	o.mu.Lock()
	o.cmds = nil
	o.mu.Unlock()
}

func (o *fakeOutput) lastToken() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.token
}

type fakeTracks struct {
	tracks []model.Track
}

func (f *fakeTracks) Get(id string) (model.Track, bool) {
	for _, t := range f.tracks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return model.Track{}, false
}

func (f *fakeTracks) List() []model.Track {
	out := make([]model.Track, len(f.tracks))
	for i, t := range f.tracks {
		out[i] = t.Clone()
	}
	return out
}

type failingSessions struct{}

func (failingSessions) Load(context.Context) (*model.SessionRecord, error) {
	return nil, errors.New("unavailable")
}
func (failingSessions) Save(context.Context, model.SessionRecord) error { return errors.New("disk full") }
func (failingSessions) Clear(context.Context) error                     { return errors.New("disk full") }

func track(id string) model.Track {
	return model.Track{
		ID:       id,
		Title:    strings.ToUpper(id),
		Artist:   "Artist",
		MediaRef: "/blob/" + id,
		Duration: 200,
	}
}

type harness struct {
	engine   *Engine
	out      *fakeOutput
	kv       *cache.MemoryKV
	sessions *cache.SessionCache
	notes    *notify.Recorder
	lib      *fakeTracks
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()
	h := &harness{
		out:   &fakeOutput{},
		kv:    cache.NewMemoryKV(),
		notes: &notify.Recorder{},
		lib:   &fakeTracks{},
	}
	for _, id := range ids {
		h.lib.tracks = append(h.lib.tracks, track(id))
	}
	h.sessions = cache.NewSessionCache(h.kv)
	h.engine = New(Options{
		Output:   h.out,
		Sessions: h.sessions,
		Tracks:   h.lib,
		Notifier: h.notes,
		Rand:     rand.New(rand.NewPCG(1, 2)),
	})
	return h
}

// ready reports the bound media as ready to the engine.
func (h *harness) ready() {
	h.engine.MediaReady(h.out.lastToken(), 200)
}

func (h *harness) record(t *testing.T) (string, bool) {
	t.Helper()
	raw, ok, err := h.kv.Get(context.Background(), cache.SessionKey)
	require.NoError(t, err)
	return raw, ok
}

func TestLoadQueueStartsPlayingOnceReady(t *testing.T) {
	h := newHarness(t, "a", "b", "c")

	require.NoError(t, h.engine.LoadQueue(ByID("a", "b", "c"), 1, false))
	s := h.engine.Snapshot()
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, "b", s.Current.ID)
	assert.False(t, s.IsPlaying)
	assert.Equal(t, "load /blob/b", h.out.last())

	h.ready()
	assert.True(t, h.engine.Snapshot().IsPlaying)
	assert.Equal(t, "play", h.out.last())
}

func TestLoadQueueDropsUnknownIDs(t *testing.T) {
	h := newHarness(t, "a", "b")

	require.NoError(t, h.engine.LoadQueue(ByID("a", "missing", "b"), 0, false))
	assert.Equal(t, []string{"a", "b"}, h.engine.Snapshot().QueueIDs())
}

func TestLoadQueueWithNothingResolvable(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.engine.LoadQueue(ByID("a"), 0, false))

	err := h.engine.LoadQueue(ByID("x", "y"), 0, false)
	assert.ErrorIs(t, err, ErrEmptyQueue)
	assert.Equal(t, "Could not load the selected track for playback.", h.notes.Last())
	assert.Equal(t, []string{"a"}, h.engine.Snapshot().QueueIDs())
}

func TestLoadQueueClampsStartIndex(t *testing.T) {
	h := newHarness(t, "a", "b")

	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 5, false))
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)

	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), -3, false))
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)
}

func TestLoadQueueShuffleIsPermutationStartingAtZero(t *testing.T) {
	ids := []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8", "t9"}
	for _, start := range []int{0, 4, 9} {
		h := newHarness(t, ids...)
		require.NoError(t, h.engine.LoadQueue(ByID(ids...), start, true))

		s := h.engine.Snapshot()
		assert.ElementsMatch(t, ids, s.QueueIDs())
		assert.Equal(t, 0, s.CurrentIndex)
		assert.True(t, s.IsShuffled)
	}
}

func TestLoadQueueAcceptsTrackValues(t *testing.T) {
	h := newHarness(t)
	remote := model.Track{ID: "remote", Title: "Stream", MediaRef: "https://cdn.example/stream.mp3", IsRemote: true}

	require.NoError(t, h.engine.LoadQueue(ByTrack(remote), 0, false))
	assert.Equal(t, "load https://cdn.example/stream.mp3", h.out.last())
}

func TestLoadTrackAtOutOfRange(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.engine.LoadQueue(ByID("a"), 0, false))

	assert.ErrorIs(t, h.engine.LoadTrackAt(3, true), ErrIndexOutOfRange)
	assert.ErrorIs(t, h.engine.LoadTrackAt(-1, true), ErrIndexOutOfRange)
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)
}

func TestLoadTrackAtWithoutMedia(t *testing.T) {
	h := newHarness(t)
	silent := model.Track{ID: "silent", Title: "No media"}
	require.NoError(t, h.engine.LoadQueue(ByTrack(track("a"), silent), 0, false))

	assert.ErrorIs(t, h.engine.LoadTrackAt(1, true), ErrResourceMissing)
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)
}

func TestTransportIsNoOpWhenEmpty(t *testing.T) {
	h := newHarness(t)

	h.engine.Play()
	h.engine.Pause()
	h.engine.TogglePlay()
	h.engine.Seek(10)
	require.NoError(t, h.engine.Next())
	require.NoError(t, h.engine.Prev())

	assert.Empty(t, h.out.commands())
	assert.True(t, h.engine.Snapshot().Empty())
}

func TestTogglePlay(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.engine.LoadQueue(ByID("a"), 0, false))
	h.ready()

	h.engine.TogglePlay()
	assert.False(t, h.engine.Snapshot().IsPlaying)
	assert.Equal(t, "pause", h.out.last())

	h.engine.TogglePlay()
	assert.True(t, h.engine.Snapshot().IsPlaying)
	assert.Equal(t, "play", h.out.last())
}

func TestPauseBeforeReadyCancelsAutoPlay(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.engine.LoadQueue(ByID("a"), 0, false))

	h.engine.Pause()
	h.ready()
	assert.False(t, h.engine.Snapshot().IsPlaying)
	assert.NotEqual(t, "play", h.out.last())
}

func TestStaleReadyIsIgnored(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 0, false))
	stale := h.out.lastToken()

	require.NoError(t, h.engine.LoadTrackAt(1, false))
	h.out.reset()
	h.engine.MediaReady(stale, 120)
	h.engine.MediaEnded(stale)
	h.engine.TimeUpdate(stale, 50, 120)

	s := h.engine.Snapshot()
	assert.False(t, s.IsPlaying)
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Zero(t, s.CurrentTime)
	assert.Empty(t, h.out.commands())
}

func TestRepeatAllReturnsToStartAfterNCalls(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	h := newHarness(t, ids...)
	require.NoError(t, h.engine.LoadQueue(ByID(ids...), 0, false))
	require.NoError(t, h.engine.SetRepeat(model.RepeatAll))

	var seen []int
	for range ids {
		require.NoError(t, h.engine.Next())
		seen = append(seen, h.engine.Snapshot().CurrentIndex)
	}
	assert.Equal(t, []int{1, 2, 3, 0}, seen)
	assert.Equal(t, "a", h.engine.Snapshot().Current.ID)
}

func TestRepeatOffStaysAtLastIndexAndPauses(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 1, false))
	h.ready()

	require.NoError(t, h.engine.Next())
	s := h.engine.Snapshot()
	assert.Equal(t, 1, s.CurrentIndex)
	assert.False(t, s.IsPlaying)
	assert.Equal(t, "pause", h.out.last())
}

func TestRepeatOneReloadsCurrent(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 0, false))
	require.NoError(t, h.engine.SetRepeat(model.RepeatOne))
	before := h.out.lastToken()

	require.NoError(t, h.engine.Next())
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)
	assert.Greater(t, h.out.lastToken(), before)
	assert.Equal(t, "load /blob/a", h.out.last())
}

func TestShuffleNextStaysInQueue(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	h := newHarness(t, ids...)
	require.NoError(t, h.engine.LoadQueue(ByID(ids...), 0, true))

	for i := 0; i < 20; i++ {
		require.NoError(t, h.engine.Next())
		s := h.engine.Snapshot()
		assert.GreaterOrEqual(t, s.CurrentIndex, 0)
		assert.Less(t, s.CurrentIndex, len(ids))
	}
}

// Next does not scan past an entry without media: it stays on the current
// track instead of skipping to the next playable one.
func TestNextStaysPutWhenNextEntryHasNoMedia(t *testing.T) {
	h := newHarness(t)
	silent := model.Track{ID: "silent", Title: "No media"}
	require.NoError(t, h.engine.LoadQueue(ByTrack(track("a"), silent, track("c")), 0, false))

	require.NoError(t, h.engine.Next())
	s := h.engine.Snapshot()
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, "a", s.Current.ID)
}

func TestMediaEndedAdvances(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 0, false))
	h.ready()

	h.engine.MediaEnded(h.out.lastToken())
	assert.Equal(t, 1, h.engine.Snapshot().CurrentIndex)

	h.ready()
	assert.True(t, h.engine.Snapshot().IsPlaying)
}

func TestPrevRewindsAfterThreshold(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 1, false))
	h.ready()
	h.engine.TimeUpdate(h.out.lastToken(), 10, 200)

	require.NoError(t, h.engine.Prev())
	s := h.engine.Snapshot()
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Zero(t, s.CurrentTime)
	assert.Equal(t, "seek 0.0", h.out.last())
}

func TestPrevWithinThresholdWraps(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b", "c"), 0, false))
	h.ready()
	h.engine.TimeUpdate(h.out.lastToken(), 2.5, 200)

	require.NoError(t, h.engine.Prev())
	assert.Equal(t, 2, h.engine.Snapshot().CurrentIndex)

	require.NoError(t, h.engine.Prev())
	assert.Equal(t, 1, h.engine.Snapshot().CurrentIndex)
}

func TestSeekClampsToDuration(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.engine.LoadQueue(ByID("a"), 0, false))
	h.ready()

	h.engine.Seek(500)
	assert.Equal(t, 200.0, h.engine.Snapshot().CurrentTime)
	h.engine.Seek(-4)
	assert.Zero(t, h.engine.Snapshot().CurrentTime)
}

func TestSetVolumeClamps(t *testing.T) {
	h := newHarness(t, "a")

	h.engine.SetVolume(1.7)
	assert.Equal(t, 1.0, h.engine.Snapshot().Volume)
	h.engine.SetVolume(-1)
	assert.Zero(t, h.engine.Snapshot().Volume)
	h.engine.SetVolume(0.4)
	assert.Equal(t, 0.4, h.engine.Snapshot().Volume)
	assert.Equal(t, "volume 0.4", h.out.last())
}

func TestCycleRepeat(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, model.RepeatAll, h.engine.CycleRepeat())
	assert.Equal(t, model.RepeatOne, h.engine.CycleRepeat())
	assert.Equal(t, model.RepeatOff, h.engine.CycleRepeat())
	assert.Error(t, h.engine.SetRepeat(model.RepeatMode(7)))
}

func TestReorderFollowsCurrentTrack(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b", "c"), 0, false))

	require.NoError(t, h.engine.Reorder(0, 2))
	s := h.engine.Snapshot()
	assert.Equal(t, []string{"b", "c", "a"}, s.QueueIDs())
	assert.Equal(t, 2, s.CurrentIndex)
	assert.Equal(t, "a", s.Current.ID)

	require.NoError(t, h.engine.Reorder(0, 2))
	s = h.engine.Snapshot()
	assert.Equal(t, []string{"c", "a", "b"}, s.QueueIDs())
	assert.Equal(t, 1, s.CurrentIndex)

	require.NoError(t, h.engine.Reorder(2, 0))
	s = h.engine.Snapshot()
	assert.Equal(t, []string{"b", "c", "a"}, s.QueueIDs())
	assert.Equal(t, 2, s.CurrentIndex)
}

func TestReorderOutOfRange(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 0, false))

	assert.ErrorIs(t, h.engine.Reorder(0, 2), ErrIndexOutOfRange)
	assert.ErrorIs(t, h.engine.Reorder(-1, 0), ErrIndexOutOfRange)
	assert.Equal(t, []string{"a", "b"}, h.engine.Snapshot().QueueIDs())
}

func TestScenarioNextThroughQueueThenWrap(t *testing.T) {
	h := newHarness(t)
	h.lib.tracks = []model.Track{track("A"), track("B"), track("C")}
	h.lib.tracks[0].Title, h.lib.tracks[1].Title, h.lib.tracks[2].Title = "Song1", "Song2", "Song3"

	require.NoError(t, h.engine.LoadQueue(ByID("A", "B", "C"), 0, false))
	h.ready()
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)
	assert.Equal(t, "Song1", h.engine.Snapshot().Current.Title)
	assert.True(t, h.engine.Snapshot().IsPlaying)

	require.NoError(t, h.engine.Next())
	h.ready()
	assert.Equal(t, "Song2", h.engine.Snapshot().Current.Title)

	require.NoError(t, h.engine.Next())
	h.ready()
	assert.Equal(t, 2, h.engine.Snapshot().CurrentIndex)

	require.NoError(t, h.engine.Next())
	s := h.engine.Snapshot()
	assert.Equal(t, 2, s.CurrentIndex)
	assert.False(t, s.IsPlaying)

	assert.Equal(t, model.RepeatAll, h.engine.CycleRepeat())
	require.NoError(t, h.engine.Next())
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)
	assert.Equal(t, "Song1", h.engine.Snapshot().Current.Title)
}

func TestPlayNext(t *testing.T) {
	h := newHarness(t, "a", "b", "c")

	require.NoError(t, h.engine.PlayNext(Entry{ID: "c"}))
	s := h.engine.Snapshot()
	assert.Equal(t, []string{"c"}, s.QueueIDs())
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, `"C" will play next.`, h.notes.Last())

	require.NoError(t, h.engine.Enqueue(ByID("a")...))
	require.NoError(t, h.engine.PlayNext(Entry{ID: "b"}))
	assert.Equal(t, []string{"c", "b", "a"}, h.engine.Snapshot().QueueIDs())
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)

	assert.ErrorIs(t, h.engine.PlayNext(Entry{ID: "nope"}), ErrResourceMissing)
}

func TestEnqueueSkipsQueuedTracks(t *testing.T) {
	h := newHarness(t, "a", "b")

	require.NoError(t, h.engine.Enqueue(ByID("a")...))
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)
	assert.Equal(t, `Added "A" to queue.`, h.notes.Last())

	require.NoError(t, h.engine.Enqueue(ByID("a", "b", "b")...))
	assert.Equal(t, []string{"a", "b"}, h.engine.Snapshot().QueueIDs())
	assert.Equal(t, "Added 1 track(s) to queue.", h.notes.Last())
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)
}

func TestDequeue(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b", "c"), 2, false))

	assert.True(t, h.engine.Dequeue("a"))
	s := h.engine.Snapshot()
	assert.Equal(t, []string{"b", "c"}, s.QueueIDs())
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, "c", s.Current.ID)

	assert.False(t, h.engine.Dequeue("a"))
	_, stillInLibrary := h.lib.Get("a")
	assert.True(t, stillInLibrary)
}

func TestClearQueue(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 0, false))
	_, saved := h.record(t)
	require.True(t, saved)

	h.engine.ClearQueue()
	s := h.engine.Snapshot()
	assert.True(t, s.Empty())
	assert.Empty(t, s.Queue)
	assert.Equal(t, "unload", h.out.last())

	_, saved = h.record(t)
	assert.False(t, saved)

	require.NoError(t, h.engine.Enqueue(ByID("b")...))
	assert.Equal(t, 0, h.engine.Snapshot().CurrentIndex)
}

func TestSessionRoundTrip(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b", "c"), 1, false))
	h.ready()
	h.engine.TimeUpdate(h.out.lastToken(), 42.5, 200)
	h.engine.SetVolume(0.4)
	h.engine.ToggleShuffle()
	require.NoError(t, h.engine.SetRepeat(model.RepeatAll))

	raw, ok := h.record(t)
	require.True(t, ok)
	assert.NotContains(t, raw, "isPlaying")
	assert.Contains(t, raw, `"trackId":"b"`)

	out := &fakeOutput{}
	restored := New(Options{Output: out, Sessions: h.sessions, Tracks: h.lib})
	require.NoError(t, restored.Restore(context.Background()))

	s := restored.Snapshot()
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, "b", s.Current.ID)
	assert.Equal(t, []string{"a", "b", "c"}, s.QueueIDs())
	assert.InDelta(t, 42.5, s.CurrentTime, 0.001)
	assert.InDelta(t, 0.4, s.Volume, 0.001)
	assert.True(t, s.IsShuffled)
	assert.Equal(t, model.RepeatAll, s.RepeatState)
	assert.False(t, s.IsPlaying)

	restored.MediaReady(out.lastToken(), 200)
	assert.False(t, restored.Snapshot().IsPlaying)
	assert.Equal(t, "seek 42.5", out.last())
	assert.NotContains(t, out.commands(), "play")
}

func TestRestoreIgnoresTimeUpdatesUntilSeekApplied(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.sessions.Save(context.Background(), model.SessionRecord{TrackID: "a", CurrentTime: 30, Volume: 1}))

	require.NoError(t, h.engine.Restore(context.Background()))
	h.engine.TimeUpdate(h.out.lastToken(), 0, 200)
	assert.Equal(t, 30.0, h.engine.Snapshot().CurrentTime)

	raw, _ := h.record(t)
	assert.Contains(t, raw, `"currentTime":30`)
}

func TestRestoreWithMissingTrack(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.sessions.Save(context.Background(), model.SessionRecord{
		TrackID: "gone", CurrentTime: 10, Volume: 0.2, IsShuffled: true, RepeatState: model.RepeatOne,
	}))

	require.NoError(t, h.engine.Restore(context.Background()))
	s := h.engine.Snapshot()
	assert.True(t, s.Empty())
	assert.Equal(t, []string{"a", "b"}, s.QueueIDs())
	assert.Equal(t, 1.0, s.Volume)
	assert.False(t, s.IsShuffled)
	assert.Empty(t, h.out.commands())
}

func TestRestoreWithMalformedRecord(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.kv.Set(context.Background(), cache.SessionKey, "{not json"))

	require.NoError(t, h.engine.Restore(context.Background()))
	s := h.engine.Snapshot()
	assert.True(t, s.Empty())
	assert.Equal(t, []string{"a"}, s.QueueIDs())
}

func TestSessionWriteFailureKeepsInMemoryChange(t *testing.T) {
	e := New(Options{Sessions: failingSessions{}, Tracks: &fakeTracks{tracks: []model.Track{track("a")}}})

	e.SetVolume(0.5)
	require.NoError(t, e.LoadQueue(ByID("a"), 0, false))
	require.NoError(t, e.Restore(context.Background()))

	s := e.Snapshot()
	assert.Equal(t, 0.5, s.Volume)
	assert.True(t, s.Empty())
}

func TestSubscribersReceiveEventsAfterTurn(t *testing.T) {
	h := newHarness(t, "a")
	var types []EventType
	cancel := h.engine.Subscribe(func(ev Event) {
		// Reading the engine from a listener must not deadlock.
		_ = h.engine.Snapshot()
		types = append(types, ev.Type)
	})

	require.NoError(t, h.engine.LoadQueue(ByID("a"), 0, false))
	h.ready()
	h.engine.SetVolume(0.3)
	cancel()
	h.engine.SetVolume(0.6)

	assert.Equal(t, []EventType{EventTrack, EventQueue, EventState, EventSettings}, types)
}

func TestUpdatedLibraryTrackRefreshesQueue(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 0, false))

	edited := track("a")
	edited.Title = "Renamed"
	h.engine.HandleLibraryEvent(library.Event{Kind: library.Updated, Tracks: []model.Track{edited}})

	assert.Equal(t, "Renamed", h.engine.Snapshot().Current.Title)
}

func TestRemovedLibraryTrackBeforeCurrent(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b", "c"), 2, false))

	h.engine.HandleLibraryEvent(library.Event{Kind: library.Removed, Tracks: []model.Track{track("a")}})
	s := h.engine.Snapshot()
	assert.Equal(t, []string{"b", "c"}, s.QueueIDs())
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, "c", s.Current.ID)
}

func TestRemovedLastQueuedTrackGoesEmpty(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.engine.LoadQueue(ByID("a"), 0, false))

	h.engine.HandleLibraryEvent(library.Event{Kind: library.Removed, Tracks: []model.Track{track("a")}})
	assert.True(t, h.engine.Snapshot().Empty())
	_, saved := h.record(t)
	assert.False(t, saved)
}

func TestRemovedPausedTrackLoadsNextPaused(t *testing.T) {
	h := newHarness(t, "a", "b")
	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 0, false))
	h.ready()
	h.engine.Pause()

	h.engine.HandleLibraryEvent(library.Event{Kind: library.Removed, Tracks: []model.Track{track("a")}})
	h.ready()
	s := h.engine.Snapshot()
	assert.Equal(t, "b", s.Current.ID)
	assert.False(t, s.IsPlaying)
}

func newTestLibrary(t *testing.T) *library.Registry {
	t.Helper()
	blobs, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return library.New(library.Options{
		Store:    repository.NewGormTrackRepository(testutil.NewMemoryDB(t)),
		Blobs:    blobs,
		Handles:  resource.NewRegistry(),
		Notifier: &notify.Recorder{},
	})
}

func TestRemovingCurrentLibraryTrack(t *testing.T) {
	ctx := context.Background()
	lib := newTestLibrary(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := lib.Add(ctx, &model.TrackDescriptor{ID: id, Title: id}, &metadata.RawMedia{Name: id + ".mp3", Data: []byte("audio " + id)})
		require.NoError(t, err)
	}

	out := &fakeOutput{}
	e := New(Options{Output: out, Sessions: cache.NewSessionCache(cache.NewMemoryKV()), Tracks: lib})
	defer e.Attach(lib)()

	require.NoError(t, e.LoadQueue(ByID("a", "b", "c"), 1, false))
	e.MediaReady(out.lastToken(), 100)
	require.True(t, e.Snapshot().IsPlaying)
	removedRef := e.Snapshot().Current.MediaRef

	out.reset()
	_, err := lib.Remove(ctx, "b")
	require.NoError(t, err)

	cmds := out.commands()
	require.GreaterOrEqual(t, len(cmds), 3)
	assert.Equal(t, []string{"pause", "unload"}, cmds[:2])
	assert.NotEqual(t, "load "+removedRef, cmds[2])

	s := e.Snapshot()
	assert.Equal(t, []string{"a", "c"}, s.QueueIDs())
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, "c", s.Current.ID)

	e.MediaReady(out.lastToken(), 100)
	assert.True(t, e.Snapshot().IsPlaying)
}

func TestEventSeqIncreasesAcrossTurns(t *testing.T) {
	h := newHarness(t, "a", "b")
	var seqs []uint64
	h.engine.Subscribe(func(ev Event) { seqs = append(seqs, ev.Seq) })

	require.NoError(t, h.engine.LoadQueue(ByID("a", "b"), 0, false))
	h.ready()
	h.engine.Pause()
	h.engine.SetVolume(0.4)

	require.NotEmpty(t, seqs)
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1])
	}
	assert.Equal(t, seqs[len(seqs)-1], h.engine.Current().Seq)
	assert.Equal(t, EventState, h.engine.Current().Type)
}
