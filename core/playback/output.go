package playback

import (
	"context"

	"genesis/model"
)

// Output is the active media element. The engine owns the single binding;
// token identifies it in the feedback calls (MediaReady, MediaEnded,
// TimeUpdate). Implementations must not call back into the engine from
// inside these methods.
type Output interface {
	Load(token uint64, ref string)
	Unload()
	Play()
	Pause()
	Seek(seconds float64)
	SetVolume(v float64)
}

// SessionStore persists the playback session record.
type SessionStore interface {
	Load(ctx context.Context) (*model.SessionRecord, error)
	Save(ctx context.Context, rec model.SessionRecord) error
	Clear(ctx context.Context) error
}

// TrackSource resolves track ids against the library.
type TrackSource interface {
	Get(id string) (model.Track, bool)
	List() []model.Track
}

type nopOutput struct{}

func (nopOutput) Load(uint64, string) {}
func (nopOutput) Unload()             {}
func (nopOutput) Play()               {}
func (nopOutput) Pause()              {}
func (nopOutput) Seek(float64)        {}
func (nopOutput) SetVolume(float64)   {}

type emptySource struct{}

func (emptySource) Get(string) (model.Track, bool) { return model.Track{}, false }
func (emptySource) List() []model.Track            { return nil }

// Entry is one item handed to LoadQueue, Enqueue or PlayNext: either a
// library id or a full track value (a streamed catalog result).
type Entry struct {
	ID    string
	Track *model.Track
}

// ByID builds entries that resolve through the library.
func ByID(ids ...string) []Entry {
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, Entry{ID: id})
	}
	return entries
}

// ByTrack builds entries from track values.
func ByTrack(tracks ...model.Track) []Entry {
	entries := make([]Entry, 0, len(tracks))
	for i := range tracks {
		t := tracks[i].Clone()
		entries = append(entries, Entry{ID: t.ID, Track: &t})
	}
	return entries
}
