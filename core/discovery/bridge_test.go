package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

type stubSource struct {
	results []model.TrackDescriptor
	err     error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Search(context.Context, string) ([]model.TrackDescriptor, error) {
	return s.results, s.err
}

func (s *stubSource) Lookup(_ context.Context, id string) (*model.TrackDescriptor, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, d := range s.results {
		if d.ID == id {
			c := d
			return &c, nil
		}
	}
	return nil, nil
}

type fixture struct {
	ctx     context.Context
	source  *stubSource
	tracks  repository.TrackRepository
	artists repository.ArtistRepository
	lib     *library.Registry
	notes   *notify.Recorder
	bridge  *Bridge
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewMemoryDB(t)
	blobs, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		ctx:     context.Background(),
		source:  &stubSource{},
		tracks:  repository.NewGormTrackRepository(db),
		artists: repository.NewGormArtistRepository(db),
		notes:   &notify.Recorder{},
	}
	f.lib = library.New(library.Options{
		Store:    f.tracks,
		Blobs:    blobs,
		Handles:  resource.NewRegistry(),
		Notifier: f.notes,
	})
	f.bridge = NewBridge(BridgeOptions{
		Source:   f.source,
		Tracks:   f.tracks,
		Artists:  f.artists,
		Library:  f.lib,
		Notifier: f.notes,
	})
	return f
}

func sunrise(audioURL, artURL string) model.TrackDescriptor {
	return model.TrackDescriptor{
		ID: "100", Title: "Sunrise", Artist: "Ava", Album: "Mornings", Duration: 184,
		AudioURL: audioURL, AlbumArt: artURL, Tags: []string{"ambient"}, Bio: "Ava makes calm music.",
		SimilarArtists: []string{"Bo"},
	}
}

func TestSearchCachesResults(t *testing.T) {
	f := newFixture(t)
	f.source.results = []model.TrackDescriptor{sunrise("https://a.example/100.mp3", "https://i.example/100.jpg")}

	res := f.bridge.Search(f.ctx, "  ")
	assert.False(t, res.Offline)
	require.Len(t, res.Tracks, 1)

	row, err := f.tracks.Get(f.ctx, "100")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.Downloaded)
	assert.Equal(t, "https://a.example/100.mp3", row.AudioURL)

	artist, err := f.artists.Get(f.ctx, "Ava")
	require.NoError(t, err)
	require.NotNil(t, artist)
	assert.Equal(t, "ambient", artist.Genre)
	assert.Equal(t, "https://i.example/100.jpg", artist.ImageURL)
	assert.Equal(t, model.StringList{"Bo"}, artist.SimilarArtists)
}

func TestSearchNeverOverwritesDownloadedTrack(t *testing.T) {
	f := newFixture(t)
	kept := &model.Track{ID: "100", Title: "My Edit", Artist: "Ava", Downloaded: true, MediaKey: "audio/100"}
	require.NoError(t, f.tracks.Put(f.ctx, kept))

	f.source.results = []model.TrackDescriptor{sunrise("https://a.example/100.mp3", "")}
	f.bridge.Search(f.ctx, "sun")

	row, err := f.tracks.Get(f.ctx, "100")
	require.NoError(t, err)
	assert.True(t, row.Downloaded)
	assert.Equal(t, "My Edit", row.Title)
}

// downloadRace adds the track to the library right before the catalog write.
type downloadRace struct {
	repository.TrackRepository
	before func()
}

func (s *downloadRace) PutCatalog(ctx context.Context, track *model.Track) error {
	if s.before != nil {
		s.before()
		s.before = nil
	}
	return s.TrackRepository.PutCatalog(ctx, track)
}

func TestSearchKeepsTrackDownloadedMidSearch(t *testing.T) {
	f := newFixture(t)
	desc := sunrise("https://a.example/100.mp3", "")
	f.source.results = []model.TrackDescriptor{desc}

	race := &downloadRace{TrackRepository: f.tracks}
	race.before = func() {
		_, err := f.lib.Add(f.ctx, &desc, &metadata.RawMedia{Name: "sunrise.mp3", Data: []byte("audio")})
		require.NoError(t, err)
	}
	f.bridge = NewBridge(BridgeOptions{Source: f.source, Tracks: race, Library: f.lib, Notifier: f.notes})

	f.bridge.Search(f.ctx, "sun")

	row, err := f.tracks.Get(f.ctx, "100")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.Downloaded)
	assert.Equal(t, storage.MediaKey("100"), row.MediaKey)
}

func TestSearchFallsBackToCacheWhenOffline(t *testing.T) {
	f := newFixture(t)
	f.source.results = []model.TrackDescriptor{sunrise("https://a.example/100.mp3", "")}
	f.bridge.Search(f.ctx, "popular")

	f.source.err = ErrUpstreamUnavailable
	res := f.bridge.Search(f.ctx, "SUN")
	assert.True(t, res.Offline)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "Sunrise", res.Tracks[0].Title)
	assert.Equal(t, "Offline. Searching your local cache...", f.notes.Last())

	res = f.bridge.Search(f.ctx, "nothing like this")
	assert.Empty(t, res.Tracks)
	assert.Equal(t, []string{"Offline. Searching your local cache...", "Could not load any tracks."}, f.notes.Messages()[1:])
}

func TestStream(t *testing.T) {
	f := newFixture(t)

	tr, err := f.bridge.Stream(sunrise("https://a.example/100.mp3", "https://i.example/100.jpg"))
	require.NoError(t, err)
	assert.True(t, tr.IsRemote)
	assert.Equal(t, "https://a.example/100.mp3", tr.MediaRef)
	assert.Equal(t, "https://i.example/100.jpg", tr.CoverRef)
	assert.False(t, f.lib.Has("100"))

	_, err = f.bridge.Stream(model.TrackDescriptor{ID: "1"})
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestDownloadAddsToLibrary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/100.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3 fake audio bytes"))
		case "/100.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newFixture(t)
	f.source.results = []model.TrackDescriptor{sunrise(srv.URL+"/100.mp3", srv.URL+"/100.jpg")}

	tr, err := f.bridge.Download(f.ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "Sunrise", tr.Title)
	assert.True(t, tr.Downloaded)
	assert.True(t, resource.IsHandle(tr.MediaRef))
	assert.True(t, resource.IsHandle(tr.CoverRef))
	assert.Equal(t, `Successfully added "Sunrise" to your library!`, f.notes.Last())

	row, err := f.tracks.Get(f.ctx, "100")
	require.NoError(t, err)
	assert.True(t, row.Downloaded)

	again, err := f.bridge.Download(f.ctx, "100")
	assert.ErrorIs(t, err, ErrAlreadyInLibrary)
	assert.Equal(t, "100", again.ID)
	assert.Equal(t, `"Sunrise" is already in your library.`, f.notes.Last())
}

func TestDownloadFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := newFixture(t)
	f.source.results = []model.TrackDescriptor{sunrise(srv.URL+"/gone.mp3", "")}

	_, err := f.bridge.Download(f.ctx, "missing")
	assert.ErrorIs(t, err, ErrTrackNotFound)

	_, err = f.bridge.Download(f.ctx, "100")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.True(t, strings.HasPrefix(f.notes.Last(), "Failed to add"))
	assert.False(t, f.lib.Has("100"))

	f.source.err = errors.New("boom")
	_, err = f.bridge.Download(f.ctx, "100")
	assert.Error(t, err)
}
