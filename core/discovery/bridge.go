package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genesis/core/metadata"
	"genesis/core/notify"
	"genesis/logger"
	"genesis/model"
	"genesis/repository"

	"github.com/samber/lo"
)

const (
	defaultQuery       = "popular"
	defaultMaxDownload = 64 << 20
)

// Library is the part of the library registry the bridge writes to.
type Library interface {
	Get(id string) (model.Track, bool)
	Add(ctx context.Context, desc *model.TrackDescriptor, raw *metadata.RawMedia) (model.Track, error)
}

// BridgeOptions wires a Bridge. Artists and HTTPClient are optional.
type BridgeOptions struct {
	Source      Source
	Tracks      repository.TrackRepository
	Artists     repository.ArtistRepository
	Library     Library
	Notifier    notify.Notifier
	HTTPClient  *http.Client
	MaxDownload int64 // bytes
}

// Result is one discover search. Offline is set when the results come from
// the local catalog cache.
type Result struct {
	Tracks  []model.TrackDescriptor `json:"tracks"`
	Offline bool                    `json:"offline"`
}

// Bridge connects a catalog Source to the library and its caches.
type Bridge struct {
	source      Source
	tracks      repository.TrackRepository
	artists     repository.ArtistRepository
	library     Library
	notifier    notify.Notifier
	httpClient  *http.Client
	maxDownload int64
}

func NewBridge(opts BridgeOptions) *Bridge {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if opts.MaxDownload <= 0 {
		opts.MaxDownload = defaultMaxDownload
	}
	return &Bridge{
		source:      opts.Source,
		tracks:      opts.Tracks,
		artists:     opts.Artists,
		library:     opts.Library,
		notifier:    notify.OrLog(opts.Notifier),
		httpClient:  opts.HTTPClient,
		maxDownload: opts.MaxDownload,
	}
}

// Source returns the catalog the bridge searches.
func (b *Bridge) Source() Source {
	return b.source
}

// Search queries the catalog ("popular" when query is blank) and caches the
// results. When the catalog is unreachable it searches the cached rows.
func (b *Bridge) Search(ctx context.Context, query string) Result {
	q := strings.TrimSpace(query)
	if q == "" {
		q = defaultQuery
	}

	found, err := b.source.Search(ctx, q)
	if err == nil {
		b.cache(ctx, found)
		return Result{Tracks: found}
	}

	logger.Warn("discover search failed, using local cache", logger.String("query", q), logger.ErrorField(err))
	b.notifier.Notify("Offline. Searching your local cache...")

	cached, lerr := b.tracks.Search(ctx, q)
	if lerr != nil {
		logger.Error("local catalog search failed", logger.ErrorField(lerr))
	}
	out := lo.Map(cached, func(t *model.Track, _ int) model.TrackDescriptor { return descriptorOf(*t) })
	if len(out) == 0 {
		b.notifier.Notify("Could not load any tracks.")
	}
	return Result{Tracks: out, Offline: true}
}

// cache stores results as metadata-only rows. Downloaded rows are left alone.
func (b *Bridge) cache(ctx context.Context, found []model.TrackDescriptor) {
	for _, d := range found {
		row := catalogRow(d)
		if err := b.tracks.PutCatalog(ctx, &row); err != nil {
			logger.Warn("failed to cache discovered track", logger.String("track", d.ID), logger.ErrorField(err))
		}

		if b.artists == nil || strings.TrimSpace(d.Artist) == "" {
			continue
		}
		info := &model.ArtistInfo{
			Name:           d.Artist,
			Bio:            d.Bio,
			ImageURL:       d.AlbumArt,
			SimilarArtists: d.SimilarArtists,
		}
		if len(d.Tags) > 0 {
			info.Genre = d.Tags[0]
		}
		if err := b.artists.Put(ctx, info); err != nil {
			logger.Warn("failed to cache artist", logger.String("artist", d.Artist), logger.ErrorField(err))
		}
	}
}

func catalogRow(d model.TrackDescriptor) model.Track {
	return model.Track{
		ID:             d.ID,
		Title:          d.Title,
		Artist:         d.Artist,
		Album:          d.Album,
		Duration:       d.Duration,
		AudioURL:       d.AudioURL,
		AlbumArtURL:    d.AlbumArt,
		Tags:           d.Tags,
		Bio:            d.Bio,
		LyricsURL:      d.LyricsURL,
		MBID:           d.MBID,
		SimilarArtists: d.SimilarArtists,
		Downloaded:     false,
	}
}

func descriptorOf(t model.Track) model.TrackDescriptor {
	return model.TrackDescriptor{
		ID:             t.ID,
		Title:          t.Title,
		Artist:         t.Artist,
		Album:          t.Album,
		Duration:       t.Duration,
		AudioURL:       t.AudioURL,
		AlbumArt:       t.AlbumArtURL,
		Tags:           append([]string{}, t.Tags...),
		Bio:            t.Bio,
		LyricsURL:      t.LyricsURL,
		MBID:           t.MBID,
		SimilarArtists: append([]string{}, t.SimilarArtists...),
	}
}

// Stream builds a remote track that plays straight from the catalog URL.
// Nothing is stored.
func (b *Bridge) Stream(desc model.TrackDescriptor) (model.Track, error) {
	if desc.ID == "" || desc.AudioURL == "" {
		return model.Track{}, ErrNoAudio
	}
	t := catalogRow(desc)
	if t.Title == "" {
		t.Title = model.UnknownTitle
	}
	if t.Artist == "" {
		t.Artist = model.UnknownArtist
	}
	t.IsRemote = true
	t.MediaRef = desc.AudioURL
	t.CoverRef = desc.AlbumArt
	return t, nil
}

// Download fetches the catalog track's audio (and artwork when available)
// and adds it to the library.
func (b *Bridge) Download(ctx context.Context, id string) (model.Track, error) {
	if existing, ok := b.library.Get(id); ok {
		b.notifier.Notify(fmt.Sprintf("%q is already in your library.", existing.Title))
		return existing, ErrAlreadyInLibrary
	}

	desc, err := b.source.Lookup(ctx, id)
	if err != nil {
		b.notifier.Notify("Failed to add track to library. Please try again.")
		return model.Track{}, err
	}
	if desc == nil {
		return model.Track{}, ErrTrackNotFound
	}
	if desc.AudioURL == "" {
		return model.Track{}, ErrNoAudio
	}

	b.notifier.Notify(fmt.Sprintf("Downloading %q...", desc.Title))
	data, contentType, err := b.fetch(ctx, desc.AudioURL)
	if err != nil {
		logger.Error("failed to download catalog audio", logger.String("track", id), logger.ErrorField(err))
		b.notifier.Notify(fmt.Sprintf("Failed to add %q to library. Please try again.", desc.Title))
		return model.Track{}, err
	}
	if !strings.HasPrefix(contentType, "audio/") {
		contentType = "audio/mpeg"
	}

	if desc.AlbumArt != "" {
		if art, artType, err := b.fetch(ctx, desc.AlbumArt); err == nil && strings.HasPrefix(artType, "image/") {
			desc.Cover, desc.CoverType = art, artType
		} else if err != nil {
			logger.Debug("album art not downloaded", logger.String("track", id), logger.ErrorField(err))
		}
	}

	name := desc.Title
	if name == "" {
		name = id
	}
	t, err := b.library.Add(ctx, desc, &metadata.RawMedia{
		Name:        name + ".mp3",
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		b.notifier.Notify(fmt.Sprintf("Failed to add %q to library. Please try again.", desc.Title))
		return model.Track{}, err
	}
	b.notifier.Notify(fmt.Sprintf("Successfully added %q to your library!", t.Title))
	return t, nil
}

func (b *Bridge) fetch(ctx context.Context, u string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxDownload+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > b.maxDownload {
		return nil, "", errors.New("download exceeds size limit")
	}
	ct := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return data, strings.TrimSpace(ct), nil
}
