package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"genesis/logger"
	"genesis/model"
)

const DefaultJamendoURL = "https://api.jamendo.com/v3.0"

// JamendoClient reads tracks from the Jamendo v3 API.
type JamendoClient struct {
	baseURL    string
	clientID   string
	limit      int
	httpClient *http.Client
}

// NewJamendoClient creates a client for clientID with a 10 track page size.
func NewJamendoClient(clientID string) *JamendoClient {
	return &JamendoClient{
		baseURL:  DefaultJamendoURL,
		clientID: clientID,
		limit:    10,
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

// SetBaseURL points the client at another API root.
func (c *JamendoClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// SetTimeout sets the request timeout.
func (c *JamendoClient) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetLimit sets the search page size.
func (c *JamendoClient) SetLimit(limit int) {
	if limit > 0 {
		c.limit = limit
	}
}

func (c *JamendoClient) Name() string { return "jamendo" }

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.TrimSpace(string(b)))
	return nil
}

type jamendoTrack struct {
	ID         flexString `json:"id"`
	Name       string     `json:"name"`
	Duration   float64    `json:"duration"`
	ArtistName string     `json:"artist_name"`
	AlbumName  string     `json:"album_name"`
	AlbumImage string     `json:"album_image"`
	Image      string     `json:"image"`
	Audio      string     `json:"audio"`
	MusicInfo  struct {
		Tags struct {
			Genres  []string `json:"genres"`
			VarTags []string `json:"vartags"`
		} `json:"tags"`
	} `json:"musicinfo"`
}

type jamendoResponse struct {
	Headers struct {
		Status       string `json:"status"`
		Code         int    `json:"code"`
		ErrorMessage string `json:"error_message"`
	} `json:"headers"`
	Results []jamendoTrack `json:"results"`
}

// toDescriptor maps one Jamendo result onto the discover wire format.
func toDescriptor(t jamendoTrack) model.TrackDescriptor {
	art := t.AlbumImage
	if art == "" {
		art = t.Image
	}
	tags := append([]string{}, t.MusicInfo.Tags.Genres...)
	tags = append(tags, t.MusicInfo.Tags.VarTags...)
	return model.TrackDescriptor{
		ID:             string(t.ID),
		Title:          t.Name,
		Artist:         t.ArtistName,
		Album:          t.AlbumName,
		Duration:       t.Duration,
		AudioURL:       t.Audio,
		AlbumArt:       art,
		Tags:           tags,
		SimilarArtists: []string{},
	}
}

func (c *JamendoClient) tracks(ctx context.Context, params url.Values) ([]model.TrackDescriptor, error) {
	params.Set("client_id", c.clientID)
	params.Set("format", "json")
	params.Set("include", "musicinfo")
	endpoint := fmt.Sprintf("%s/tracks/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body jamendoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUpstreamUnavailable, err)
	}
	if body.Headers.Status != "" && body.Headers.Status != "success" {
		return nil, fmt.Errorf("%w: %s (code %d)", ErrUpstreamUnavailable, body.Headers.ErrorMessage, body.Headers.Code)
	}

	out := make([]model.TrackDescriptor, 0, len(body.Results))
	for _, r := range body.Results {
		if r.ID == "" {
			continue
		}
		out = append(out, toDescriptor(r))
	}
	logger.Debug("jamendo request done", logger.String("params", params.Get("search")+params.Get("id")), logger.Int("results", len(out)))
	return out, nil
}

func (c *JamendoClient) Search(ctx context.Context, query string) ([]model.TrackDescriptor, error) {
	return c.tracks(ctx, url.Values{
		"search": {query},
		"limit":  {strconv.Itoa(c.limit)},
	})
}

func (c *JamendoClient) Lookup(ctx context.Context, id string) (*model.TrackDescriptor, error) {
	found, err := c.tracks(ctx, url.Values{"id": {id}})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
