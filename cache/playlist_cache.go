package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"genesis/logger"
	"genesis/model"
)

// PlaylistCache persists every playlist as one JSON object keyed by playlist id.
type PlaylistCache struct {
	kv KVStore
}

// NewPlaylistCache creates a PlaylistCache on kv.
func NewPlaylistCache(kv KVStore) *PlaylistCache {
	return &PlaylistCache{kv: kv}
}

// Load returns an empty map when nothing is stored or the record is malformed.
func (c *PlaylistCache) Load(ctx context.Context) (map[string]*model.Playlist, error) {
	playlists := make(map[string]*model.Playlist)

	raw, ok, err := c.kv.Get(ctx, PlaylistsKey)
	if err != nil {
		return playlists, err
	}
	if !ok || raw == "" {
		return playlists, nil
	}

	if err := json.Unmarshal([]byte(raw), &playlists); err != nil {
		logger.Warn("discarding malformed playlists record", logger.ErrorField(err))
		return make(map[string]*model.Playlist), nil
	}
	for id, p := range playlists {
		if p == nil {
			delete(playlists, id)
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
		if p.TrackIDs == nil {
			p.TrackIDs = []string{}
		}
	}
	return playlists, nil
}

func (c *PlaylistCache) Save(ctx context.Context, playlists map[string]*model.Playlist) error {
	data, err := json.Marshal(playlists)
	if err != nil {
		return fmt.Errorf("failed to marshal playlists: %w", err)
	}
	return c.kv.Set(ctx, PlaylistsKey, string(data))
}
