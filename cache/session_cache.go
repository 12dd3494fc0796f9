package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"genesis/logger"
	"genesis/model"
)

// SessionCache persists the playback session record under SessionKey.
type SessionCache struct {
	kv KVStore
}

// NewSessionCache creates a SessionCache on kv.
func NewSessionCache(kv KVStore) *SessionCache {
	return &SessionCache{kv: kv}
}

// Load returns nil when no record exists or the stored JSON is malformed.
func (c *SessionCache) Load(ctx context.Context) (*model.SessionRecord, error) {
	raw, ok, err := c.kv.Get(ctx, SessionKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var rec model.SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		logger.Warn("discarding malformed session record", logger.ErrorField(err))
		return nil, nil
	}
	if !rec.RepeatState.Valid() {
		rec.RepeatState = model.RepeatOff
	}
	return &rec, nil
}

func (c *SessionCache) Save(ctx context.Context, rec model.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	return c.kv.Set(ctx, SessionKey, string(data))
}

func (c *SessionCache) Clear(ctx context.Context) error {
	return c.kv.Delete(ctx, SessionKey)
}
