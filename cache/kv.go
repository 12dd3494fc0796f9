package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Fixed keys of the persisted records.
const (
	SessionKey   = "genesis_playback_state"
	PlaylistsKey = "genesis_playlists"
)

// KVStore is the string key/value store behind the session and playlists
// records. Get reports false for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// RedisKV is a KVStore on a go-redis client.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (kv *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	if kv.client == nil {
		return "", false, fmt.Errorf("Redis client not initialized")
	}
	val, err := kv.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value without expiry.
func (kv *RedisKV) Set(ctx context.Context, key, value string) error {
	if kv.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := kv.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (kv *RedisKV) Delete(ctx context.Context, key string) error {
	if kv.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := kv.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// MemoryKV keeps values in process memory; nothing survives a restart.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (kv *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.values[key]
	return v, ok, nil
}

func (kv *MemoryKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

func (kv *MemoryKV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.values, key)
	return nil
}
