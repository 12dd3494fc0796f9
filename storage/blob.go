package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotFound is returned by Open for a missing key.
var ErrNotFound = errors.New("blob not found")

// ObjectInfo describes one stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// BlobStore holds the media and cover bytes of locally owned tracks.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Open returns ErrNotFound if the key does not exist.
	Open(ctx context.Context, key string) (io.ReadSeekCloser, ObjectInfo, error)
	// Remove deletes key; a missing key is not an error.
	Remove(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Keys under which a track's blobs are stored.
func MediaKey(trackID string) string { return "audio/" + trackID }
func CoverKey(trackID string) string { return "covers/" + trackID }

// BucketStats summarises a listing.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// Stats aggregates the objects under prefix.
func Stats(ctx context.Context, store BlobStore, prefix string) ([]ObjectInfo, *BucketStats, error) {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return nil, nil, err
	}

	stats := &BucketStats{}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
	}
	return objects, stats, nil
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
