package importer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"genesis/core/metadata"
	"genesis/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIngester struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recordingIngester) AddFiles(_ context.Context, files []metadata.RawMedia) []model.Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	var out []model.Track
	for _, f := range files {
		names = append(names, f.Name)
		out = append(out, model.Track{ID: f.Name})
	}
	r.batches = append(r.batches, names)
	return out
}

func (r *recordingIngester) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []string
	for _, b := range r.batches {
		all = append(all, b...)
	}
	return all
}

func write(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data "+name), 0644))
}

func TestScanOnceImportsAudioAndArchives(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "b.mp3")
	write(t, dir, "a.flac")
	write(t, dir, "notes.txt")

	ing := &recordingIngester{}
	im := New(dir, ing)
	n, err := im.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]string{{"a.flac", "b.mp3"}}, ing.batches)

	assert.FileExists(t, filepath.Join(dir, ImportedDir, "a.flac"))
	assert.NoFileExists(t, filepath.Join(dir, "b.mp3"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	n, err = im.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, ing.batches, 1)
}

func TestScanOnceMissingDir(t *testing.T) {
	im := New(filepath.Join(t.TempDir(), "nope"), &recordingIngester{})
	_, err := im.ScanOnce(context.Background())
	assert.Error(t, err)
}

func TestRunPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "existing.mp3")

	ing := &recordingIngester{}
	im := New(dir, ing)
	im.SetSettle(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(ing.names()) == 1 }, 2*time.Second, 20*time.Millisecond)

	write(t, dir, "fresh.ogg")
	assert.Eventually(t, func() bool { return len(ing.names()) == 2 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"existing.mp3", "fresh.ogg"}, ing.names())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("importer did not stop")
	}
}
