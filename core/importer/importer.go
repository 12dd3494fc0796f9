// Package importer watches a folder and feeds new audio files to the library.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"genesis/core/metadata"
	"genesis/logger"
	"genesis/model"

	"github.com/fsnotify/fsnotify"
)

// ImportedDir is the subfolder files are moved to once ingested.
const ImportedDir = "imported"

// Ingester adds a batch of files to the library.
type Ingester interface {
	AddFiles(ctx context.Context, files []metadata.RawMedia) []model.Track
}

// Importer is not safe for concurrent Run calls.
type Importer struct {
	dir     string
	lib     Ingester
	settle  time.Duration // quiet time before a file is considered complete
	tick    time.Duration
	maxSize int64
}

func New(dir string, lib Ingester) *Importer {
	return &Importer{
		dir:     dir,
		lib:     lib,
		settle:  500 * time.Millisecond,
		tick:    100 * time.Millisecond,
		maxSize: 256 << 20,
	}
}

// SetSettle changes how long a file must stay unchanged before import.
func (im *Importer) SetSettle(d time.Duration) {
	im.settle = d
	if d/5 < im.tick {
		im.tick = max(d/5, time.Millisecond)
	}
}

// ScanOnce imports the audio files currently in the folder.
func (im *Importer) ScanOnce(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(im.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read import dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			paths = append(paths, filepath.Join(im.dir, e.Name()))
		}
	}
	return im.ingest(ctx, paths), nil
}

// ingest reads the audio files among paths, hands them over as one batch
// and moves them into ImportedDir.
func (im *Importer) ingest(ctx context.Context, paths []string) int {
	sort.Strings(paths)
	var (
		files []metadata.RawMedia
		taken []string
	)
	for _, p := range paths {
		name := filepath.Base(p)
		if !metadata.IsAudio(name, "") {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.Size() > im.maxSize {
			logger.Warn("skipping oversized import", logger.String("file", p), logger.Int64("size", info.Size()))
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			logger.Warn("failed to read import", logger.String("file", p), logger.ErrorField(err))
			continue
		}
		files = append(files, metadata.RawMedia{Name: name, Data: data})
		taken = append(taken, p)
	}
	if len(files) == 0 {
		return 0
	}

	added := im.lib.AddFiles(ctx, files)
	im.archive(taken)
	logger.Info("import batch done", logger.Int("files", len(files)), logger.Int("added", len(added)))
	return len(added)
}

func (im *Importer) archive(paths []string) {
	dst := filepath.Join(im.dir, ImportedDir)
	if err := os.MkdirAll(dst, 0755); err != nil {
		logger.Error("failed to create imported dir", logger.ErrorField(err))
		return
	}
	for _, p := range paths {
		if err := os.Rename(p, filepath.Join(dst, filepath.Base(p))); err != nil {
			logger.Warn("failed to archive import", logger.String("file", p), logger.ErrorField(err))
		}
	}
}

// Run imports what is already in the folder, then watches it until ctx is
// done. Files are picked up once they have been quiet for the settle time.
func (im *Importer) Run(ctx context.Context) error {
	if err := os.MkdirAll(im.dir, 0755); err != nil {
		return fmt.Errorf("failed to create import dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(im.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", im.dir, err)
	}
	logger.Info("watching import folder", logger.String("dir", im.dir))

	if _, err := im.ScanOnce(ctx); err != nil {
		logger.Warn("initial import scan failed", logger.ErrorField(err))
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(im.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Dir(event.Name) != filepath.Clean(im.dir) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("import watcher error", logger.ErrorField(err))

		case now := <-ticker.C:
			var ready []string
			for p, last := range pending {
				if now.Sub(last) >= im.settle {
					ready = append(ready, p)
					delete(pending, p)
				}
			}
			if len(ready) > 0 {
				im.ingest(ctx, ready)
			}
		}
	}
}
