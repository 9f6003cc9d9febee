// Package dropfolder uploads audio files that appear in a local directory.
package dropfolder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stemboard/core/apperr"
	"stemboard/core/media"
	"stemboard/logger"
	"stemboard/model"

	"github.com/fsnotify/fsnotify"
)

// Uploader receives each settled audio file. media.Registry satisfies it.
type Uploader interface {
	UploadAsset(ctx context.Context, f media.File) (*model.Asset, error)
}

// Watcher turns new files in a directory into uploads. A file is picked up
// once it has seen no write for the settle interval.
type Watcher struct {
	dir      string
	uploader Uploader
	settle   time.Duration
	tick     time.Duration
	existing bool
	onUpload func(path string, asset *model.Asset, err error)

	done map[string]bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file must stay unchanged before upload.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
			if d < w.tick {
				w.tick = d
			}
		}
	}
}

// WithExisting also uploads the files already in the directory at start.
func WithExisting() Option {
	return func(w *Watcher) { w.existing = true }
}

// WithUploadHook is called after every upload attempt.
func WithUploadHook(fn func(path string, asset *model.Asset, err error)) Option {
	return func(w *Watcher) { w.onUpload = fn }
}

// New creates a watcher for dir.
func New(dir string, uploader Uploader, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		uploader: uploader,
		settle:   500 * time.Millisecond,
		tick:     100 * time.Millisecond,
		done:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Info("Watching drop folder", logger.String("dir", w.dir))

	pending := make(map[string]time.Time)
	if w.existing {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("read %s: %w", w.dir, err)
		}
		for _, e := range entries {
			path := filepath.Join(w.dir, e.Name())
			if !e.IsDir() && !hidden(path) {
				pending[path] = time.Time{}
			}
		}
	}

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && !hidden(event.Name) {
				pending[event.Name] = time.Now()
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(pending, event.Name)
				delete(w.done, event.Name)
			}

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				if w.done[path] {
					continue
				}
				w.done[path] = true
				if err := w.upload(ctx, path); errors.Is(err, apperr.ErrRateLimited) {
					// try again after another settle period
					delete(w.done, path)
					pending[path] = now
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Drop folder watch error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) upload(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	contentType := media.ContentTypeFor(path)
	if !media.IsAudio(contentType) {
		logger.Debug("Skipping non-audio file", logger.String("path", path))
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Warn("Failed to open dropped file", logger.String("path", path), logger.ErrorField(err))
		return nil
	}
	defer f.Close()

	asset, err := w.uploader.UploadAsset(ctx, media.File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Body:        f,
	})
	switch {
	case errors.Is(err, apperr.ErrRateLimited):
		logger.Warn("Drop folder upload throttled, will retry", logger.String("path", path))
	case err != nil:
		logger.Error("Drop folder upload failed", logger.String("path", path), logger.ErrorField(err))
	default:
		logger.Info("Uploaded dropped file", logger.String("path", path), logger.String("assetId", asset.ID))
	}
	if w.onUpload != nil {
		w.onUpload(path, asset, err)
	}
	return err
}

// editors and the OS leave dotfiles and partial downloads around
func hidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".crdownload")
}
