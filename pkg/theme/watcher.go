package theme

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher invalidates cached variable sets when theme files change on disk.
// It pairs a DirResolver with a Cache: editing <dir>/oceanic.yaml drops every
// cached entry for theme "oceanic", so the next transition re-resolves from
// the updated file.
type Watcher struct {
	cache   *Cache
	dir     string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher over the resolver's theme directory.
func NewWatcher(cache *Cache, resolver *DirResolver, logger zerolog.Logger) *Watcher {
	return &Watcher{
		cache:  cache,
		dir:    resolver.Dir(),
		logger: logger.With().Str("component", "theme-watcher").Logger(),
	}
}

// Start begins watching. It returns once the watch is established; event
// processing continues on a background goroutine until the context is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = watcher

	go w.processEvents(ctx)

	w.logger.Info().Str("dir", w.dir).Msg("watching theme directory")
	return nil
}

// Stop ends the watch. Safe to call when Start failed or was never called.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			themeID, ok := themeIDFromPath(event.Name)
			if !ok {
				continue
			}
			removed := w.cache.InvalidateTheme(themeID)
			w.logger.Debug().
				Str("theme", themeID).
				Str("op", event.Op.String()).
				Int("invalidated", removed).
				Msg("theme file changed")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("theme watcher error")
		}
	}
}

func themeIDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != ".yaml" && ext != ".yml" {
		return "", false
	}
	return strings.TrimSuffix(base, ext), true
}
