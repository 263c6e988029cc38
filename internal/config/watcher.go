package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 200 * time.Millisecond

// Watcher reloads the settings file when someone else edits it
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher watches the directory holding the settings file, since atomic
// saves replace the file itself.
func NewWatcher(store *Store, logger *slog.Logger) (*Watcher, error) {
	if store.Path() == "" {
		return nil, fmt.Errorf("settings are not backed by a file")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create settings watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(store.Path())); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(store.Path()), err)
	}

	return &Watcher{store: store, watcher: w, logger: logger}, nil
}

// Run calls onChange with freshly loaded settings until ctx is done
func (w *Watcher) Run(ctx context.Context, onChange func(Settings)) {
	defer w.watcher.Close()

	name := filepath.Base(w.store.Path())
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// editors write in bursts; settle before reading
			pending = time.After(reloadDelay)
		case <-pending:
			pending = nil
			if w.store.ownWrite() {
				continue
			}
			settings, err := w.store.Load()
			if err != nil {
				w.logger.Warn("Ignoring settings file change", "error", err)
				continue
			}
			onChange(settings)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Settings watcher error", "error", err)
		}
	}
}
