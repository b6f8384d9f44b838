// Package watcher feeds filesystem change events from the watched repo into
// the coordinator. fsnotify watches are per-directory, so the repo tree is
// walked at startup and newly created directories are added on the fly.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/notesync/notesync/internal/models"
)

// Watcher monitors the repo working tree and reports changed files.
type Watcher struct {
	repo     models.WatchedRepo
	fsw      *fsnotify.Watcher
	onChange func(path string)
}

// New creates a Watcher over repo's working tree. onChange receives the
// absolute path of every written or created file. The .git and state
// directories are never watched.
func New(repo models.WatchedRepo, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		repo:     repo,
		fsw:      fsw,
		onChange: onChange,
	}

	if err := w.addTree(repo.Root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers watches for dir and every subdirectory under it,
// skipping excluded subtrees.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			slog.Warn("watcher skipping path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.repo.Excluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Start blocks processing filesystem events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		case <-ctx.Done():
			_ = w.fsw.Close()
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	path := filepath.Clean(event.Name)
	if w.repo.Excluded(path) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				slog.Warn("failed to watch new directory", "path", path, "error", err)
			}
			return
		}
	}

	w.onChange(path)
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
