package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports new or changed report files under a LocalDir.
type Watcher struct {
	dir      *LocalDir
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher over dir. A non-positive debounce selects
// DefaultDebounce.
func NewWatcher(dir *LocalDir, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce, logger: logger}
}

// Run calls handle with the relative path of every report file that is
// created or written, once writes have settled. It blocks until ctx is done.
// handle runs on the watcher goroutine.
func (w *Watcher) Run(ctx context.Context, handle func(ctx context.Context, relPath string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.dir.Root()); err != nil {
		return err
	}
	w.logger.Info("Watching for reports", "dir", w.dir.Root())

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						w.logger.Warn("Failed to watch directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if Supported(event.Name) {
					pending[event.Name] = time.Now()
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)

		case now := <-ticker.C:
			for name, last := range pending {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(pending, name)
				rel, err := filepath.Rel(w.dir.Root(), name)
				if err != nil {
					continue
				}
				handle(ctx, filepath.ToSlash(rel))
			}
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if p != root && entry.Name()[0] == '.' {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}
