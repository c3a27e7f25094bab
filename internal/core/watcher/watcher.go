package watcher

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"pymeta/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
)

// PathFilter decides which directories are descended into and which files
// produce change notifications.
type PathFilter interface {
	SkipDir(path string) bool
	IncludeFile(path string) bool
}

// Watcher reports debounced batches of changed source files. Files whose
// content hash is unchanged since the last batch are dropped; removed files
// are always reported.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	filter     PathFilter
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer

	hashes   map[string][sha256.Size]byte
	hashesMu sync.Mutex
}

func NewWatcher(debounce time.Duration, filter PathFilter, onChange func([]string)) (*Watcher, error) {
	if onChange == nil || filter == nil {
		return nil, os.ErrInvalid
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		filter:    filter,
		onChange:  onChange,
		pending:   make(map[string]time.Time),
		hashes:    make(map[string][sha256.Size]byte),
	}, nil
}

func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if err := w.watchRecursive(path, true); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

// watchRecursive registers every non-excluded directory below root. When
// seed is set, existing files are hashed so that the first touch without
// a content change stays silent.
func (w *Watcher) watchRecursive(root string, seed bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != root && w.filter.SkipDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}

		if seed && w.filter.IncludeFile(path) {
			if sum, ok := hashFile(path); ok {
				w.hashesMu.Lock()
				w.hashes[path] = sum
				w.hashesMu.Unlock()
			}
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.filter.SkipDir(event.Name) {
						if err := w.watchRecursive(event.Name, false); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if !w.filter.IncludeFile(event.Name) {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove ||
				event.Op&fsnotify.Rename == fsnotify.Rename {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	candidates := make([]string, 0, len(w.pending))
	for path := range w.pending {
		candidates = append(candidates, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	paths := w.changedOnly(candidates)
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) changedOnly(candidates []string) []string {
	w.hashesMu.Lock()
	defer w.hashesMu.Unlock()

	changed := make([]string, 0, len(candidates))
	for _, path := range candidates {
		sum, ok := hashFile(path)
		if !ok {
			delete(w.hashes, path)
			changed = append(changed, path)
			continue
		}
		if prev, seen := w.hashes[path]; seen && prev == sum {
			continue
		}
		w.hashes[path] = sum
		changed = append(changed, path)
	}
	return changed
}

func hashFile(path string) ([sha256.Size]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, false
	}
	return sha256.Sum256(data), true
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if !w.filter.IncludeFile(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
