package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"pymeta/internal/core/watcher"
	"pymeta/internal/shared/util"
)

// Watch performs an initial scan of root and then re-extracts changed files
// until ctx is canceled.
func (a *App) Watch(ctx context.Context, root string) error {
	initial, err := a.Scan(ctx, root)
	if err != nil {
		return err
	}
	slog.Info("initial scan complete", "root", root, "files", len(initial.Files), "failed", initial.Failed())

	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.filter, func(paths []string) {
		a.HandleChanges(ctx, root, paths)
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch([]string{root}); err != nil {
		return err
	}
	slog.Info("watching for changes", "root", root)

	<-ctx.Done()
	return nil
}

// HandleChanges re-extracts changed files and drops removed ones from the
// index. Processing is throttled by the configured rate limit.
func (a *App) HandleChanges(ctx context.Context, root string, paths []string) []FileResult {
	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		if err := a.limiter.Wait(ctx); err != nil {
			return results
		}

		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			rel := util.RelPath(root, path)
			if a.Store != nil {
				if _, err := a.Store.DeleteFile(rel); err != nil {
					slog.Warn("failed to remove file from index", "path", rel, "error", err)
				}
			}
			slog.Info("file removed", "path", rel)
			removed := FileResult{Path: rel, Removed: true}
			results = append(results, removed)
			a.emitUpdate(removed)
			continue
		}

		result := a.processFile(ctx, root, path, "")
		if result.Err != nil {
			slog.Warn("extraction failed", "path", result.Path, "error", result.Err)
		} else {
			slog.Info("file updated", "path", result.Path,
				"functions", len(result.Document.Functions),
				"calls", len(result.Document.Calls))
		}
		results = append(results, result)
		a.emitUpdate(result)
	}
	return results
}
