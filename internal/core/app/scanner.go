package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"pymeta/internal/engine/parser"
	"pymeta/internal/shared/observability"
	"pymeta/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// FileResult is the outcome for one file: a document or the error that
// prevented one.
type FileResult struct {
	Path     string
	Document *parser.Document
	Err      error
	// Removed marks a watched file that no longer exists.
	Removed bool
}

type ScanResult struct {
	Root  string
	RunID string
	Files []FileResult
}

// Failed counts files without a document.
func (r *ScanResult) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// ListFiles walks root and returns the files selected by the filter in
// lexical order.
func (a *App) ListFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && a.filter.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !a.filter.IncludeFile(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", root, err)
	}
	return files, nil
}

// Scan extracts every selected file below root with a bounded number of
// workers. Per-file failures are reported in the result; only walk errors
// and cancellation fail the scan.
func (a *App) Scan(ctx context.Context, root string) (*ScanResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Scan", trace.WithAttributes(attribute.String("root", root)))
	defer span.End()

	started := time.Now()
	defer func() {
		observability.ScanDuration.Observe(time.Since(started).Seconds())
	}()

	files, err := a.ListFiles(root)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Root: root, Files: make([]FileResult, len(files))}
	if a.Store != nil {
		if result.RunID, err = a.Store.BeginRun(root); err != nil {
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.Config.Scan.Workers))
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result.Files[i] = a.processFile(gctx, root, path, result.RunID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})

	if a.Store != nil {
		if err := a.Store.FinishRun(result.RunID, len(result.Files)); err != nil {
			slog.Warn("failed to finish index run", "run", result.RunID, "error", err)
		}
	}
	span.SetAttributes(attribute.Int("files", len(files)), attribute.Int("failed", result.Failed()))
	slog.Debug("scan complete", "root", root, "files", len(files), "failed", result.Failed(), "elapsed", time.Since(started))
	return result, nil
}

// processFile extracts one file and, when an index is attached, stores the
// document under its root-relative path.
func (a *App) processFile(ctx context.Context, root, path, runID string) FileResult {
	rel := util.RelPath(root, path)
	if rel == "" {
		rel = filepath.Base(path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: rel, Err: err}
	}

	doc, sum, err := a.extractCached(ctx, rel, source)
	if err != nil {
		return FileResult{Path: rel, Err: err}
	}

	if a.Store != nil {
		a.indexDocument(runID, rel, hex.EncodeToString(sum[:]), doc)
	}
	return FileResult{Path: rel, Document: doc}
}

// indexDocument stores doc unless the index already holds the same content
// for rel.
func (a *App) indexDocument(runID, rel, hash string, doc *parser.Document) {
	stored, ok, err := a.Store.FileHash(rel)
	if err != nil {
		slog.Warn("failed to read indexed hash", "path", rel, "error", err)
	}
	if ok && stored == hash {
		observability.IndexWritesTotal.WithLabelValues("unchanged").Inc()
		slog.Debug("index up to date", "path", rel)
		return
	}
	if err := a.Store.SaveDocument(runID, rel, hash, doc); err != nil {
		slog.Warn("failed to index document", "path", rel, "error", err)
	}
}
