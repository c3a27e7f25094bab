package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pymeta/internal/core/config"
	"pymeta/internal/core/errors"
	"pymeta/internal/data/index"
	"pymeta/internal/engine/parser"
	"pymeta/internal/shared/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTestApp(t *testing.T, withIndex bool) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Scan.ExcludeFiles = []string{"*_pb2.py"}

	var store *index.Store
	if withIndex {
		var err error
		store, err = index.Open(filepath.Join(t.TempDir(), "pymeta.db"))
		require.NoError(t, err)
	}
	a, err := New(cfg, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

var sampleTree = map[string]string{
	"pkg/service.py":        "class Service:\n    def run(self):\n        helper()\n",
	"pkg/util.py":           "def helper():\n    return 1\n",
	"broken.py":             "def f(:\n",
	"notes.txt":             "not python",
	"gen/api_pb2.py":        "x = 1\n",
	"__pycache__/cached.py": "def stale(): pass\n",
	".venv/lib/site.py":     "def vendored(): pass\n",
	"pkg/sub/__init__.py":   "",
}

func TestApp_ListFilesAppliesFilters(t *testing.T) {
	a := newTestApp(t, false)
	root := writeTree(t, sampleTree)

	files, err := a.ListFiles(root)
	require.NoError(t, err)

	rel := make([]string, 0, len(files))
	for _, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"broken.py", "pkg/service.py", "pkg/sub/__init__.py", "pkg/util.py"}, rel)
}

func TestApp_ScanReportsPerFileOutcomes(t *testing.T) {
	a := newTestApp(t, false)
	root := writeTree(t, sampleTree)

	result, err := a.Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Files, 4)
	assert.Equal(t, 1, result.Failed())
	assert.Empty(t, result.RunID)

	byPath := make(map[string]FileResult, len(result.Files))
	for _, f := range result.Files {
		byPath[f.Path] = f
	}

	broken := byPath["broken.py"]
	require.Error(t, broken.Err)
	assert.True(t, errors.IsCode(broken.Err, errors.CodeSyntax))
	assert.Nil(t, broken.Document)

	service := byPath["pkg/service.py"]
	require.NoError(t, service.Err)
	require.Len(t, service.Document.Calls, 1)
	assert.Equal(t, "Service.run", service.Document.Calls[0].Caller)

	assert.Equal(t, "broken.py", result.Files[0].Path, "results are sorted by path")
}

func TestApp_ScanWritesIndex(t *testing.T) {
	a := newTestApp(t, true)
	root := writeTree(t, sampleTree)

	result, err := a.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)

	sites, err := a.Store.Callers("helper")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "pkg/service.py", sites[0].Path)

	defs, err := a.Store.Definitions("helper")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "pkg/util.py", defs[0].Path)

	_, err = a.Store.LoadDocument("broken.py")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "failed files are not indexed")

	runs, err := a.Store.Runs(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 4, runs[0].FileCount)
}

func TestApp_RescanSkipsUnchangedFiles(t *testing.T) {
	a := newTestApp(t, true)
	root := writeTree(t, map[string]string{
		"a.py": "def f():\n    g()\n",
		"b.py": "def g():\n    pass\n",
	})

	_, err := a.Scan(context.Background(), root)
	require.NoError(t, err)
	firstHash, ok, err := a.Store.FileHash("a.py")
	require.NoError(t, err)
	require.True(t, ok)

	unchanged := observability.IndexWritesTotal.WithLabelValues("unchanged")
	before := testutil.ToFloat64(unchanged)
	_, err = a.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, before+2, testutil.ToFloat64(unchanged))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def f():\n    h()\n"), 0o644))
	_, err = a.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, before+3, testutil.ToFloat64(unchanged), "only b.py is unchanged")

	secondHash, ok, err := a.Store.FileHash("a.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, firstHash, secondHash)

	doc, err := a.Store.LoadDocument("a.py")
	require.NoError(t, err)
	require.Len(t, doc.Calls, 1)
	assert.Equal(t, "h", doc.Calls[0].Callee)
}

func TestApp_ExtractUsesContentCache(t *testing.T) {
	a := newTestApp(t, false)
	src := []byte("def cached():\n    go()\n")

	before := testutil.ToFloat64(observability.CacheHitsTotal)
	first, err := a.Extract(context.Background(), "a.py", src)
	require.NoError(t, err)
	second, err := a.Extract(context.Background(), "b.py", src)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, before+1, testutil.ToFloat64(observability.CacheHitsTotal))
	assert.Equal(t, 1, a.cache.Len())

	_, err = a.Extract(context.Background(), "bad.py", []byte("def f(:"))
	require.Error(t, err)
	assert.Equal(t, 1, a.cache.Len(), "failures are not cached")
}

func TestApp_ParserOptionsFollowConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extract.DecoratorStrategy = "bare-name-only"
	cfg.Extract.ModuleSentinel = "<module>"
	a, err := New(cfg, nil)
	require.NoError(t, err)

	doc, err := a.Extract(context.Background(), "x.py", []byte("@app.get('/')\ndef view():\n    pass\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.Functions[0].Decorators)
	assert.Equal(t, "<module>", doc.Calls[0].Caller)
	assert.Equal(t, parser.StrategyBareNameOnly, a.Parser.Options().DecoratorStrategy)
}

func TestApp_HandleChanges(t *testing.T) {
	a := newTestApp(t, true)
	root := writeTree(t, map[string]string{"mod.py": "def f():\n    g()\n"})
	path := filepath.Join(root, "mod.py")

	var updates []FileResult
	a.SetUpdateHandler(func(r FileResult) { updates = append(updates, r) })

	results := a.HandleChanges(context.Background(), root, []string{path})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "mod.py", results[0].Path)
	require.Len(t, updates, 1)

	sites, err := a.Store.Callers("g")
	require.NoError(t, err)
	require.Len(t, sites, 1)

	require.NoError(t, os.Remove(path))
	results = a.HandleChanges(context.Background(), root, []string{path})
	require.Len(t, results, 1)
	assert.Equal(t, FileResult{Path: "mod.py", Removed: true}, results[0])
	require.Len(t, updates, 2)
	assert.True(t, updates[1].Removed, "removals reach the update handler")

	sites, err = a.Store.Callers("g")
	require.NoError(t, err)
	assert.Empty(t, sites, "removed files are dropped from the index")
}

func TestHealthService_Check(t *testing.T) {
	a := newTestApp(t, true)
	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok", status.Components["index"])

	cfg := config.DefaultConfig()
	cfg.DB.Enabled = true
	noIndex, err := New(cfg, nil)
	require.NoError(t, err)
	status = NewHealthService(noIndex).Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
}
