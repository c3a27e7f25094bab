package index

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pymeta/internal/core/errors"
	"pymeta/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "pymeta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func parseDoc(t *testing.T, src string) *parser.Document {
	t.Helper()
	doc, err := parser.NewParser(parser.DefaultOptions()).Parse(context.Background(), "t.py", []byte(src))
	require.NoError(t, err)
	return doc
}

const sampleSource = `import os
from ..pkg import thing as alias

@decorator
class Service(Base):
    """Service doc."""

    async def handle(self, request):
        return self.helper(request)

    def helper(self, request):
        return os.path.join(request)

helper()
`

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	doc := parseDoc(t, sampleSource)

	runID, err := store.BeginRun("/repo")
	require.NoError(t, err)
	require.NoError(t, store.SaveDocument(runID, "svc/service.py", "abc123", doc))

	loaded, err := store.LoadDocument("svc/service.py")
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)

	hash, ok, err := store.FileHash("svc/service.py")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", hash)
}

func TestStore_SaveReplacesPreviousRows(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveDocument("", "a.py", "h1", parseDoc(t, "def old():\n    gone()\n")))
	require.NoError(t, store.SaveDocument("", "a.py", "h2", parseDoc(t, "def new():\n    kept()\n")))

	loaded, err := store.LoadDocument("a.py")
	require.NoError(t, err)
	require.Len(t, loaded.Functions, 1)
	assert.Equal(t, "new", loaded.Functions[0].QualifiedName)

	sites, err := store.Callers("gone")
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestStore_CallersAndDefinitions(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SaveDocument("", "svc.py", "h", parseDoc(t, sampleSource)))
	require.NoError(t, store.SaveDocument("", "other.py", "h", parseDoc(t, "def helper():\n    pass\n")))

	sites, err := store.Callers("helper")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "svc.py", sites[0].Path)
	assert.Equal(t, "Service.handle", sites[0].Caller)
	assert.Equal(t, "self.helper", sites[0].Callee)
	assert.Equal(t, "__main__", sites[1].Caller)
	assert.Equal(t, "helper", sites[1].Callee)

	exact, err := store.Callers("os.path.join")
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "Service.helper", exact[0].Caller)

	defs, err := store.Definitions("helper")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, Definition{Path: "other.py", Kind: "function", QualifiedName: "helper", StartLine: 1, EndLine: 2}, defs[0])

	defs, err = store.Definitions("Service")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "class", defs[0].Kind)
	assert.Equal(t, 5, defs[0].StartLine)
}

func TestStore_CallersEscapesLikeWildcards(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SaveDocument("", "a.py", "h", parseDoc(t, "obj.do_it()\nobj.doXit()\n")))

	sites, err := store.Callers("do_it")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "obj.do_it", sites[0].Callee)
}

func TestStore_DeleteFileCascades(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SaveDocument("", "a.py", "h", parseDoc(t, "def f():\n    g()\n")))

	deleted, err := store.DeleteFile("a.py")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.LoadDocument("a.py")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	sites, err := store.Callers("g")
	require.NoError(t, err)
	assert.Empty(t, sites, "call rows must be removed with their file")

	deleted, err = store.DeleteFile("a.py")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, ok, err := store.FileHash("a.py")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Runs(t *testing.T) {
	store := openTestStore(t)

	runID, err := store.BeginRun("/repo")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(runID, 3))

	runs, err := store.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "/repo", runs[0].Root)
	assert.Equal(t, 3, runs[0].FileCount)
	assert.False(t, runs[0].FinishedAt.IsZero())

	err = store.FinishRun("missing", 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestStore_SaveNilDocument(t *testing.T) {
	store := openTestStore(t)
	err := store.SaveDocument("", "a.py", "h", nil)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pymeta.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pymeta.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	require.NoError(t, err)

	db, err := sql.Open(driverName, "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	err = EnsureSchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}
