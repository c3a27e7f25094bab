package report

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"pymeta/internal/core/app"
	"pymeta/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sample = `import os
from typing import List

def top_level_function(x, y):
    """A top-level function."""
    helper()
    return x + y

def helper():
    pass

class MyClass:
    def method(self):
        self.other()

    def other(self):
        os.getcwd()
`

func parse(t *testing.T, src string) *parser.Document {
	t.Helper()
	doc, err := parser.NewParser(parser.DefaultOptions()).Parse(context.Background(), "sample.py", []byte(src))
	require.NoError(t, err)
	return doc
}

func TestEncodeDocument_JSON(t *testing.T) {
	doc := parse(t, sample)
	enc, err := NewEncoder("JSON", 2, false)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, enc.Format())

	var buf bytes.Buffer
	require.NoError(t, enc.EncodeDocument(&buf, doc))
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"functions\": ["), buf.String())

	var decoded parser.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *doc, decoded)

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	first := raw["functions"][0]
	assert.Equal(t, "A top-level function.", first["doc_comment"])
	assert.Contains(t, first, "decorators")
	assert.NotContains(t, first, "is_async")
	assert.Nil(t, raw["imports"][0]["source_module"])
	assert.Nil(t, raw["imports"][0]["alias"])
	assert.Equal(t, float64(0), raw["imports"][0]["relative_depth"])
}

func TestEncodeDocument_Compact(t *testing.T) {
	enc, err := NewEncoder("", 0, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, enc.EncodeDocument(&buf, parse(t, "")))
	assert.Equal(t, `{"functions":[],"classes":[],"imports":[],"calls":[]}`+"\n", buf.String())
}

func TestEncodeDocument_NoHTMLEscaping(t *testing.T) {
	enc, err := NewEncoder(FormatJSON, 2, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, enc.EncodeDocument(&buf, parse(t, "def f():\n    return a < b\n")))
	assert.Contains(t, buf.String(), "a < b")
}

func TestEncodeDocument_YAML(t *testing.T) {
	doc := parse(t, sample)
	enc, err := NewEncoder(FormatYAML, 4, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, enc.EncodeDocument(&buf, doc))
	assert.Contains(t, buf.String(), "qualified_name: top_level_function")

	var decoded parser.Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, doc.Calls, decoded.Calls)
	assert.Len(t, decoded.Functions, len(doc.Functions))
}

func TestEncodeDocument_TSV(t *testing.T) {
	enc, err := NewEncoder(FormatTSV, 2, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, enc.EncodeDocument(&buf, parse(t, "def f():\n    g()\n")))
	assert.Equal(t, "File\tCaller\tCallee\tStartLine\tEndLine\n\tf\tg\t2\t2\n", buf.String())
}

func TestNewEncoder_RejectsUnknownFormat(t *testing.T) {
	_, err := NewEncoder("xml", 2, false)
	assert.Error(t, err)
}

func TestErrorFor(t *testing.T) {
	_, err := parser.NewParser(parser.DefaultOptions()).Parse(context.Background(), "", []byte("def f(:\n"))
	require.Error(t, err)

	obj := ErrorFor(err)
	assert.Equal(t, "SyntaxError", obj.Error)
	assert.Contains(t, obj.Message, "<unknown>, line 1")
	require.NotNil(t, obj.Line)
	require.NotNil(t, obj.Offset)
	assert.Equal(t, 1, *obj.Line)

	other := ErrorFor(stderrors.New("disk on fire"))
	assert.Equal(t, ErrorObject{Error: "Exception", Message: "disk on fire"}, other)
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteError(&buf, stderrors.New("boom")))
	assert.Equal(t, `{"error":"Exception","message":"boom"}`+"\n", buf.String())
}

func TestNewScanDocument(t *testing.T) {
	doc := parse(t, "def f():\n    pass\n")
	result := &app.ScanResult{
		Root: "proj",
		Files: []app.FileResult{
			{Path: "a.py", Document: doc},
			{Path: "b.py", Document: doc, Err: stderrors.New("read failed")},
		},
	}

	out := NewScanDocument(result)
	require.Len(t, out.Files, 2)
	assert.Same(t, doc, out.Files[0].Document)
	assert.Nil(t, out.Files[0].Error)
	assert.Nil(t, out.Files[1].Document)
	require.NotNil(t, out.Files[1].Error)
	assert.Equal(t, "read failed", out.Files[1].Error.Message)

	enc, err := NewEncoder(FormatJSON, 2, true)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, enc.EncodeScan(&buf, result))
	assert.Contains(t, buf.String(), `{"path":"b.py","error":{"error":"Exception","message":"read failed"}}`)
}

func TestEncodeUpdate(t *testing.T) {
	enc, err := NewEncoder(FormatYAML, 2, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, enc.EncodeUpdate(&buf, app.FileResult{Path: "gone.py", Err: stderrors.New("removed")}))
	assert.Equal(t, `{"path":"gone.py","error":{"error":"Exception","message":"removed"}}`+"\n", buf.String())
}

func TestEncodeUpdate_Removed(t *testing.T) {
	enc, err := NewEncoder(FormatJSON, 2, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, enc.EncodeUpdate(&buf, app.FileResult{Path: "gone.py", Removed: true}))
	assert.Equal(t, `{"path":"gone.py","removed":true}`+"\n", buf.String())
}

func TestEncodeUpdate_TSVHeaderOncePerStream(t *testing.T) {
	enc, err := NewEncoder(FormatTSV, 2, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, enc.EncodeUpdate(&buf, app.FileResult{Path: "a.py", Document: parse(t, "def f():\n    g()\n")}))
	require.NoError(t, enc.EncodeUpdate(&buf, app.FileResult{Path: "gone.py", Removed: true}))
	require.NoError(t, enc.EncodeUpdate(&buf, app.FileResult{Path: "b.py", Document: parse(t, "h()\n")}))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "File\tCaller\tCallee"))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "File\t"))
	assert.Contains(t, lines[1], "\tf\tg\t2\t2")
	assert.Contains(t, lines[2], "\t__main__\th\t1\t1")
}

func TestSummaryLine(t *testing.T) {
	var stats Stats
	stats.Add(parse(t, sample))
	assert.Equal(t, Stats{Files: 1, TopLevelFunctions: 2, Classes: 1, Imports: 2, LocalCalls: 2}, stats)
	assert.Equal(t,
		"Found 2 top-level functions, 1 classes, and 2 import statements. Detected 2 local calls.",
		SummaryLine(stats))
}

func TestRenderSummary(t *testing.T) {
	var stats Stats
	stats.Add(parse(t, sample))
	single := RenderSummary("sample.py", stats)
	assert.Contains(t, single, "sample.py")
	assert.Contains(t, single, SummaryLine(stats))
	assert.NotContains(t, single, "files analyzed")

	stats.Add(nil)
	multi := RenderSummary("proj", stats)
	assert.Contains(t, multi, "1 files analyzed")
	assert.Contains(t, multi, "1 failed")
}
