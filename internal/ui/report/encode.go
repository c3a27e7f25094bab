package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"pymeta/internal/core/app"
	"pymeta/internal/data/index"
	"pymeta/internal/engine/parser"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTSV  = "tsv"
)

// Encoder renders documents and scan results in one output format.
type Encoder struct {
	format  string
	indent  int
	compact bool

	mu               sync.Mutex
	updateHeaderDone bool
}

func NewEncoder(format string, indent int, compact bool) (*Encoder, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		format = FormatJSON
	case FormatJSON, FormatYAML, FormatTSV:
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if indent <= 0 {
		indent = 2
	}
	return &Encoder{format: format, indent: indent, compact: compact}, nil
}

func (e *Encoder) Format() string {
	return e.format
}

// EncodeDocument writes the document for a single source text.
func (e *Encoder) EncodeDocument(w io.Writer, doc *parser.Document) error {
	if e.format == FormatTSV {
		return writeCallsTSV(w, []FileEntry{{Document: doc}}, true)
	}
	return e.encode(w, doc)
}

// EncodeScan writes the per-file results of a directory scan.
func (e *Encoder) EncodeScan(w io.Writer, result *app.ScanResult) error {
	out := NewScanDocument(result)
	if e.format == FormatTSV {
		return writeCallsTSV(w, out.Files, true)
	}
	return e.encode(w, out)
}

// EncodeUpdate writes one watch-mode result as a single JSON line. In TSV
// mode the header row is written once, before the first update.
func (e *Encoder) EncodeUpdate(w io.Writer, result app.FileResult) error {
	entry := newFileEntry(result)
	if e.format == FormatTSV {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := writeCallsTSV(w, []FileEntry{entry}, !e.updateHeaderDone); err != nil {
			return err
		}
		e.updateHeaderDone = true
		return nil
	}
	return json.NewEncoder(w).Encode(entry)
}

func (e *Encoder) encode(w io.Writer, v any) error {
	switch e.format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(e.indent)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if !e.compact {
			enc.SetIndent("", strings.Repeat(" ", e.indent))
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err := w.Write(buf.Bytes())
		return err
	}
}

// EncodeCallSites writes index query results for -callers.
func (e *Encoder) EncodeCallSites(w io.Writer, sites []index.CallSite) error {
	if e.format == FormatTSV {
		entries := make([]FileEntry, 0, len(sites))
		for _, site := range sites {
			entries = append(entries, FileEntry{
				Path:     site.Path,
				Document: &parser.Document{Calls: []parser.CallRecord{site.CallRecord}},
			})
		}
		return writeCallsTSV(w, entries, true)
	}
	return e.encode(w, sites)
}

// EncodeDefinitions writes index query results for -defs.
func (e *Encoder) EncodeDefinitions(w io.Writer, defs []index.Definition) error {
	if e.format == FormatTSV {
		buf := bufio.NewWriter(w)
		buf.WriteString("File\tKind\tName\tStartLine\tEndLine\n")
		for _, def := range defs {
			fmt.Fprintf(buf, "%s\t%s\t%s\t%d\t%d\n", def.Path, def.Kind, def.QualifiedName, def.StartLine, def.EndLine)
		}
		return buf.Flush()
	}
	return e.encode(w, defs)
}
