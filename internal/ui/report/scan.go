package report

import (
	"pymeta/internal/core/app"
	"pymeta/internal/engine/parser"
)

// ScanDocument is the serialized form of a directory scan.
type ScanDocument struct {
	Files []FileEntry `json:"files" yaml:"files"`
}

// FileEntry carries either a document or an error for one path.
type FileEntry struct {
	Path     string           `json:"path" yaml:"path"`
	Document *parser.Document `json:"document,omitempty" yaml:"document,omitempty"`
	Error    *ErrorObject     `json:"error,omitempty" yaml:"error,omitempty"`
	Removed  bool             `json:"removed,omitempty" yaml:"removed,omitempty"`
}

func NewScanDocument(result *app.ScanResult) ScanDocument {
	out := ScanDocument{Files: make([]FileEntry, 0, len(result.Files))}
	for _, f := range result.Files {
		out.Files = append(out.Files, newFileEntry(f))
	}
	return out
}

func newFileEntry(f app.FileResult) FileEntry {
	entry := FileEntry{Path: f.Path, Document: f.Document, Removed: f.Removed}
	if f.Err != nil {
		obj := ErrorFor(f.Err)
		entry.Error = &obj
		entry.Document = nil
	}
	return entry
}
