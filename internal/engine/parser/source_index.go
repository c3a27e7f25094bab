package parser

import "strings"

// SourceIndex answers verbatim line-range and byte-span lookups over one
// source text. Lines keep any trailing '\r' so snippets round-trip exactly.
type SourceIndex struct {
	source []byte
	lines  []string
}

func NewSourceIndex(source []byte) *SourceIndex {
	return &SourceIndex{
		source: source,
		lines:  strings.Split(string(source), "\n"),
	}
}

func (si *SourceIndex) LineCount() int {
	return len(si.lines)
}

// Snippet returns lines start..end (1-based, inclusive) joined with '\n'.
// Out-of-range or inverted bounds yield "".
func (si *SourceIndex) Snippet(start, end int) string {
	if start < 1 || end < start || end > len(si.lines) {
		return ""
	}
	return strings.Join(si.lines[start-1:end], "\n")
}

// Span returns the verbatim bytes in [start, end).
func (si *SourceIndex) Span(start, end uint) string {
	if start > end || end > uint(len(si.source)) {
		return ""
	}
	return string(si.source[start:end])
}
