package report

import (
	"fmt"
	"strings"

	"pymeta/internal/engine/parser"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// Stats aggregates record counts over one or more documents.
type Stats struct {
	Files             int
	Failed            int
	TopLevelFunctions int
	Classes           int
	Imports           int
	LocalCalls        int
}

func (s *Stats) Add(doc *parser.Document) {
	if doc == nil {
		s.Failed++
		s.Files++
		return
	}
	s.Files++
	s.TopLevelFunctions += doc.TopLevelFunctions()
	s.Classes += len(doc.Classes)
	s.Imports += len(doc.Imports)
	s.LocalCalls += doc.LocalCalls()
}

// SummaryLine is the plain analysis sentence.
func SummaryLine(s Stats) string {
	return fmt.Sprintf("Found %d top-level functions, %d classes, and %d import statements. Detected %d local calls.",
		s.TopLevelFunctions, s.Classes, s.Imports, s.LocalCalls)
}

// RenderSummary styles the summary for a terminal.
func RenderSummary(label string, s Stats) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(label))
	b.WriteString(" ")
	b.WriteString(SummaryLine(s))
	if s.Files > 1 || s.Failed > 0 {
		b.WriteString("\n")
		status := successStyle.Render(fmt.Sprintf("%d files analyzed", s.Files-s.Failed))
		if s.Failed > 0 {
			status += statusStyle.Render(", ") + failureStyle.Render(fmt.Sprintf("%d failed", s.Failed))
		}
		b.WriteString(status)
	}
	return b.String()
}
