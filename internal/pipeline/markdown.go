package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/fetcher"
)

var highlightClassRe = regexp.MustCompile(`highlight-(?:source-|text-)?([a-zA-Z0-9_+-]+)`)

// MarkdownPassthrough handles sources that are already markdown: the body
// is kept as-is and the title comes from the first top-level heading.
type MarkdownPassthrough struct {
	logger arbor.ILogger
}

func NewMarkdownPassthrough(logger arbor.ILogger) *MarkdownPassthrough {
	return &MarkdownPassthrough{logger: logger}
}

func (m *MarkdownPassthrough) Name() string { return "markdown_passthrough" }

func (m *MarkdownPassthrough) Process(ctx context.Context, pc *ProcessContext) error {
	content := strings.TrimSpace(string(pc.Source.Body))
	pc.Document.ContentMarkdown = content
	pc.Document.Title = firstHeading(content)

	if pc.Source.Kind == fetcher.ContentKindText {
		// Plain text has no headings to mine; keep the body untouched
		pc.Document.Title = "Untitled"
	}
	return nil
}

// firstHeading returns the text of the first markdown heading, or Untitled
func firstHeading(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		}
	}
	return "Untitled"
}
