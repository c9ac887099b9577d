package models

// Document represents a normalized page handed to the store: converted
// markdown plus whatever metadata the pipeline extracted.
// PRIMARY CONTENT FORMAT: Markdown (ContentMarkdown field)
type Document struct {
	SourceURL       string                 `json:"source_url"`
	Title           string                 `json:"title"`
	ContentMarkdown string                 `json:"content_markdown"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}
