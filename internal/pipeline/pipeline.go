package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/fetcher"
	"github.com/ternarybob/quill/internal/models"
)

// ProcessContext carries one page through the middleware chain. Middlewares
// fill it in progressively: raw bytes, then a parsed DOM, then the final
// markdown document and the links discovered on the page.
type ProcessContext struct {
	Source   *fetcher.RawContent
	Document *models.Document
	Links    []string

	// htmlDoc is the parsed DOM, only set for HTML sources
	htmlDoc *htmlDocument
}

// Middleware is one processing step. Returning an error aborts the chain
// for this page.
type Middleware interface {
	Name() string
	Process(ctx context.Context, pc *ProcessContext) error
}

// Pipeline runs middlewares in registration order with a cancellation check
// between steps, so an aborted crawl stops mid-page instead of finishing
// expensive conversions.
type Pipeline struct {
	middlewares []Middleware
	logger      arbor.ILogger
}

func New(logger arbor.ILogger, middlewares ...Middleware) *Pipeline {
	return &Pipeline{middlewares: middlewares, logger: logger}
}

// Process runs raw content through the chain and returns the finished
// document plus the links found on the page.
func (p *Pipeline) Process(ctx context.Context, raw *fetcher.RawContent) (*models.Document, []string, error) {
	pc := &ProcessContext{
		Source: raw,
		Document: &models.Document{
			SourceURL: raw.URL,
			Metadata:  make(map[string]interface{}),
		},
	}

	for _, mw := range p.middlewares {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := mw.Process(ctx, pc); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", mw.Name(), err)
		}
	}

	p.logger.Debug().
		Str("url", raw.URL).
		Int("links", len(pc.Links)).
		Int("markdown_bytes", len(pc.Document.ContentMarkdown)).
		Msg("Page processed")

	return pc.Document, pc.Links, nil
}

// ForHTML builds the standard chain for HTML sources
func ForHTML(excludeSelectors []string, logger arbor.ILogger) *Pipeline {
	return New(logger,
		NewParseHTML(),
		NewExtractMetadata(),
		NewExtractLinks(logger),
		NewSanitize(excludeSelectors, logger),
		NewConvertMarkdown(logger),
	)
}

// ForMarkdown builds the chain for sources that are already markdown
func ForMarkdown(logger arbor.ILogger) *Pipeline {
	return New(logger,
		NewMarkdownPassthrough(logger),
	)
}
