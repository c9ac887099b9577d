package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/fetcher"
)

type htmlDocument struct {
	doc *goquery.Document
}

// ParseHTML turns raw bytes into a DOM. Non-HTML sources pass through
// untouched so one chain can be reused for mixed content.
type ParseHTML struct{}

func NewParseHTML() *ParseHTML { return &ParseHTML{} }

func (m *ParseHTML) Name() string { return "parse_html" }

func (m *ParseHTML) Process(ctx context.Context, pc *ProcessContext) error {
	if pc.Source.Kind != fetcher.ContentKindHTML {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pc.Source.Body))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	pc.htmlDoc = &htmlDocument{doc: doc}
	return nil
}

// ExtractMetadata pulls the title and description before sanitization can
// strip the head.
type ExtractMetadata struct{}

func NewExtractMetadata() *ExtractMetadata { return &ExtractMetadata{} }

func (m *ExtractMetadata) Name() string { return "extract_metadata" }

func (m *ExtractMetadata) Process(ctx context.Context, pc *ProcessContext) error {
	if pc.htmlDoc == nil {
		return nil
	}
	doc := pc.htmlDoc.doc

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	pc.Document.Title = title

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && desc != "" {
		pc.Document.Metadata["description"] = desc
	}
	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		pc.Document.Metadata["language"] = lang
	}
	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && canonical != "" {
		pc.Document.Metadata["canonical_url"] = canonical
	}
	return nil
}

// ExtractLinks collects absolute, de-duplicated, fragment-free links from
// anchors. Runs before sanitization so navigation links still count for
// crawl discovery.
type ExtractLinks struct {
	logger arbor.ILogger
}

func NewExtractLinks(logger arbor.ILogger) *ExtractLinks {
	return &ExtractLinks{logger: logger}
}

func (m *ExtractLinks) Name() string { return "extract_links" }

func (m *ExtractLinks) Process(ctx context.Context, pc *ProcessContext) error {
	if pc.htmlDoc == nil {
		return nil
	}

	base, err := url.Parse(pc.Source.URL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	pc.htmlDoc.doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(parsed)
		abs.Fragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" && abs.Scheme != "file" {
			return
		}

		link := abs.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})

	pc.Links = links
	return nil
}

// Sanitize strips boilerplate and dangerous markup. Structural noise goes
// first via selectors (including caller-supplied ones), then bluemonday
// removes anything executable that survived.
type Sanitize struct {
	excludeSelectors []string
	policy           *bluemonday.Policy
	logger           arbor.ILogger
}

func NewSanitize(excludeSelectors []string, logger arbor.ILogger) *Sanitize {
	policy := bluemonday.UGCPolicy()
	// Class attributes carry code-fence languages through to conversion
	policy.AllowAttrs("class").Globally()
	return &Sanitize{
		excludeSelectors: excludeSelectors,
		policy:           policy,
		logger:           logger,
	}
}

func (m *Sanitize) Name() string { return "sanitize" }

var boilerplateSelectors = []string{
	"script", "style", "noscript", "iframe", "svg",
	"nav", "header", "footer", "aside",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]",
	"[class*=sidebar]", "[class*=breadcrumb]", "[class*=cookie]",
}

func (m *Sanitize) Process(ctx context.Context, pc *ProcessContext) error {
	if pc.htmlDoc == nil {
		return nil
	}
	doc := pc.htmlDoc.doc

	for _, sel := range boilerplateSelectors {
		doc.Find(sel).Remove()
	}
	for _, sel := range m.excludeSelectors {
		removed := doc.Find(sel)
		if n := removed.Length(); n > 0 {
			m.logger.Debug().Str("selector", sel).Int("removed", n).Msg("Excluded elements")
			removed.Remove()
		}
	}

	// Prefer the main content container when the page declares one
	content := doc.Find("main, article, [role=main]").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	htmlText, err := content.Html()
	if err != nil {
		return fmt.Errorf("serialize sanitized dom: %w", err)
	}

	clean := m.policy.Sanitize(htmlText)
	pc.Document.Metadata["sanitized_html"] = clean
	return nil
}

// ConvertMarkdown renders sanitized HTML to GitHub-flavored markdown.
// Highlighter class conventions are normalized first so fence languages
// survive conversion.
type ConvertMarkdown struct {
	logger arbor.ILogger
}

func NewConvertMarkdown(logger arbor.ILogger) *ConvertMarkdown {
	return &ConvertMarkdown{logger: logger}
}

func (m *ConvertMarkdown) Name() string { return "convert_markdown" }

func (m *ConvertMarkdown) Process(ctx context.Context, pc *ProcessContext) error {
	if pc.htmlDoc == nil {
		return nil
	}

	htmlText, _ := pc.Document.Metadata["sanitized_html"].(string)
	delete(pc.Document.Metadata, "sanitized_html")
	if strings.TrimSpace(htmlText) == "" {
		pc.Document.ContentMarkdown = ""
		return nil
	}

	htmlText = normalizeHighlightClasses(htmlText)

	converter := md.NewConverter(pc.Source.URL, true, nil)
	converter.Use(plugin.GitHubFlavored())

	markdown, err := converter.ConvertString(htmlText)
	if err != nil {
		return fmt.Errorf("convert to markdown: %w", err)
	}

	pc.Document.ContentMarkdown = strings.TrimSpace(markdown)
	if pc.Document.Title == "" {
		pc.Document.Title = firstHeading(pc.Document.ContentMarkdown)
	}
	return nil
}

// normalizeHighlightClasses rewrites highlight-<lang> classes to the
// language-<lang> convention the markdown converter understands.
func normalizeHighlightClasses(htmlText string) string {
	return highlightClassRe.ReplaceAllString(htmlText, `language-$1`)
}
