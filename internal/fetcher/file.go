package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileFetcher serves file:// URLs so local documentation trees can be
// indexed without a web server.
type FileFetcher struct{}

func NewFileFetcher() *FileFetcher { return &FileFetcher{} }

func (f *FileFetcher) Name() string { return "file" }

func (f *FileFetcher) CanFetch(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "file"
}

func (f *FileFetcher) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*RawContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	path := u.Path
	if u.Host != "" && u.Host != "localhost" {
		// file://host/path is not supported; treat host as a path segment
		path = filepath.Join(u.Host, u.Path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if isBinary(body) {
		return nil, &UnsupportedContentError{URL: rawURL, Reason: "binary file"}
	}

	return &RawContent{
		URL:         rawURL,
		RequestedAt: time.Now(),
		Kind:        kindFromPath(path),
		MimeType:    "",
		Body:        body,
		StatusCode:  200,
	}, nil
}

// isBinary sniffs the leading bytes for a null byte, which never appears in
// text content
func isBinary(body []byte) bool {
	sniff := body
	if len(sniff) > 8192 {
		sniff = sniff[:8192]
	}
	return bytes.IndexByte(sniff, 0x00) >= 0
}

func kindFromPath(path string) ContentKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdx", ".markdown":
		return ContentKindMarkdown
	case ".txt":
		return ContentKindText
	default:
		return ContentKindHTML
	}
}
