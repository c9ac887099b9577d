package fetcher

import (
	"context"
	"time"
)

// ContentKind classifies what a fetch produced so the pipeline can pick the
// right processing branch.
type ContentKind string

const (
	ContentKindHTML     ContentKind = "html"
	ContentKindMarkdown ContentKind = "markdown"
	ContentKindText     ContentKind = "text"
)

// RawContent is the payload of a single successful fetch before any
// processing has happened.
type RawContent struct {
	URL         string // Final URL after any followed redirects
	RequestedAt time.Time
	Kind        ContentKind
	MimeType    string
	Body        []byte
	StatusCode  int
}

// Credentials carries basic-auth material extracted from a seed URL. It is
// only ever replayed against the origin it was extracted from.
type Credentials struct {
	Host     string
	Username string
	Password string
}

// FetchOptions tunes a single fetch without reaching into crawler state
type FetchOptions struct {
	Headers         map[string]string
	FollowRedirects bool
	Credentials     *Credentials
	Timeout         time.Duration
}

// Fetcher retrieves raw content for URLs it claims via CanFetch
type Fetcher interface {
	Name() string
	CanFetch(rawURL string) bool
	Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*RawContent, error)
}
