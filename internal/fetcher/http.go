package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

const maxRedirects = 5

// maxBodySize caps page downloads at 50MB so one runaway response cannot
// exhaust memory during a large crawl.
const maxBodySize = 50 << 20

// HTTPFetcher retrieves pages over plain HTTP with browser-like headers,
// retry with exponential backoff, and controlled redirect handling.
type HTTPFetcher struct {
	userAgent string
	policy    *RetryPolicy
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewHTTPFetcher creates a fetcher for http/https URLs
func NewHTTPFetcher(userAgent string, policy *RetryPolicy, timeout time.Duration, logger arbor.ILogger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		userAgent: userAgent,
		policy:    policy,
		timeout:   timeout,
		logger:    logger,
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

func (f *HTTPFetcher) CanFetch(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Fetch downloads a single page. Redirects are followed up to maxRedirects
// when opts.FollowRedirects is set; otherwise the first 3xx response is
// surfaced as a RedirectError carrying the Location target.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*RawContent, error) {
	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	timeout := f.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !opts.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	var content *RawContent
	statusCode, err := f.policy.ExecuteWithRetry(ctx, f.logger, func() (int, error) {
		c, code, err := f.doRequest(ctx, client, reqURL, opts)
		if err != nil {
			return code, err
		}
		content = c
		return code, nil
	})
	if err != nil {
		var redirectErr *RedirectError
		if errors.As(err, &redirectErr) {
			return nil, redirectErr
		}
		return nil, &FetchError{URL: rawURL, StatusCode: statusCode, Err: err}
	}
	if content == nil {
		return nil, &FetchError{URL: rawURL, StatusCode: statusCode}
	}
	return content, nil
}

func (f *HTTPFetcher) doRequest(ctx context.Context, client *http.Client, reqURL *url.URL, opts FetchOptions) (*RawContent, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, 0, err
	}

	fp := pickFingerprint(reqURL.Host)
	req.Header.Set("User-Agent", f.userAgent)
	if f.userAgent == "" {
		req.Header.Set("User-Agent", fp.userAgent)
	}
	for k, v := range fp.headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	// Credentials never cross origins
	if opts.Credentials != nil && opts.Credentials.Host == reqURL.Host {
		req.SetBasicAuth(opts.Credentials.Username, opts.Credentials.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if target, err := reqURL.Parse(loc); err == nil {
			loc = target.String()
		}
		return nil, resp.StatusCode, &RedirectError{
			URL:        reqURL.String(),
			Location:   loc,
			StatusCode: resp.StatusCode,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused across retry attempts
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	finalURL := reqURL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	mimeType := resp.Header.Get("Content-Type")
	return &RawContent{
		URL:         finalURL,
		RequestedAt: time.Now(),
		Kind:        kindFromMime(mimeType, finalURL),
		MimeType:    mimeType,
		Body:        body,
		StatusCode:  resp.StatusCode,
	}, resp.StatusCode, nil
}

// kindFromMime classifies the payload, falling back to the URL extension for
// servers that send generic content types for markdown files.
func kindFromMime(mimeType, rawURL string) ContentKind {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.Contains(mt, "text/html"), strings.Contains(mt, "application/xhtml"):
		return ContentKindHTML
	case strings.Contains(mt, "text/markdown"):
		return ContentKindMarkdown
	}

	lower := strings.ToLower(rawURL)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	switch {
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".mdx"), strings.HasSuffix(lower, ".markdown"):
		return ContentKindMarkdown
	case strings.HasSuffix(lower, ".txt"):
		return ContentKindText
	}
	return ContentKindHTML
}
