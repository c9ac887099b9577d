package fetcher

import "fmt"

// RedirectError reports a redirect that was refused because the caller
// disabled redirect following. The target is surfaced so a client can decide
// to re-issue the request against the new location.
type RedirectError struct {
	URL        string
	Location   string
	StatusCode int
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("fetch %s: refused redirect (%d) to %s", e.URL, e.StatusCode, e.Location)
}

// FetchError is a terminal fetch failure after retries were exhausted or a
// non-retryable response was received.
type FetchError struct {
	URL        string
	StatusCode int // 0 when the failure was network-level
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UnsupportedContentError means the fetched bytes are not text and cannot be
// processed into markdown
type UnsupportedContentError struct {
	URL    string
	Reason string
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("unsupported content at %s: %s", e.URL, e.Reason)
}

// UnsupportedURLError means no registered fetcher claimed the URL
type UnsupportedURLError struct {
	URL string
}

func (e *UnsupportedURLError) Error() string {
	return fmt.Sprintf("no fetcher supports URL %s", e.URL)
}
