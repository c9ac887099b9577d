package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func testPolicy() *RetryPolicy {
	return NewRetryPolicy(3, 5*time.Millisecond)
}

func TestHTTPFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>docs</body></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("test-agent", testPolicy(), 5*time.Second, testLogger())
	content, err := f.Fetch(context.Background(), srv.URL, FetchOptions{FollowRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, 200, content.StatusCode)
	assert.Equal(t, ContentKindHTML, content.Kind)
	assert.Contains(t, string(content.Body), "docs")
}

func TestHTTPFetcher_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("test-agent", testPolicy(), 5*time.Second, testLogger())
	content, err := f.Fetch(context.Background(), srv.URL, FetchOptions{FollowRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Contains(t, string(content.Body), "recovered")
}

func TestHTTPFetcher_PermanentFailureNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher("test-agent", testPolicy(), 5*time.Second, testLogger())
	_, err := f.Fetch(context.Background(), srv.URL, FetchOptions{FollowRedirects: true})
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 404, fetchErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "404 must not be retried")
}

func TestHTTPFetcher_RedirectRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/v2/docs", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	f := NewHTTPFetcher("test-agent", testPolicy(), 5*time.Second, testLogger())
	_, err := f.Fetch(context.Background(), srv.URL+"/v1/docs", FetchOptions{FollowRedirects: false})
	require.Error(t, err)

	var redirectErr *RedirectError
	require.ErrorAs(t, err, &redirectErr)
	assert.Equal(t, 301, redirectErr.StatusCode)
	assert.Equal(t, srv.URL+"/v2/docs", redirectErr.Location)
}

func TestHTTPFetcher_RedirectFollowed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher("test-agent", testPolicy(), 5*time.Second, testLogger())
	content, err := f.Fetch(context.Background(), srv.URL+"/old", FetchOptions{FollowRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new", content.URL)
	assert.Contains(t, string(content.Body), "landed")
}

func TestHTTPFetcher_CredentialsSameOriginOnly(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("test-agent", testPolicy(), 5*time.Second, testLogger())
	hostURL := srv.Listener.Addr().String()

	_, err := f.Fetch(context.Background(), srv.URL, FetchOptions{
		FollowRedirects: true,
		Credentials:     &Credentials{Host: hostURL, Username: "user", Password: "secret"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, gotAuth, "credentials should apply on their origin")

	gotAuth = ""
	_, err = f.Fetch(context.Background(), srv.URL, FetchOptions{
		FollowRedirects: true,
		Credentials:     &Credentials{Host: "other.example.com", Username: "user", Password: "secret"},
	})
	require.NoError(t, err)
	assert.Empty(t, gotAuth, "credentials must never cross origins")
}

func TestHTTPFetcher_CustomHeaders(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("test-agent", testPolicy(), 5*time.Second, testLogger())
	_, err := f.Fetch(context.Background(), srv.URL, FetchOptions{
		FollowRedirects: true,
		Headers:         map[string]string{"X-Api-Key": "abc123"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", gotHeader)
}

func TestKindFromMime(t *testing.T) {
	assert.Equal(t, ContentKindHTML, kindFromMime("text/html; charset=utf-8", "https://x.dev/page"))
	assert.Equal(t, ContentKindMarkdown, kindFromMime("text/markdown", "https://x.dev/page"))
	assert.Equal(t, ContentKindMarkdown, kindFromMime("text/plain", "https://x.dev/guide.md"))
	assert.Equal(t, ContentKindMarkdown, kindFromMime("", "https://x.dev/guide.mdx?raw=1"))
	assert.Equal(t, ContentKindText, kindFromMime("text/plain", "https://x.dev/notes.txt"))
	assert.Equal(t, ContentKindHTML, kindFromMime("application/octet-stream", "https://x.dev/page"))
}
