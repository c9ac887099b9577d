package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/fetcher"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/splitter"
)

// memorySink collects stored pages keyed by source URL
type memorySink struct {
	mu     sync.Mutex
	pages  map[string]int // source URL -> chunk count
	failOn string
}

func newMemorySink() *memorySink {
	return &memorySink{pages: make(map[string]int)}
}

func (s *memorySink) AddChunks(ctx context.Context, library, version string, doc *models.Document, chunks []splitter.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && doc.SourceURL == s.failOn {
		return 0, fmt.Errorf("sink unavailable")
	}
	s.pages[doc.SourceURL] = len(chunks)
	return len(chunks), nil
}

func (s *memorySink) stored() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	urls := make([]string, 0, len(s.pages))
	for u := range s.pages {
		urls = append(urls, u)
	}
	return urls
}

func page(title string, links ...string) string {
	body := "<h1>" + title + "</h1><p>Documentation for " + title + " with enough words to not look like an empty shell of a page.</p>"
	for _, l := range links {
		body += `<a href="` + l + `">` + l + `</a>`
	}
	return "<html><head><title>" + title + "</title></head><body><main>" + body + "</main></body></html>"
}

func newTestCrawler(t *testing.T, sink Sink) *Crawler {
	t.Helper()
	logger := arbor.NewLogger()
	cfg := common.DefaultConfig()
	cfg.Crawler.RequestsPerHost = 0 // No throttling in tests
	cfg.Crawler.RequestTimeout = 5 * time.Second

	registry := fetcher.NewRegistry(
		fetcher.NewHTTPFetcher("quill-test", fetcher.NewRetryPolicy(1, time.Millisecond), cfg.Crawler.RequestTimeout, logger),
		fetcher.NewFileFetcher(),
	)
	split := splitter.New(splitter.DefaultConfig(), logger)
	return New(registry, nil, split, sink, cfg, logger)
}

func fetchOpts(depth int) models.ScrapeOptions {
	return models.ScrapeOptions{
		MaxDepth:   depth,
		ScrapeMode: models.RenderModeFetch,
	}
}

func TestCrawl_FollowsSubpageLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "/docs/install", "/docs/usage", "/api/private"))
	})
	mux.HandleFunc("/docs/install", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Install"))
	})
	mux.HandleFunc("/docs/usage", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Usage"))
	})
	mux.HandleFunc("/api/private", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Private"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := newMemorySink()
	c := newTestCrawler(t, sink)

	progress, err := c.Crawl(context.Background(), "lib", "1.0.0", srv.URL+"/docs/", fetchOpts(2), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, progress.PagesScraped)
	assert.Equal(t, 0, progress.PagesFailed)
	assert.Empty(t, progress.CurrentURL)

	stored := sink.stored()
	assert.Len(t, stored, 3)
	assert.NotContains(t, stored, srv.URL+"/api/private", "out-of-scope link must not be crawled")
}

func TestCrawl_DepthZeroStopsAtSeed(t *testing.T) {
	var childHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "/docs/child"))
	})
	mux.HandleFunc("/docs/child", func(w http.ResponseWriter, r *http.Request) {
		childHits++
		fmt.Fprint(w, page("Child"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := newMemorySink()
	progress, err := newTestCrawler(t, sink).Crawl(context.Background(), "lib", "1.0.0", srv.URL+"/docs/", fetchOpts(0), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.PagesScraped)
	assert.Zero(t, childHits)
}

func TestCrawl_MaxPagesCapsTheCrawl(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "/docs/a", "/docs/b", "/docs/c", "/docs/d"))
	})
	for _, p := range []string{"a", "b", "c", "d"} {
		p := p
		mux.HandleFunc("/docs/"+p, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, page("Page "+p))
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := fetchOpts(3)
	opts.MaxPages = 2
	opts.MaxConcurrency = 1

	sink := newMemorySink()
	progress, err := newTestCrawler(t, sink).Crawl(context.Background(), "lib", "1.0.0", srv.URL+"/docs/", opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, progress.PagesScraped)
	assert.Equal(t, 2, progress.TotalDiscovered)
}

func TestCrawl_SeedFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	sink := newMemorySink()
	progress, err := newTestCrawler(t, sink).Crawl(context.Background(), "lib", "1.0.0", srv.URL+"/docs/", fetchOpts(1), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed page failed")
	assert.Equal(t, 0, progress.PagesScraped)
	assert.Equal(t, 1, progress.PagesFailed)
}

func TestCrawl_PageFailuresToleratedByDefault(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "/docs/broken", "/docs/ok"))
	})
	mux.HandleFunc("/docs/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	mux.HandleFunc("/docs/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("OK"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := newMemorySink()
	progress, err := newTestCrawler(t, sink).Crawl(context.Background(), "lib", "1.0.0", srv.URL+"/docs/", fetchOpts(1), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, progress.PagesScraped)
	assert.Equal(t, 1, progress.PagesFailed)
}

func TestCrawl_StrictModeAbortsOnPageFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "/docs/broken"))
	})
	mux.HandleFunc("/docs/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	strict := false
	opts := fetchOpts(1)
	opts.IgnoreErrors = &strict

	sink := newMemorySink()
	_, err := newTestCrawler(t, sink).Crawl(context.Background(), "lib", "1.0.0", srv.URL+"/docs/", opts, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "/docs/broken")
}

func TestCrawl_SinkFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home"))
	}))
	defer srv.Close()

	sink := newMemorySink()
	sink.failOn = srv.URL + "/"

	_, err := newTestCrawler(t, sink).Crawl(context.Background(), "lib", "1.0.0", srv.URL+"/", fetchOpts(0), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink unavailable")
}

func TestCrawl_CancellationStopsWorkers(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		links := make([]string, 20)
		for i := range links {
			links[i] = fmt.Sprintf("/docs/page-%d", i)
		}
		fmt.Fprint(w, page("Home", links...))
	})
	for i := 0; i < 20; i++ {
		mux.HandleFunc(fmt.Sprintf("/docs/page-%d", i), func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			fmt.Fprint(w, page("Slow"))
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	opts := fetchOpts(1)
	opts.MaxConcurrency = 2

	sink := newMemorySink()
	done := make(chan error, 1)
	go func() {
		_, err := newTestCrawler(t, sink).Crawl(ctx, "lib", "1.0.0", srv.URL+"/docs/", opts, nil)
		done <- err
	}()

	// Let the seed finish and the workers park on the slow pages
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not stop after cancellation")
	}
}

func TestCrawl_ProgressCallbackObservesScrapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "/docs/a"))
	})
	mux.HandleFunc("/docs/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("A"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var mu sync.Mutex
	var maxScraped int
	onProgress := func(p models.JobProgress) {
		mu.Lock()
		if p.PagesScraped > maxScraped {
			maxScraped = p.PagesScraped
		}
		mu.Unlock()
	}

	sink := newMemorySink()
	_, err := newTestCrawler(t, sink).Crawl(context.Background(), "lib", "1.0.0", srv.URL+"/docs/", fetchOpts(1), onProgress)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, maxScraped)
}

func TestCrawl_BrowserModeWithoutRendererFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home"))
	}))
	defer srv.Close()

	opts := fetchOpts(0)
	opts.ScrapeMode = models.RenderModeBrowser

	sink := newMemorySink()
	_, err := newTestCrawler(t, sink).Crawl(context.Background(), "lib", "1.0.0", srv.URL+"/", opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no browser is available")
}
