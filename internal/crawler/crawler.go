package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/fetcher"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/pipeline"
	"github.com/ternarybob/quill/internal/splitter"
)

// shellThreshold is the markdown size below which a fetched page is assumed
// to be a JavaScript shell worth re-rendering in auto mode.
const shellThreshold = 200

// Sink receives the processed chunks of each page
type Sink interface {
	AddChunks(ctx context.Context, library, version string, doc *models.Document, chunks []splitter.Chunk) (int, error)
}

// PageRenderer renders JavaScript-heavy pages; nil disables rendering
type PageRenderer interface {
	Available() bool
	Render(ctx context.Context, rawURL string, prefetched []byte, opts fetcher.FetchOptions) (*fetcher.RawContent, error)
}

// Crawler walks a documentation site breadth-first: fetch, process, store,
// discover. One crawl serves exactly one (library, version) scope.
type Crawler struct {
	registry *fetcher.Registry
	renderer PageRenderer
	splitter *splitter.Splitter
	sink     Sink
	cfg      *common.Config
	logger   arbor.ILogger
}

func New(registry *fetcher.Registry, renderer PageRenderer, split *splitter.Splitter, sink Sink, cfg *common.Config, logger arbor.ILogger) *Crawler {
	return &Crawler{
		registry: registry,
		renderer: renderer,
		splitter: split,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
	}
}

// crawlState is the shared mutable state of one crawl
type crawlState struct {
	mu       sync.Mutex
	progress models.JobProgress
	fatal    error
	onUpdate func(models.JobProgress)
}

func (st *crawlState) update(fn func(*models.JobProgress)) {
	st.mu.Lock()
	fn(&st.progress)
	snapshot := st.progress
	onUpdate := st.onUpdate
	st.mu.Unlock()
	if onUpdate != nil {
		onUpdate(snapshot)
	}
}

func (st *crawlState) fail(err error) {
	st.mu.Lock()
	if st.fatal == nil {
		st.fatal = err
	}
	st.mu.Unlock()
}

// Crawl runs one complete crawl. It returns the final progress and an error
// when the crawl failed as a whole; individual page failures only fail the
// crawl when the options say so or the seed itself is unreachable.
func (c *Crawler) Crawl(ctx context.Context, library, version, seedURL string, opts models.ScrapeOptions, onProgress func(models.JobProgress)) (models.JobProgress, error) {
	opts.Normalize()

	seed, err := url.Parse(seedURL)
	if err != nil {
		return models.JobProgress{}, fmt.Errorf("parse seed url: %w", err)
	}

	fetchOpts := c.buildFetchOptions(seed, opts)
	if seed.User != nil {
		seed = stripUserInfo(seed)
	}
	seedNorm := normalizeURL(seed)

	inScope := scopePredicate(seed, opts.Scope)
	front := newFrontier(opts.MaxPages)
	front.Push(seedNorm, 0)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		front.Close()
	}()

	state := &crawlState{onUpdate: onProgress}
	limiters := &hostLimiters{
		rate:     rate.Limit(c.cfg.Crawler.RequestsPerHost),
		limiters: make(map[string]*rate.Limiter),
	}

	htmlPipe := pipeline.ForHTML(opts.ExcludeSelectors, c.logger)
	mdPipe := pipeline.ForMarkdown(c.logger)

	var wg sync.WaitGroup
	for i := 0; i < opts.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, ok := front.Next()
				if !ok {
					return
				}
				c.processPage(ctx, item, library, version, opts, fetchOpts,
					htmlPipe, mdPipe, inScope, front, limiters, state, item.url == seedNorm)
				front.Done()

				state.mu.Lock()
				aborted := state.fatal != nil
				state.mu.Unlock()
				if aborted {
					front.Close()
					return
				}
			}
		}()
	}
	wg.Wait()

	state.update(func(p *models.JobProgress) {
		p.TotalDiscovered = front.Discovered()
		p.CurrentURL = ""
	})

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.fatal != nil {
		return state.progress, state.fatal
	}
	if err := ctx.Err(); err != nil {
		return state.progress, err
	}

	c.logger.Info().
		Str("library", library).
		Str("version", version).
		Int("pages_scraped", state.progress.PagesScraped).
		Int("pages_failed", state.progress.PagesFailed).
		Int("discovered", state.progress.TotalDiscovered).
		Msg("Crawl finished")

	return state.progress, nil
}

func (c *Crawler) processPage(
	ctx context.Context,
	item queueItem,
	library, version string,
	opts models.ScrapeOptions,
	fetchOpts fetcher.FetchOptions,
	htmlPipe, mdPipe *pipeline.Pipeline,
	inScope func(*url.URL) bool,
	front *frontier,
	limiters *hostLimiters,
	state *crawlState,
	isSeed bool,
) {
	state.update(func(p *models.JobProgress) {
		p.CurrentURL = item.url
		p.TotalDiscovered = front.Discovered()
	})

	if u, err := url.Parse(item.url); err == nil {
		if err := limiters.wait(ctx, u.Host); err != nil {
			return
		}
	}
	if ctx.Err() != nil {
		return
	}

	doc, links, err := c.fetchAndProcess(ctx, item.url, opts, fetchOpts, htmlPipe, mdPipe)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn().Str("url", item.url).Err(err).Msg("Page failed")
		state.update(func(p *models.JobProgress) { p.PagesFailed++ })

		if isSeed {
			state.fail(fmt.Errorf("seed page failed: %w", err))
		} else if opts.IgnoreErrors != nil && !*opts.IgnoreErrors {
			state.fail(fmt.Errorf("page %s failed: %w", item.url, err))
		}
		return
	}

	chunks := c.splitter.Split(doc.ContentMarkdown)
	if len(chunks) > 0 {
		if _, err := c.sink.AddChunks(ctx, library, version, doc, chunks); err != nil {
			c.logger.Error().Str("url", item.url).Err(err).Msg("Failed to store chunks")
			state.fail(fmt.Errorf("store %s: %w", item.url, err))
			return
		}
	}

	state.update(func(p *models.JobProgress) { p.PagesScraped++ })

	if item.depth >= opts.MaxDepth {
		return
	}
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || !inScope(u) {
			continue
		}
		front.Push(normalizeURL(u), item.depth+1)
	}
}

// fetchAndProcess retrieves one page and runs it through the matching
// pipeline. Auto mode escalates to browser rendering when the plain fetch
// yields a near-empty document and a renderer is on hand.
func (c *Crawler) fetchAndProcess(
	ctx context.Context,
	pageURL string,
	opts models.ScrapeOptions,
	fetchOpts fetcher.FetchOptions,
	htmlPipe, mdPipe *pipeline.Pipeline,
) (*models.Document, []string, error) {
	mode := opts.ScrapeMode

	if mode == models.RenderModeBrowser {
		if c.renderer == nil || !c.renderer.Available() {
			return nil, nil, fmt.Errorf("browser rendering requested but no browser is available")
		}
		raw, err := c.renderer.Render(ctx, pageURL, nil, fetchOpts)
		if err != nil {
			return nil, nil, err
		}
		return htmlPipe.Process(ctx, raw)
	}

	raw, err := c.registry.Fetch(ctx, pageURL, fetchOpts)
	if err != nil {
		return nil, nil, err
	}

	pipe := htmlPipe
	if raw.Kind != fetcher.ContentKindHTML {
		pipe = mdPipe
	}
	doc, links, err := pipe.Process(ctx, raw)
	if err != nil {
		return nil, nil, err
	}

	if mode == models.RenderModeAuto &&
		raw.Kind == fetcher.ContentKindHTML &&
		len(doc.ContentMarkdown) < shellThreshold &&
		c.renderer != nil && c.renderer.Available() {
		c.logger.Debug().Str("url", pageURL).Msg("Thin page, escalating to browser render")
		rendered, rerr := c.renderer.Render(ctx, pageURL, raw.Body, fetchOpts)
		if rerr != nil {
			c.logger.Warn().Str("url", pageURL).Err(rerr).Msg("Render escalation failed, keeping fetched content")
			return doc, links, nil
		}
		return htmlPipe.Process(ctx, rendered)
	}

	return doc, links, nil
}

func (c *Crawler) buildFetchOptions(seed *url.URL, opts models.ScrapeOptions) fetcher.FetchOptions {
	followRedirects := true
	if opts.FollowRedirects != nil {
		followRedirects = *opts.FollowRedirects
	}

	fo := fetcher.FetchOptions{
		Headers:         opts.Headers,
		FollowRedirects: followRedirects,
		Timeout:         c.cfg.Crawler.RequestTimeout,
	}
	if seed.User != nil {
		password, _ := seed.User.Password()
		fo.Credentials = &fetcher.Credentials{
			Host:     seed.Host,
			Username: seed.User.Username(),
			Password: password,
		}
	}
	return fo
}

func stripUserInfo(u *url.URL) *url.URL {
	c := *u
	c.User = nil
	return &c
}

// hostLimiters spreads requests per host so crawls stay polite
type hostLimiters struct {
	mu       sync.Mutex
	rate     rate.Limit
	limiters map[string]*rate.Limiter
}

func (h *hostLimiters) wait(ctx context.Context, host string) error {
	if h.rate <= 0 {
		return nil
	}
	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(h.rate, 1)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()
	return limiter.Wait(ctx)
}
