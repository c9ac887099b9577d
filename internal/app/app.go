package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/browser"
	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/crawler"
	"github.com/ternarybob/quill/internal/embedder"
	"github.com/ternarybob/quill/internal/fetcher"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/jobs"
	"github.com/ternarybob/quill/internal/mcptools"
	"github.com/ternarybob/quill/internal/search"
	"github.com/ternarybob/quill/internal/splitter"
	"github.com/ternarybob/quill/internal/store"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Store       interfaces.ChunkStorage
	Embedder    interfaces.Embedder
	Registry    *fetcher.Registry
	BrowserPool *browser.Pool
	Renderer    *browser.Renderer
	Splitter    *splitter.Splitter
	Crawler     *crawler.Crawler
	JobManager  *jobs.Manager
	Scheduler   *jobs.Scheduler
	Search      interfaces.SearchService
}

// New wires all services in dependency order
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	a.Embedder = embedder.NewFromConfig(config, logger)

	chunkStore, err := store.New(config, a.Embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}
	a.Store = chunkStore

	if err := a.Store.Initialize(context.Background()); err != nil {
		chunkStore.Close()
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	retryPolicy := fetcher.NewRetryPolicy(config.Crawler.RetryAttempts, config.Crawler.RetryBaseDelay)
	a.Registry = fetcher.NewRegistry(
		fetcher.NewGitHubFetcher(config.Crawler.GitHubToken, logger),
		fetcher.NewFileFetcher(),
		fetcher.NewHTTPFetcher(config.Crawler.UserAgent, retryPolicy, config.Crawler.RequestTimeout, logger),
	)

	a.BrowserPool = browser.NewPool(browser.PoolConfig{
		MaxInstances: config.Crawler.MaxConcurrency,
		UserAgent:    config.Crawler.UserAgent,
		Headless:     config.Browser.Headless,
		NoSandbox:    config.Browser.NoSandbox,
	}, logger)
	a.Renderer = browser.NewRenderer(a.BrowserPool, config.Browser.RenderTimeout, config.Browser.SettleInterval, logger)

	a.Splitter = splitter.New(splitter.Config{
		PreferredSize: config.Splitter.PreferredSize,
		MaxSize:       config.Splitter.MaxSize,
	}, logger)

	a.Crawler = crawler.New(a.Registry, a.Renderer, a.Splitter, a.Store, config, logger)
	a.JobManager = jobs.NewManager(a.Crawler.Crawl, chunkStore, chunkStore, config, logger)
	a.Scheduler = jobs.NewScheduler(a.JobManager, config, logger)
	a.Search = search.NewService(a.Store, a.Embedder, config, logger)

	logger.Info().
		Str("storage", config.Storage.Badger.Path).
		Str("vectors", config.Storage.Vectors.Path).
		Str("embedder", config.Embedder.BaseURL).
		Int("jobs_concurrency", config.Jobs.Concurrency).
		Msg("Application initialized")

	return a, nil
}

// MCPServices bundles the collaborators for the MCP tool surface
func (a *App) MCPServices() mcptools.Services {
	return mcptools.Services{
		Jobs:     a.JobManager,
		Search:   a.Search,
		Store:    a.Store,
		Registry: a.Registry,
	}
}

// Start launches background components
func (a *App) Start() error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// Close shuts components down in reverse dependency order
func (a *App) Close(ctx context.Context) {
	a.Scheduler.Stop()

	if err := a.JobManager.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Job manager shutdown incomplete")
	}

	a.BrowserPool.Shutdown()

	if err := a.Store.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Store close failed")
	}

	a.Logger.Info().Msg("Application stopped")
}
