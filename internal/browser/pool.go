package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Pool manages headless browser tabs for JavaScript rendering. Startup is
// lazy: no Chrome process exists until the first page actually needs one, so
// plain-fetch crawls never pay the browser cost.
type Pool struct {
	mu             sync.Mutex
	allocatorCtx   context.Context
	allocatorStop  context.CancelFunc
	tabs           []context.Context
	tabCancels     []context.CancelFunc
	currentIndex   int
	maxInstances   int
	userAgent      string
	headless       bool
	noSandbox      bool
	startupTimeout time.Duration
	initialized    bool
	logger         arbor.ILogger
}

// PoolConfig holds browser pool settings
type PoolConfig struct {
	MaxInstances   int
	UserAgent      string
	Headless       bool
	NoSandbox      bool
	StartupTimeout time.Duration
}

// NewPool creates an uninitialized pool; Chrome starts on first Acquire
func NewPool(config PoolConfig, logger arbor.ILogger) *Pool {
	if config.MaxInstances <= 0 {
		config.MaxInstances = 1
	}
	if config.StartupTimeout <= 0 {
		config.StartupTimeout = 30 * time.Second
	}
	return &Pool{
		maxInstances:   config.MaxInstances,
		userAgent:      config.UserAgent,
		headless:       config.Headless,
		noSandbox:      config.NoSandbox,
		startupTimeout: config.StartupTimeout,
		logger:         logger,
	}
}

// Available reports whether a browser can be started or is already running.
// Used to decide whether auto mode may escalate to rendering.
func (p *Pool) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return true
	}
	return p.initLocked() == nil
}

// Acquire returns a healthy tab context and a release function. Dead tabs
// are replaced transparently.
func (p *Pool) Acquire() (context.Context, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		if err := p.initLocked(); err != nil {
			return nil, nil, err
		}
	}

	index := p.currentIndex % len(p.tabs)
	p.currentIndex = (p.currentIndex + 1) % len(p.tabs)

	tab := p.tabs[index]
	if tab.Err() != nil {
		p.logger.Warn().Int("tab_index", index).Msg("Replacing dead browser tab")
		p.tabCancels[index]()
		newTab, cancel := chromedp.NewContext(p.allocatorCtx)
		if err := p.startTab(newTab); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("restart browser tab: %w", err)
		}
		p.tabs[index] = newTab
		p.tabCancels[index] = cancel
		tab = newTab
	}

	release := func() {
		p.logger.Debug().Int("tab_index", index).Msg("Browser tab released")
	}
	return tab, release, nil
}

// initLocked starts Chrome and opens the tab pool; caller holds p.mu
func (p *Pool) initLocked() error {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", p.noSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if p.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.userAgent))
	}

	allocatorCtx, allocatorStop := chromedp.NewExecAllocator(context.Background(), opts...)

	tabs := make([]context.Context, 0, p.maxInstances)
	cancels := make([]context.CancelFunc, 0, p.maxInstances)
	for i := 0; i < p.maxInstances; i++ {
		tab, cancel := chromedp.NewContext(allocatorCtx)
		if err := p.startTab(tab); err != nil {
			cancel()
			for _, c := range cancels {
				c()
			}
			allocatorStop()
			return fmt.Errorf("start browser tab %d: %w", i, err)
		}
		tabs = append(tabs, tab)
		cancels = append(cancels, cancel)
	}

	p.allocatorCtx = allocatorCtx
	p.allocatorStop = allocatorStop
	p.tabs = tabs
	p.tabCancels = cancels
	p.currentIndex = 0
	p.initialized = true

	p.logger.Info().
		Int("tabs", len(tabs)).
		Bool("headless", p.headless).
		Msg("Browser pool started")
	return nil
}

// startTab verifies a fresh tab responds before it joins the pool
func (p *Pool) startTab(tab context.Context) error {
	testCtx, cancel := context.WithTimeout(tab, p.startupTimeout)
	defer cancel()
	return chromedp.Run(testCtx, chromedp.Navigate("about:blank"))
}

// Shutdown tears down all tabs and the Chrome process. Safe to call when the
// pool was never started.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}

	done := make(chan struct{})
	go func() {
		for _, cancel := range p.tabCancels {
			cancel()
		}
		p.allocatorStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		p.logger.Warn().Msg("Browser pool shutdown timed out")
	}

	p.tabs = nil
	p.tabCancels = nil
	p.initialized = false
	p.logger.Info().Msg("Browser pool shut down")
}
