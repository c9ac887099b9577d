package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/fetcher"
)

// settleScript reports whether the page looks done loading: no visible
// loading indicators and nothing marked aria-busy.
const settleScript = `(function() {
	var sel = '[class*="loading"],[class*="spinner"],[class*="loader"],[class*="preload"]';
	var nodes = document.querySelectorAll(sel);
	for (var i = 0; i < nodes.length; i++) {
		var s = window.getComputedStyle(nodes[i]);
		if (s.display !== 'none' && s.visibility !== 'hidden' && nodes[i].offsetParent !== null) {
			return false;
		}
	}
	return !document.querySelector('[aria-busy="true"]');
})()`

// Renderer loads pages in a headless browser and returns the JS-rendered
// HTML. Heavy subresources (images, stylesheets, fonts, media) are blocked
// at the network layer since only the DOM matters for indexing.
type Renderer struct {
	pool           *Pool
	renderTimeout  time.Duration
	settleInterval time.Duration
	logger         arbor.ILogger
}

func NewRenderer(pool *Pool, renderTimeout, settleInterval time.Duration, logger arbor.ILogger) *Renderer {
	if renderTimeout <= 0 {
		renderTimeout = 60 * time.Second
	}
	if settleInterval <= 0 {
		settleInterval = 250 * time.Millisecond
	}
	return &Renderer{
		pool:           pool,
		renderTimeout:  renderTimeout,
		settleInterval: settleInterval,
		logger:         logger,
	}
}

// Available reports whether rendering can actually happen on this machine.
// The first call may start Chrome.
func (r *Renderer) Available() bool {
	return r.pool.Available()
}

// Render loads rawURL in a fresh tab, waits for the page to settle, and
// returns the serialized DOM. When prefetched holds the page's already
// fetched HTML, the document request is fulfilled from those bytes instead
// of hitting the network a second time.
func (r *Renderer) Render(ctx context.Context, rawURL string, prefetched []byte, opts fetcher.FetchOptions) (*fetcher.RawContent, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	browserCtx, release, err := r.pool.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}
	defer release()

	// Fresh tab per page keeps request listeners from stacking across renders
	pageCtx, cancelPage := chromedp.NewContext(browserCtx)
	defer cancelPage()

	pageCtx, cancelTimeout := context.WithTimeout(pageCtx, r.renderTimeout)
	defer cancelTimeout()

	r.installInterceptor(pageCtx, rawURL, prefetched, target, opts)

	var html string
	err = chromedp.Run(pageCtx,
		cdpfetch.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return nil, &fetcher.FetchError{URL: rawURL, Err: fmt.Errorf("render: %w", err)}
	}

	r.waitForSettle(pageCtx)

	if err := chromedp.Run(pageCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return nil, &fetcher.FetchError{URL: rawURL, Err: fmt.Errorf("serialize dom: %w", err)}
	}

	return &fetcher.RawContent{
		URL:         rawURL,
		RequestedAt: time.Now(),
		Kind:        fetcher.ContentKindHTML,
		MimeType:    "text/html",
		Body:        []byte(html),
		StatusCode:  200,
	}, nil
}

// installInterceptor serves the prefetched document body, blocks decorative
// subresources, and injects per-request headers. Credentials are only
// attached to requests going to the seed's own host.
func (r *Renderer) installInterceptor(pageCtx context.Context, rawURL string, prefetched []byte, target *url.URL, opts fetcher.FetchOptions) {
	chromedp.ListenTarget(pageCtx, func(ev interface{}) {
		paused, ok := ev.(*cdpfetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(pageCtx)
			execCtx := cdp.WithExecutor(pageCtx, c.Target)

			// The page itself was already fetched; render those exact bytes
			if paused.ResourceType == network.ResourceTypeDocument &&
				len(prefetched) > 0 && paused.Request.URL == rawURL {
				fulfill := cdpfetch.FulfillRequest(paused.RequestID, 200).
					WithResponseHeaders([]*cdpfetch.HeaderEntry{
						{Name: "Content-Type", Value: "text/html; charset=utf-8"},
					}).
					WithBody(base64.StdEncoding.EncodeToString(prefetched))
				if err := fulfill.Do(execCtx); err != nil {
					r.logger.Trace().Err(err).Msg("Failed to serve prefetched document")
				}
				return
			}

			switch paused.ResourceType {
			case network.ResourceTypeImage,
				network.ResourceTypeStylesheet,
				network.ResourceTypeFont,
				network.ResourceTypeMedia:
				if err := cdpfetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil {
					r.logger.Trace().Err(err).Msg("Failed to block subresource")
				}
				return
			}

			cont := cdpfetch.ContinueRequest(paused.RequestID)
			if headers := r.headersFor(paused.Request.URL, paused.Request.Headers, target, opts); len(headers) > 0 {
				cont = cont.WithHeaders(headers)
			}
			if err := cont.Do(execCtx); err != nil {
				r.logger.Trace().Err(err).Msg("Failed to continue request")
			}
		}()
	})
}

func (r *Renderer) headersFor(requestURL string, existing network.Headers, target *url.URL, opts fetcher.FetchOptions) []*cdpfetch.HeaderEntry {
	reqURL, err := url.Parse(requestURL)
	if err != nil || reqURL.Host != target.Host {
		return nil
	}

	hasAuth := false
	for name := range existing {
		if strings.EqualFold(name, "Authorization") {
			hasAuth = true
		}
	}

	var headers []*cdpfetch.HeaderEntry
	for k, v := range opts.Headers {
		if strings.EqualFold(k, "Authorization") {
			hasAuth = true
		}
		headers = append(headers, &cdpfetch.HeaderEntry{Name: k, Value: v})
	}
	if opts.Credentials != nil && opts.Credentials.Host == reqURL.Host && !hasAuth {
		token := base64.StdEncoding.EncodeToString(
			[]byte(opts.Credentials.Username + ":" + opts.Credentials.Password))
		headers = append(headers, &cdpfetch.HeaderEntry{Name: "Authorization", Value: "Basic " + token})
	}
	return headers
}

// waitForSettle polls until loading indicators disappear. A page that never
// settles still renders; the poll deadline just caps how long we wait.
func (r *Renderer) waitForSettle(pageCtx context.Context) {
	settleCtx, cancel := context.WithTimeout(pageCtx, 10*time.Second)
	defer cancel()

	var settled bool
	err := chromedp.Run(settleCtx,
		chromedp.Poll(settleScript, &settled, chromedp.WithPollingInterval(r.settleInterval)))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		r.logger.Debug().Err(err).Msg("Settle poll ended early")
	}
}
