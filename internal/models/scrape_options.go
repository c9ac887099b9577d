package models

import (
	"fmt"
	"net/url"
)

// CrawlScope bounds which links are admitted relative to the seed URL
type CrawlScope string

const (
	ScopeSubpages CrawlScope = "subpages" // Same host, path under the seed's directory
	ScopeHostname CrawlScope = "hostname" // Same host, any path
	ScopeDomain   CrawlScope = "domain"   // Same registrable domain, subdomains included
)

// RenderMode controls headless-browser rendering of fetched pages
type RenderMode string

const (
	RenderModeFetch   RenderMode = "fetch"      // Never render
	RenderModeBrowser RenderMode = "playwright" // Always render
	RenderModeAuto    RenderMode = "auto"       // Render when a browser is available
)

// ScrapeOptions configures a single crawl job. Zero values are filled with
// defaults by Normalize; FollowRedirects and IgnoreErrors default to true.
type ScrapeOptions struct {
	MaxPages         int               `json:"max_pages"`
	MaxDepth         int               `json:"max_depth"`
	MaxConcurrency   int               `json:"max_concurrency"`
	Scope            CrawlScope        `json:"scope"`
	ScrapeMode       RenderMode        `json:"scrape_mode"`
	FollowRedirects  *bool             `json:"follow_redirects,omitempty"`
	IgnoreErrors     *bool             `json:"ignore_errors,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	ExcludeSelectors []string          `json:"exclude_selectors,omitempty"`
}

// Normalize fills unset fields with defaults
func (o *ScrapeOptions) Normalize() {
	if o.MaxPages <= 0 {
		o.MaxPages = 1000
	}
	if o.MaxDepth < 0 {
		// 0 is legal (seed page only); the transport layer applies the
		// default of 3 when the field is absent.
		o.MaxDepth = 0
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 3
	}
	if o.Scope == "" {
		o.Scope = ScopeSubpages
	}
	if o.ScrapeMode == "" {
		o.ScrapeMode = RenderModeAuto
	}
	if o.FollowRedirects == nil {
		v := true
		o.FollowRedirects = &v
	}
	if o.IgnoreErrors == nil {
		v := true
		o.IgnoreErrors = &v
	}
}

// Validate rejects out-of-range options
func (o *ScrapeOptions) Validate() error {
	switch o.Scope {
	case ScopeSubpages, ScopeHostname, ScopeDomain:
	default:
		return fmt.Errorf("invalid scope %q: must be one of subpages, hostname, domain", o.Scope)
	}
	switch o.ScrapeMode {
	case RenderModeFetch, RenderModeBrowser, RenderModeAuto:
	default:
		return fmt.Errorf("invalid scrape_mode %q: must be one of fetch, playwright, auto", o.ScrapeMode)
	}
	if o.MaxPages < 1 {
		return fmt.Errorf("max_pages must be >= 1, got %d", o.MaxPages)
	}
	if o.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", o.MaxDepth)
	}
	if o.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", o.MaxConcurrency)
	}
	return nil
}

// ValidateSeedURL checks that a seed parses as an absolute http(s) or file URL
func ValidateSeedURL(seed string) error {
	u, err := url.Parse(seed)
	if err != nil {
		return fmt.Errorf("invalid seed URL: %w", err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("seed URL must be absolute, got %q", seed)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return fmt.Errorf("unsupported seed URL scheme %q", u.Scheme)
	}
	return nil
}
