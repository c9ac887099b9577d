package crawler

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/ternarybob/quill/internal/models"
)

// scopePredicate builds the in-scope test for discovered links.
//
//	subpages: same host, under the seed's directory
//	hostname: same host, any path
//	domain:   any host sharing the seed's registrable domain
func scopePredicate(seed *url.URL, scope models.CrawlScope) func(*url.URL) bool {
	seedHost := strings.ToLower(seed.Hostname())
	seedDir := seedDirectory(seed)

	switch scope {
	case models.ScopeHostname:
		return func(u *url.URL) bool {
			return strings.ToLower(u.Hostname()) == seedHost
		}
	case models.ScopeDomain:
		seedDomain, err := publicsuffix.EffectiveTLDPlusOne(seedHost)
		if err != nil {
			// Hosts without a registrable domain (localhost, raw IPs) fall
			// back to exact host matching
			return func(u *url.URL) bool {
				return strings.ToLower(u.Hostname()) == seedHost
			}
		}
		return func(u *url.URL) bool {
			d, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(u.Hostname()))
			return err == nil && d == seedDomain
		}
	default: // subpages
		return func(u *url.URL) bool {
			if strings.ToLower(u.Hostname()) != seedHost {
				return false
			}
			p := u.Path
			if p == "" {
				p = "/"
			}
			return p == strings.TrimSuffix(seedDir, "/") || strings.HasPrefix(p, seedDir)
		}
	}
}

// seedDirectory returns the directory prefix the subpages scope anchors to:
// /docs/intro.html anchors to /docs/, while /docs and /docs/ both anchor to
// /docs/.
func seedDirectory(seed *url.URL) string {
	p := seed.Path
	if p == "" || p == "/" {
		return "/"
	}
	if strings.HasSuffix(p, "/") {
		return p
	}
	if path.Ext(p) != "" {
		dir := path.Dir(p)
		if dir == "/" || dir == "." {
			return "/"
		}
		return dir + "/"
	}
	return p + "/"
}
