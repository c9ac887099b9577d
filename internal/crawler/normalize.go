package crawler

import (
	"net/url"
	"strings"
)

// normalizeURL canonicalizes a URL for visited-set identity: fragments drop,
// scheme and host lowercase, default ports disappear, and trailing slashes
// collapse so /docs and /docs/ count as one page.
func normalizeURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.User = nil
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)

	if (c.Scheme == "http" && strings.HasSuffix(c.Host, ":80")) ||
		(c.Scheme == "https" && strings.HasSuffix(c.Host, ":443")) {
		c.Host = c.Host[:strings.LastIndex(c.Host, ":")]
	}

	if len(c.Path) > 1 {
		c.Path = strings.TrimRight(c.Path, "/")
	}

	return c.String()
}
