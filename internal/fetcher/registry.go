package fetcher

import "context"

// Registry dispatches URLs to the first fetcher that claims them.
// Registration order matters: specific fetchers (github, file) come before
// the catch-all HTTP fetcher.
type Registry struct {
	fetchers []Fetcher
}

func NewRegistry(fetchers ...Fetcher) *Registry {
	return &Registry{fetchers: fetchers}
}

// ForURL returns the fetcher claiming rawURL, or nil when none does
func (r *Registry) ForURL(rawURL string) Fetcher {
	for _, f := range r.fetchers {
		if f.CanFetch(rawURL) {
			return f
		}
	}
	return nil
}

// Fetch dispatches to the claiming fetcher
func (r *Registry) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*RawContent, error) {
	f := r.ForURL(rawURL)
	if f == nil {
		return nil, &UnsupportedURLError{URL: rawURL}
	}
	return f.Fetch(ctx, rawURL, opts)
}
