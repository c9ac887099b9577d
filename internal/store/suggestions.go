package store

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

const maxSuggestions = 3

// SuggestLibraries returns indexed library names close to the query, for
// "did you mean" hints when a lookup misses. Substring containment counts
// as close regardless of edit distance (nextjs vs next.js).
func (s *Store) SuggestLibraries(ctx context.Context, query string) ([]string, error) {
	libraries, err := s.QueryLibraryVersions(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(libraries))
	for name := range libraries {
		names = append(names, name)
	}
	return rankSuggestions(query, names), nil
}

func rankSuggestions(query string, candidates []string) []string {
	type ranked struct {
		name     string
		distance int
	}

	var matches []ranked
	for _, name := range candidates {
		d := levenshtein.ComputeDistance(query, name)
		contained := strings.Contains(name, query) || strings.Contains(query, name)
		if d <= 2 || contained {
			if contained && d > 2 {
				d = 2
			}
			matches = append(matches, ranked{name: name, distance: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].name < matches[j].name
	})

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.name)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
