package store

import (
	"context"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/ternarybob/quill/internal/models"
)

// FindBestVersion resolves a version expression against a library's indexed
// versions. Resolution order: highest semver for empty/latest targets, then
// constraint matching (exact, ranges, 3.x wildcards), then a literal string
// match for non-semver labels like "beta". BestMatch stays empty when
// nothing matches; HasUnversioned tells the caller whether the unversioned
// bucket exists as a fallback.
func (s *Store) FindBestVersion(ctx context.Context, library, target string) (*models.VersionResolution, error) {
	library = models.NormalizeLibrary(library)
	target = models.NormalizeVersion(target)

	available, err := s.QueryUniqueVersions(ctx, library)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		suggestions, serr := s.SuggestLibraries(ctx, library)
		if serr != nil {
			s.logger.Warn().Err(serr).Msg("Library suggestion lookup failed")
		}
		return nil, &LibraryNotFoundError{Library: library, Suggestions: suggestions}
	}

	resolution := ResolveVersion(target, available)
	return &resolution, nil
}

// ResolveVersion picks the best match for target among available versions.
// Pure function so the selection rules are testable without storage.
func ResolveVersion(target string, available []string) models.VersionResolution {
	var resolution models.VersionResolution

	type parsed struct {
		raw string
		ver *semver.Version
	}
	var semvers []parsed
	for _, raw := range available {
		if raw == "" {
			resolution.HasUnversioned = true
			continue
		}
		if v, err := semver.NewVersion(raw); err == nil {
			semvers = append(semvers, parsed{raw: raw, ver: v})
		}
	}
	// Ascending, so the last satisfying entry is the highest
	sort.Slice(semvers, func(i, j int) bool {
		return semvers[i].ver.LessThan(semvers[j].ver)
	})

	if target == "" || target == "latest" {
		if len(semvers) > 0 {
			resolution.BestMatch = semvers[len(semvers)-1].raw
		}
		return resolution
	}

	// Partial targets like "3" or "3.2" behave as ranges: Masterminds pads
	// missing constraint elements with wildcards
	if constraint, err := semver.NewConstraint(target); err == nil {
		for i := len(semvers) - 1; i >= 0; i-- {
			if constraint.Check(semvers[i].ver) {
				resolution.BestMatch = semvers[i].raw
				return resolution
			}
		}

		// Nothing satisfies the target exactly. Docs for an older release are
		// still useful, so widen to the newest version not above the target,
		// then to the newest indexed version at all.
		if older, werr := semver.NewConstraint("<= " + target); werr == nil {
			for i := len(semvers) - 1; i >= 0; i-- {
				if older.Check(semvers[i].ver) {
					resolution.BestMatch = semvers[i].raw
					return resolution
				}
			}
		}
		if len(semvers) > 0 {
			resolution.BestMatch = semvers[len(semvers)-1].raw
			return resolution
		}
	}

	// Non-semver labels resolve only by exact string match
	for _, raw := range available {
		if raw == target {
			resolution.BestMatch = raw
			return resolution
		}
	}

	return resolution
}

// BestVersionOrError resolves target and converts "no match" into a typed
// error listing what is indexed. The unversioned bucket wins only when no
// semver version matched.
func (s *Store) BestVersionOrError(ctx context.Context, library, target string) (string, error) {
	resolution, err := s.FindBestVersion(ctx, library, target)
	if err != nil {
		return "", err
	}
	if resolution.BestMatch != "" {
		return resolution.BestMatch, nil
	}
	if resolution.HasUnversioned {
		return "", nil
	}

	available, aerr := s.QueryUniqueVersions(ctx, models.NormalizeLibrary(library))
	if aerr != nil {
		return "", aerr
	}
	return "", &VersionNotFoundError{
		Library:   models.NormalizeLibrary(library),
		Version:   models.NormalizeVersion(target),
		Available: available,
	}
}
