package store

import (
	"fmt"
	"strings"
)

// LibraryNotFoundError reports a library with no indexed content, with
// close-match suggestions when similar names exist.
type LibraryNotFoundError struct {
	Library     string
	Suggestions []string
}

func (e *LibraryNotFoundError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("library %q not found, did you mean: %s", e.Library, strings.Join(e.Suggestions, ", "))
	}
	return fmt.Sprintf("library %q not found", e.Library)
}

// VersionNotFoundError reports that a library is indexed but the requested
// version matched nothing. Available lists what is indexed.
type VersionNotFoundError struct {
	Library   string
	Version   string
	Available []string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %q of library %q not found (available: %s)",
		e.Version, e.Library, strings.Join(e.Available, ", "))
}
