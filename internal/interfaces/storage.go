package interfaces

import (
	"context"

	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/splitter"
)

// ChunkStorage is the versioned document store: exact-match persistence plus
// vector recall. Library and version arguments are normalized internally;
// the empty version addresses the unversioned bucket only, never all versions.
type ChunkStorage interface {
	// Initialize prepares persistence; idempotent.
	Initialize(ctx context.Context) error

	// Exists reports whether any chunks are stored for the scope.
	Exists(ctx context.Context, library, version string) (bool, error)

	// AddChunks persists the pieces of one document, assigning contiguous
	// chunk indices per source URL (continuing numbering across calls).
	// Returns the number of chunks written.
	AddChunks(ctx context.Context, library, version string, doc *models.Document, chunks []splitter.Chunk) (int, error)

	// DeleteScope removes exactly the chunks of one (library, version) scope.
	DeleteScope(ctx context.Context, library, version string) error

	// QueryUniqueVersions lists distinct version strings indexed for a
	// library; may include the empty string.
	QueryUniqueVersions(ctx context.Context, library string) ([]string, error)

	// QueryLibraryVersions maps every indexed library to its version set.
	QueryLibraryVersions(ctx context.Context) (map[string][]string, error)

	// ListLibraries summarizes indexed libraries with chunk counts.
	ListLibraries(ctx context.Context) ([]models.LibraryInfo, error)

	// VectorSearch returns up to k chunks of the scope by similarity to the
	// query vector, best first.
	VectorSearch(ctx context.Context, library, version string, queryVector []float32, k int) ([]models.ScoredChunk, error)

	// FindBestVersion resolves a target version expression against the
	// indexed versions of a library.
	FindBestVersion(ctx context.Context, library, target string) (*models.VersionResolution, error)

	Close() error
}
