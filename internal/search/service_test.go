package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/splitter"
	"github.com/ternarybob/quill/internal/store"
)

type fakeEmbedder struct{}

func (e *fakeEmbedder) Dimensions() int { return 2 }

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// fakeStore serves canned candidates in a fixed vector order
type fakeStore struct {
	candidates []models.ScoredChunk
	versions   []string
	hasUnver   bool
	best       string
}

func (f *fakeStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                         { return nil }

func (f *fakeStore) Exists(ctx context.Context, library, version string) (bool, error) {
	return len(f.candidates) > 0, nil
}

func (f *fakeStore) AddChunks(ctx context.Context, library, version string, doc *models.Document, chunks []splitter.Chunk) (int, error) {
	return 0, nil
}

func (f *fakeStore) DeleteScope(ctx context.Context, library, version string) error { return nil }

func (f *fakeStore) QueryUniqueVersions(ctx context.Context, library string) ([]string, error) {
	return f.versions, nil
}

func (f *fakeStore) QueryLibraryVersions(ctx context.Context) (map[string][]string, error) {
	return nil, nil
}

func (f *fakeStore) ListLibraries(ctx context.Context) ([]models.LibraryInfo, error) {
	return nil, nil
}

func (f *fakeStore) VectorSearch(ctx context.Context, library, version string, queryVector []float32, k int) ([]models.ScoredChunk, error) {
	if k > len(f.candidates) {
		k = len(f.candidates)
	}
	return f.candidates[:k], nil
}

func (f *fakeStore) FindBestVersion(ctx context.Context, library, target string) (*models.VersionResolution, error) {
	return &models.VersionResolution{BestMatch: f.best, HasUnversioned: f.hasUnver}, nil
}

func chunkCandidate(content string, vectorScore float32) models.ScoredChunk {
	return models.ScoredChunk{
		Chunk: models.Chunk{
			Library:   "lib",
			Version:   "1.0.0",
			SourceURL: "https://docs.example.com/" + content[:4],
			Content:   content,
		},
		Score: vectorScore,
	}
}

func newTestService(f *fakeStore) *Service {
	return NewService(f, &fakeEmbedder{}, common.DefaultConfig(), arbor.NewLogger())
}

func TestSearch_BM25Rerank(t *testing.T) {
	// Vector order puts the generic chunk first; BM25 must promote the one
	// actually mentioning the query terms
	f := &fakeStore{
		best: "1.0.0",
		candidates: []models.ScoredChunk{
			chunkCandidate("general overview of the framework and its design goals", 0.9),
			chunkCandidate("usequery hook fetches data with caching and retries", 0.8),
			chunkCandidate("installation instructions for every platform we support", 0.7),
		},
	}

	results, err := newTestService(f).Search(context.Background(), "lib", "1.x", "usequery caching", 3, false)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Contains(t, results[0].Content, "usequery hook")
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_VectorOrderBreaksTies(t *testing.T) {
	// No candidate contains any query term, so BM25 is zero across the
	// board and the vector ranking must survive
	f := &fakeStore{
		best: "1.0.0",
		candidates: []models.ScoredChunk{
			chunkCandidate("first candidate by vector similarity", 0.9),
			chunkCandidate("second candidate by vector similarity", 0.8),
		},
	}

	results, err := newTestService(f).Search(context.Background(), "lib", "", "zzzz", 2, false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Content, "first")
}

func TestSearch_ExactMatchFilters(t *testing.T) {
	f := &fakeStore{
		best: "1.0.0",
		candidates: []models.ScoredChunk{
			chunkCandidate("mentions UseQuery in passing", 0.9),
			chunkCandidate("unrelated content entirely here", 0.8),
		},
	}

	results, err := newTestService(f).Search(context.Background(), "lib", "", "usequery", 5, true)
	require.NoError(t, err)
	require.Len(t, results, 1, "exact match drops candidates without the verbatim query")
	assert.Contains(t, results[0].Content, "UseQuery")
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	_, err := newTestService(&fakeStore{best: "1.0.0"}).Search(context.Background(), "lib", "", "  ", 5, false)
	assert.Error(t, err)
}

func TestSearch_LimitTruncates(t *testing.T) {
	f := &fakeStore{
		best: "1.0.0",
		candidates: []models.ScoredChunk{
			chunkCandidate("alpha content one", 0.9),
			chunkCandidate("bravo content two", 0.8),
			chunkCandidate("charlie content three", 0.7),
		},
	}

	results, err := newTestService(f).Search(context.Background(), "lib", "", "content", 2, false)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_VersionMiss(t *testing.T) {
	f := &fakeStore{best: "", hasUnver: false, versions: []string{"1.0.0"}}

	_, err := newTestService(f).Search(context.Background(), "lib", "9.x", "anything", 5, false)
	require.Error(t, err)

	var vErr *store.VersionNotFoundError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"1.0.0"}, vErr.Available)
}

func TestSearch_UnversionedFallback(t *testing.T) {
	f := &fakeStore{
		best:     "",
		hasUnver: true,
		candidates: []models.ScoredChunk{
			chunkCandidate("docs without version tags", 0.9),
		},
	}

	results, err := newTestService(f).Search(context.Background(), "lib", "9.x", "docs", 5, false)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"use", "query", "v5", "api"}, tokenize("use-query: v5.API!"))
}

func TestBM25_RarerTermWeighsMore(t *testing.T) {
	docs := []string{
		"common common common rare",
		"common common common common",
		"common words only here",
	}
	s := newBM25Scorer(docs)

	assert.Greater(t, s.Score("rare", 0), s.Score("rare", 1))
	assert.Greater(t, s.Score("rare", 0), s.Score("common", 1),
		"a rare term match outweighs a frequent one")
}
