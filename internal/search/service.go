package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/store"
)

// Service runs hybrid retrieval: vector recall pulls a candidate set wider
// than the requested limit, BM25 re-ranks it for term relevance, and the
// vector score breaks ties.
type Service struct {
	store      interfaces.ChunkStorage
	embedder   interfaces.Embedder
	multiplier int
	logger     arbor.ILogger
}

func NewService(store interfaces.ChunkStorage, emb interfaces.Embedder, cfg *common.Config, logger arbor.ILogger) *Service {
	multiplier := cfg.Search.CandidateMultiplier
	if multiplier < 1 {
		multiplier = 2
	}
	return &Service{
		store:      store,
		embedder:   emb,
		multiplier: multiplier,
		logger:     logger,
	}
}

// Search resolves the version expression against what is indexed, then runs
// hybrid retrieval in that scope. exactMatch restricts results to chunks
// containing the query verbatim (case-insensitive).
func (s *Service) Search(ctx context.Context, library, version, query string, limit int, exactMatch bool) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		limit = 5
	}

	resolved, err := s.resolveVersion(ctx, library, version)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.store.VectorSearch(ctx, library, resolved, vectors[0], limit*s.multiplier)
	if err != nil {
		return nil, err
	}

	if exactMatch {
		candidates = filterExact(candidates, query)
	}
	if len(candidates) == 0 {
		return []models.SearchResult{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Content
	}
	scorer := newBM25Scorer(texts)

	type rankedHit struct {
		candidate models.ScoredChunk
		bm25      float64
	}
	ranked := make([]rankedHit, len(candidates))
	for i, c := range candidates {
		ranked[i] = rankedHit{candidate: c, bm25: scorer.Score(query, i)}
	}

	// Stable keeps vector order among equal BM25 scores, which also covers
	// the all-zeros case where no query term appears in any candidate
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].bm25 != ranked[j].bm25 {
			return ranked[i].bm25 > ranked[j].bm25
		}
		return ranked[i].candidate.Score > ranked[j].candidate.Score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]models.SearchResult, len(ranked))
	for i, r := range ranked {
		chunk := r.candidate.Chunk
		results[i] = models.SearchResult{
			URL:     chunk.SourceURL,
			Content: chunk.Content,
			Score:   r.bm25,
			Metadata: models.SearchResultMetadata{
				Title:        chunk.Title,
				Library:      chunk.Library,
				Version:      chunk.Version,
				SectionPath:  chunk.SectionPath,
				SectionLevel: chunk.SectionLevel,
			},
		}
	}

	s.logger.Debug().
		Str("library", library).
		Str("version", resolved).
		Str("query", query).
		Int("candidates", len(candidates)).
		Int("results", len(results)).
		Msg("Hybrid search completed")

	return results, nil
}

// resolveVersion maps a version expression onto an indexed version through
// the store's semver resolution. The unversioned bucket absorbs misses when
// it exists; otherwise the caller gets a typed error listing what is there.
func (s *Service) resolveVersion(ctx context.Context, library, version string) (string, error) {
	resolution, err := s.store.FindBestVersion(ctx, library, version)
	if err != nil {
		return "", err
	}
	if resolution.BestMatch != "" {
		return resolution.BestMatch, nil
	}
	if resolution.HasUnversioned {
		return "", nil
	}

	available, err := s.store.QueryUniqueVersions(ctx, models.NormalizeLibrary(library))
	if err != nil {
		return "", err
	}
	return "", &store.VersionNotFoundError{
		Library:   models.NormalizeLibrary(library),
		Version:   models.NormalizeVersion(version),
		Available: available,
	}
}

func filterExact(candidates []models.ScoredChunk, query string) []models.ScoredChunk {
	needle := strings.ToLower(query)
	var out []models.ScoredChunk
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Chunk.Content), needle) {
			out = append(out, c)
		}
	}
	return out
}

var _ interfaces.SearchService = (*Service)(nil)
