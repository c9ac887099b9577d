package mcptools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/fetcher"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/splitter"
	"github.com/ternarybob/quill/internal/store"
)

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

// fakeJobService records enqueued jobs and serves canned records
type fakeJobService struct {
	lastOpts   models.ScrapeOptions
	lastSeed   string
	enqueueErr error
	jobs       map[string]*models.IndexJob
	active     []*models.IndexJob
	cancelled  []string
}

func newFakeJobService() *fakeJobService {
	return &fakeJobService{jobs: make(map[string]*models.IndexJob)}
}

func (f *fakeJobService) Enqueue(ctx context.Context, library, version, seedURL string, opts models.ScrapeOptions) (string, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.lastOpts = opts
	f.lastSeed = seedURL
	id := "job-42"
	f.jobs[id] = &models.IndexJob{
		ID:        id,
		Library:   models.NormalizeLibrary(library),
		Version:   models.NormalizeVersion(version),
		SeedURL:   seedURL,
		Status:    models.JobStatusCompleted,
		Progress:  models.JobProgress{PagesScraped: 7, TotalDiscovered: 7},
		CreatedAt: time.Now(),
	}
	return id, nil
}

func (f *fakeJobService) GetJob(ctx context.Context, id string) (*models.IndexJob, error) {
	return f.jobs[id], nil
}

func (f *fakeJobService) ListJobs(ctx context.Context, statuses ...models.JobStatus) ([]*models.IndexJob, error) {
	jobs := make([]*models.IndexJob, 0, len(f.jobs))
	for _, job := range f.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (f *fakeJobService) CancelJob(ctx context.Context, id string) (bool, string, error) {
	if _, ok := f.jobs[id]; !ok && len(f.active) == 0 {
		return false, fmt.Sprintf("job %s not found", id), nil
	}
	f.cancelled = append(f.cancelled, id)
	return true, "cancelling running job", nil
}

func (f *fakeJobService) WaitForJob(ctx context.Context, id string) (*models.IndexJob, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	return &models.IndexJob{ID: id, Status: models.JobStatusCancelled}, nil
}

func (f *fakeJobService) ClearCompleted(ctx context.Context) int { return 0 }

func (f *fakeJobService) FindJobs(ctx context.Context, library, version string, statuses ...models.JobStatus) ([]*models.IndexJob, error) {
	return f.active, nil
}

func (f *fakeJobService) Shutdown(ctx context.Context) error { return nil }

var _ interfaces.JobService = (*fakeJobService)(nil)

// fakeSearch returns canned results or a canned error
type fakeSearch struct {
	results []models.SearchResult
	err     error
}

func (f *fakeSearch) Search(ctx context.Context, library, version, query string, limit int, exactMatch bool) ([]models.SearchResult, error) {
	return f.results, f.err
}

// fakeChunkStore serves listings and version resolution
type fakeChunkStore struct {
	libraries  []models.LibraryInfo
	resolution *models.VersionResolution
	resolveErr error
	exists     bool
	deleted    []string
}

func (f *fakeChunkStore) Initialize(ctx context.Context) error { return nil }

func (f *fakeChunkStore) Exists(ctx context.Context, library, version string) (bool, error) {
	return f.exists, nil
}

func (f *fakeChunkStore) AddChunks(ctx context.Context, library, version string, doc *models.Document, chunks []splitter.Chunk) (int, error) {
	return 0, nil
}

func (f *fakeChunkStore) DeleteScope(ctx context.Context, library, version string) error {
	f.deleted = append(f.deleted, models.ScopeKey(library, version))
	return nil
}

func (f *fakeChunkStore) QueryUniqueVersions(ctx context.Context, library string) ([]string, error) {
	return nil, nil
}

func (f *fakeChunkStore) QueryLibraryVersions(ctx context.Context) (map[string][]string, error) {
	return nil, nil
}

func (f *fakeChunkStore) ListLibraries(ctx context.Context) ([]models.LibraryInfo, error) {
	return f.libraries, nil
}

func (f *fakeChunkStore) VectorSearch(ctx context.Context, library, version string, queryVector []float32, k int) ([]models.ScoredChunk, error) {
	return nil, nil
}

func (f *fakeChunkStore) FindBestVersion(ctx context.Context, library, target string) (*models.VersionResolution, error) {
	return f.resolution, f.resolveErr
}

func (f *fakeChunkStore) Close() error { return nil }

var _ interfaces.ChunkStorage = (*fakeChunkStore)(nil)

func TestScrapeDocs_EnqueuesWithDefaults(t *testing.T) {
	svc := newFakeJobService()
	handler := handleScrapeDocs(svc, common.DefaultConfig(), arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"url":     "https://react.dev/learn",
		"library": "react",
		"version": "18.2.0",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "job-42")
	assert.Contains(t, text, "react@18.2.0")

	assert.Equal(t, 3, svc.lastOpts.MaxDepth, "config default applies when max_depth is absent")
	assert.Equal(t, 1000, svc.lastOpts.MaxPages)
	assert.Nil(t, svc.lastOpts.FollowRedirects, "unset booleans stay nil for Normalize to default")
}

func TestScrapeDocs_ExplicitOptions(t *testing.T) {
	svc := newFakeJobService()
	handler := handleScrapeDocs(svc, common.DefaultConfig(), arbor.NewLogger())

	_, err := handler(context.Background(), callRequest(map[string]interface{}{
		"url":              "https://vuejs.org/guide/",
		"library":          "vue",
		"max_depth":        float64(1),
		"scope":            "hostname",
		"scrape_mode":      "fetch",
		"follow_redirects": false,
		"headers":          map[string]interface{}{"X-Token": "abc"},
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, svc.lastOpts.MaxDepth)
	assert.Equal(t, models.ScopeHostname, svc.lastOpts.Scope)
	assert.Equal(t, models.RenderModeFetch, svc.lastOpts.ScrapeMode)
	require.NotNil(t, svc.lastOpts.FollowRedirects)
	assert.False(t, *svc.lastOpts.FollowRedirects)
	assert.Equal(t, map[string]string{"X-Token": "abc"}, svc.lastOpts.Headers)
}

func TestScrapeDocs_WaitReturnsFinalCounts(t *testing.T) {
	svc := newFakeJobService()
	handler := handleScrapeDocs(svc, common.DefaultConfig(), arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"url":     "https://react.dev/learn",
		"library": "react",
		"wait":    true,
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "completed")
	assert.Contains(t, text, "7 pages scraped")
}

func TestScrapeDocs_MissingParams(t *testing.T) {
	handler := handleScrapeDocs(newFakeJobService(), common.DefaultConfig(), arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"library": "react",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "url parameter is required")

	result, err = handler(context.Background(), callRequest(map[string]interface{}{
		"url": "https://react.dev/",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "library parameter is required")
}

func TestSearchDocs_FormatsResults(t *testing.T) {
	search := &fakeSearch{results: []models.SearchResult{
		{
			URL:     "https://react.dev/learn/hooks",
			Content: "Hooks let you use state in function components.",
			Score:   3.21,
			Metadata: models.SearchResultMetadata{
				Title:       "Using Hooks",
				Library:     "react",
				Version:     "18.2.0",
				SectionPath: []string{"Learn", "Hooks"},
			},
		},
	}}
	handler := handleSearchDocs(search, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"library": "react",
		"query":   "hooks state",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Using Hooks")
	assert.Contains(t, text, "Learn > Hooks")
	assert.Contains(t, text, "https://react.dev/learn/hooks")
	assert.Contains(t, text, "1 results")
}

func TestSearchDocs_LibraryNotFoundSuggestions(t *testing.T) {
	search := &fakeSearch{err: &store.LibraryNotFoundError{Library: "reactt", Suggestions: []string{"react"}}}
	handler := handleSearchDocs(search, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"library": "reactt",
		"query":   "hooks",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "did you mean: react")
}

func TestSearchDocs_VersionNotFoundListsAvailable(t *testing.T) {
	search := &fakeSearch{err: &store.VersionNotFoundError{Library: "react", Version: "99.x", Available: []string{"17.0.2", "18.2.0"}}}
	handler := handleSearchDocs(search, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"library": "react",
		"query":   "hooks",
		"version": "99.x",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "99.x")
	assert.Contains(t, text, "17.0.2, 18.2.0")
}

func TestListLibraries_Formatting(t *testing.T) {
	chunkStore := &fakeChunkStore{libraries: []models.LibraryInfo{
		{Name: "react", Versions: []string{"17.0.2", "18.2.0"}, ChunkCount: 420},
		{Name: "hugo", Versions: []string{""}, ChunkCount: 88},
	}}
	handler := handleListLibraries(chunkStore, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(nil))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "react")
	assert.Contains(t, text, "420 chunks")
	assert.Contains(t, text, "unversioned")
}

func TestListLibraries_Empty(t *testing.T) {
	handler := handleListLibraries(&fakeChunkStore{}, arbor.NewLogger())
	result, err := handler(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No libraries indexed")
}

func TestFindVersion_Resolved(t *testing.T) {
	chunkStore := &fakeChunkStore{resolution: &models.VersionResolution{BestMatch: "18.2.0"}}
	handler := handleFindVersion(chunkStore, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"library": "react",
		"version": "18.x",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "18.2.0")
}

func TestFindVersion_UnversionedFallback(t *testing.T) {
	chunkStore := &fakeChunkStore{resolution: &models.VersionResolution{HasUnversioned: true}}
	handler := handleFindVersion(chunkStore, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"library": "hugo",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "unversioned documentation")
}

func TestGetJob_NotFound(t *testing.T) {
	handler := handleGetJob(newFakeJobService(), arbor.NewLogger())
	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"job_id": "missing",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestCancelJob_Refused(t *testing.T) {
	handler := handleCancelJob(newFakeJobService(), arbor.NewLogger())
	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"job_id": "missing",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "was not cancelled")
}

func TestRemoveDocs_CancelsActiveJobsAndDeletes(t *testing.T) {
	svc := newFakeJobService()
	svc.active = []*models.IndexJob{{ID: "running-1", Status: models.JobStatusRunning}}
	chunkStore := &fakeChunkStore{exists: true}

	handler := handleRemoveDocs(svc, chunkStore, arbor.NewLogger())
	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"library": "react",
		"version": "18.2.0",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Removed indexed documentation for react@18.2.0")
	assert.Contains(t, text, "Cancelled 1 in-flight job(s)")
	assert.Equal(t, []string{"running-1"}, svc.cancelled)
	assert.Equal(t, []string{"react@18.2.0"}, chunkStore.deleted)
}

func TestRemoveDocs_NothingIndexed(t *testing.T) {
	handler := handleRemoveDocs(newFakeJobService(), &fakeChunkStore{}, arbor.NewLogger())
	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"library": "ghost",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Nothing indexed for ghost@")
}

func TestFetchURL_ReturnsMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Guide</title></head><body><main><h1>Guide</h1><p>Install with npm.</p></main></body></html>`)
	}))
	defer srv.Close()

	logger := arbor.NewLogger()
	registry := fetcher.NewRegistry(
		fetcher.NewHTTPFetcher("quill-test", fetcher.NewRetryPolicy(1, time.Millisecond), 5*time.Second, logger),
	)
	handler := handleFetchURL(registry, logger)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"url": srv.URL + "/guide",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "# Guide")
	assert.Contains(t, text, "Install with npm.")
}

func TestFetchURL_RedirectRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://moved.example.com/")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv.Close()

	logger := arbor.NewLogger()
	registry := fetcher.NewRegistry(
		fetcher.NewHTTPFetcher("quill-test", fetcher.NewRetryPolicy(1, time.Millisecond), 5*time.Second, logger),
	)
	handler := handleFetchURL(registry, logger)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"url":              srv.URL,
		"follow_redirects": false,
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Redirect encountered")
	assert.Contains(t, text, "https://moved.example.com/")
	assert.Contains(t, text, "301")
}
