package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/fetcher"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/pipeline"
	"github.com/ternarybob/quill/internal/store"
)

const maxSearchLimit = 50

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	return textResult(fmt.Sprintf("Error: "+format, args...))
}

// handleScrapeDocs implements the scrape_docs tool
func handleScrapeDocs(jobService interfaces.JobService, cfg *common.Config, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seedURL, err := request.RequireString("url")
		if err != nil || seedURL == "" {
			return errorResult("url parameter is required"), nil
		}
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return errorResult("library parameter is required"), nil
		}
		version := request.GetString("version", "")

		opts := models.ScrapeOptions{
			MaxPages:         request.GetInt("max_pages", cfg.Crawler.MaxPages),
			MaxDepth:         request.GetInt("max_depth", cfg.Crawler.MaxDepth),
			MaxConcurrency:   request.GetInt("max_concurrency", cfg.Crawler.MaxConcurrency),
			Scope:            models.CrawlScope(request.GetString("scope", string(models.ScopeSubpages))),
			ScrapeMode:       models.RenderMode(request.GetString("scrape_mode", string(models.RenderModeAuto))),
			ExcludeSelectors: request.GetStringSlice("exclude_selectors", nil),
		}

		args := request.GetArguments()
		if _, set := args["follow_redirects"]; set {
			v := request.GetBool("follow_redirects", true)
			opts.FollowRedirects = &v
		}
		if _, set := args["ignore_errors"]; set {
			v := request.GetBool("ignore_errors", true)
			opts.IgnoreErrors = &v
		}
		if raw, ok := args["headers"].(map[string]interface{}); ok && len(raw) > 0 {
			opts.Headers = make(map[string]string, len(raw))
			for k, v := range raw {
				if s, ok := v.(string); ok {
					opts.Headers[k] = s
				}
			}
		}

		id, err := jobService.Enqueue(ctx, library, version, seedURL, opts)
		if err != nil {
			logger.Warn().Str("library", library).Err(err).Msg("Enqueue rejected")
			return errorResult("%v", err), nil
		}

		if !request.GetBool("wait", false) {
			return textResult(formatJobQueued(id, library, version, seedURL)), nil
		}

		job, err := jobService.WaitForJob(ctx, id)
		if err != nil {
			return errorResult("waiting for job %s: %v", id, err), nil
		}
		return textResult(formatJob(job)), nil
	}
}

// handleSearchDocs implements the search_docs tool
func handleSearchDocs(searchService interfaces.SearchService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return errorResult("library parameter is required"), nil
		}
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return errorResult("query parameter is required"), nil
		}
		version := request.GetString("version", "")
		limit := request.GetInt("limit", 0)
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}
		exact := request.GetBool("exact_match", false)

		results, err := searchService.Search(ctx, library, version, query, limit, exact)
		if err != nil {
			logger.Warn().Str("library", library).Str("query", query).Err(err).Msg("Search failed")
			return textResult(formatStoreError(err)), nil
		}
		return textResult(formatSearchResults(query, results)), nil
	}
}

// handleListLibraries implements the list_libraries tool
func handleListLibraries(chunkStore interfaces.ChunkStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		libraries, err := chunkStore.ListLibraries(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("List libraries failed")
			return errorResult("listing libraries: %v", err), nil
		}
		return textResult(formatLibraries(libraries)), nil
	}
}

// handleFindVersion implements the find_version tool
func handleFindVersion(chunkStore interfaces.ChunkStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return errorResult("library parameter is required"), nil
		}
		target := request.GetString("version", "")

		resolution, err := chunkStore.FindBestVersion(ctx, library, target)
		if err != nil {
			return textResult(formatStoreError(err)), nil
		}
		return textResult(formatVersionResolution(library, target, resolution)), nil
	}
}

// handleListJobs implements the list_jobs tool
func handleListJobs(jobService interfaces.JobService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var statuses []models.JobStatus
		if s := request.GetString("status", ""); s != "" {
			statuses = append(statuses, models.JobStatus(s))
		}

		jobs, err := jobService.ListJobs(ctx, statuses...)
		if err != nil {
			logger.Error().Err(err).Msg("List jobs failed")
			return errorResult("listing jobs: %v", err), nil
		}
		return textResult(formatJobList(jobs)), nil
	}
}

// handleGetJob implements the get_job tool
func handleGetJob(jobService interfaces.JobService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil || id == "" {
			return errorResult("job_id parameter is required"), nil
		}

		job, err := jobService.GetJob(ctx, id)
		if err != nil {
			return errorResult("%v", err), nil
		}
		if job == nil {
			return textResult(fmt.Sprintf("Job %s not found.", id)), nil
		}
		return textResult(formatJob(job)), nil
	}
}

// handleCancelJob implements the cancel_job tool
func handleCancelJob(jobService interfaces.JobService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil || id == "" {
			return errorResult("job_id parameter is required"), nil
		}

		ok, message, err := jobService.CancelJob(ctx, id)
		if err != nil {
			return errorResult("%v", err), nil
		}
		if ok {
			return textResult(fmt.Sprintf("Cancellation accepted for job %s: %s", id, message)), nil
		}
		return textResult(fmt.Sprintf("Job %s was not cancelled: %s", id, message)), nil
	}
}

// handleRemoveDocs implements the remove_docs tool
func handleRemoveDocs(jobService interfaces.JobService, chunkStore interfaces.ChunkStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return errorResult("library parameter is required"), nil
		}
		version := request.GetString("version", "")

		// Abort in-flight work before removing, otherwise a running crawl
		// keeps repopulating the scope
		cancelled := 0
		active, err := jobService.FindJobs(ctx, library, version,
			models.JobStatusQueued, models.JobStatusRunning, models.JobStatusCancelling)
		if err == nil {
			for _, job := range active {
				if ok, _, cerr := jobService.CancelJob(ctx, job.ID); cerr == nil && ok {
					if _, werr := jobService.WaitForJob(ctx, job.ID); werr == nil {
						cancelled++
					}
				}
			}
		}

		exists, err := chunkStore.Exists(ctx, library, version)
		if err != nil {
			return errorResult("checking scope: %v", err), nil
		}
		if !exists && cancelled == 0 {
			return textResult(fmt.Sprintf("Nothing indexed for %s.", models.ScopeKey(library, version))), nil
		}

		if err := chunkStore.DeleteScope(ctx, library, version); err != nil {
			logger.Error().Str("library", library).Str("version", version).Err(err).Msg("Delete scope failed")
			return errorResult("removing %s: %v", models.ScopeKey(library, version), err), nil
		}

		logger.Info().
			Str("library", library).
			Str("version", version).
			Int("jobs_cancelled", cancelled).
			Msg("Scope removed")

		message := fmt.Sprintf("Removed indexed documentation for %s.", models.ScopeKey(library, version))
		if cancelled > 0 {
			message += fmt.Sprintf(" Cancelled %d in-flight job(s).", cancelled)
		}
		return textResult(message), nil
	}
}

// handleFetchURL implements the fetch_url tool
func handleFetchURL(registry *fetcher.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	htmlPipe := pipeline.ForHTML(nil, logger)
	mdPipe := pipeline.ForMarkdown(logger)

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawURL, err := request.RequireString("url")
		if err != nil || rawURL == "" {
			return errorResult("url parameter is required"), nil
		}
		opts := fetcher.FetchOptions{
			FollowRedirects: request.GetBool("follow_redirects", true),
		}

		raw, err := registry.Fetch(ctx, rawURL, opts)
		if err != nil {
			var redirect *fetcher.RedirectError
			if errors.As(err, &redirect) {
				return textResult(fmt.Sprintf(
					"Redirect encountered: %s responded %d with Location %s. Re-run with follow_redirects=true or fetch the target directly.",
					redirect.URL, redirect.StatusCode, redirect.Location)), nil
			}
			logger.Warn().Str("url", rawURL).Err(err).Msg("Fetch failed")
			return errorResult("fetching %s: %v", rawURL, err), nil
		}

		pipe := htmlPipe
		if raw.Kind != fetcher.ContentKindHTML {
			pipe = mdPipe
		}
		doc, _, err := pipe.Process(ctx, raw)
		if err != nil {
			return errorResult("processing %s: %v", rawURL, err), nil
		}
		return textResult(doc.ContentMarkdown), nil
	}
}

// formatStoreError renders the typed store errors with their recovery hints
func formatStoreError(err error) string {
	var notFound *store.LibraryNotFoundError
	if errors.As(err, &notFound) {
		return notFound.Error()
	}
	var noVersion *store.VersionNotFoundError
	if errors.As(err, &noVersion) {
		return noVersion.Error()
	}
	return fmt.Sprintf("Error: %v", err)
}
