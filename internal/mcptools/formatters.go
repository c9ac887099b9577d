package mcptools

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/quill/internal/models"
)

// formatSearchResults formats hybrid search hits as markdown
func formatSearchResults(query string, results []models.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for %q (%d results)\n\n", query, len(results)))

	if len(results) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, result := range results {
		title := result.Metadata.Title
		if title == "" {
			title = result.URL
		}
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, title))
		sb.WriteString(fmt.Sprintf("**Library:** %s", result.Metadata.Library))
		if result.Metadata.Version != "" {
			sb.WriteString(fmt.Sprintf(" %s", result.Metadata.Version))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", result.URL))
		if len(result.Metadata.SectionPath) > 0 {
			sb.WriteString(fmt.Sprintf("**Section:** %s\n", strings.Join(result.Metadata.SectionPath, " > ")))
		}
		sb.WriteString(fmt.Sprintf("**Score:** %.4f\n\n", result.Score))
		sb.WriteString(result.Content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatLibraries formats the indexed library listing as markdown
func formatLibraries(libraries []models.LibraryInfo) string {
	if len(libraries) == 0 {
		return "No libraries indexed yet. Use scrape_docs to index documentation.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Indexed Libraries (%d)\n\n", len(libraries)))
	for _, lib := range libraries {
		sb.WriteString(fmt.Sprintf("- **%s** (%d chunks): %s\n", lib.Name, lib.ChunkCount, joinVersions(lib.Versions)))
	}
	return sb.String()
}

func joinVersions(versions []string) string {
	labels := make([]string, 0, len(versions))
	for _, v := range versions {
		if v == "" {
			v = "unversioned"
		}
		labels = append(labels, v)
	}
	return strings.Join(labels, ", ")
}

// formatVersionResolution formats a find_version outcome
func formatVersionResolution(library, target string, resolution *models.VersionResolution) string {
	if target == "" {
		target = "latest"
	}

	var sb strings.Builder
	if resolution.BestMatch != "" {
		sb.WriteString(fmt.Sprintf("Resolved %s %q to version **%s**.\n", library, target, resolution.BestMatch))
	} else if resolution.HasUnversioned {
		sb.WriteString(fmt.Sprintf("No indexed version of %s matches %q; the unversioned documentation will be used.\n", library, target))
	}
	if resolution.BestMatch != "" && resolution.HasUnversioned {
		sb.WriteString("Unversioned documentation is also available.\n")
	}
	return sb.String()
}

// formatJobQueued formats the scrape_docs acknowledgement
func formatJobQueued(id, library, version, seedURL string) string {
	scope := models.ScopeKey(library, version)
	return fmt.Sprintf("Indexing job **%s** queued for %s from %s.\nUse get_job to track progress.", id, scope, seedURL)
}

// formatJob formats one job record as markdown
func formatJob(job *models.IndexJob) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Job %s\n\n", job.ID))
	sb.WriteString(fmt.Sprintf("**Scope:** %s\n", models.ScopeKey(job.Library, job.Version)))
	sb.WriteString(fmt.Sprintf("**Seed:** %s\n", job.SeedURL))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", job.CreatedAt.Format(time.RFC3339)))
	if job.StartedAt != nil {
		sb.WriteString(fmt.Sprintf("**Started:** %s\n", job.StartedAt.Format(time.RFC3339)))
	}
	if job.FinishedAt != nil {
		sb.WriteString(fmt.Sprintf("**Finished:** %s\n", job.FinishedAt.Format(time.RFC3339)))
	}

	sb.WriteString(fmt.Sprintf("\n**Progress:** %d pages scraped, %d failed, %d discovered\n",
		job.Progress.PagesScraped, job.Progress.PagesFailed, job.Progress.TotalDiscovered))
	if job.Progress.CurrentURL != "" {
		sb.WriteString(fmt.Sprintf("**Current URL:** %s\n", job.Progress.CurrentURL))
	}
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("\n**Error:** %s\n", job.Error))
	}
	return sb.String()
}

// formatJobList formats job summaries as a markdown table
func formatJobList(jobs []*models.IndexJob) string {
	if len(jobs) == 0 {
		return "No jobs found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Jobs (%d)\n\n", len(jobs)))
	sb.WriteString("| ID | Scope | Status | Scraped | Failed | Created |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, job := range jobs {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %s |\n",
			job.ID,
			models.ScopeKey(job.Library, job.Version),
			job.Status,
			job.Progress.PagesScraped,
			job.Progress.PagesFailed,
			job.CreatedAt.Format(time.RFC3339),
		))
	}
	return sb.String()
}
