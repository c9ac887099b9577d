package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createScrapeDocsTool returns the scrape_docs tool definition
func createScrapeDocsTool() mcp.Tool {
	return mcp.NewTool("scrape_docs",
		mcp.WithDescription("Crawl a documentation site and index its content for search. Re-indexing a library version replaces its previous content."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Seed URL to crawl (http, https, file, or a github.com repository URL)"),
		),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name to index under (e.g. react, next.js)"),
		),
		mcp.WithString("version",
			mcp.Description("Library version (e.g. 18.2.0); omit for unversioned documentation"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum pages to crawl (default: 1000)"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum link depth from the seed (default: 3, 0 crawls only the seed)"),
		),
		mcp.WithNumber("max_concurrency",
			mcp.Description("Concurrent page fetches (default: 3)"),
		),
		mcp.WithString("scope",
			mcp.Description("Crawl boundary: subpages, hostname, or domain (default: subpages)"),
		),
		mcp.WithString("scrape_mode",
			mcp.Description("Rendering mode: fetch, playwright, or auto (default: auto)"),
		),
		mcp.WithBoolean("follow_redirects",
			mcp.Description("Follow HTTP redirects (default: true)"),
		),
		mcp.WithBoolean("ignore_errors",
			mcp.Description("Continue crawling past failed pages (default: true)"),
		),
		mcp.WithObject("headers",
			mcp.Description("Extra HTTP headers sent with every request"),
		),
		mcp.WithArray("exclude_selectors",
			mcp.WithStringItems(),
			mcp.Description("CSS selectors to strip from pages before conversion"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the crawl finishes and report the final page counts"),
		),
	)
}

// createSearchDocsTool returns the search_docs tool definition
func createSearchDocsTool() mcp.Tool {
	return mcp.NewTool("search_docs",
		mcp.WithDescription("Search indexed documentation with hybrid vector and keyword retrieval"),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name to search"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithString("version",
			mcp.Description("Version or X-range (e.g. 18.2.0, 3.x, latest); omit for the best available"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 5, max: 50)"),
		),
		mcp.WithBoolean("exact_match",
			mcp.Description("Only return chunks containing the query verbatim"),
		),
	)
}

// createListLibrariesTool returns the list_libraries tool definition
func createListLibrariesTool() mcp.Tool {
	return mcp.NewTool("list_libraries",
		mcp.WithDescription("List all indexed libraries with their versions and chunk counts"),
	)
}

// createFindVersionTool returns the find_version tool definition
func createFindVersionTool() mcp.Tool {
	return mcp.NewTool("find_version",
		mcp.WithDescription("Resolve a version expression against the indexed versions of a library"),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name"),
		),
		mcp.WithString("version",
			mcp.Description("Target version, X-range, or latest (default: latest)"),
		),
	)
}

// createListJobsTool returns the list_jobs tool definition
func createListJobsTool() mcp.Tool {
	return mcp.NewTool("list_jobs",
		mcp.WithDescription("List index jobs, newest last"),
		mcp.WithString("status",
			mcp.Description("Filter: queued, running, completed, failed, cancelling, cancelled"),
		),
	)
}

// createGetJobTool returns the get_job tool definition
func createGetJobTool() mcp.Tool {
	return mcp.NewTool("get_job",
		mcp.WithDescription("Get the status and progress of one index job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID returned by scrape_docs"),
		),
	)
}

// createCancelJobTool returns the cancel_job tool definition
func createCancelJobTool() mcp.Tool {
	return mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a queued or running index job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID to cancel"),
		),
	)
}

// createRemoveDocsTool returns the remove_docs tool definition
func createRemoveDocsTool() mcp.Tool {
	return mcp.NewTool("remove_docs",
		mcp.WithDescription("Remove the indexed documentation of a library version, cancelling any in-flight jobs for it"),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name"),
		),
		mcp.WithString("version",
			mcp.Description("Version to remove; omit for the unversioned bucket"),
		),
	)
}

// createFetchURLTool returns the fetch_url tool definition
func createFetchURLTool() mcp.Tool {
	return mcp.NewTool("fetch_url",
		mcp.WithDescription("Fetch a single URL and return its content converted to markdown, without indexing it"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("URL to fetch"),
		),
		mcp.WithBoolean("follow_redirects",
			mcp.Description("Follow HTTP redirects (default: true)"),
		),
	)
}
