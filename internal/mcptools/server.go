package mcptools

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/fetcher"
	"github.com/ternarybob/quill/internal/interfaces"
)

// Services bundles the collaborators the tool handlers dispatch to
type Services struct {
	Jobs     interfaces.JobService
	Search   interfaces.SearchService
	Store    interfaces.ChunkStorage
	Registry *fetcher.Registry
}

// NewServer builds the MCP server with all documentation tools registered.
// The caller serves it over stdio.
func NewServer(services Services, cfg *common.Config, version string, logger arbor.ILogger) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"quill",
		version,
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createScrapeDocsTool(), handleScrapeDocs(services.Jobs, cfg, logger))
	mcpServer.AddTool(createSearchDocsTool(), handleSearchDocs(services.Search, logger))
	mcpServer.AddTool(createListLibrariesTool(), handleListLibraries(services.Store, logger))
	mcpServer.AddTool(createFindVersionTool(), handleFindVersion(services.Store, logger))
	mcpServer.AddTool(createListJobsTool(), handleListJobs(services.Jobs, logger))
	mcpServer.AddTool(createGetJobTool(), handleGetJob(services.Jobs, logger))
	mcpServer.AddTool(createCancelJobTool(), handleCancelJob(services.Jobs, logger))
	mcpServer.AddTool(createRemoveDocsTool(), handleRemoveDocs(services.Jobs, services.Store, logger))
	mcpServer.AddTool(createFetchURLTool(), handleFetchURL(services.Registry, logger))

	return mcpServer
}
