package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/oncodoc/internal/casefinder"
	"github.com/bull/oncodoc/internal/indexer"
	"github.com/bull/oncodoc/internal/storage"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	store  storage.Store
}

// Config holds server dependencies.
type Config struct {
	Pipeline *indexer.Pipeline
	Finder   *casefinder.Finder
	Store    storage.Store
	// EmbeddingSource names the active embedding provider, reported by
	// processing_summary.
	EmbeddingSource string
	Version         string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "oncodoc-report-server",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "process_report",
		Description: "Process a raw medical report (blood count, PET/CT imaging or pathology). Extracts structured findings, raises clinical alerts, writes doctor and patient summaries, and stores the report for search.",
	}, makeProcessHandler(cfg.Pipeline))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_reports",
		Description: "Search stored medical reports semantically. Optionally restrict to a patient or report type. Use fetch_report to get the full report.",
	}, makeSearchHandler(cfg.Finder))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch_report",
		Description: "Retrieve a stored medical report by document ID, including structured findings and both summaries.",
	}, makeFetchHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "patient_timeline",
		Description: "List a patient's reports, newest first, within the last days_back days.",
	}, makeTimelineHandler(cfg.Finder))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "similar_cases",
		Description: "Find reports of other patients similar to the given patient's most recent report. The patient's own reports are never returned.",
	}, makeSimilarHandler(cfg.Finder))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "patient_context",
		Description: "Summarize a patient's report history with report type counts, similar cases and clinical monitoring insights.",
	}, makeContextHandler(cfg.Finder))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "processing_summary",
		Description: "Get counts of stored reports by type, recent activity and distinct patients.",
	}, makeSummaryHandler(cfg.Finder, cfg.EmbeddingSource))

	return &Server{
		server: server,
		store:  cfg.Store,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Health reports whether the report store is reachable.
func (s *Server) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}
