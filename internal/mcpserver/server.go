// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the note graph to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notegraph/internal/analytics"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/indexer"
)

// Indexer is the index and graph surface exposed as tools.
type Indexer interface {
	Sync(ctx context.Context) (*indexer.SyncResult, error)
	Stats(ctx context.Context) (index.Counts, error)
	LocalGraph(ctx context.Context, id string, depth int) (*graph.LocalGraph, error)
	Analytics(ctx context.Context) (*analytics.Report, error)
}

// maxDepth bounds local_graph traversals requested by clients.
const maxDepth = 5

// Server wraps the MCP server with notegraph tools.
type Server struct {
	mcp *server.MCPServer
	idx Indexer
}

// New creates a new MCP server with all tools registered.
func New(idx Indexer, version string) *Server {
	s := &Server{idx: idx}

	s.mcp = server.NewMCPServer(
		"notegraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("index_stats",
		mcp.WithDescription("Note and link counts from the persisted index."),
	), s.indexStats)

	s.mcp.AddTool(mcp.NewTool("sync_index",
		mcp.WithDescription("Apply document changes to the index and graph. Returns added, updated, removed and unchanged counts."),
	), s.syncIndex)

	s.mcp.AddTool(mcp.NewTool("local_graph",
		mcp.WithDescription("Notes within a number of link hops of a note, with every edge between them."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id: folder and name without extension (e.g. projects/Plan)")),
		mcp.WithNumber("depth", mcp.Description(fmt.Sprintf("Hop limit, 0 to %d (default 1)", maxDepth))),
	), s.localGraph)

	s.mcp.AddTool(mcp.NewTool("graph_analytics",
		mcp.WithDescription("Clusters, bridge notes, coverage gaps, daily activity and a 0-100 health score."),
	), s.graphAnalytics)

	s.mcp.AddTool(mcp.NewTool("get_note_syntax",
		mcp.WithDescription("How links, tags and frontmatter are recognised. Read before writing notes meant to link up."),
	), s.getNoteSyntax)

	s.mcp.AddResource(
		mcp.NewResource(NoteSyntaxURI, "Note Syntax",
			mcp.WithResourceDescription("Link, tag and frontmatter syntax recognised by the indexer."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) indexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := s.idx.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]int{"notes": c.Notes, "links": c.Links})
}

func (s *Server) syncIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.idx.Sync(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) localGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	depth := req.GetInt("depth", 1)
	if depth < 0 || depth > maxDepth {
		return mcp.NewToolResultError(fmt.Sprintf("depth must be between 0 and %d", maxDepth)), nil
	}
	lg, err := s.idx.LocalGraph(ctx, id, depth)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(lg)
}

func (s *Server) graphAnalytics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.idx.Analytics(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) getNoteSyntax(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteSyntax), nil
}

func (s *Server) readNoteSyntaxResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteSyntaxURI,
			MIMEType: "text/markdown",
			Text:     NoteSyntax,
		},
	}, nil
}
