// Package mcp serves published briefs to downstream agents over the Model
// Context Protocol.
package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-briefs/pkg/middleware"
)

// Path is where the streamable HTTP transport is mounted.
const Path = "/mcp"

// Server wraps the mcp-go MCPServer with the brief tools registered.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server exposing the health and published-brief tools.
func NewServer(version string, briefs tools.PublishedBriefSource, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		"ekaya-briefs",
		version,
		server.WithToolCapabilities(true),
	)

	logger = logger.Named("mcp")
	tools.RegisterHealthTool(mcpServer, version)
	tools.RegisterBriefTools(mcpServer, &tools.BriefToolDeps{Briefs: briefs, Logger: logger})

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates a stateless HTTP transport for this server.
// The mux routes Path, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterRoutes mounts the transport at Path with JSON-RPC request logging.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(Path, middleware.MCPRequestLogger(s.logger)(s.NewStreamableHTTPServer()))
}
