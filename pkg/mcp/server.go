// Package mcp exposes the panel's commands as Model Context Protocol tools.
package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urmzd/ht32-panel/pkg/panel"
)

// Server wraps the MCP server with the panel's command surface
type Server struct {
	mcpServer *server.MCPServer
	panel     panel.Controller
}

// NewServer creates a new MCP server for panel control
func NewServer(p panel.Controller, version string) *Server {
	s := &Server{
		panel: p,
	}

	// Create MCP server
	s.mcpServer = server.NewMCPServer(
		"ht32-panel",
		version,
		server.WithToolCapabilities(true),
	)

	// Register all tools
	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler returns the streamable HTTP transport for mounting under /mcp
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}
