// Package mcpadapter exposes the knowledge base to MCP clients over stdio:
// one tool for asking questions, one for cache introspection.
package mcpadapter

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/ports"
)

const serverVersion = "3.0.0"

type Server struct {
	orchestrator ports.QueryOrchestrator
	cache        ports.CacheInspector
	logger       *slog.Logger
	mcp          *server.MCPServer
}

func NewServer(orchestrator ports.QueryOrchestrator, cache ports.CacheInspector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		orchestrator: orchestrator,
		cache:        cache,
		logger:       logger,
		mcp: server.NewMCPServer(
			"knight-agent",
			serverVersion,
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// ServeStdio blocks until the client disconnects or the process is stopped.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
