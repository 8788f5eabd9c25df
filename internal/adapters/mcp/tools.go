package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("knowledge_ask",
		mcp.WithDescription("Answer a question from the indexed corporate knowledge base. "+
			"Returns the generated answer plus the source chunks and quality metrics."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to answer, in natural language."),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of source chunks to retrieve."),
		),
	), s.handleKnowledgeAsk)

	s.mcp.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Report embedding cache hit/miss counters and durable entry count."),
	), s.handleCacheStats)
}

func (s *Server) handleKnowledgeAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.orchestrator.Process(ctx, domain.OrchestrationRequest{
		Query: query,
		K:     request.GetInt("k", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	s.logger.Info("mcp_knowledge_ask",
		"sources", len(result.Sources),
		"provider", result.Metadata.ProviderUsed,
		"degraded", result.Metadata.Degraded,
	)

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleCacheStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cache == nil {
		return mcp.NewToolResultError("embedding cache is not configured"), nil
	}

	payload, err := json.Marshal(s.cache.Stats(ctx))
	if err != nil {
		return nil, fmt.Errorf("encode stats: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
