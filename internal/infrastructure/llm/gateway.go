// Package llm holds the generation fallback gateway that fronts the
// provider chain.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/ports"
)

// Gateway walks an ordered provider chain until one produces text. It never
// returns an error: chain exhaustion is a data-level failure the caller can
// turn into a degraded answer.
type Gateway struct {
	providers []ports.GenerationProvider
	logger    *slog.Logger
}

func NewGateway(providers []ports.GenerationProvider, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{providers: providers, logger: logger}
}

func (g *Gateway) Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult {
	order := g.chainOrder(req.Provider)
	if len(order) == 0 {
		return exhausted("no providers configured")
	}

	primaryID := order[0].ID()
	var failures []string
	for _, provider := range order {
		if !provider.IsAvailable(ctx) {
			failures = append(failures, fmt.Sprintf("%s: unavailable", provider.ID()))
			continue
		}

		res := provider.Generate(ctx, req)
		if res.Success {
			if res.ProviderID != primaryID {
				res.FellBack = true
				res.OriginalProvider = primaryID
				g.logger.Warn("generation_fallback",
					"provider", res.ProviderID,
					"original_provider", primaryID,
				)
			}
			return res
		}
		failures = append(failures, fmt.Sprintf("%s: %s", provider.ID(), res.Error))
		g.logger.Warn("generation_provider_failed", "provider", provider.ID(), "error", res.Error)
	}

	return exhausted(strings.Join(failures, "; "))
}

// chainOrder moves the requested primary to the front and drops the
// duplicate from its original slot, so a failed primary is never retried
// during fallback.
func (g *Gateway) chainOrder(primary string) []ports.GenerationProvider {
	if primary == "" {
		return g.providers
	}

	order := make([]ports.GenerationProvider, 0, len(g.providers))
	var head ports.GenerationProvider
	for _, provider := range g.providers {
		if provider.ID() == primary {
			head = provider
			continue
		}
		order = append(order, provider)
	}
	if head == nil {
		// Unknown primary: fall back to the configured order.
		return g.providers
	}
	return append([]ports.GenerationProvider{head}, order...)
}

func exhausted(detail string) domain.GenerationResult {
	return domain.GenerationResult{
		Success:    false,
		Error:      "all generation providers failed: " + detail,
		ProviderID: "none",
	}
}
