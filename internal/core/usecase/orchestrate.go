package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/ports"
)

// degradedResponse is returned whenever the whole generation chain fails.
// The run is marked degraded but still terminates with a result.
const degradedResponse = "Desculpe, não foi possível gerar uma resposta no momento. Tente novamente."

const contextChunkLimit = 5

type OrchestratorConfig struct {
	MaxAttempts         int
	TargetResults       int
	GenerationTimeout   time.Duration
	RefineTimeout       time.Duration
	GenerateMaxTokens   int
	GenerateTemperature float64
	RefineMaxTokens     int
	RefineTemperature   float64
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	out := c
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.TargetResults <= 0 {
		out.TargetResults = defaultTopK
	}
	if out.GenerationTimeout <= 0 {
		out.GenerationTimeout = 60 * time.Second
	}
	if out.RefineTimeout <= 0 {
		out.RefineTimeout = 20 * time.Second
	}
	if out.GenerateMaxTokens <= 0 {
		out.GenerateMaxTokens = 1000
	}
	if out.GenerateTemperature <= 0 {
		out.GenerateTemperature = 0.7
	}
	if out.RefineMaxTokens <= 0 {
		out.RefineMaxTokens = 100
	}
	if out.RefineTemperature <= 0 {
		out.RefineTemperature = 0.3
	}
	return out
}

// AgenticOrchestrator drives one query through the Plan → Search →
// QualityCheck → {Refine | Generate} → Finalize state machine. The
// Search↔Refine loop is hard-bounded by MaxAttempts and every path ends in
// Finalize with a well-formed result.
type AgenticOrchestrator struct {
	retriever *HybridRetriever
	gateway   ports.GenerationGateway
	quality   *QualityEvaluator
	cfg       OrchestratorConfig
	logger    *slog.Logger
}

func NewAgenticOrchestrator(
	retriever *HybridRetriever,
	gateway ports.GenerationGateway,
	quality *QualityEvaluator,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *AgenticOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgenticOrchestrator{
		retriever: retriever,
		gateway:   gateway,
		quality:   quality,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Process validates the request, then runs the state machine to completion.
// Malformed input is the only error class raised; everything downstream is
// absorbed into quality metrics and a possibly degraded response.
func (o *AgenticOrchestrator) Process(ctx context.Context, req domain.OrchestrationRequest) (*domain.OrchestrationResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process query", fmt.Errorf("query is required"))
	}
	if req.Weights != nil {
		if req.Weights.Semantic < 0 || req.Weights.Lexical < 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "process query", fmt.Errorf("weights must be non-negative"))
		}
		if req.Weights.IsZero() {
			return nil, domain.WrapError(domain.ErrInvalidInput, "process query", fmt.Errorf("at least one weight must be positive"))
		}
	}
	k := req.K
	if k <= 0 {
		k = o.cfg.TargetResults
	}

	start := time.Now()
	state := &domain.OrchestrationState{
		Query:         query,
		OriginalQuery: query,
		NextAction:    domain.ActionPlan,
	}

	var result *domain.OrchestrationResult
	for state.NextAction != domain.ActionEnd {
		// Cancellation is observed at state boundaries only; the run still
		// terminates through Finalize with a degraded answer.
		if err := ctx.Err(); err != nil && state.NextAction != domain.ActionFinalize {
			state.Warnings = append(state.Warnings, fmt.Sprintf("run cancelled: %v", err))
			if state.Response == "" {
				state.Response = degradedResponse
				state.Degraded = true
			}
			state.NextAction = domain.ActionFinalize
			continue
		}

		switch state.NextAction {
		case domain.ActionPlan:
			o.plan(state)
		case domain.ActionSearch:
			o.search(ctx, state, k, req.Weights)
		case domain.ActionQualityCheck:
			o.qualityCheck(state)
		case domain.ActionRefine:
			o.refine(ctx, state)
		case domain.ActionGenerate:
			o.generate(ctx, state)
		case domain.ActionFinalize:
			result = o.finalize(state, start)
			state.NextAction = domain.ActionEnd
		default:
			state.Warnings = append(state.Warnings, fmt.Sprintf("unknown action %q", state.NextAction))
			state.NextAction = domain.ActionFinalize
		}
	}

	o.logger.Info("orchestration_run",
		"attempts", state.Attempt,
		"results", len(state.Results),
		"provider", state.ProviderUsed,
		"degraded", state.Degraded,
		"search_quality", state.SearchQuality,
		"response_quality", state.ResponseQuality,
		"total_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (o *AgenticOrchestrator) plan(state *domain.OrchestrationState) {
	state.Plan = []string{
		fmt.Sprintf("buscar informações sobre: %s", state.Query),
		"validar relevância dos resultados",
		"sintetizar resposta a partir do contexto",
	}
	state.Attempt = 0
	state.NextAction = domain.ActionSearch
}

func (o *AgenticOrchestrator) search(ctx context.Context, state *domain.OrchestrationState, k int, weights *domain.SearchWeights) {
	outcome, err := o.retriever.Search(ctx, state.Query, k, weights)
	state.Attempt++
	if err != nil {
		// Weights were validated at the boundary; anything here is treated
		// like a degraded backend rather than a caller fault.
		state.Warnings = append(state.Warnings, fmt.Sprintf("search failed: %v", err))
		state.Results = nil
		state.NextAction = domain.ActionQualityCheck
		return
	}

	state.Results = outcome.Results
	state.SearchDuration += outcome.Timing.Total
	state.Warnings = append(state.Warnings, outcome.Warnings...)
	state.NextAction = domain.ActionQualityCheck
}

// qualityCheck routes on result emptiness: any result at all goes straight
// to generation, refinement only runs for empty result sets and only while
// attempts remain.
func (o *AgenticOrchestrator) qualityCheck(state *domain.OrchestrationState) {
	state.SearchQuality = o.quality.SearchQuality(state.Results)

	switch {
	case len(state.Results) > 0:
		state.NextAction = domain.ActionGenerate
	case state.Attempt < o.cfg.MaxAttempts:
		state.NextAction = domain.ActionRefine
	default:
		state.NextAction = domain.ActionGenerate
	}
}

func (o *AgenticOrchestrator) refine(ctx context.Context, state *domain.OrchestrationState) {
	refineCtx, cancel := context.WithTimeout(ctx, o.cfg.RefineTimeout)
	defer cancel()

	prompt := fmt.Sprintf(`Consulta original: %s
Resultados encontrados: %d documentos

Os resultados não foram satisfatórios. Sugira uma consulta refinada que possa encontrar informações mais relevantes.
Responda apenas com a consulta refinada, sem explicações adicionais.`, state.Query, len(state.Results))

	res := o.gateway.Generate(refineCtx, domain.GenerationRequest{
		Prompt:      prompt,
		MaxTokens:   o.cfg.RefineMaxTokens,
		Temperature: o.cfg.RefineTemperature,
	})

	if res.Success {
		if refined := strings.TrimSpace(res.Text); refined != "" {
			state.Query = refined
		}
	} else {
		// Keep the original query; the bounded loop retries as-is.
		state.Warnings = append(state.Warnings, fmt.Sprintf("query refinement failed: %s", res.Error))
	}
	state.NextAction = domain.ActionSearch
}

func (o *AgenticOrchestrator) generate(ctx context.Context, state *domain.OrchestrationState) {
	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	contextChunks := make([]string, 0, contextChunkLimit)
	for _, res := range state.Results {
		if len(contextChunks) == contextChunkLimit {
			break
		}
		contextChunks = append(contextChunks, res.Content)
	}

	res := o.gateway.Generate(genCtx, domain.GenerationRequest{
		Prompt:      state.Query,
		Context:     contextChunks,
		MaxTokens:   o.cfg.GenerateMaxTokens,
		Temperature: o.cfg.GenerateTemperature,
	})

	if res.Success {
		state.Response = res.Text
		state.ProviderUsed = res.ProviderID
		state.FellBack = res.FellBack
	} else {
		state.Response = degradedResponse
		state.ProviderUsed = res.ProviderID
		state.Degraded = true
		state.Warnings = append(state.Warnings, fmt.Sprintf("generation failed: %s", res.Error))
	}
	state.NextAction = domain.ActionFinalize
}

func (o *AgenticOrchestrator) finalize(state *domain.OrchestrationState, start time.Time) *domain.OrchestrationResult {
	state.ResponseQuality = o.quality.ResponseQuality(state.Response, state.OriginalQuery, len(state.Results) > 0)

	sources := state.Results
	if sources == nil {
		sources = []domain.RetrievalResult{}
	}

	return &domain.OrchestrationResult{
		Query:    state.OriginalQuery,
		Response: state.Response,
		Sources:  sources,
		QualityMetrics: domain.QualityMetrics{
			SearchQuality:   clamp01(state.SearchQuality),
			ResponseQuality: clamp01(state.ResponseQuality),
			SearchAttempts:  state.Attempt,
		},
		Metadata: domain.RunMetadata{
			ProviderUsed:     state.ProviderUsed,
			FellBack:         state.FellBack,
			Degraded:         state.Degraded,
			SearchDurationMs: state.SearchDuration.Milliseconds(),
			TotalDurationMs:  time.Since(start).Milliseconds(),
			ResearchPlan:     state.Plan,
			Warnings:         state.Warnings,
		},
	}
}
