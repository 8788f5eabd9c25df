package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

// scriptedGateway returns one scripted result per Generate call, recording
// every request it receives.
type scriptedGateway struct {
	script   []domain.GenerationResult
	requests []domain.GenerationRequest
}

func (g *scriptedGateway) Generate(_ context.Context, req domain.GenerationRequest) domain.GenerationResult {
	g.requests = append(g.requests, req)
	if len(g.script) == 0 {
		return domain.GenerationResult{Success: false, Error: "no providers available", ProviderID: "none"}
	}
	res := g.script[0]
	g.script = g.script[1:]
	return res
}

func okGeneration(text, provider string) domain.GenerationResult {
	return domain.GenerationResult{Success: true, Text: text, ProviderID: provider}
}

func newTestOrchestrator(lex *fakeLexical, vec *fakeVectorIndex, gw *scriptedGateway) *AgenticOrchestrator {
	retriever := newTestRetriever(lex, vec, &fakeEmbedder{vector: []float32{0.1}}, newMapCache())
	return NewAgenticOrchestrator(retriever, gw, NewQualityEvaluator(5, 10), OrchestratorConfig{}, nil)
}

func TestProcessRejectsEmptyQuery(t *testing.T) {
	orch := newTestOrchestrator(&fakeLexical{}, &fakeVectorIndex{}, &scriptedGateway{})

	_, err := orch.Process(context.Background(), domain.OrchestrationRequest{Query: "   "})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestProcessRejectsInvalidWeights(t *testing.T) {
	orch := newTestOrchestrator(&fakeLexical{}, &fakeVectorIndex{}, &scriptedGateway{})

	_, err := orch.Process(context.Background(), domain.OrchestrationRequest{
		Query:   "q",
		Weights: &domain.SearchWeights{Semantic: -0.1, Lexical: 0.5},
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error for negative weight, got %v", err)
	}

	_, err = orch.Process(context.Background(), domain.OrchestrationRequest{
		Query:   "q",
		Weights: &domain.SearchWeights{},
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error for zero weights, got %v", err)
	}
}

func TestProcessGeneratesFromResults(t *testing.T) {
	lex := &fakeLexical{results: []domain.RetrievalResult{lexResult("A", 3)}}
	gw := &scriptedGateway{script: []domain.GenerationResult{
		okGeneration("A política de férias concede trinta dias corridos por ano.", "ollama"),
	}}
	orch := newTestOrchestrator(lex, &fakeVectorIndex{}, gw)

	result, err := orch.Process(context.Background(), domain.OrchestrationRequest{Query: "política de férias"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Metadata.Degraded {
		t.Fatalf("unexpected degraded run: %+v", result.Metadata)
	}
	if result.QualityMetrics.SearchAttempts != 1 {
		t.Fatalf("expected a single search attempt, got %d", result.QualityMetrics.SearchAttempts)
	}
	if result.Metadata.ProviderUsed != "ollama" {
		t.Fatalf("expected provider ollama, got %q", result.Metadata.ProviderUsed)
	}
	if len(result.Sources) != 1 || result.Sources[0].ChunkID != "A" {
		t.Fatalf("expected retrieved chunk as source, got %+v", result.Sources)
	}
	// Generation must receive the retrieved chunk text as context.
	last := gw.requests[len(gw.requests)-1]
	if len(last.Context) != 1 || last.Context[0] != "text A" {
		t.Fatalf("expected chunk content in generation context, got %v", last.Context)
	}
}

func TestProcessBoundsRefinementAttempts(t *testing.T) {
	// Both retrieval sides always come back empty, so the loop must stop at
	// MaxAttempts and still hand a terminal result back.
	gw := &scriptedGateway{script: []domain.GenerationResult{
		okGeneration("tente buscar por regras de afastamento", "ollama"),
		okGeneration("tente buscar por licenças e ausências", "ollama"),
		okGeneration("Não encontrei documentos sobre o tema, mas posso orientar.", "ollama"),
	}}
	orch := newTestOrchestrator(&fakeLexical{}, &fakeVectorIndex{}, gw)

	result, err := orch.Process(context.Background(), domain.OrchestrationRequest{Query: "tema inexistente"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.QualityMetrics.SearchAttempts != 3 {
		t.Fatalf("expected exactly 3 search attempts, got %d", result.QualityMetrics.SearchAttempts)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(result.Sources))
	}
	if result.Sources == nil {
		t.Fatalf("sources must be an empty slice, not nil")
	}
	if result.QualityMetrics.SearchQuality != 0 {
		t.Fatalf("expected search quality 0 for empty results, got %v", result.QualityMetrics.SearchQuality)
	}
	if result.Response == "" {
		t.Fatalf("expected a non-empty final response")
	}
	// 2 refinements + 1 final generation.
	if len(gw.requests) != 3 {
		t.Fatalf("expected 3 gateway calls, got %d", len(gw.requests))
	}
}

func TestProcessRefinementRewritesSearchQuery(t *testing.T) {
	lex := &fakeLexical{}
	gw := &scriptedGateway{script: []domain.GenerationResult{
		okGeneration("consulta refinada sobre benefícios", "ollama"),
		okGeneration("consulta refinada de novo", "ollama"),
		okGeneration("Resposta final sintetizada a partir do que foi possível apurar.", "ollama"),
	}}
	orch := newTestOrchestrator(lex, &fakeVectorIndex{}, gw)

	result, err := orch.Process(context.Background(), domain.OrchestrationRequest{Query: "consulta original"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(lex.queries) != 3 {
		t.Fatalf("expected 3 lexical searches, got %d", len(lex.queries))
	}
	if lex.queries[0] != "consulta original" {
		t.Fatalf("first search must use the original query, got %q", lex.queries[0])
	}
	if lex.queries[1] != "consulta refinada sobre benefícios" {
		t.Fatalf("second search must use the refined query, got %q", lex.queries[1])
	}
	// The result always reports the query the caller asked.
	if result.Query != "consulta original" {
		t.Fatalf("expected original query in result, got %q", result.Query)
	}
}

func TestProcessRefinementFailureKeepsQuery(t *testing.T) {
	lex := &fakeLexical{}
	gw := &scriptedGateway{script: []domain.GenerationResult{
		{Success: false, Error: "no providers available", ProviderID: "none"},
		{Success: false, Error: "no providers available", ProviderID: "none"},
		okGeneration("Resposta final mesmo sem refinar a consulta original.", "ollama"),
	}}
	orch := newTestOrchestrator(lex, &fakeVectorIndex{}, gw)

	if _, err := orch.Process(context.Background(), domain.OrchestrationRequest{Query: "consulta original"}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for i, q := range lex.queries {
		if q != "consulta original" {
			t.Fatalf("search %d: expected original query after failed refinement, got %q", i, q)
		}
	}
}

func TestProcessFallbackSurfacesInMetadata(t *testing.T) {
	lex := &fakeLexical{results: []domain.RetrievalResult{lexResult("A", 2)}}
	gw := &scriptedGateway{script: []domain.GenerationResult{
		{
			Success:          true,
			Text:             "Resposta gerada pelo provedor secundário após falha do primário.",
			ProviderID:       "openai-compat",
			FellBack:         true,
			OriginalProvider: "ollama",
		},
	}}
	orch := newTestOrchestrator(lex, &fakeVectorIndex{}, gw)

	result, err := orch.Process(context.Background(), domain.OrchestrationRequest{Query: "qualquer consulta"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !result.Metadata.FellBack {
		t.Fatalf("expected fallback flag in metadata")
	}
	if result.Metadata.ProviderUsed != "openai-compat" {
		t.Fatalf("expected fallback provider in metadata, got %q", result.Metadata.ProviderUsed)
	}
	if result.Metadata.Degraded {
		t.Fatalf("a successful fallback is not a degraded run")
	}
}

func TestProcessExhaustedChainReturnsDegradedResponse(t *testing.T) {
	lex := &fakeLexical{results: []domain.RetrievalResult{lexResult("A", 2)}}
	gw := &scriptedGateway{} // empty script: every call reports exhaustion
	orch := newTestOrchestrator(lex, &fakeVectorIndex{}, gw)

	result, err := orch.Process(context.Background(), domain.OrchestrationRequest{Query: "qualquer consulta"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !result.Metadata.Degraded {
		t.Fatalf("expected degraded run after provider exhaustion")
	}
	if result.Response != degradedResponse {
		t.Fatalf("expected degraded response text, got %q", result.Response)
	}
	if result.Metadata.ProviderUsed != "none" {
		t.Fatalf("expected provider \"none\", got %q", result.Metadata.ProviderUsed)
	}
	if len(result.Metadata.Warnings) == 0 {
		t.Fatalf("expected a warning about the failed generation")
	}
}

func TestProcessCancelledContextStillReturnsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := newTestOrchestrator(&fakeLexical{}, &fakeVectorIndex{}, &scriptedGateway{})

	result, err := orch.Process(ctx, domain.OrchestrationRequest{Query: "consulta cancelada"})
	if err != nil {
		t.Fatalf("expected a well-formed result on cancellation, got error %v", err)
	}
	if !result.Metadata.Degraded {
		t.Fatalf("expected cancelled run to be degraded")
	}
	if result.Response != degradedResponse {
		t.Fatalf("expected degraded response, got %q", result.Response)
	}
	if result.Sources == nil {
		t.Fatalf("sources must be an empty slice, not nil")
	}
	found := false
	for _, w := range result.Metadata.Warnings {
		if strings.Contains(w, "cancelled") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a cancellation warning, got %v", result.Metadata.Warnings)
	}
}

func TestProcessRecordsPlanAndTimings(t *testing.T) {
	lex := &fakeLexical{results: []domain.RetrievalResult{lexResult("A", 2)}}
	gw := &scriptedGateway{script: []domain.GenerationResult{
		okGeneration("Resposta completa o suficiente para passar do mínimo.", "ollama"),
	}}
	orch := newTestOrchestrator(lex, &fakeVectorIndex{}, gw)

	start := time.Now()
	result, err := orch.Process(context.Background(), domain.OrchestrationRequest{Query: "consulta"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(result.Metadata.ResearchPlan) == 0 {
		t.Fatalf("expected a research plan in metadata")
	}
	if result.Metadata.TotalDurationMs < 0 || result.Metadata.TotalDurationMs > time.Since(start).Milliseconds()+1 {
		t.Fatalf("implausible total duration %dms", result.Metadata.TotalDurationMs)
	}
	if result.QualityMetrics.ResponseQuality <= 0 {
		t.Fatalf("expected positive response quality, got %v", result.QualityMetrics.ResponseQuality)
	}
}
