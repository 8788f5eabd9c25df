package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/ports"
)

const defaultTopK = 5

// SearchOutcome is one hybrid search pass. Backend failures degrade the
// corresponding side to empty and show up as warnings, never as errors.
type SearchOutcome struct {
	Results  []domain.RetrievalResult
	Timing   domain.SearchTiming
	Warnings []string
}

// HybridRetriever merges lexical and semantic retrieval into one ranked
// list. The query embedding is resolved through the cache first; the
// embedder is only called on a miss.
type HybridRetriever struct {
	lexical  ports.LexicalIndex
	vectors  ports.VectorIndex
	embedder ports.Embedder
	cache    ports.EmbeddingCache

	defaults    domain.SearchWeights
	sideTimeout time.Duration
	logger      *slog.Logger
}

func NewHybridRetriever(
	lexical ports.LexicalIndex,
	vectors ports.VectorIndex,
	embedder ports.Embedder,
	cache ports.EmbeddingCache,
	defaults domain.SearchWeights,
	sideTimeout time.Duration,
	logger *slog.Logger,
) *HybridRetriever {
	if defaults.IsZero() {
		defaults = domain.SearchWeights{Semantic: 0.7, Lexical: 0.3}
	}
	if sideTimeout <= 0 {
		sideTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		lexical:     lexical,
		vectors:     vectors,
		embedder:    embedder,
		cache:       cache,
		defaults:    defaults.Normalize(),
		sideTimeout: sideTimeout,
		logger:      logger,
	}
}

// Search runs both retrieval sides concurrently and merges them by weighted
// sum of per-side min-max normalized scores. The only error it returns is
// invalid caller-supplied weights.
func (r *HybridRetriever) Search(
	ctx context.Context,
	query string,
	k int,
	weights *domain.SearchWeights,
) (SearchOutcome, error) {
	if k <= 0 {
		k = defaultTopK
	}

	w := r.defaults
	if weights != nil {
		if weights.Semantic < 0 || weights.Lexical < 0 {
			return SearchOutcome{}, domain.WrapError(domain.ErrInvalidInput, "hybrid search",
				fmt.Errorf("weights must be non-negative: semantic=%v lexical=%v", weights.Semantic, weights.Lexical))
		}
		if weights.IsZero() {
			return SearchOutcome{}, domain.WrapError(domain.ErrInvalidInput, "hybrid search",
				fmt.Errorf("at least one weight must be positive"))
		}
		w = weights.Normalize()
	}

	// Fetch more than k from each side so the merged ranking has candidates
	// from both signals before truncation.
	sideK := k * 2

	var (
		wg       sync.WaitGroup
		outcome  SearchOutcome
		lexical  []domain.RetrievalResult
		semantic []domain.RetrievalResult
		lexWarn  string
		semWarn  string
	)
	start := time.Now()

	wg.Add(2)
	go func() {
		defer wg.Done()
		sideStart := time.Now()
		lexical, lexWarn = r.searchLexical(ctx, query, sideK)
		outcome.Timing.Lexical = time.Since(sideStart)
	}()
	go func() {
		defer wg.Done()
		sideStart := time.Now()
		semantic, semWarn = r.searchSemantic(ctx, query, sideK)
		outcome.Timing.Semantic = time.Since(sideStart)
	}()
	wg.Wait()

	outcome.Timing.Total = time.Since(start)
	if lexWarn != "" {
		outcome.Warnings = append(outcome.Warnings, lexWarn)
	}
	if semWarn != "" {
		outcome.Warnings = append(outcome.Warnings, semWarn)
	}

	outcome.Results = mergeRetrievalResults(lexical, semantic, w, k)
	return outcome, nil
}

func (r *HybridRetriever) searchLexical(ctx context.Context, query string, k int) ([]domain.RetrievalResult, string) {
	sideCtx, cancel := context.WithTimeout(ctx, r.sideTimeout)
	defer cancel()

	results, err := r.lexical.Search(sideCtx, query, k)
	if err != nil {
		r.logger.Warn("lexical_search_degraded", "error", err)
		return nil, fmt.Sprintf("lexical search degraded to empty: %v", err)
	}
	return results, ""
}

func (r *HybridRetriever) searchSemantic(ctx context.Context, query string, k int) ([]domain.RetrievalResult, string) {
	sideCtx, cancel := context.WithTimeout(ctx, r.sideTimeout)
	defer cancel()

	vector, err := r.resolveQueryVector(sideCtx, query)
	if err != nil {
		r.logger.Warn("query_embedding_degraded", "error", err)
		return nil, fmt.Sprintf("semantic search degraded to empty: %v", err)
	}

	results, err := r.vectors.Search(sideCtx, vector, k)
	if err != nil {
		r.logger.Warn("semantic_search_degraded", "error", err)
		return nil, fmt.Sprintf("semantic search degraded to empty: %v", err)
	}
	return results, ""
}

func (r *HybridRetriever) resolveQueryVector(ctx context.Context, query string) ([]float32, error) {
	modelID := r.embedder.ModelID()
	if vector, ok := r.cache.Get(ctx, query, modelID); ok {
		return vector, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}
	r.cache.Put(ctx, query, modelID, vector, nil)
	return vector, nil
}

// mergeRetrievalResults unions both sides keyed by chunk id. A chunk missing
// from one side scores 0 on that dimension. The final order is combined
// score descending with ties broken by lexical-then-semantic discovery
// order, so rankings are reproducible.
func mergeRetrievalResults(
	lexical, semantic []domain.RetrievalResult,
	w domain.SearchWeights,
	k int,
) []domain.RetrievalResult {
	lexScores := make([]float64, len(lexical))
	for i, res := range lexical {
		lexScores[i] = rawScore(res.LexicalScore)
	}
	semScores := make([]float64, len(semantic))
	for i, res := range semantic {
		semScores[i] = rawScore(res.SemanticScore)
	}
	lexNorm := minMaxNormalize(lexScores)
	semNorm := minMaxNormalize(semScores)

	merged := make(map[string]*domain.RetrievalResult, len(lexical)+len(semantic))
	order := make([]string, 0, len(lexical)+len(semantic))

	for i, res := range lexical {
		entry := res
		score := lexNorm[i]
		entry.LexicalScore = &score
		entry.SemanticScore = nil
		merged[entry.ChunkID] = &entry
		order = append(order, entry.ChunkID)
	}
	for i, res := range semantic {
		score := semNorm[i]
		if existing, ok := merged[res.ChunkID]; ok {
			existing.SemanticScore = &score
			if existing.Content == "" {
				existing.Content = res.Content
			}
			continue
		}
		entry := res
		entry.SemanticScore = &score
		entry.LexicalScore = nil
		merged[entry.ChunkID] = &entry
		order = append(order, entry.ChunkID)
	}

	out := make([]domain.RetrievalResult, 0, len(order))
	for _, chunkID := range order {
		entry := merged[chunkID]
		entry.CombinedScore = w.Semantic*rawScore(entry.SemanticScore) + w.Lexical*rawScore(entry.LexicalScore)
		out = append(out, *entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})

	if len(out) > k {
		out = out[:k]
	}
	return out
}

func rawScore(score *float64) float64 {
	if score == nil {
		return 0
	}
	return *score
}
