// Package httpadapter exposes the public REST surface: document upload and
// lookup, the RAG ask endpoint and the embedding cache snapshot.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/config"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/ports"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/observability/metrics"
)

type Router struct {
	cfg          config.Config
	ingest       ports.DocumentIngestor
	orchestrator ports.QueryOrchestrator
	docs         ports.DocumentReader
	cache        ports.CacheInspector
	queryLog     ports.QueryLogStore
	metrics      *metrics.HTTPServerMetrics
	logger       *slog.Logger
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	orchestrator ports.QueryOrchestrator,
	docs ports.DocumentReader,
	cache ports.CacheInspector,
	queryLog ports.QueryLogStore,
	serverMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:          cfg,
		ingest:       ingest,
		orchestrator: orchestrator,
		docs:         docs,
		cache:        cache,
		queryLog:     queryLog,
		metrics:      serverMetrics,
		logger:       logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/rag/ask", rt.ask)
	mux.HandleFunc("/v1/rag/cache/stats", rt.cacheStats)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = requestValidationMiddleware(handler)
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 50*time.Millisecond)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type askRequest struct {
	Query          string   `json:"query"`
	K              int      `json:"k"`
	SemanticWeight *float64 `json:"semantic_weight"`
	LexicalWeight  *float64 `json:"lexical_weight"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	if req.K <= 0 {
		req.K = rt.cfg.RAGTopK
	}

	orchReq := domain.OrchestrationRequest{Query: req.Query, K: req.K}
	if req.SemanticWeight != nil || req.LexicalWeight != nil {
		weights := domain.SearchWeights{
			Semantic: rt.cfg.RAGSemanticWeight,
			Lexical:  rt.cfg.RAGLexicalWeight,
		}
		if req.SemanticWeight != nil {
			weights.Semantic = *req.SemanticWeight
		}
		if req.LexicalWeight != nil {
			weights.Lexical = *req.LexicalWeight
		}
		orchReq.Weights = &weights
	}

	start := time.Now()
	result, err := rt.orchestrator.Process(r.Context(), orchReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rt.appendQueryLog(r, result)
	if rt.metrics != nil {
		rt.metrics.RecordAsk(
			"api",
			result.Metadata.ProviderUsed,
			result.QualityMetrics.SearchAttempts,
			len(result.Sources),
			result.Metadata.FellBack,
			result.Metadata.Degraded,
			time.Since(start),
		)
	}

	writeJSON(w, http.StatusOK, result)
}

// appendQueryLog is best-effort: audit failures never fail the request.
func (rt *Router) appendQueryLog(r *http.Request, result *domain.OrchestrationResult) {
	if rt.queryLog == nil {
		return
	}

	top := make([]domain.QueryLogResult, 0, len(result.Sources))
	for i, source := range result.Sources {
		if i == 10 {
			break
		}
		top = append(top, domain.QueryLogResult{
			ChunkID:       source.ChunkID,
			DocumentID:    source.DocumentID,
			CombinedScore: source.CombinedScore,
		})
	}

	record := domain.QueryLogRecord{
		ID:               uuid.NewString(),
		QueryText:        result.Query,
		ResultCount:      len(result.Sources),
		SearchDurationMs: result.Metadata.SearchDurationMs,
		TotalDurationMs:  result.Metadata.TotalDurationMs,
		ProviderUsed:     result.Metadata.ProviderUsed,
		TopResults:       top,
		CreatedAt:        time.Now().UTC(),
	}
	if err := rt.queryLog.Append(r.Context(), record); err != nil {
		rt.logger.Warn("query_log_append_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.cache == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "embedding cache is not configured"})
		return
	}
	writeJSON(w, http.StatusOK, rt.cache.Stats(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("http_handler_error",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
