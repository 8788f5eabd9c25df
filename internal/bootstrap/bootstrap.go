// Package bootstrap wires configuration into the concrete dependency graph
// shared by the api, worker and mcp binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/config"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/ports"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/usecase"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/cache/embedding"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/chunking"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/extractor"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/index/memindex"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/llm"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/llm/ollama"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/llm/openaicompat"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/queue/nats"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/repository/postgres"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/resilience"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/storage/localfs"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue        ports.MessageQueue
	Repo         ports.DocumentRepository
	Ingestor     ports.DocumentIngestor
	Processor    ports.DocumentProcessor
	Orchestrator ports.QueryOrchestrator
	Cache        ports.CacheInspector
	QueryLog     ports.QueryLogStore

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{})
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)

	gateway := llm.NewGateway(buildProviderChain(cfg, ollamaClient), logger)

	durable, err := embedding.NewDiskTier(
		cfg.EmbeddingCachePath,
		time.Duration(cfg.EmbeddingCacheRetentionDays)*24*time.Hour,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	var fast embedding.FastTier
	if cfg.UseMemoryIndex {
		fast = embedding.NewMemoryTier()
	} else {
		fast = embedding.NewRedisTier(embedding.RedisOptions{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
	}
	embCache := embedding.New(fast, durable, time.Duration(cfg.EmbeddingCacheFastTTLSecs)*time.Second, logger)

	var (
		repo       ports.DocumentRepository
		queryLog   ports.QueryLogStore
		lexical    ports.LexicalIndex
		vectors    ports.VectorIndex
		chunkStore ports.ChunkStore
		closeFn    func()
	)

	if cfg.UseMemoryIndex {
		// Single-node mode: retrieval runs in process instead of Postgres
		// FTS and Qdrant. Postgres still holds documents and the query log.
		idx := memindex.New()
		lexical = idx.Lexical()
		vectors = idx.Vector()
		chunkStore = idx
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	docRepo := postgres.NewDocumentRepository(db)
	if err := docRepo.EnsureSchema(ctx); err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo = docRepo
	queryLog = postgres.NewQueryLogRepository(db)
	if !cfg.UseMemoryIndex {
		chunkRepo := postgres.NewChunkRepository(db)
		lexical = chunkRepo
		chunkStore = chunkRepo
		vectors = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	}
	closeFn = func() {
		queue.Close()
		_ = db.Close()
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	docExtractor := extractor.NewDispatcher(storage)

	ingestor := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processor := usecase.NewProcessDocumentUseCase(repo, docExtractor, chunker, embedder, embCache, vectors, chunkStore)

	retriever := usecase.NewHybridRetriever(
		lexical,
		vectors,
		embedder,
		embCache,
		domain.SearchWeights{Semantic: cfg.RAGSemanticWeight, Lexical: cfg.RAGLexicalWeight},
		time.Duration(cfg.SearchTimeoutSecs)*time.Second,
		logger,
	)
	quality := usecase.NewQualityEvaluator(cfg.RAGTargetResults, 10)
	orchestrator := usecase.NewAgenticOrchestrator(retriever, gateway, quality, usecase.OrchestratorConfig{
		MaxAttempts:       cfg.RAGMaxAttempts,
		TargetResults:     cfg.RAGTargetResults,
		GenerationTimeout: time.Duration(cfg.GenerationTimeoutSecs) * time.Second,
	}, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Queue:        queue,
		Repo:         repo,
		Ingestor:     ingestor,
		Processor:    processor,
		Orchestrator: orchestrator,
		Cache:        embCache,
		QueryLog:     queryLog,
		closeFn:      closeFn,
	}, nil
}

// buildProviderChain assembles the generation fallback chain in the
// configured order, skipping providers without credentials.
func buildProviderChain(cfg config.Config, ollamaClient *ollama.Client) []ports.GenerationProvider {
	available := map[string]ports.GenerationProvider{
		"ollama": ollama.NewProvider(ollamaClient),
	}
	if cfg.GroqAPIKey != "" {
		available["groq"] = openaicompat.New(openaicompat.Options{
			ID:      "groq",
			BaseURL: cfg.GroqBaseURL,
			APIKey:  cfg.GroqAPIKey,
			Model:   cfg.GroqModel,
		})
	}
	if cfg.TogetherAPIKey != "" {
		available["together"] = openaicompat.New(openaicompat.Options{
			ID:      "together",
			BaseURL: cfg.TogetherBaseURL,
			APIKey:  cfg.TogetherAPIKey,
			Model:   cfg.TogetherModel,
		})
	}

	var chain []ports.GenerationProvider
	for _, id := range strings.Split(cfg.ProviderOrder, ",") {
		if provider, ok := available[strings.TrimSpace(id)]; ok {
			chain = append(chain, provider)
		}
	}
	if len(chain) == 0 {
		chain = append(chain, available["ollama"])
	}
	return chain
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
