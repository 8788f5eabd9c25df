package ports

import (
	"context"
	"io"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, count int) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits text into retrievable chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder computes vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// EmbeddingCache is the two-tier vector cache. It is a pure optimization:
// lookups report absent instead of failing, and writes are best-effort.
type EmbeddingCache interface {
	Get(ctx context.Context, text, modelID string) ([]float32, bool)
	Put(ctx context.Context, text, modelID string, vector []float32, metadata map[string]string)
	GetMany(ctx context.Context, texts []string, modelID string) (found [][]float32, missing []string)
	PutMany(ctx context.Context, texts []string, vectors [][]float32, modelID string) int
	Stats(ctx context.Context) domain.CacheStats
}

// LexicalIndex performs keyword retrieval over indexed chunks.
type LexicalIndex interface {
	Search(ctx context.Context, queryText string, k int) ([]domain.RetrievalResult, error)
}

// VectorIndex stores chunk vectors and performs semantic retrieval.
type VectorIndex interface {
	IndexChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.RetrievalResult, error)
}

// ChunkStore persists chunk text for lexical retrieval and bookkeeping.
type ChunkStore interface {
	ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
}

// GenerationProvider is one text-generation backend in the fallback chain.
// Failures are reported as data (Success=false), not raised.
type GenerationProvider interface {
	ID() string
	IsAvailable(ctx context.Context) bool
	Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult
}

// GenerationGateway walks an ordered provider chain until one succeeds.
type GenerationGateway interface {
	Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult
}

// QueryLogStore appends audit records for processed queries. Write-once,
// append-only, never read by the core.
type QueryLogStore interface {
	Append(ctx context.Context, record domain.QueryLogRecord) error
}
