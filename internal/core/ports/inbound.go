package ports

import (
	"context"
	"io"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// QueryOrchestrator runs the full plan/search/generate state machine for one
// query. The only raised error class is invalid input; every other failure
// is folded into a degraded OrchestrationResult.
type QueryOrchestrator interface {
	Process(ctx context.Context, req domain.OrchestrationRequest) (*domain.OrchestrationResult, error)
}

// CacheInspector exposes a read-only snapshot of the embedding cache.
type CacheInspector interface {
	Stats(ctx context.Context) domain.CacheStats
}
