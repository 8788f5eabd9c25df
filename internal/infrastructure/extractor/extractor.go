// Package extractor routes a stored document to the extractor that handles
// its format.
package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/ports"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/extractor/pdf"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/extractor/plaintext"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/extractor/xlsx"
)

type Dispatcher struct {
	plain ports.TextExtractor
	pdf   ports.TextExtractor
	xlsx  ports.TextExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	return &Dispatcher{
		plain: plaintext.NewExtractor(storage),
		pdf:   pdf.NewExtractor(storage),
		xlsx:  xlsx.NewExtractor(storage),
	}
}

// Extract picks by MIME type first and falls back to the filename extension.
// Unknown formats go through the plaintext extractor, which rejects binary
// content with a clear error.
func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	switch strings.ToLower(doc.MimeType) {
	case "application/pdf":
		return d.pdf.Extract(ctx, doc)
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return d.xlsx.Extract(ctx, doc)
	}

	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".pdf":
		return d.pdf.Extract(ctx, doc)
	case ".xlsx", ".xlsm":
		return d.xlsx.Extract(ctx, doc)
	default:
		return d.plain.Extract(ctx, doc)
	}
}
