package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

// ChunkRepository persists chunk text and serves keyword retrieval over it
// through Postgres full-text search.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceDocumentChunks swaps a document's chunk set atomically, so a
// re-ingested document never serves a mix of old and new chunks.
func (r *ChunkRepository) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO chunks (id, document_id, chunk_index, section, content)
VALUES ($1,$2,$3,$4,$5)
`, chunk.ID, documentID, chunk.Index, chunk.Section, chunk.Text)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

// Search ranks chunks with ts_rank over the generated tsvector column.
// websearch_to_tsquery tolerates free-form user queries.
func (r *ChunkRepository) Search(ctx context.Context, queryText string, k int) ([]domain.RetrievalResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, content, ts_rank(content_tsv, websearch_to_tsquery('portuguese', $1)) AS rank
FROM chunks
WHERE content_tsv @@ websearch_to_tsquery('portuguese', $1)
ORDER BY rank DESC
LIMIT $2
`, queryText, k)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievalResult, 0, k)
	for rows.Next() {
		var res domain.RetrievalResult
		var rank float64
		if err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.Content, &rank); err != nil {
			return nil, fmt.Errorf("scan lexical result: %w", err)
		}
		res.LexicalScore = &rank
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical results: %w", err)
	}
	return out, nil
}
