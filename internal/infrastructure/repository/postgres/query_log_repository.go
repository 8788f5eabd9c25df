package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

// QueryLogRepository appends audit records for processed queries.
type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) Append(ctx context.Context, record domain.QueryLogRecord) error {
	topJSON, err := json.Marshal(record.TopResults)
	if err != nil {
		return fmt.Errorf("marshal top results: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_log (
	id, query_text, result_count, search_duration_ms, total_duration_ms, provider, top_results, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		record.ID, record.QueryText, record.ResultCount, record.SearchDurationMs,
		record.TotalDurationMs, record.ProviderUsed, topJSON, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}
