package domain

import "time"

// NextAction is the explicit transition target of the orchestration state
// machine. String literals from the original pipeline are replaced by a
// closed enum.
type NextAction string

const (
	ActionPlan         NextAction = "plan"
	ActionSearch       NextAction = "search"
	ActionQualityCheck NextAction = "quality_check"
	ActionRefine       NextAction = "refine_query"
	ActionGenerate     NextAction = "generate"
	ActionFinalize     NextAction = "finalize"
	ActionEnd          NextAction = "end"
)

// OrchestrationState is the working state of a single orchestration run.
// It is owned exclusively by the orchestrator for the lifetime of one
// Process call and is never shared between runs.
type OrchestrationState struct {
	Query         string
	OriginalQuery string
	Plan          []string

	Attempt       int
	Results       []RetrievalResult
	SearchQuality float64

	Response        string
	ResponseQuality float64
	ProviderUsed    string
	FellBack        bool
	Degraded        bool

	SearchDuration time.Duration
	Warnings       []string
	NextAction     NextAction
}

type OrchestrationRequest struct {
	Query   string
	K       int
	Weights *SearchWeights
}

type QualityMetrics struct {
	SearchQuality   float64 `json:"search_quality"`
	ResponseQuality float64 `json:"response_quality"`
	SearchAttempts  int     `json:"search_attempts"`
}

type RunMetadata struct {
	ProviderUsed     string   `json:"provider_used"`
	FellBack         bool     `json:"fell_back"`
	Degraded         bool     `json:"degraded"`
	SearchDurationMs int64    `json:"search_duration_ms"`
	TotalDurationMs  int64    `json:"total_duration_ms"`
	ResearchPlan     []string `json:"research_plan,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// OrchestrationResult is the terminal value of every run. Upstream failures
// degrade quality scores and the response text; they never prevent a result.
type OrchestrationResult struct {
	Query          string            `json:"query"`
	Response       string            `json:"response"`
	Sources        []RetrievalResult `json:"sources"`
	QualityMetrics QualityMetrics    `json:"quality_metrics"`
	Metadata       RunMetadata       `json:"metadata"`
}

// GenerationRequest is one text-generation call against a provider chain.
type GenerationRequest struct {
	Prompt      string
	Context     []string
	Provider    string
	MaxTokens   int
	Temperature float64
}

// GenerationResult is data-driven (never an exception): Success=false with
// Error set means the provider (or the whole chain) failed.
type GenerationResult struct {
	Success          bool   `json:"success"`
	Text             string `json:"text,omitempty"`
	Error            string `json:"error,omitempty"`
	ProviderID       string `json:"provider_id"`
	FellBack         bool   `json:"fell_back"`
	OriginalProvider string `json:"original_provider,omitempty"`
}

// CacheStats is a read-only snapshot of the embedding cache counters.
// Counters are approximate under concurrency.
type CacheStats struct {
	FastHits       int64 `json:"fast_hits"`
	DurableHits    int64 `json:"durable_hits"`
	Misses         int64 `json:"misses"`
	Saves          int64 `json:"saves"`
	DurableEntries int64 `json:"durable_entries"`
}

// QueryLogRecord is the append-only audit record written by the caller after
// a run. The core never reads it back.
type QueryLogRecord struct {
	ID               string           `json:"id"`
	QueryText        string           `json:"query_text"`
	ResultCount      int              `json:"result_count"`
	SearchDurationMs int64            `json:"search_duration_ms"`
	TotalDurationMs  int64            `json:"total_duration_ms"`
	ProviderUsed     string           `json:"provider_used"`
	TopResults       []QueryLogResult `json:"top_results"`
	CreatedAt        time.Time        `json:"created_at"`
}

type QueryLogResult struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	CombinedScore float64 `json:"combined_score"`
}
