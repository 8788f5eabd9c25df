package domain

import "time"

// SearchWeights controls the blend of the two retrieval signals. Weights are
// renormalized to sum to 1 before scoring; both zero (or any negative) is an
// input error.
type SearchWeights struct {
	Semantic float64 `json:"semantic"`
	Lexical  float64 `json:"lexical"`
}

func (w SearchWeights) IsZero() bool {
	return w.Semantic == 0 && w.Lexical == 0
}

// Normalize returns weights scaled so that Semantic+Lexical == 1.
func (w SearchWeights) Normalize() SearchWeights {
	total := w.Semantic + w.Lexical
	if total <= 0 {
		return SearchWeights{}
	}
	return SearchWeights{
		Semantic: w.Semantic / total,
		Lexical:  w.Lexical / total,
	}
}

// RetrievalResult is one retrieved chunk with its per-signal and combined
// scores. LexicalScore/SemanticScore are nil when the corresponding backend
// did not return the chunk; a missing side contributes 0 to CombinedScore.
type RetrievalResult struct {
	ChunkID       string   `json:"chunk_id"`
	DocumentID    string   `json:"document_id"`
	Content       string   `json:"content"`
	LexicalScore  *float64 `json:"lexical_score,omitempty"`
	SemanticScore *float64 `json:"semantic_score,omitempty"`
	CombinedScore float64  `json:"combined_score"`
}

// SearchTiming reports wall-clock durations of one hybrid search call.
type SearchTiming struct {
	Lexical  time.Duration
	Semantic time.Duration
	Total    time.Duration
}
