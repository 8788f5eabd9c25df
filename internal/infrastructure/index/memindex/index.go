// Package memindex is an in-process chunk index for single-node deployments
// and tests. The same store backs both retrieval sides: BM25-style term
// scoring for lexical search and cosine similarity for vector search.
package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/ports"
)

const bm25K1 = 1.2

type entry struct {
	chunk  domain.Chunk
	vector []float32
	terms  map[string]float64
	length int
}

type Index struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func New() *Index {
	return &Index{entries: make(map[string]*entry)}
}

// IndexChunks upserts chunks with their vectors. Re-indexing a chunk id
// replaces the previous entry.
func (i *Index) IndexChunks(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(vectors) != 0 && len(vectors) != len(chunks) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, chunk := range chunks {
		tokens := tokenizeAlphaNum(chunk.Text)
		terms := make(map[string]float64, len(tokens))
		for _, token := range tokens {
			terms[token]++
		}

		var vector []float32
		if len(vectors) != 0 {
			vector = vectors[idx]
		}
		if _, exists := i.entries[chunk.ID]; !exists {
			i.order = append(i.order, chunk.ID)
		}
		i.entries[chunk.ID] = &entry{
			chunk:  chunk,
			vector: vector,
			terms:  terms,
			length: len(tokens),
		}
	}
	return nil
}

// ReplaceDocumentChunks swaps the indexed chunks of one document. Vectors
// arrive later through IndexChunks, which upserts by chunk id.
func (i *Index) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	i.RemoveDocument(documentID)
	return i.IndexChunks(ctx, chunks, nil)
}

// RemoveDocument drops every chunk of one document.
func (i *Index) RemoveDocument(documentID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	kept := i.order[:0]
	for _, id := range i.order {
		if e, ok := i.entries[id]; ok && e.chunk.DocumentID == documentID {
			delete(i.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	i.order = kept
}

// Lexical returns the keyword-search view of the index.
func (i *Index) Lexical() ports.LexicalIndex { return lexicalView{i} }

// Vector returns the semantic-search view of the index.
func (i *Index) Vector() ports.VectorIndex { return vectorView{i} }

type lexicalView struct{ idx *Index }

func (v lexicalView) Search(_ context.Context, queryText string, k int) ([]domain.RetrievalResult, error) {
	queryTokens := tokenizeAlphaNum(queryText)
	if len(queryTokens) == 0 || k <= 0 {
		return nil, nil
	}

	v.idx.mu.RLock()
	defer v.idx.mu.RUnlock()

	docCount := float64(len(v.idx.entries))
	if docCount == 0 {
		return nil, nil
	}

	// Document frequency per distinct query term.
	df := make(map[string]float64, len(queryTokens))
	for _, token := range queryTokens {
		if _, seen := df[token]; seen {
			continue
		}
		for _, id := range v.idx.order {
			if _, ok := v.idx.entries[id].terms[token]; ok {
				df[token]++
			}
		}
	}

	results := make([]domain.RetrievalResult, 0, k)
	for _, id := range v.idx.order {
		e := v.idx.entries[id]
		var score float64
		for token, freq := range df {
			tf, ok := e.terms[token]
			if !ok {
				continue
			}
			idf := math.Log(1 + (docCount-freq+0.5)/(freq+0.5))
			score += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1)
		}
		if score <= 0 {
			continue
		}
		s := score
		results = append(results, domain.RetrievalResult{
			ChunkID:      e.chunk.ID,
			DocumentID:   e.chunk.DocumentID,
			Content:      e.chunk.Text,
			LexicalScore: &s,
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return *results[a].LexicalScore > *results[b].LexicalScore
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

type vectorView struct{ idx *Index }

func (v vectorView) IndexChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	return v.idx.IndexChunks(ctx, chunks, vectors)
}

func (v vectorView) Search(_ context.Context, queryVector []float32, k int) ([]domain.RetrievalResult, error) {
	if len(queryVector) == 0 || k <= 0 {
		return nil, nil
	}

	v.idx.mu.RLock()
	defer v.idx.mu.RUnlock()

	results := make([]domain.RetrievalResult, 0, k)
	for _, id := range v.idx.order {
		e := v.idx.entries[id]
		score := cosineSimilarity(queryVector, e.vector)
		if score <= 0 {
			continue
		}
		s := score
		results = append(results, domain.RetrievalResult{
			ChunkID:       e.chunk.ID,
			DocumentID:    e.chunk.DocumentID,
			Content:       e.chunk.Text,
			SemanticScore: &s,
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return *results[a].SemanticScore > *results[b].SemanticScore
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
