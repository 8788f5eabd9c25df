package memindex

import (
	"context"
	"testing"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	idx := New()
	chunks := []domain.Chunk{
		{ID: "c1", DocumentID: "d1", Index: 0, Text: "política de férias da empresa"},
		{ID: "c2", DocumentID: "d1", Index: 1, Text: "regras de reembolso de despesas"},
		{ID: "c3", DocumentID: "d2", Index: 0, Text: "férias coletivas em dezembro"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	if err := idx.IndexChunks(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	return idx
}

func TestLexicalSearchRanksMatchingChunks(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Lexical().Search(context.Background(), "férias", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	for _, res := range results {
		if res.LexicalScore == nil || *res.LexicalScore <= 0 {
			t.Fatalf("expected positive lexical score, got %+v", res)
		}
		if res.ChunkID == "c2" {
			t.Fatalf("non-matching chunk returned")
		}
	}
}

func TestLexicalSearchNoiseQueryReturnsNothing(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Lexical().Search(context.Background(), "___---!!!", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for noise query, got %d", len(results))
	}
}

func TestVectorSearchRanksByCosine(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Vector().Search(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != "c1" || results[1].ChunkID != "c3" {
		t.Fatalf("unexpected ranking: %q then %q", results[0].ChunkID, results[1].ChunkID)
	}
	if results[0].SemanticScore == nil || *results[0].SemanticScore <= *results[1].SemanticScore {
		t.Fatalf("expected strictly decreasing scores")
	}
}

func TestIndexChunksUpsertsByID(t *testing.T) {
	idx := seedIndex(t)

	updated := []domain.Chunk{{ID: "c1", DocumentID: "d1", Index: 0, Text: "texto substituído sobre benefícios"}}
	if err := idx.IndexChunks(context.Background(), updated, [][]float32{{0, 0, 1}}); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}

	results, err := idx.Lexical().Search(context.Background(), "benefícios", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "c1" {
		t.Fatalf("expected replaced chunk to match, got %+v", results)
	}

	stale, err := idx.Lexical().Search(context.Background(), "política", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected old chunk text gone, got %+v", stale)
	}
}

func TestRemoveDocumentDropsItsChunks(t *testing.T) {
	idx := seedIndex(t)
	idx.RemoveDocument("d1")

	results, err := idx.Lexical().Search(context.Background(), "férias", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "d2" {
		t.Fatalf("expected only the remaining document's chunk, got %+v", results)
	}
}

func TestVectorsMismatchIsError(t *testing.T) {
	idx := New()
	err := idx.IndexChunks(context.Background(),
		[]domain.Chunk{{ID: "c1"}, {ID: "c2"}},
		[][]float32{{1}},
	)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestTokenizeAlphaNumUnicodeAndDigits(t *testing.T) {
	tokens := tokenizeAlphaNum("Férias DOC_0001 versão-2")
	foundWord := false
	foundNum := false
	for _, tok := range tokens {
		if tok == "férias" {
			foundWord = true
		}
		if tok == "0001" {
			foundNum = true
		}
	}
	if !foundWord || !foundNum {
		t.Fatalf("expected férias and 0001 tokens, got %v", tokens)
	}
}
