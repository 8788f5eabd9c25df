package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type processRepoFake struct {
	doc           *domain.Document
	getErr        error
	statusErr     error
	failStatusErr error
	statusCalls   []statusCall
	chunkCount    int
	chunkCountID  string
}

func (f *processRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.StatusFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	if f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *processRepoFake) SetChunkCount(_ context.Context, id string, count int) error {
	f.chunkCountID = id
	f.chunkCount = count
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

type chunkStoreFake struct {
	documentID string
	chunks     []domain.Chunk
	err        error
}

func (f *chunkStoreFake) ReplaceDocumentChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	f.chunks = chunks
	return nil
}

func newProcessUseCase(repo *processRepoFake, extractor *extractorFake, chunker *chunkerFake, emb *fakeEmbedder, cache *mapCache, vec *fakeVectorIndex, store *chunkStoreFake) *ProcessDocumentUseCase {
	return NewProcessDocumentUseCase(repo, extractor, chunker, emb, cache, vec, store)
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	store := &chunkStoreFake{}
	uc := newProcessUseCase(
		repo,
		&extractorFake{text: "text"},
		&chunkerFake{chunks: []string{"a", "b"}},
		&fakeEmbedder{vector: []float32{1}},
		newMapCache(),
		&fakeVectorIndex{},
		store,
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusReady {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.chunkCountID != "doc-1" || repo.chunkCount != 2 {
		t.Fatalf("expected chunk count 2 for doc-1, got %d for %s", repo.chunkCount, repo.chunkCountID)
	}
	if store.documentID != "doc-1" || len(store.chunks) != 2 {
		t.Fatalf("expected chunk text stored, got %+v", store)
	}
	if store.chunks[0].ID != "doc-1-0" || store.chunks[1].Index != 1 {
		t.Fatalf("unexpected chunk identities: %+v", store.chunks)
	}
}

func TestProcessByIDEmbedsOnlyCacheMisses(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	cache := newMapCache()
	cache.Put(context.Background(), "a", "test-embed-model", []float32{9}, nil)
	emb := &fakeEmbedder{vector: []float32{1}}

	uc := newProcessUseCase(
		repo,
		&extractorFake{text: "text"},
		&chunkerFake{chunks: []string{"a", "b"}},
		emb,
		cache,
		&fakeVectorIndex{},
		&chunkStoreFake{},
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	// Only the miss ("b") reaches the embedder, and its vector is written back.
	if emb.calls != 1 {
		t.Fatalf("expected a single embed call for the cache miss, got %d", emb.calls)
	}
	if _, ok := cache.Get(context.Background(), "b", "test-embed-model"); !ok {
		t.Fatalf("expected fresh vector persisted in cache")
	}
}

func TestProcessByIDMarksFailedOnExtractError(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := newProcessUseCase(
		repo,
		&extractorFake{err: errors.New("extract fail")},
		&chunkerFake{chunks: []string{"a"}},
		&fakeEmbedder{vector: []float32{1}},
		newMapCache(),
		&fakeVectorIndex{},
		&chunkStoreFake{},
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected processing + failed status updates, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %+v", repo.statusCalls[1])
	}
}

func TestProcessByIDMarksFailedOnChunkStoreError(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := newProcessUseCase(
		repo,
		&extractorFake{text: "text"},
		&chunkerFake{chunks: []string{"a"}},
		&fakeEmbedder{vector: []float32{1}},
		newMapCache(),
		&fakeVectorIndex{},
		&chunkStoreFake{err: errors.New("db down")},
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
}

func TestProcessByIDMarksFailedOnEmptyChunking(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := newProcessUseCase(
		repo,
		&extractorFake{text: "text"},
		&chunkerFake{},
		&fakeEmbedder{vector: []float32{1}},
		newMapCache(),
		&fakeVectorIndex{},
		&chunkStoreFake{},
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
}
