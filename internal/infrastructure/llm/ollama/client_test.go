package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/resilience"
)

func newTestExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: 1,
		BreakerEnabled:   false,
	})
}

func TestProviderBuildsContextPrompt(t *testing.T) {
	var capturedPrompt string
	var capturedOptions map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		capturedOptions, _ = payload["options"].(map[string]any)
		_, _ = w.Write([]byte(`{"response":"resposta gerada"}`))
	}))
	defer server.Close()

	provider := NewProvider(New(server.URL, "gen", "embed", newTestExecutor()))
	res := provider.Generate(context.Background(), domain.GenerationRequest{
		Prompt:      "qual a política de férias?",
		Context:     []string{"trecho sobre férias"},
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if !res.Success || res.Text != "resposta gerada" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ProviderID != ProviderID {
		t.Fatalf("expected provider id %q, got %q", ProviderID, res.ProviderID)
	}
	if !strings.Contains(capturedPrompt, "qual a política de férias?") || !strings.Contains(capturedPrompt, "trecho sobre férias") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
	if capturedOptions["num_predict"] != float64(500) {
		t.Fatalf("expected num_predict forwarded, got %v", capturedOptions)
	}
}

func TestProviderWithoutContextPassesPromptThrough(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":"consulta refinada"}`))
	}))
	defer server.Close()

	provider := NewProvider(New(server.URL, "gen", "embed", newTestExecutor()))
	res := provider.Generate(context.Background(), domain.GenerationRequest{Prompt: "refine isto"})
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if capturedPrompt != "refine isto" {
		t.Fatalf("expected raw prompt without context wrapper, got %q", capturedPrompt)
	}
}

func TestProviderReportsFailureAsData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewProvider(New(server.URL, "gen", "embed", newTestExecutor()))
	res := provider.Generate(context.Background(), domain.GenerationRequest{Prompt: "pergunta"})
	if res.Success {
		t.Fatalf("expected failure result")
	}
	if res.ProviderID != ProviderID {
		t.Fatalf("expected provider id in failure, got %q", res.ProviderID)
	}
	if !strings.Contains(res.Error, "model not loaded") {
		t.Fatalf("expected response body in error, got %q", res.Error)
	}
}

func TestProviderEmptyResponseIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer server.Close()

	provider := NewProvider(New(server.URL, "gen", "embed", newTestExecutor()))
	res := provider.Generate(context.Background(), domain.GenerationRequest{Prompt: "pergunta"})
	if res.Success {
		t.Fatalf("expected blank model output to fail")
	}
}

func TestProviderIsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
	}))
	provider := NewProvider(New(server.URL, "gen", "embed", newTestExecutor()))
	if !provider.IsAvailable(context.Background()) {
		t.Fatalf("expected availability against live server")
	}

	server.Close()
	if provider.IsAvailable(context.Background()) {
		t.Fatalf("expected unavailability against closed server")
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadRequest)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", newTestExecutor()))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestEmbedderModelID(t *testing.T) {
	embedder := NewEmbedder(New("http://localhost", "gen", "nomic-embed-text", newTestExecutor()))
	if embedder.ModelID() != "nomic-embed-text" {
		t.Fatalf("unexpected model id %q", embedder.ModelID())
	}
}

func TestEmbedCountMismatchIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", newTestExecutor()))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected count mismatch error")
	}
}
