package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Options{
		ID:      "groq",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "llama-3.1-8b-instant",
	})
}

func TestGenerateSendsContextAsSystemMessage(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}

	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "resposta gerada"}},
			},
		})
	})

	result := provider.Generate(context.Background(), domain.GenerationRequest{
		Prompt:    "qual a política de férias?",
		Context:   []string{"trecho um", "trecho dois"},
		MaxTokens: 500,
	})

	if !result.Success {
		t.Fatalf("Generate() failed: %s", result.Error)
	}
	if result.Text != "resposta gerada" || result.ProviderID != "groq" {
		t.Fatalf("unexpected result: %+v", result)
	}

	if captured.Model != "llama-3.1-8b-instant" || captured.MaxTokens != 500 {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("expected system+user messages, got %+v", captured.Messages)
	}
	if !strings.Contains(captured.Messages[0].Content, "[2] trecho dois") {
		t.Fatalf("context chunks missing from system message: %s", captured.Messages[0].Content)
	}
	if captured.Messages[1].Content != "qual a política de férias?" {
		t.Fatalf("unexpected user message: %s", captured.Messages[1].Content)
	}
}

func TestGenerateWithoutContextSendsUserMessageOnly(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []map[string]string `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0]["role"] != "user" {
			t.Errorf("expected single user message, got %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	})

	result := provider.Generate(context.Background(), domain.GenerationRequest{Prompt: "oi"})
	if !result.Success {
		t.Fatalf("Generate() failed: %s", result.Error)
	}
}

func TestGenerateReportsUpstreamErrorAsData(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate_limit_exceeded"}`, http.StatusTooManyRequests)
	})

	result := provider.Generate(context.Background(), domain.GenerationRequest{Prompt: "oi"})

	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Error, "429") || !strings.Contains(result.Error, "rate_limit_exceeded") {
		t.Fatalf("error detail missing: %s", result.Error)
	}
	if result.ProviderID != "groq" {
		t.Fatalf("unexpected provider id %q", result.ProviderID)
	}
}

func TestGenerateRejectsEmptyCompletion(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "   "}},
			},
		})
	})

	result := provider.Generate(context.Background(), domain.GenerationRequest{Prompt: "oi"})
	if result.Success || !strings.Contains(result.Error, "empty response") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestIsAvailableChecksConfiguration(t *testing.T) {
	if New(Options{ID: "groq"}).IsAvailable(context.Background()) {
		t.Fatal("provider without credentials must be unavailable")
	}
	available := New(Options{ID: "groq", BaseURL: "http://localhost", APIKey: "k", Model: "m"})
	if !available.IsAvailable(context.Background()) {
		t.Fatal("configured provider must be available")
	}
}
