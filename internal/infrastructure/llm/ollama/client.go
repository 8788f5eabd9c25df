package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
	"github.com/NotificacaoKnight/knight-agent-v3/internal/infrastructure/resilience"
)

const ProviderID = "ollama"

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Embedder computes vectors through the Ollama embed endpoint.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) ModelID() string { return e.client.embedModel }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.executor.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed count mismatch: want %d, got %d", len(texts), len(response.Embeddings))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Provider is the Ollama link of the generation fallback chain. All outcomes
// are reported as data; the chain decides what a failure means.
type Provider struct {
	client *Client
}

func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) ID() string { return ProviderID }

// IsAvailable probes the tags endpoint with a short deadline so a dead local
// daemon never stalls the chain.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	return p.client.getJSON(probeCtx, "/api/tags", &response, "tags") == nil
}

func (p *Provider) Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult {
	request := map[string]any{
		"model":  p.client.genModel,
		"prompt": buildPrompt(req),
		"stream": false,
		"options": map[string]any{
			"num_predict": req.MaxTokens,
			"temperature": req.Temperature,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	err := p.client.executor.Execute(ctx, "ollama_generate", func(ctx context.Context) error {
		return p.client.postJSON(ctx, "/api/generate", request, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return domain.GenerationResult{
			Success:    false,
			Error:      err.Error(),
			ProviderID: ProviderID,
		}
	}

	text := strings.TrimSpace(response.Response)
	if text == "" {
		return domain.GenerationResult{
			Success:    false,
			Error:      "empty response from model",
			ProviderID: ProviderID,
		}
	}
	return domain.GenerationResult{
		Success:    true,
		Text:       text,
		ProviderID: ProviderID,
	}
}
