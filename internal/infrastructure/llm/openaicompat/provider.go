// Package openaicompat implements a generation provider against any
// OpenAI-compatible chat completions API (Groq, Together, vLLM, and the
// like). One instance per upstream, distinguished by its configured ID.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

type Provider struct {
	id         string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type Options struct {
	// ID names this provider in the fallback chain ("groq", "together", ...).
	ID      string
	BaseURL string
	APIKey  string
	Model   string
}

func New(opts Options) *Provider {
	return &Provider{
		id:         opts.ID,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *Provider) ID() string { return p.id }

// IsAvailable only checks local preconditions. Remote health surfaces as a
// failed Generate, which the chain already handles.
func (p *Provider) IsAvailable(_ context.Context) bool {
	return p.baseURL != "" && p.apiKey != "" && p.model != ""
}

func (p *Provider) Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult {
	payload := map[string]any{
		"model":       p.model,
		"messages":    buildMessages(req),
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return p.failure(fmt.Sprintf("marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return p.failure(fmt.Sprintf("create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return p.failure(fmt.Sprintf("request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return p.failure(fmt.Sprintf("status %s: %s", resp.Status, strings.TrimSpace(string(detail))))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return p.failure(fmt.Sprintf("decode response: %v", err))
	}
	if len(completion.Choices) == 0 {
		return p.failure("no choices in response")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return p.failure("empty response from model")
	}
	return domain.GenerationResult{
		Success:    true,
		Text:       text,
		ProviderID: p.id,
	}
}

func (p *Provider) failure(reason string) domain.GenerationResult {
	return domain.GenerationResult{
		Success:    false,
		Error:      reason,
		ProviderID: p.id,
	}
}

func buildMessages(req domain.GenerationRequest) []map[string]string {
	messages := make([]map[string]string, 0, 2)
	if len(req.Context) > 0 {
		var contextBuilder strings.Builder
		for idx, chunk := range req.Context {
			contextBuilder.WriteString(fmt.Sprintf("[%d] %s\n\n", idx+1, chunk))
		}
		messages = append(messages, map[string]string{
			"role": "system",
			"content": fmt.Sprintf(`Você é o Knight, assistente corporativo. Responda à pergunta usando apenas o contexto abaixo.
Se o contexto não for suficiente, diga isso diretamente. Responda em português.

Contexto:
%s`, contextBuilder.String()),
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": req.Prompt,
	})
	return messages
}
