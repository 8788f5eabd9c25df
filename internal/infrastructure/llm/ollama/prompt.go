package ollama

import (
	"fmt"
	"strings"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

// buildPrompt renders a generation request. Requests without context (query
// refinement, for example) pass the prompt through untouched.
func buildPrompt(req domain.GenerationRequest) string {
	if len(req.Context) == 0 {
		return req.Prompt
	}

	var contextBuilder strings.Builder
	for idx, chunk := range req.Context {
		contextBuilder.WriteString(fmt.Sprintf("[%d] %s\n\n", idx+1, chunk))
	}

	return fmt.Sprintf(`Você é o Knight, assistente corporativo. Responda à pergunta usando apenas o contexto abaixo.
Se o contexto não for suficiente, diga isso diretamente. Responda em português.

Contexto:
%s
Pergunta:
%s
`, contextBuilder.String(), req.Prompt)
}
