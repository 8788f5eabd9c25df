package usecase

import (
	"strings"
	"unicode"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

// QualityEvaluator holds the pure scoring functions that drive the
// orchestrator's state transitions. All scores are clamped to [0,1].
type QualityEvaluator struct {
	targetResults     int
	minResponseLength int
}

func NewQualityEvaluator(targetResults, minResponseLength int) *QualityEvaluator {
	if targetResults <= 0 {
		targetResults = defaultTopK
	}
	if minResponseLength <= 0 {
		minResponseLength = 10
	}
	return &QualityEvaluator{
		targetResults:     targetResults,
		minResponseLength: minResponseLength,
	}
}

// SearchQuality blends the mean combined score with how close the result
// count came to the target count.
func (e *QualityEvaluator) SearchQuality(results []domain.RetrievalResult) float64 {
	if len(results) == 0 {
		return 0
	}

	var sum float64
	for _, res := range results {
		sum += res.CombinedScore
	}
	avgScore := sum / float64(len(results))

	countScore := float64(len(results)) / float64(e.targetResults)
	if countScore > 1 {
		countScore = 1
	}

	return clamp01(avgScore*0.7 + countScore*0.3)
}

// ResponseQuality blends response length, whether retrieved context was
// available, and lexical overlap between query and response. Responses
// shorter than the minimum length score 0 outright.
func (e *QualityEvaluator) ResponseQuality(response, query string, contextUsed bool) float64 {
	response = strings.TrimSpace(response)
	if len(response) < e.minResponseLength {
		return 0
	}

	lengthScore := float64(len(response)) / 200.0
	if lengthScore > 1 {
		lengthScore = 1
	}

	contextScore := 0.5
	if contextUsed {
		contextScore = 1.0
	}

	overlap := tokenOverlap(toTokenSet(query), toTokenSet(response))

	return clamp01(lengthScore*0.3 + contextScore*0.3 + overlap*0.4)
}

func tokenOverlap(query, response map[string]struct{}) float64 {
	if len(query) == 0 || len(response) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := response[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
