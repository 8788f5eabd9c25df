package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const maxKeyTextLength = 8000

var collapseNewlines = regexp.MustCompile(`\n{3,}`)

// normalizeText canonicalizes text for key derivation only. The cached
// vector is always the embedding of the text as given.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = collapseNewlines.ReplaceAllString(text, "\n\n")
	if runes := []rune(text); len(runes) > maxKeyTextLength {
		text = string(runes[:maxKeyTextLength])
	}
	return strings.TrimSpace(text)
}

// cacheKey derives the tier-independent cache key: the first 16 hex chars of
// sha256("text|model") over the normalized text.
func cacheKey(text, modelID string) string {
	sum := sha256.Sum256([]byte(normalizeText(text) + "|" + modelID))
	return hex.EncodeToString(sum[:])[:16]
}
