package embedding

import (
	"context"

	"github.com/turtacn/ProtocolIQ/internal/domain/lexical"
)

// stopwords are excluded from overlap so function words do not inflate scores.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "will": true, "are": true,
	"was": true, "were": true, "per": true, "from": true, "that": true, "this": true,
	"each": true, "all": true, "any": true, "have": true, "has": true, "been": true,
}

// KeywordOverlap is the degraded-mode similarity: Jaccard overlap of the
// content-word sets of both texts. It is deterministic and needs no provider.
type KeywordOverlap struct{}

// NewKeywordOverlap returns the degraded strategy.
func NewKeywordOverlap() *KeywordOverlap { return &KeywordOverlap{} }

func (KeywordOverlap) Similarity(_ context.Context, a, b string) (float64, error) {
	return Jaccard(contentWords(a), contentWords(b)), nil
}

func (KeywordOverlap) Degraded() bool { return true }

// Jaccard returns |a∩b| / |a∪b|, 0 when both sets are empty.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func contentWords(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range lexical.Tokenize(text) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		set[tok] = true
	}
	return set
}
