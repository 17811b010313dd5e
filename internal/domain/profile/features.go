package profile

import (
	"strings"

	"github.com/turtacn/ProtocolIQ/internal/domain/lexical"
)

var (
	formalIndicators   = []string{"shall", "must", "will", "defined", "specified", "according to"}
	informalIndicators = []string{"can", "might", "could", "maybe", "pretty", "quite"}
)

// domainIndicators is ordered: the first domain with any hit wins.
var domainIndicators = []struct {
	name  string
	terms []string
}{
	{"oncology", []string{"cancer", "tumor", "chemotherapy"}},
	{"cardiology", []string{"heart", "cardiac", "blood pressure"}},
	{"neurology", []string{"brain", "neurological", "cognitive"}},
	{"statistics", []string{"power", "sample", "analysis"}},
	{"regulatory", []string{"fda", "ich", "compliance"}},
}

// DomainGeneral is returned when no domain indicator matches.
const DomainGeneral = "general"

// Complexity scores text in [0,1] from average word length and average
// sentence length: (avgWord/10 + avgSentence/20) / 2. Empty text scores 0.
func Complexity(text string) float64 {
	words := lexical.Tokenize(text)
	if len(words) == 0 {
		return 0
	}
	chars := 0
	for _, w := range words {
		chars += len([]rune(w))
	}
	sentences := len(lexical.Sentences(text))
	if sentences == 0 {
		sentences = 1
	}
	avgWord := float64(chars) / float64(len(words))
	avgSentence := float64(len(words)) / float64(sentences)
	return clamp01((avgWord/10 + avgSentence/20) / 2)
}

// Formality is the share of formal indicators among all register indicators,
// 0.5 when the text has none.
func Formality(text string) float64 {
	formal, informal := 0, 0
	for _, w := range formalIndicators {
		formal += lexical.Count(text, w)
	}
	for _, w := range informalIndicators {
		informal += lexical.Count(text, w)
	}
	if formal+informal == 0 {
		return 0.5
	}
	return float64(formal) / float64(formal+informal)
}

// maxKeyPhrases bounds the phrases extracted from a single text.
const maxKeyPhrases = 5

// KeyPhrases returns up to five 2- and 3-word n-grams whose tokens are all
// longer than three characters, bigrams first, in text order.
func KeyPhrases(text string) []string {
	tokens := lexical.Tokenize(text)
	seen := make(map[string]bool)
	var out []string
	for n := 2; n <= 3; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := tokens[i : i+n]
			ok := true
			for _, t := range gram {
				if len([]rune(t)) <= 3 {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			p := strings.Join(gram, " ")
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
			if len(out) == maxKeyPhrases {
				return out
			}
		}
	}
	return out
}

// IdentifyDomain returns the first therapeutic or functional domain whose
// indicators occur in text, or DomainGeneral.
func IdentifyDomain(text string) string {
	for _, d := range domainIndicators {
		for _, term := range d.terms {
			if lexical.Contains(text, term) {
				return d.name
			}
		}
	}
	return DomainGeneral
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
