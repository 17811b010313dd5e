// Package lexical provides the tokenization and whole-phrase matching shared
// by the detector, the generator, the preference model and the corpus parser.
package lexical

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a byte range [Start, End) in the original text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// FindAll returns every case-insensitive, whole-phrase occurrence of phrase in
// text. A boundary is enforced only on a side where the phrase itself begins
// or ends with a word character, so "100%" matches in "100% effective" while
// "safe" does not match inside "safety".
func FindAll(text, phrase string) []Span {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" || len(text) < len(phrase) {
		return nil
	}
	lowerText := foldASCII(text)
	lowerPhrase := foldASCII(phrase)

	first, _ := utf8.DecodeRuneInString(lowerPhrase)
	last, _ := utf8.DecodeLastRuneInString(lowerPhrase)
	needLeft := isWordRune(first)
	needRight := isWordRune(last)

	var spans []Span
	offset := 0
	for offset <= len(lowerText)-len(lowerPhrase) {
		i := strings.Index(lowerText[offset:], lowerPhrase)
		if i < 0 {
			break
		}
		start := offset + i
		end := start + len(lowerPhrase)
		ok := true
		if needLeft && start > 0 {
			r, _ := utf8.DecodeLastRuneInString(lowerText[:start])
			ok = !isWordRune(r)
		}
		if ok && needRight && end < len(lowerText) {
			r, _ := utf8.DecodeRuneInString(lowerText[end:])
			ok = !isWordRune(r)
		}
		if ok {
			spans = append(spans, Span{Start: start, End: end})
			offset = end
		} else {
			_, size := utf8.DecodeRuneInString(lowerText[start:])
			offset = start + size
		}
	}
	return spans
}

// Count returns the number of whole-phrase occurrences.
func Count(text, phrase string) int {
	return len(FindAll(text, phrase))
}

// Contains reports whether phrase occurs in text as a whole phrase.
func Contains(text, phrase string) bool {
	return len(FindAll(text, phrase)) > 0
}

// foldASCII lowercases ASCII letters only, preserving byte offsets.
func foldASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Tokenize splits text into lowercase word tokens. Letters, digits and inner
// hyphens are kept ("p-value" is one token).
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.Trim(cur.String(), "-"))
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case r == '-' && cur.Len() > 0:
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// MatchesTerm reports whether token matches a lexicon term. Terms of four or
// more characters match as substrings ("monitored" matches "monitor"); shorter
// terms must equal the token so "ich" does not fire on "which".
func MatchesTerm(token, term string) bool {
	if len(term) >= 4 {
		return strings.Contains(token, term)
	}
	return token == term
}

// Sentences splits text on terminal punctuation and newlines, dropping blanks.
func Sentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := parts[:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
