package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindAll_WholePhrase(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		phrase string
		want   []Span
	}{
		{"simple", "Patients will be monitored as needed", "as needed", []Span{{27, 36}}},
		{"case insensitive", "Dose AS NEEDED.", "as needed", []Span{{5, 14}}},
		{"no partial word", "The safety profile", "safe", nil},
		{"percent sign", "This drug is safe and 100% effective", "100%", []Span{{22, 26}}},
		{"percent not inside number", "a 1100% increase", "100%", nil},
		{"multiple", "daily dosing, daily visits", "daily", []Span{{0, 5}, {14, 19}}},
		{"empty phrase", "anything", "", nil},
		{"phrase longer than text", "as", "as needed", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindAll(tt.text, tt.phrase))
		})
	}
}

func TestCountAndContains(t *testing.T) {
	text := "Protocol amendment 1 and protocol amendment 2 were filed."
	assert.Equal(t, 2, Count(text, "protocol amendment"))
	assert.True(t, Contains(text, "amendment"))
	assert.False(t, Contains(text, "amend"))
}

func TestSpan(t *testing.T) {
	a := Span{Start: 0, End: 5}
	b := Span{Start: 4, End: 8}
	c := Span{Start: 5, End: 9}
	assert.Equal(t, 5, a.Len())
	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"primary", "p-value", "10", "mg", "bid"},
		Tokenize("Primary p-value: 10 mg (BID) -"))
	assert.Empty(t, Tokenize("  ... "))
}

func TestMatchesTerm(t *testing.T) {
	assert.True(t, MatchesTerm("monitored", "monitor"))
	assert.False(t, MatchesTerm("which", "ich"))
	assert.True(t, MatchesTerm("ich", "ich"))
	assert.True(t, MatchesTerm("mg", "mg"))
}

func TestSentences(t *testing.T) {
	got := Sentences("Dose daily. Monitor weekly!\n\nReport AEs? ")
	assert.Equal(t, []string{"Dose daily", "Monitor weekly", "Report AEs"}, got)
}
