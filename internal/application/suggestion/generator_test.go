package suggestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/pattern"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/contextdetect"
)

const (
	scenarioA = "Patients will be monitored as needed"
	scenarioB = "This drug is safe and 100% effective"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type staticPatterns []corpus.SuccessPattern

func (s staticPatterns) Patterns() []corpus.SuccessPattern { return s }

func detect(t *testing.T, text string) contextdetect.ContextScores {
	t.Helper()
	return contextdetect.New(pattern.Default()).Detect(context.Background(), text)
}

func only(ctx string, v float64) contextdetect.ContextScores {
	return contextdetect.ContextScores{
		pattern.ContextDosing:     0,
		pattern.ContextEndpoints:  0,
		pattern.ContextProcedures: 0,
		pattern.ContextSafety:     0,
		pattern.ContextStatistics: 0,
		ctx:                       v,
	}
}

func assertSorted(t *testing.T, out []Suggestion) {
	t.Helper()
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Confidence, out[i].Confidence)
	}
}

func TestGenerate_ScenarioA(t *testing.T) {
	g := NewGenerator(pattern.Default())
	out := g.Generate(scenarioA, detect(t, scenarioA), nil)

	require.Len(t, out, 1)
	s := out[0]
	assert.Equal(t, "as needed", s.Original)
	assert.Equal(t, pattern.CategoryClarity, s.Kind)
	assert.Equal(t, pattern.ContextDosing, s.Context)
	assert.Equal(t, "every 12 hours ± 1 hour", s.Suggested())
	assert.Equal(t, 27, s.Position())
	require.NotNil(t, s.Clarity)
	assert.NoError(t, s.Validate())
	assert.Greater(t, s.Confidence, 0.0)
	assert.LessOrEqual(t, s.Confidence, 1.0)
	assert.InDelta(t, 0.4*0.9+0.3*0.135+0.3*0.7, s.Confidence, 1e-9)
}

func TestGenerate_ScenarioB(t *testing.T) {
	g := NewGenerator(pattern.Default())
	out := g.Generate(scenarioB, detect(t, scenarioB), nil)

	byPhrase := map[string]Suggestion{}
	for _, s := range out {
		byPhrase[s.Original] = s
	}
	for _, phrase := range []string{"safe", "100%"} {
		s, ok := byPhrase[phrase]
		require.True(t, ok, "missing %q", phrase)
		assert.Equal(t, pattern.CategoryRegulatory, s.Kind)
		assert.Equal(t, pattern.SeverityHigh, s.Severity)
		require.NotNil(t, s.Regulatory)
		assert.Equal(t, "FDA 21 CFR 312.7", s.Regulatory.Guideline)
		assert.NoError(t, s.Validate())
	}
	assertSorted(t, out)
	assert.Equal(t, "safe", out[0].Original)
}

func TestGenerate_ScenarioC_AvoidedPhraseLowersConfidence(t *testing.T) {
	g := NewGenerator(pattern.Default())
	scores := detect(t, scenarioA)

	fresh := profile.New("fresh", now)
	avoiding := profile.New("avoiding", now)
	avoiding.AvoidedPhrases.Add("as needed")

	base := g.Generate(scenarioA, scores, fresh)
	penalized := g.Generate(scenarioA, scores, avoiding)
	require.Len(t, base, 1)
	require.Len(t, penalized, 1)

	assert.Less(t, penalized[0].Confidence, base[0].Confidence)
	assert.InDelta(t, base[0].Confidence*0.7, penalized[0].Confidence, 1e-9)
}

func TestGenerate_ScenarioD_RejectionsLowerConfidence(t *testing.T) {
	g := NewGenerator(pattern.Default())
	scores := detect(t, scenarioA)

	var p *profile.Profile
	before := g.Generate(scenarioA, scores, p)
	require.Len(t, before, 1)

	for i := 0; i < 3; i++ {
		p = profile.ApplyAction(p, profile.ActionEvent{
			UserID:        "u1",
			Action:        profile.ActionReject,
			OriginalText:  "as needed",
			SuggestedText: "every 12 hours ± 1 hour",
			Context:       pattern.ContextDosing,
			Category:      string(pattern.CategoryClarity),
			Timestamp:     now.Add(time.Duration(i) * time.Minute),
		}, profile.DefaultConfig())
	}
	after := g.Generate(scenarioA, scores, p)
	require.Len(t, after, 1)

	assert.Less(t, after[0].Confidence, before[0].Confidence)
	assert.InDelta(t, before[0].Confidence-0.3, after[0].Confidence, 1e-9)
}

func TestGenerate_RejectionPenaltyCappedAndFloored(t *testing.T) {
	g := NewGenerator(pattern.Default())
	p := profile.New("u", now)
	p.CorrectionPatterns[string(pattern.CategoryStyle)] = 40

	out := g.Generate("Use the regular schedule.", only(pattern.ContextSafety, 0), p)
	require.Len(t, out, 1)
	// 0.4*0.5 + 0 + 0.3*0.7 = 0.41, minus the 0.5 cap, floored
	assert.Equal(t, 0.1, out[0].Confidence)
}

func TestGenerate_WarmProfileUsesPreferenceScore(t *testing.T) {
	g := NewGenerator(pattern.Default())
	scores := detect(t, scenarioA)

	p := profile.New("warm", now)
	p.ActionCount = 12
	p.PreferredComplexity = 0.9

	out := g.Generate(scenarioA, scores, p)
	require.Len(t, out, 1)
	pers := profile.Score(p, profile.Candidate{
		Text:     "every 12 hours ± 1 hour",
		Phrase:   "as needed",
		Context:  pattern.ContextDosing,
		Category: string(pattern.CategoryClarity),
	}, profile.DefaultConfig())
	assert.InDelta(t, 0.4*0.9+0.3*0.135+0.3*pers, out[0].Confidence, 1e-9)
}

func TestGenerate_Idempotent(t *testing.T) {
	g := NewGenerator(pattern.Default())
	text := "Dosing is twice daily as needed; the drug is safe and proven."
	scores := detect(t, text)
	p := profile.New("u", now)
	p.AvoidedPhrases.Add("safe")

	first := g.Generate(text, scores, p)
	second := g.Generate(text, scores, p)
	assert.Equal(t, first, second)
	assert.True(t, p.AvoidedPhrases.Has("safe"))
}

func TestGenerate_EmptyAndNoMatch(t *testing.T) {
	g := NewGenerator(pattern.Default())

	out := g.Generate("   ", detect(t, "   "), nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	out = g.Generate("The weather was pleasant.", detect(t, "The weather was pleasant."), nil)
	assert.Empty(t, out)

	assert.Empty(t, g.Generate("safe", contextdetect.ContextScores{}, nil))
}

func TestGenerate_OverlapPrefersLongerPhrase(t *testing.T) {
	g := NewGenerator(pattern.Default())
	out := g.Generate("Participants attend daily visits at the clinic.", only(pattern.ContextProcedures, 0.5), nil)

	require.Len(t, out, 1)
	assert.Equal(t, "daily visits", out[0].Original)
	require.NotNil(t, out[0].Feasibility)
	assert.Equal(t, pattern.ConcernHighFrequency, out[0].Feasibility.Concern)
}

func TestGenerate_SamePhraseReportedOnce(t *testing.T) {
	g := NewGenerator(pattern.Default())
	out := g.Generate("There were no side effects reported.", only(pattern.ContextSafety, 0.4), nil)

	require.Len(t, out, 1)
	assert.Equal(t, "no side effects", out[0].Original)
	assert.Equal(t, pattern.SeverityHigh, out[0].Severity)
}

func TestGenerate_FeasibilityOnlyForProceduresAndDosing(t *testing.T) {
	g := NewGenerator(pattern.Default())
	text := "Immediate reporting is required."

	assert.Empty(t, g.Generate(text, only(pattern.ContextSafety, 0.3), nil))

	out := g.Generate(text, only(pattern.ContextProcedures, 0.3), nil)
	require.Len(t, out, 1)
	assert.Equal(t, pattern.ConcernTimeline, out[0].Feasibility.Concern)
}

func TestGenerate_AllOccurrencesRecorded(t *testing.T) {
	g := NewGenerator(pattern.Default())
	out := g.Generate("Give as needed. Repeat as needed.", only(pattern.ContextDosing, 0.3), nil)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Positions, 2)
}

func TestGenerate_SortedAndTruncated(t *testing.T) {
	text := "This drug is safe, proven and guaranteed, 100% effective with regular and appropriate visits."
	scores := only(pattern.ContextSafety, 0.4)

	all := NewGenerator(pattern.Default()).Generate(text, scores, nil)
	require.Len(t, all, 6)
	assertSorted(t, all)
	for _, s := range all {
		assert.NoError(t, s.Validate())
	}

	cfg := DefaultConfig()
	cfg.MaxResults = 2
	top := NewGenerator(pattern.Default(), WithConfig(cfg)).Generate(text, scores, nil)
	require.Len(t, top, 2)
	assert.Equal(t, all[:2], top)
}

func TestGenerate_StyleRegisterFollowsProfile(t *testing.T) {
	g := NewGenerator(pattern.Default())
	p := profile.New("u", now)
	p.PreferredFormality = 0.2

	out := g.Generate("Visits are regular.", only(pattern.ContextProcedures, 0.2), p)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Style)
	assert.Equal(t, "plain", out[0].Style.Register)

	out = g.Generate("Visits are regular.", only(pattern.ContextProcedures, 0.2), nil)
	assert.Equal(t, "formal", out[0].Style.Register)
}

func TestGenerate_Evidence(t *testing.T) {
	src := staticPatterns{
		{ID: "low", Text: "every 12 hours", Correlation: 0.6, TherapeuticArea: corpus.AreaGeneral},
		{ID: "onc", Text: "every 12 hours", Correlation: 0.95, TherapeuticArea: "oncology"},
		{ID: "gen", Text: "every 12 hours", Correlation: 0.82, TherapeuticArea: corpus.AreaGeneral, Frequency: 3},
	}
	g := NewGenerator(pattern.Default(), WithEvidence(src))

	out := g.Generate(scenarioA, detect(t, scenarioA), nil)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Evidence)
	assert.Equal(t, "gen", out[0].Evidence.PatternID)
	assert.Equal(t, 0.82, out[0].Evidence.Correlation)

	onc := "Cancer patients receive the tumor therapy as needed"
	out = g.Generate(onc, only(pattern.ContextDosing, 0.3), nil)
	require.Len(t, out, 1)
	assert.Equal(t, "onc", out[0].Evidence.PatternID)
}

func TestSuggestion_Validate(t *testing.T) {
	s := Suggestion{Kind: pattern.CategoryClarity, Original: "x", Confidence: 0.5}
	assert.Error(t, s.Validate())

	s.Clarity = &ClarityDetail{Ambiguity: "vague"}
	assert.NoError(t, s.Validate())

	s.Style = &StyleDetail{Register: "formal"}
	assert.Error(t, s.Validate())

	s.Style = nil
	s.Kind = pattern.CategoryRegulatory
	assert.Error(t, s.Validate())
}
