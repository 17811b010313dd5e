package suggestion

import (
	"sort"
	"strings"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/lexical"
	"github.com/turtacn/ProtocolIQ/internal/domain/pattern"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/contextdetect"
)

// Weights are the confidence blend and penalty parameters.
type Weights struct {
	Rule                   float64 `mapstructure:"rule" yaml:"rule"`
	Relevance              float64 `mapstructure:"relevance" yaml:"relevance"`
	Personalization        float64 `mapstructure:"personalization" yaml:"personalization"`
	DefaultPersonalization float64 `mapstructure:"default_personalization" yaml:"default_personalization"`
	AvoidedPenalty         float64 `mapstructure:"avoided_penalty" yaml:"avoided_penalty"`
	RejectionStep          float64 `mapstructure:"rejection_step" yaml:"rejection_step"`
	RejectionCap           float64 `mapstructure:"rejection_cap" yaml:"rejection_cap"`
	Floor                  float64 `mapstructure:"floor" yaml:"floor"`
}

func DefaultWeights() Weights {
	return Weights{
		Rule:                   0.4,
		Relevance:              0.3,
		Personalization:        0.3,
		DefaultPersonalization: 0.7,
		AvoidedPenalty:         0.3,
		RejectionStep:          0.1,
		RejectionCap:           0.5,
		Floor:                  0.1,
	}
}

// Config controls ranking.
type Config struct {
	Weights    Weights `mapstructure:"weights" yaml:"weights"`
	MaxResults int     `mapstructure:"max_results" yaml:"max_results"`
	// EvidenceThreshold is the minimum success correlation for a pattern to be
	// attached as evidence.
	EvidenceThreshold float64 `mapstructure:"evidence_threshold" yaml:"evidence_threshold"`
}

func DefaultConfig() Config {
	return Config{Weights: DefaultWeights(), MaxResults: 6, EvidenceThreshold: 0.7}
}

// EvidenceSource supplies consolidated success patterns. Implementations must
// return a snapshot the generator may read without locking.
type EvidenceSource interface {
	Patterns() []corpus.SuccessPattern
}

// Generator is stateless and safe for concurrent use.
type Generator struct {
	lib        *pattern.Library
	cfg        Config
	profileCfg profile.Config
	evidence   EvidenceSource
}

// Option configures a Generator.
type Option func(*Generator)

func WithConfig(cfg Config) Option {
	return func(g *Generator) { g.cfg = cfg }
}

// WithProfileConfig sets the preference-model parameters used for warm
// profiles.
func WithProfileConfig(cfg profile.Config) Option {
	return func(g *Generator) { g.profileCfg = cfg }
}

func WithEvidence(src EvidenceSource) Option {
	return func(g *Generator) { g.evidence = src }
}

// NewGenerator builds a Generator over lib.
func NewGenerator(lib *pattern.Library, opts ...Option) *Generator {
	g := &Generator{lib: lib, cfg: DefaultConfig(), profileCfg: profile.DefaultConfig()}
	for _, o := range opts {
		o(g)
	}
	if g.cfg.MaxResults <= 0 {
		g.cfg.MaxResults = DefaultConfig().MaxResults
	}
	if g.profileCfg.WarmThreshold <= 0 {
		g.profileCfg.WarmThreshold = profile.DefaultConfig().WarmThreshold
	}
	return g
}

type match struct {
	rule  pattern.Rule
	order int
	spans []lexical.Span
}

// Generate returns at most MaxResults suggestions for text, best first. p may
// be nil. Blank text or text without any rule hit yields an empty list.
func (g *Generator) Generate(text string, scores contextdetect.ContextScores, p *profile.Profile) []Suggestion {
	primary, relevance := scores.Primary()
	if primary == "" || strings.TrimSpace(text) == "" {
		return []Suggestion{}
	}

	matches := g.scan(text, primary)
	if len(matches) == 0 {
		return []Suggestion{}
	}

	var patterns []corpus.SuccessPattern
	area := corpus.AreaGeneral
	if g.evidence != nil {
		patterns = g.evidence.Patterns()
		area = corpus.ClassifyArea(text)
	}

	out := make([]Suggestion, 0, len(matches))
	for _, m := range matches {
		s := g.build(m, primary, p)
		s.Confidence = g.confidence(m.rule, s, relevance, p)
		s.Evidence = g.findEvidence(patterns, area, s.Replacements)
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		return a.Position() < b.Position()
	})
	if len(out) > g.cfg.MaxResults {
		out = out[:g.cfg.MaxResults]
	}
	return out
}

// scan collects rule matches for the primary context, the red flags and, for
// procedures or dosing text, the feasibility flags. Overlapping matches are
// resolved in favour of the longer phrase, then the higher severity, then the
// earlier rule.
func (g *Generator) scan(text, primary string) []match {
	rules := g.lib.RulesFor(primary)
	rules = append(rules, g.lib.RedFlags()...)
	if primary == pattern.ContextProcedures || primary == pattern.ContextDosing {
		rules = append(rules, g.lib.FeasibilityFlags(primary)...)
	}

	var found []match
	for i, r := range rules {
		if spans := lexical.FindAll(text, r.Phrase); len(spans) > 0 {
			found = append(found, match{rule: r, order: i, spans: spans})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if la, lb := len(a.rule.Phrase), len(b.rule.Phrase); la != lb {
			return la > lb
		}
		if ra, rb := a.rule.Severity.Rank(), b.rule.Severity.Rank(); ra != rb {
			return ra > rb
		}
		return a.order < b.order
	})

	var claimed []lexical.Span
	kept := found[:0]
	for _, m := range found {
		var free []lexical.Span
		for _, sp := range m.spans {
			if !overlapsAny(sp, claimed) {
				free = append(free, sp)
			}
		}
		if len(free) == 0 {
			continue
		}
		claimed = append(claimed, free...)
		m.spans = free
		kept = append(kept, m)
	}
	return kept
}

func overlapsAny(sp lexical.Span, claimed []lexical.Span) bool {
	for _, c := range claimed {
		if sp.Overlaps(c) {
			return true
		}
	}
	return false
}

func (g *Generator) build(m match, primary string, p *profile.Profile) Suggestion {
	r := m.rule
	s := Suggestion{
		Kind:         r.Category,
		Original:     r.Phrase,
		Replacements: append([]string(nil), r.Replacements...),
		Rationale:    r.Rationale,
		Severity:     r.Severity,
		Context:      primary,
		Positions:    m.spans,
	}
	switch r.Category {
	case pattern.CategoryClarity:
		s.Clarity = &ClarityDetail{Ambiguity: nonEmpty(r.Rationale, "wording admits more than one reading")}
	case pattern.CategoryRegulatory:
		s.Regulatory = &RegulatoryDetail{
			FlagReason: nonEmpty(r.Rationale, "unsupported claim"),
			Guideline:  nonEmpty(r.Guideline, "ICH E6(R2)"),
		}
	case pattern.CategoryFeasibility:
		s.Feasibility = &FeasibilityDetail{Concern: nonEmpty(r.Concern, pattern.ConcernComplex)}
	case pattern.CategoryStyle:
		register := "formal"
		if p != nil && p.PreferredFormality < 0.4 {
			register = "plain"
		}
		s.Style = &StyleDetail{Register: register}
	}
	return s
}

func (g *Generator) confidence(r pattern.Rule, s Suggestion, relevance float64, p *profile.Profile) float64 {
	w := g.cfg.Weights
	pers := w.DefaultPersonalization
	if profile.StageOf(p, g.profileCfg.WarmThreshold) == profile.StageWarm {
		pers = profile.Score(p, profile.Candidate{
			Text:     s.Suggested(),
			Phrase:   r.Phrase,
			Context:  s.Context,
			Category: string(r.Category),
		}, g.profileCfg)
	}
	c := w.Rule*r.Weight + w.Relevance*relevance + w.Personalization*pers

	if p != nil && avoidedHit(p, r.Phrase, s.Replacements) {
		c *= 1 - w.AvoidedPenalty
	}
	if n := p.Rejections(string(r.Category)); n > 0 {
		penalty := float64(n) * w.RejectionStep
		if penalty > w.RejectionCap {
			penalty = w.RejectionCap
		}
		c -= penalty
		if c < w.Floor {
			c = w.Floor
		}
	}
	return clamp01(c)
}

func avoidedHit(p *profile.Profile, phrase string, replacements []string) bool {
	if p.AvoidedPhrases.Has(phrase) {
		return true
	}
	if len(replacements) == 0 {
		return false
	}
	for ph := range p.AvoidedPhrases {
		if lexical.Contains(replacements[0], ph) {
			return true
		}
	}
	return false
}

func (g *Generator) findEvidence(patterns []corpus.SuccessPattern, area string, replacements []string) *Evidence {
	var best *corpus.SuccessPattern
	for i := range patterns {
		sp := &patterns[i]
		if sp.Correlation <= g.cfg.EvidenceThreshold {
			continue
		}
		if sp.TherapeuticArea != area && sp.TherapeuticArea != corpus.AreaGeneral {
			continue
		}
		if !supports(sp.Text, replacements) {
			continue
		}
		if best == nil || sp.Correlation > best.Correlation ||
			(sp.Correlation == best.Correlation && (sp.Frequency > best.Frequency ||
				(sp.Frequency == best.Frequency && sp.ID < best.ID))) {
			best = sp
		}
	}
	if best == nil {
		return nil
	}
	return &Evidence{PatternID: best.ID, PatternText: best.Text, Correlation: best.Correlation}
}

func supports(patternText string, replacements []string) bool {
	for _, r := range replacements {
		if lexical.Contains(r, patternText) {
			return true
		}
	}
	return false
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
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
