// Package pattern holds the static catalogue that drives context detection and
// suggestion generation: per-context seed phrases and lexicons, phrase
// replacement rules, the regulatory red-flag set and feasibility flags.
//
// A Library is built once at startup (Default or LoadFile) and is read-only
// afterwards, so it can be shared across goroutines without locking.
package pattern

import "github.com/turtacn/ProtocolIQ/pkg/errors"

// Context names.
const (
	ContextDosing     = "dosing"
	ContextEndpoints  = "endpoints"
	ContextSafety     = "safety"
	ContextProcedures = "procedures"
	ContextStatistics = "statistics"
)

// Category classifies what kind of improvement a rule proposes.
type Category string

const (
	CategoryClarity     Category = "clarity"
	CategoryRegulatory  Category = "regulatory"
	CategoryFeasibility Category = "feasibility"
	CategoryStyle       Category = "style"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryClarity, CategoryRegulatory, CategoryFeasibility, CategoryStyle:
		return true
	}
	return false
}

// Severity ranks how urgently a finding should be addressed.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities: critical 4, high 3, medium 2, low 1, unknown 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Feasibility concern types.
const (
	ConcernHighFrequency = "high_frequency"
	ConcernComplex       = "complex_procedure"
	ConcernResources     = "special_resources"
	ConcernTimeline      = "tight_timeline"
)

// SeedPattern is a phrase whose presence signals a context.
type SeedPattern struct {
	Phrase string  `yaml:"phrase" json:"phrase"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// ContextDefinition describes one protocol-writing context.
type ContextDefinition struct {
	Name       string        `yaml:"name" json:"name"`
	Seeds      []SeedPattern `yaml:"seeds" json:"seeds"`
	Keywords   []string      `yaml:"keywords" json:"keywords"`
	Templates  []string      `yaml:"templates" json:"templates"`
	Complexity float64       `yaml:"complexity" json:"complexity"`
}

// Rule maps a phrase to ranked replacements.
type Rule struct {
	Phrase       string   `yaml:"phrase" json:"phrase"`
	Weight       float64  `yaml:"weight" json:"weight"`
	Replacements []string `yaml:"replacements" json:"replacements"`
	Rationale    string   `yaml:"rationale" json:"rationale"`
	Category     Category `yaml:"category" json:"category"`
	Severity     Severity `yaml:"severity" json:"severity"`
	// Contexts lists where the rule applies. Empty means every context.
	Contexts []string `yaml:"contexts" json:"contexts"`
	// Guideline names the regulatory reference for regulatory rules.
	Guideline string `yaml:"guideline,omitempty" json:"guideline,omitempty"`
	// Concern is the feasibility concern type for feasibility rules.
	Concern string `yaml:"concern,omitempty" json:"concern,omitempty"`
}

// AppliesTo reports whether the rule is applicable to context.
func (r Rule) AppliesTo(context string) bool {
	if len(r.Contexts) == 0 {
		return true
	}
	for _, c := range r.Contexts {
		if c == context {
			return true
		}
	}
	return false
}

func (r Rule) validate(known map[string]bool) error {
	if r.Phrase == "" {
		return errors.New(errors.CodePatternLibraryInvalid, "rule has empty phrase")
	}
	if r.Weight < 0 || r.Weight > 1 {
		return errors.Newf(errors.CodePatternLibraryInvalid, "rule %q weight %.2f outside [0,1]", r.Phrase, r.Weight)
	}
	if !r.Category.Valid() {
		return errors.Newf(errors.CodePatternLibraryInvalid, "rule %q has unknown category %q", r.Phrase, r.Category)
	}
	if r.Severity.Rank() == 0 {
		return errors.Newf(errors.CodePatternLibraryInvalid, "rule %q has unknown severity %q", r.Phrase, r.Severity)
	}
	for _, c := range r.Contexts {
		if !known[c] {
			return errors.Newf(errors.CodePatternLibraryInvalid, "rule %q references unknown context %q", r.Phrase, c)
		}
	}
	return nil
}

// Lexicon is a domain term list that reinforces the keyword score of the
// contexts it maps to.
type Lexicon struct {
	Name     string   `yaml:"name" json:"name"`
	Contexts []string `yaml:"contexts" json:"contexts"`
	Terms    []string `yaml:"terms" json:"terms"`
}
