// Package suggestion turns detected context scores and the pattern library
// into ranked, typed improvement suggestions for a span of protocol text.
package suggestion

import (
	"github.com/turtacn/ProtocolIQ/internal/domain/lexical"
	"github.com/turtacn/ProtocolIQ/internal/domain/pattern"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// ClarityDetail explains what is ambiguous about the original wording.
type ClarityDetail struct {
	Ambiguity string `json:"ambiguity"`
}

// RegulatoryDetail names the flagged claim and the guideline it conflicts with.
type RegulatoryDetail struct {
	FlagReason string `json:"flag_reason"`
	Guideline  string `json:"guideline"`
}

// FeasibilityDetail carries the operational concern type.
type FeasibilityDetail struct {
	Concern string `json:"concern"`
}

// StyleDetail carries the target register for the rewrite.
type StyleDetail struct {
	Register string `json:"register"`
}

// Evidence links a suggestion to a mined success pattern.
type Evidence struct {
	PatternID   string  `json:"pattern_id"`
	PatternText string  `json:"pattern_text"`
	Correlation float64 `json:"success_correlation"`
}

// Suggestion is one ranked finding. Exactly one of the detail payloads is
// set, the one matching Kind.
type Suggestion struct {
	Kind         pattern.Category `json:"kind"`
	Original     string           `json:"original"`
	Replacements []string         `json:"replacements"`
	Rationale    string           `json:"rationale"`
	Severity     pattern.Severity `json:"severity"`
	Context      string           `json:"context"`
	Positions    []lexical.Span   `json:"positions"`
	Confidence   float64          `json:"confidence"`

	Clarity     *ClarityDetail     `json:"clarity,omitempty"`
	Regulatory  *RegulatoryDetail  `json:"regulatory,omitempty"`
	Feasibility *FeasibilityDetail `json:"feasibility,omitempty"`
	Style       *StyleDetail       `json:"style,omitempty"`

	Evidence *Evidence `json:"evidence,omitempty"`
}

// Position is the byte offset of the first occurrence.
func (s Suggestion) Position() int {
	if len(s.Positions) == 0 {
		return -1
	}
	return s.Positions[0].Start
}

// Suggested returns the preferred replacement, or "" when there is none.
func (s Suggestion) Suggested() string {
	if len(s.Replacements) == 0 {
		return ""
	}
	return s.Replacements[0]
}

// Validate checks the variant invariant.
func (s Suggestion) Validate() error {
	set := 0
	for _, ok := range []bool{s.Clarity != nil, s.Regulatory != nil, s.Feasibility != nil, s.Style != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return errors.Newf(errors.ErrCodeValidation, "suggestion %q carries %d detail payloads", s.Original, set)
	}
	var ok bool
	switch s.Kind {
	case pattern.CategoryClarity:
		ok = s.Clarity != nil && s.Clarity.Ambiguity != ""
	case pattern.CategoryRegulatory:
		ok = s.Regulatory != nil && s.Regulatory.FlagReason != "" && s.Regulatory.Guideline != ""
	case pattern.CategoryFeasibility:
		ok = s.Feasibility != nil && s.Feasibility.Concern != ""
	case pattern.CategoryStyle:
		ok = s.Style != nil && s.Style.Register != ""
	}
	if !ok {
		return errors.Newf(errors.ErrCodeValidation, "suggestion %q: %s payload missing or incomplete", s.Original, s.Kind)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return errors.Newf(errors.ErrCodeValidation, "suggestion %q confidence %.3f outside [0,1]", s.Original, s.Confidence)
	}
	return nil
}
