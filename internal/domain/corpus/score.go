package corpus

import (
	"strings"
	"time"

	"github.com/turtacn/ProtocolIQ/internal/domain/lexical"
)

// Performance thresholds on the final success score.
const (
	HighPerformerThreshold = 0.7
	LowPerformerThreshold  = 0.4
)

// ScoreWeights are the component weights of the success score.
type ScoreWeights struct {
	Approval    float64 `mapstructure:"approval" yaml:"approval" json:"approval"`
	Amendment   float64 `mapstructure:"amendment" yaml:"amendment" json:"amendment"`
	Timeline    float64 `mapstructure:"timeline" yaml:"timeline" json:"timeline"`
	Compliance  float64 `mapstructure:"compliance" yaml:"compliance" json:"compliance"`
	Recruitment float64 `mapstructure:"recruitment" yaml:"recruitment" json:"recruitment"`
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Approval: 0.35, Amendment: 0.25, Timeline: 0.15, Compliance: 0.15, Recruitment: 0.10}
}

// Breakdown is a scored document: each component in [0,1] and the weighted
// Total, also in [0,1].
type Breakdown struct {
	Approval    float64 `json:"approval"`
	Amendment   float64 `json:"amendment"`
	Timeline    float64 `json:"timeline"`
	Compliance  float64 `json:"compliance"`
	Recruitment float64 `json:"recruitment"`
	Total       float64 `json:"total"`
}

var (
	approvalPositive = []string{"approved", "successful", "completed", "met primary endpoint",
		"statistically significant", "regulatory approval", "positive results", "met endpoint"}
	approvalNegative = []string{"failed", "terminated", "futility", "discontinued",
		"negative results", "safety concerns", "no significant difference"}

	timelinePositive = []string{"on schedule", "ahead of schedule", "on time", "rapid enrollment",
		"completed as planned"}
	timelineNegative = []string{"delayed", "delay", "behind schedule", "postponed", "on hold",
		"extended timeline"}

	regulatoryLanguage = []string{"good clinical practice", "ich gcp", "ich e6", "informed consent",
		"institutional review board", "ethics committee", "fda", "ema", "21 cfr"}
	clearLanguage = []string{"shall", "must", "will be", "defined as", "specified", "according to",
		"at least", "no more than"}
	vagueLanguage = []string{"as needed", "as appropriate", "if necessary", "may be", "approximately",
		"regular", "appropriate", "adequate"}

	recruitmentPositive = []string{"enrollment completed", "target enrollment", "recruitment completed",
		"fully enrolled", "enrollment target met"}
	recruitmentNegative = []string{"slow enrollment", "poor recruitment", "recruitment challenges",
		"enrollment difficulties", "under-enrolled", "low accrual"}
)

var (
	objectiveIndicators  = []string{"primary objective", "primary endpoint", "inclusion criteria", "exclusion criteria"}
	statisticsIndicators = []string{"statistical power", "power", "sample size", "statistical analysis plan"}
	experienceIndicators = []string{"experienced", "qualified investigator", "investigator experience", "established sites"}
	patientIndicators    = []string{"patient-reported", "quality of life", "patient burden", "patient-centered"}
	complexIndicators    = []string{"complex", "extensive", "multiple procedures", "specialized"}
	highRiskEndpoints    = []string{"mortality", "overall survival", "death", "serious adverse event"}
)

// Success and risk factor labels.
const (
	FactorClearObjectives      = "Clear objectives and criteria"
	FactorStatisticalDesign    = "Appropriate statistical design"
	FactorExperiencedTeam      = "Experienced investigation team"
	FactorRegulatoryCompliance = "Strong regulatory compliance"
	FactorPatientFocus         = "Patient-focused design"

	RiskComplexDesign     = "Complex protocol design"
	RiskVagueLanguage     = "Vague language and criteria"
	RiskRecruitment       = "Recruitment challenges"
	RiskHighRiskEndpoints = "High-risk endpoints"
)

const (
	shortDevelopment = 365 * 24 * time.Hour
	longDevelopment  = 6 * 365 * 24 * time.Hour
)

// Score computes the weighted success score of r.
func Score(r *Record, w ScoreWeights) Breakdown {
	text := r.Text()
	b := Breakdown{
		Approval:    approvalScore(r),
		Amendment:   AmendmentScore(r.AmendmentCount),
		Timeline:    timelineScore(r),
		Compliance:  indicatorScore(countPresent(text, regulatoryLanguage)+countPresent(text, clearLanguage), countPresent(text, vagueLanguage), 0.5),
		Recruitment: indicatorScore(countPresent(text, recruitmentPositive), countPresent(text, recruitmentNegative), 0.6),
	}
	b.Total = clamp01(w.Approval*b.Approval + w.Amendment*b.Amendment + w.Timeline*b.Timeline +
		w.Compliance*b.Compliance + w.Recruitment*b.Recruitment)
	return b
}

// AmendmentScore is a decreasing step function of the amendment count.
func AmendmentScore(n int) float64 {
	switch {
	case n <= 0:
		return 0.9
	case n <= 2:
		return 0.7
	case n <= 5:
		return 0.5
	}
	return 0.3
}

func approvalScore(r *Record) float64 {
	switch r.ApprovalStatus {
	case "approved":
		return 0.9
	case "failed", "terminated", "rejected", "withdrawn":
		return 0.1
	}
	text := r.Text()
	return indicatorScore(countPresent(text, approvalPositive), countPresent(text, approvalNegative), 0.5)
}

func timelineScore(r *Record) float64 {
	text := r.Text()
	pos, neg := countPresent(text, timelinePositive), countPresent(text, timelineNegative)
	switch r.CompletionStatus {
	case StatusCompleted:
		pos++
	case StatusTerminated:
		neg++
	}
	if d := r.DevelopmentDuration(); d > 0 {
		switch {
		case d < shortDevelopment:
			pos++
		case d > longDevelopment:
			neg++
		}
	}
	return indicatorScore(pos, neg, 0.6)
}

// indicatorScore is base + 0.1 per net positive indicator, clamped to [0.1, 0.9].
func indicatorScore(pos, neg int, base float64) float64 {
	v := base + 0.1*float64(pos-neg)
	if v < 0.1 {
		return 0.1
	}
	if v > 0.9 {
		return 0.9
	}
	return v
}

// countPresent counts how many of terms occur at least once in text.
func countPresent(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if lexical.Contains(text, t) {
			n++
		}
	}
	return n
}

// SuccessFactors lists the design traits evidenced in r's text.
func SuccessFactors(r *Record) []string {
	text := r.Text()
	var out []string
	if containsAny(text, objectiveIndicators) || len(r.Endpoints) > 0 {
		out = append(out, FactorClearObjectives)
	}
	if containsAny(text, statisticsIndicators) {
		out = append(out, FactorStatisticalDesign)
	}
	if containsAny(text, experienceIndicators) {
		out = append(out, FactorExperiencedTeam)
	}
	if containsAny(text, regulatoryLanguage) {
		out = append(out, FactorRegulatoryCompliance)
	}
	if containsAny(text, patientIndicators) {
		out = append(out, FactorPatientFocus)
	}
	return out
}

// RiskFactors lists the weaknesses evidenced in r.
func RiskFactors(r *Record) []string {
	text := r.Text()
	var out []string
	if r.AmendmentCount > 5 || containsAny(text, complexIndicators) {
		out = append(out, RiskComplexDesign)
	}
	if containsAny(text, vagueLanguage) {
		out = append(out, RiskVagueLanguage)
	}
	if containsAny(text, recruitmentNegative) {
		out = append(out, RiskRecruitment)
	}
	if containsAny(text, highRiskEndpoints) {
		out = append(out, RiskHighRiskEndpoints)
	}
	return out
}

// ClearLanguage returns the precise-wording phrases present in text,
// lowercased, in declaration order.
func ClearLanguage(text string) []string {
	var out []string
	for _, p := range clearLanguage {
		if lexical.Contains(text, p) {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// Assessment is the scored view of one record.
type Assessment struct {
	Record         *Record   `json:"record"`
	Score          Breakdown `json:"score"`
	SuccessFactors []string  `json:"success_factors,omitempty"`
	RiskFactors    []string  `json:"risk_factors,omitempty"`
	ClearLanguage  []string  `json:"clear_language,omitempty"`
}

// HighPerformer reports a total above HighPerformerThreshold.
func (a Assessment) HighPerformer() bool { return a.Score.Total > HighPerformerThreshold }

// LowPerformer reports a total below LowPerformerThreshold.
func (a Assessment) LowPerformer() bool { return a.Score.Total < LowPerformerThreshold }

// Assess scores r and, for high and low performers, collects the factors
// behind the score.
func Assess(r *Record, w ScoreWeights) Assessment {
	a := Assessment{Record: r, Score: Score(r, w)}
	switch {
	case a.HighPerformer():
		a.SuccessFactors = SuccessFactors(r)
		a.ClearLanguage = ClearLanguage(r.Text())
	case a.LowPerformer():
		a.RiskFactors = RiskFactors(r)
	}
	return a
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
