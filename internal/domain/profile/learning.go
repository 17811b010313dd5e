package profile

import (
	"sort"
	"time"

	"github.com/turtacn/ProtocolIQ/internal/domain/lexical"
)

// Config holds the learning and scoring parameters.
type Config struct {
	LearningRate     float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	ForgettingFactor float64 `mapstructure:"forgetting_factor" yaml:"forgetting_factor"`
	DomainIncrement  float64 `mapstructure:"domain_increment" yaml:"domain_increment"`
	WarmThreshold    int     `mapstructure:"warm_threshold" yaml:"warm_threshold"`
	AvoidedPenalty   float64 `mapstructure:"avoided_penalty" yaml:"avoided_penalty"`
	RejectionStep    float64 `mapstructure:"rejection_step" yaml:"rejection_step"`
	RejectionCap     float64 `mapstructure:"rejection_cap" yaml:"rejection_cap"`
	MaxRecent        int     `mapstructure:"max_recent" yaml:"max_recent"`
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		LearningRate:     0.1,
		ForgettingFactor: 0.95,
		DomainIncrement:  0.1,
		WarmThreshold:    10,
		AvoidedPenalty:   0.2,
		RejectionStep:    0.1,
		RejectionCap:     0.5,
		MaxRecent:        50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		c.LearningRate = d.LearningRate
	}
	if c.ForgettingFactor <= 0 || c.ForgettingFactor >= 1 {
		c.ForgettingFactor = d.ForgettingFactor
	}
	if c.DomainIncrement <= 0 {
		c.DomainIncrement = d.DomainIncrement
	}
	if c.WarmThreshold <= 0 {
		c.WarmThreshold = d.WarmThreshold
	}
	if c.AvoidedPenalty <= 0 {
		c.AvoidedPenalty = d.AvoidedPenalty
	}
	if c.RejectionStep <= 0 {
		c.RejectionStep = d.RejectionStep
	}
	if c.RejectionCap <= 0 {
		c.RejectionCap = d.RejectionCap
	}
	if c.MaxRecent <= 0 {
		c.MaxRecent = d.MaxRecent
	}
	return c
}

func outcome(a ActionType) (float64, bool) {
	switch a {
	case ActionAccept:
		return 1, true
	case ActionModify:
		return 0.5, true
	case ActionReject:
		return 0, true
	}
	return 0, false
}

// ApplyAction returns a copy of p updated with e. A nil p starts from a new
// profile. The input profile is never mutated.
func ApplyAction(p *Profile, e ActionEvent, cfg Config) *Profile {
	cfg = cfg.withDefaults()
	ts := e.Timestamp.UTC()
	if e.Timestamp.IsZero() {
		ts = time.Now().UTC()
	}
	var next *Profile
	if p == nil {
		next = New(e.UserID, ts)
	} else {
		next = p.Clone()
		next.ensureMaps()
	}
	alpha := cfg.LearningRate

	switch e.Action {
	case ActionAccept:
		text := e.SuggestedText
		if text == "" {
			text = e.FinalText
		}
		if text != "" {
			next.PreferredComplexity = ema(next.PreferredComplexity, Complexity(text), alpha)
			next.PreferredFormality = ema(next.PreferredFormality, Formality(text), alpha)
			for _, ph := range KeyPhrases(text) {
				next.CommonPhrases.Add(ph)
				next.AvoidedPhrases.Remove(ph)
			}
		}
		domain := IdentifyDomain(e.OriginalText + " " + text)
		next.DomainExpertise[domain] = clamp01(expertise(next, domain) + cfg.DomainIncrement)

	case ActionReject:
		for _, ph := range KeyPhrases(e.SuggestedText) {
			if !next.CommonPhrases.Has(ph) {
				next.AvoidedPhrases.Add(ph)
			}
		}
		if e.Category != "" {
			next.CorrectionPatterns[e.Category]++
		}

	case ActionModify:
		if e.FinalText != "" && e.SuggestedText != "" {
			delta := Complexity(e.FinalText) - Complexity(e.SuggestedText)
			next.PreferredComplexity = clamp01(next.PreferredComplexity + delta*alpha)
			next.PreferredFormality = ema(next.PreferredFormality, Formality(e.FinalText), alpha)
		}
		kept := NewPhraseSet(KeyPhrases(e.FinalText)...)
		for p := range kept {
			next.CommonPhrases.Add(p)
			next.AvoidedPhrases.Remove(p)
		}
		for _, ph := range KeyPhrases(e.SuggestedText) {
			if !kept.Has(ph) && !next.CommonPhrases.Has(ph) {
				next.AvoidedPhrases.Add(ph)
			}
		}
		if e.Category != "" {
			next.ModifiedCategories[e.Category]++
		}
	}

	if o, ok := outcome(e.Action); ok {
		lambda := cfg.ForgettingFactor
		next.OverallAcceptance = clamp01(lambda*next.OverallAcceptance + (1-lambda)*o)
		if e.Context != "" {
			prev, seen := next.ContextAcceptance[e.Context]
			if !seen {
				prev = DefaultAcceptance
			}
			next.ContextAcceptance[e.Context] = clamp01(lambda*prev + (1-lambda)*o)
		}
	}

	next.ActionCount++
	next.Recent = append(next.Recent, Activity{Action: e.Action, Context: e.Context, Category: e.Category, Timestamp: ts})
	if over := len(next.Recent) - cfg.MaxRecent; over > 0 {
		next.Recent = append([]Activity{}, next.Recent[over:]...)
	}
	next.UpdatedAt = ts
	return next
}

func ema(prev, obs, alpha float64) float64 {
	return clamp01((1-alpha)*prev + alpha*obs)
}

func expertise(p *Profile, domain string) float64 {
	if v, ok := p.DomainExpertise[domain]; ok {
		return v
	}
	return DefaultExpertise
}

// Candidate is what the scorer asks the profile about.
type Candidate struct {
	Text     string
	Phrase   string
	Context  string
	Category string
}

// Score returns the personalization factor for c in [0,1]: the mean of the
// avoided-phrase factor, style closeness, domain expertise and the
// rejection-history factor for c's category.
func Score(p *Profile, c Candidate, cfg Config) float64 {
	cfg = cfg.withDefaults()
	if p == nil {
		return DefaultAcceptance
	}
	hits := 0
	for ph := range p.AvoidedPhrases {
		if lexical.Contains(c.Text, ph) || normalize(c.Phrase) == ph {
			hits++
		}
	}
	avoided := clamp01(1 - cfg.AvoidedPenalty*float64(hits))

	style := (clamp01(1-abs(Complexity(c.Text)-p.PreferredComplexity)) +
		clamp01(1-abs(Formality(c.Text)-p.PreferredFormality))) / 2

	domain := expertise(p, IdentifyDomain(c.Phrase+" "+c.Text))

	rejections := float64(p.CorrectionPatterns[c.Category]) * cfg.RejectionStep
	if rejections > cfg.RejectionCap {
		rejections = cfg.RejectionCap
	}
	history := 1 - rejections

	return clamp01((avoided + style + domain + history) / 4)
}

// Rejections returns how often suggestions of category were rejected.
func (p *Profile) Rejections(category string) int {
	if p == nil {
		return 0
	}
	return p.CorrectionPatterns[category]
}

// Insights summarizes a profile for display.
type Insights struct {
	UserID              string             `json:"user_id" yaml:"user_id"`
	Stage               Stage              `json:"stage" yaml:"stage"`
	LearningStatus      string             `json:"learning_status" yaml:"learning_status"`
	ActionCount         int                `json:"action_count" yaml:"action_count"`
	OverallAcceptance   float64            `json:"overall_acceptance" yaml:"overall_acceptance"`
	PreferredComplexity float64            `json:"preferred_complexity" yaml:"preferred_complexity"`
	PreferredFormality  float64            `json:"preferred_formality" yaml:"preferred_formality"`
	TopDomains          []DomainScore      `json:"top_domains" yaml:"top_domains"`
	ContextAcceptance   map[string]float64 `json:"context_acceptance" yaml:"context_acceptance"`
	FrequentRejections  []CategoryCount    `json:"frequent_rejections" yaml:"frequent_rejections"`
	FrequentEdits       []CategoryCount    `json:"frequent_edits" yaml:"frequent_edits"`
	RecentActivity      map[ActionType]int `json:"recent_activity" yaml:"recent_activity"`
	CommonPhrases       []string           `json:"common_phrases" yaml:"common_phrases"`
	AvoidedPhrases      []string           `json:"avoided_phrases" yaml:"avoided_phrases"`
	Recent              []Activity         `json:"recent" yaml:"recent"`
}

// DomainScore pairs a domain with the user's expertise in it.
type DomainScore struct {
	Domain string  `json:"domain" yaml:"domain"`
	Score  float64 `json:"score" yaml:"score"`
}

// CategoryCount pairs a correction pattern with its count.
type CategoryCount struct {
	Category string `json:"category" yaml:"category"`
	Count    int    `json:"count" yaml:"count"`
}

const (
	insightTopN    = 3
	activityWindow = 30 * 24 * time.Hour

	LearningActive  = "active"
	LearningLimited = "limited"
)

// BuildInsights derives the display summary of p as of now. A nil profile
// yields an unseen summary with default values.
func BuildInsights(userID string, p *Profile, now time.Time, cfg Config) Insights {
	cfg = cfg.withDefaults()
	if p == nil {
		return Insights{
			UserID:              userID,
			Stage:               StageUnseen,
			LearningStatus:      LearningLimited,
			RecentActivity:      map[ActionType]int{},
			OverallAcceptance:   DefaultAcceptance,
			PreferredComplexity: DefaultComplexity,
			PreferredFormality:  DefaultFormality,
			TopDomains:          []DomainScore{},
			ContextAcceptance:   map[string]float64{},
			FrequentRejections:  []CategoryCount{},
			FrequentEdits:       []CategoryCount{},
			CommonPhrases:       []string{},
			AvoidedPhrases:      []string{},
			Recent:              []Activity{},
		}
	}
	in := Insights{
		UserID:              p.UserID,
		Stage:               StageOf(p, cfg.WarmThreshold),
		LearningStatus:      LearningLimited,
		RecentActivity:      map[ActionType]int{},
		ActionCount:         p.ActionCount,
		OverallAcceptance:   p.OverallAcceptance,
		PreferredComplexity: p.PreferredComplexity,
		PreferredFormality:  p.PreferredFormality,
		ContextAcceptance:   make(map[string]float64, len(p.ContextAcceptance)),
		CommonPhrases:       p.CommonPhrases.Sorted(),
		AvoidedPhrases:      p.AvoidedPhrases.Sorted(),
		Recent:              append([]Activity{}, p.Recent...),
	}
	for k, v := range p.ContextAcceptance {
		in.ContextAcceptance[k] = v
	}
	if p.ActionCount > cfg.WarmThreshold {
		in.LearningStatus = LearningActive
	}
	cutoff := now.Add(-activityWindow)
	for _, a := range p.Recent {
		if !a.Timestamp.Before(cutoff) {
			in.RecentActivity[a.Action]++
		}
	}

	domains := make([]DomainScore, 0, len(p.DomainExpertise))
	for d, s := range p.DomainExpertise {
		domains = append(domains, DomainScore{Domain: d, Score: s})
	}
	sort.Slice(domains, func(i, j int) bool {
		if domains[i].Score != domains[j].Score {
			return domains[i].Score > domains[j].Score
		}
		return domains[i].Domain < domains[j].Domain
	})
	if len(domains) > insightTopN {
		domains = domains[:insightTopN]
	}
	in.TopDomains = domains

	in.FrequentRejections = topCategories(p.CorrectionPatterns)
	in.FrequentEdits = topCategories(p.ModifiedCategories)
	return in
}

// topCategories orders counts descending, then by name, keeping insightTopN.
func topCategories(counts map[string]int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > insightTopN {
		out = out[:insightTopN]
	}
	return out
}
