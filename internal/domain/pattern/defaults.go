package pattern

// Default returns the built-in catalogue. It always validates.
func Default() *Library {
	lib, err := newLibrary(defaultContexts(), defaultRules(), defaultRedFlags(), defaultFeasibility(), defaultLexicons())
	if err != nil {
		panic("pattern: built-in library is invalid: " + err.Error())
	}
	return lib
}

func defaultContexts() []ContextDefinition {
	return []ContextDefinition{
		{
			Name: ContextDosing,
			Seeds: []SeedPattern{
				{Phrase: "as needed", Weight: 0.9},
				{Phrase: "as tolerated", Weight: 0.8},
				{Phrase: "daily", Weight: 0.7},
				{Phrase: "twice daily", Weight: 0.7},
			},
			Keywords: []string{"dose", "dosing", "mg", "administration", "medication", "drug", "tablet", "oral"},
			Templates: []string{
				"Patients will receive 10 mg orally once daily",
				"Administer medication every 12 hours with food",
				"Dose escalation based on toxicity",
			},
			Complexity: 0.8,
		},
		{
			Name: ContextEndpoints,
			Seeds: []SeedPattern{
				{Phrase: "response rate", Weight: 0.9},
				{Phrase: "survival", Weight: 0.9},
				{Phrase: "improvement", Weight: 0.8},
				{Phrase: "significant", Weight: 0.8},
			},
			Keywords: []string{"primary", "endpoint", "efficacy", "outcome", "assessment", "measurement"},
			Templates: []string{
				"Primary endpoint is overall survival",
				"Objective response rate per RECIST criteria",
				"Time to disease progression",
			},
			Complexity: 0.9,
		},
		{
			Name: ContextSafety,
			Seeds: []SeedPattern{
				{Phrase: "safe", Weight: 0.95},
				{Phrase: "no side effects", Weight: 0.95},
				{Phrase: "monitoring", Weight: 0.7},
			},
			Keywords: []string{"adverse", "toxicity", "safety", "monitor", "risk"},
			Templates: []string{
				"Monitor for adverse events and toxicity",
				"Safety assessments every 4 weeks",
				"Serious adverse event reporting",
			},
			Complexity: 0.85,
		},
		{
			Name: ContextProcedures,
			Seeds: []SeedPattern{
				{Phrase: "daily visits", Weight: 0.9},
				{Phrase: "frequent monitoring", Weight: 0.8},
				{Phrase: "extensive testing", Weight: 0.8},
			},
			Keywords: []string{"visit", "procedure", "assessment", "laboratory", "imaging"},
			Templates: []string{
				"Laboratory assessments every visit",
				"Imaging studies at baseline and week 8",
				"Physical examination and vital signs",
			},
			Complexity: 0.7,
		},
		{
			Name: ContextStatistics,
			Seeds: []SeedPattern{
				{Phrase: "appropriate sample size", Weight: 0.9},
				{Phrase: "statistical analysis", Weight: 0.8},
				{Phrase: "significance", Weight: 0.7},
			},
			Keywords: []string{"power", "sample", "analysis", "statistical", "p-value"},
			Templates: []string{
				"Statistical analysis with 80% power",
				"Sample size calculation assuming 20% response rate",
				"Interim analysis when 50% of events occur",
			},
			Complexity: 0.9,
		},
	}
}

func defaultRules() []Rule {
	return []Rule{
		{
			Phrase:       "as needed",
			Weight:       0.9,
			Replacements: []string{"every 12 hours ± 1 hour", "PRN with minimum 6-hour interval"},
			Rationale:    "Open-ended frequency is interpreted differently across sites; state an interval or a minimum spacing.",
			Category:     CategoryClarity,
			Severity:     SeverityMedium,
			Contexts:     []string{ContextDosing, ContextProcedures, ContextSafety},
		},
		{
			Phrase:       "as tolerated",
			Weight:       0.8,
			Replacements: []string{"until dose-limiting toxicity per CTCAE v5.0", "up to the maximum tolerated dose defined in Section 6"},
			Rationale:    "Tolerability needs an objective stopping criterion.",
			Category:     CategoryClarity,
			Severity:     SeverityMedium,
			Contexts:     []string{ContextDosing},
		},
		{
			Phrase:       "twice daily",
			Weight:       0.7,
			Replacements: []string{"every 12 hours (± 2 hours)"},
			Rationale:    "Give the dosing interval and its tolerance window.",
			Category:     CategoryClarity,
			Severity:     SeverityLow,
			Contexts:     []string{ContextDosing},
		},
		{
			Phrase:       "response rate",
			Weight:       0.9,
			Replacements: []string{"objective response rate per RECIST v1.1 criteria"},
			Rationale:    "Endpoints must name the assessment criteria.",
			Category:     CategoryClarity,
			Severity:     SeverityMedium,
			Contexts:     []string{ContextEndpoints},
		},
		{
			Phrase:       "survival",
			Weight:       0.9,
			Replacements: []string{"overall survival, defined as time from randomization to death from any cause"},
			Rationale:    "Survival endpoints need a start event and an end event.",
			Category:     CategoryClarity,
			Severity:     SeverityMedium,
			Contexts:     []string{ContextEndpoints},
		},
		{
			Phrase:       "improvement",
			Weight:       0.8,
			Replacements: []string{"≥30% reduction from baseline in the primary symptom score at Week 12"},
			Rationale:    "Quantify the threshold and the time point.",
			Category:     CategoryClarity,
			Severity:     SeverityMedium,
			Contexts:     []string{ContextEndpoints},
		},
		{
			Phrase:       "significant",
			Weight:       0.8,
			Replacements: []string{"statistically significant (two-sided p < 0.05)", "clinically meaningful (pre-specified minimal important difference)"},
			Rationale:    "Distinguish statistical from clinical significance.",
			Category:     CategoryClarity,
			Severity:     SeverityMedium,
			Contexts:     []string{ContextEndpoints, ContextStatistics},
		},
		{
			Phrase:       "monitoring",
			Weight:       0.7,
			Replacements: []string{"safety assessments per CTCAE v5.0 at each scheduled visit"},
			Rationale:    "Name the grading system and the schedule.",
			Category:     CategoryClarity,
			Severity:     SeverityLow,
			Contexts:     []string{ContextSafety},
		},
		{
			Phrase:       "no side effects",
			Weight:       0.95,
			Replacements: []string{"no treatment-emergent adverse events were observed in the Phase I cohort"},
			Rationale:    "Absolute safety claims are not supportable.",
			Category:     CategoryRegulatory,
			Severity:     SeverityHigh,
			Contexts:     []string{ContextSafety},
			Guideline:    "ICH E6(R2) 4.8.10",
		},
		{
			Phrase:       "daily visits",
			Weight:       0.9,
			Replacements: []string{"visits on Days 1, 8, 15 and 22", "weekly visits with remote check-ins between visits"},
			Rationale:    "Daily on-site visits drive dropout and site burden.",
			Category:     CategoryFeasibility,
			Severity:     SeverityHigh,
			Contexts:     []string{ContextProcedures},
			Concern:      ConcernHighFrequency,
		},
		{
			Phrase:       "frequent monitoring",
			Weight:       0.8,
			Replacements: []string{"monitoring every 2 weeks during Cycle 1, then every 4 weeks"},
			Rationale:    "State the monitoring cadence.",
			Category:     CategoryClarity,
			Severity:     SeverityMedium,
			Contexts:     []string{ContextProcedures, ContextSafety},
		},
		{
			Phrase:       "extensive testing",
			Weight:       0.8,
			Replacements: []string{"the laboratory panel listed in Appendix B"},
			Rationale:    "Unbounded test batteries are hard to budget and schedule.",
			Category:     CategoryFeasibility,
			Severity:     SeverityMedium,
			Contexts:     []string{ContextProcedures},
			Concern:      ConcernComplex,
		},
		{
			Phrase:       "appropriate sample size",
			Weight:       0.9,
			Replacements: []string{"a sample size of N per arm providing 80% power at two-sided α = 0.05"},
			Rationale:    "Sample size needs its power assumptions.",
			Category:     CategoryClarity,
			Severity:     SeverityHigh,
			Contexts:     []string{ContextStatistics},
		},
		{
			Phrase:       "statistical analysis",
			Weight:       0.8,
			Replacements: []string{"the analysis described in the Statistical Analysis Plan, using a stratified log-rank test"},
			Rationale:    "Name the primary analysis method.",
			Category:     CategoryClarity,
			Severity:     SeverityMedium,
			Contexts:     []string{ContextStatistics},
		},
		{
			Phrase:       "regular",
			Weight:       0.5,
			Replacements: []string{"every 4 weeks"},
			Rationale:    "Replace vague cadence with a fixed interval.",
			Category:     CategoryStyle,
			Severity:     SeverityLow,
		},
		{
			Phrase:       "appropriate",
			Weight:       0.5,
			Replacements: []string{"as defined in Section 5"},
			Rationale:    "Point to the defining section instead of a judgement word.",
			Category:     CategoryStyle,
			Severity:     SeverityLow,
		},
	}
}

func defaultRedFlags() []Rule {
	flag := func(phrase string, weight float64, guideline string, replacements ...string) Rule {
		return Rule{
			Phrase:       phrase,
			Weight:       weight,
			Replacements: replacements,
			Rationale:    "Promotional or absolute claims are flagged by regulators.",
			Category:     CategoryRegulatory,
			Severity:     SeverityHigh,
			Guideline:    guideline,
		}
	}
	return []Rule{
		flag("safe", 0.95, "FDA 21 CFR 312.7", "well-tolerated", "demonstrated acceptable safety profile"),
		flag("proven", 0.9, "FDA 21 CFR 312.7", "demonstrated efficacy", "evidence supports"),
		flag("guaranteed", 0.9, "FDA 21 CFR 312.7", "expected based on prior studies"),
		flag("100%", 0.85, "FDA 21 CFR 312.7", "high response rate observed"),
		flag("no side effects", 0.95, "ICH E6(R2) 4.8.10", "no treatment-emergent adverse events observed to date"),
	}
}

func defaultFeasibility() []Rule {
	contexts := []string{ContextProcedures, ContextDosing}
	flag := func(phrase, concern string, severity Severity, replacement string) Rule {
		return Rule{
			Phrase:       phrase,
			Weight:       0.6,
			Replacements: []string{replacement},
			Rationale:    "May strain site capacity or participant burden.",
			Category:     CategoryFeasibility,
			Severity:     severity,
			Contexts:     contexts,
			Concern:      concern,
		}
	}
	return []Rule{
		flag("daily", ConcernHighFrequency, SeverityMedium, "at each scheduled visit"),
		flag("twice daily", ConcernHighFrequency, SeverityMedium, "once daily where pharmacokinetics allow"),
		flag("frequent", ConcernHighFrequency, SeverityMedium, "every 2 weeks"),
		flag("extensive", ConcernComplex, SeverityMedium, "targeted"),
		flag("complex", ConcernComplex, SeverityMedium, "standardized"),
		flag("specialized", ConcernComplex, SeverityLow, "standard-of-care"),
		flag("certified", ConcernResources, SeverityLow, "trained per the study manual"),
		flag("expert", ConcernResources, SeverityLow, "qualified site staff"),
		flag("immediate", ConcernTimeline, SeverityMedium, "within 24 hours"),
		flag("urgent", ConcernTimeline, SeverityMedium, "within 24 hours"),
		flag("stat", ConcernTimeline, SeverityLow, "within 1 hour"),
	}
}

func defaultLexicons() []Lexicon {
	return []Lexicon{
		{
			Name:     "clinical_trial",
			Contexts: []string{ContextEndpoints, ContextProcedures},
			Terms: []string{"randomized", "blinded", "placebo", "efficacy", "safety", "adverse",
				"protocol", "endpoint", "participant", "enrollment", "consent"},
		},
		{
			Name:     "regulatory",
			Contexts: []string{ContextSafety, ContextEndpoints},
			Terms: []string{"fda", "ich", "gcp", "compliance", "guidance", "submission",
				"approval", "regulatory", "ctcae", "recist"},
		},
		{
			Name:     "statistics",
			Contexts: []string{ContextStatistics},
			Terms: []string{"power", "significance", "confidence", "hypothesis", "p-value",
				"sample", "analysis", "statistical", "interim"},
		},
		{
			Name:     "operations",
			Contexts: []string{ContextProcedures},
			Terms:    []string{"site", "capacity", "feasible", "timeline", "resources", "training", "monitor", "logistics"},
		},
	}
}
