package corpus

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/ProtocolIQ/internal/domain/lexical"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

type indicatorSet struct {
	name  string
	terms []string
}

// Declaration order is the tie-break priority.
var phaseIndicators = []indicatorSet{
	{"Phase I", []string{"phase i", "phase 1", "first in human", "dose escalation", "maximum tolerated dose",
		"mtd", "dose limiting toxicity", "dlt", "safety run-in", "dose finding"}},
	{"Phase II", []string{"phase ii", "phase 2", "efficacy", "response rate", "objective response",
		"progression free survival", "preliminary efficacy", "proof of concept"}},
	{"Phase III", []string{"phase iii", "phase 3", "pivotal", "registration", "confirmatory",
		"superiority", "non-inferiority", "overall survival", "randomized controlled"}},
	{"Phase IV", []string{"phase iv", "phase 4", "post-marketing", "real world", "observational",
		"registry", "post-approval", "pharmacovigilance"}},
}

var areaIndicators = []indicatorSet{
	{"oncology", []string{"cancer", "tumor", "oncology", "carcinoma", "lymphoma", "melanoma", "sarcoma",
		"metastatic", "malignant", "neoplasm", "chemotherapy", "targeted therapy", "immunotherapy",
		"solid tumor", "hematologic", "leukemia"}},
	{"neurology", []string{"neurological", "alzheimer", "parkinson", "multiple sclerosis", "epilepsy",
		"stroke", "dementia", "cognitive", "neurodegeneration", "brain", "cns"}},
	{"cardiology", []string{"cardiac", "cardiovascular", "heart", "myocardial", "coronary", "hypertension",
		"heart failure", "arrhythmia", "atherosclerosis", "vascular"}},
	{"diabetes", []string{"diabetes", "diabetic", "glucose", "insulin", "glycemic", "hba1c",
		"type 1 diabetes", "type 2 diabetes", "metabolic"}},
	{"immunology", []string{"autoimmune", "rheumatoid arthritis", "lupus", "inflammatory bowel",
		"crohn", "psoriasis", "immune", "immunosuppressive"}},
	{"infectious_disease", []string{"infection", "infectious", "antimicrobial", "antibiotic", "antiviral",
		"hepatitis", "hiv", "tuberculosis", "bacterial", "viral"}},
	{"respiratory", []string{"asthma", "copd", "pulmonary", "respiratory", "lung", "bronchial",
		"cystic fibrosis", "pneumonia", "pulmonary fibrosis"}},
}

var amendmentIndicators = []string{
	"protocol amendment", "substantial amendment", "protocol modification",
	"revised protocol", "protocol update",
}

var (
	officialTitleRe = regexp.MustCompile(`(?i)official title:\s*([^\n]+)`)
	compoundRes     = []*regexp.Regexp{
		regexp.MustCompile(`(?i)test drug:\s*([^\n/]+)`),
		regexp.MustCompile(`(?i)study drug:\s*([^\n/]+)`),
		regexp.MustCompile(`(?i)compound:\s*([^\n/]+)`),
		regexp.MustCompile(`\b([A-Z]{2,}[- ]?\d{4,})\b`),
	}
	indicationRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)in (?:subjects|patients) with ([^.\n]+)`),
		regexp.MustCompile(`(?i)indication:\s*([^\n]+)`),
		regexp.MustCompile(`(?i)condition:\s*([^\n]+)`),
	}
	sponsorRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)sponsor:\s*([^\n]+)`),
		regexp.MustCompile(`(?i)company:\s*([^\n]+)`),
	}
	versionRe   = regexp.MustCompile(`(?i)version\s+(\d+(?:\.\d+)?)`)
	amendmentRe = regexp.MustCompile(`(?i)amendment\s+(?:no\.?\s*)?(\d+)\s*[(,:-]\s*([^)\n,]+)`)
	dateRes     = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2} [A-Z][a-z]+ \d{4}\b`),
		regexp.MustCompile(`\b[A-Z][a-z]+ \d{1,2}, \d{4}\b`),
	}
	dateLayouts      = []string{"2006-01-02", "2 Jan 2006", "2 January 2006", "January 2, 2006", "Jan 2, 2006"}
	numberedHeadRe   = regexp.MustCompile(`^\d+(\.\d+)*\.?\s+[A-Z][^.]{3,}$`)
	upperHeadRe      = regexp.MustCompile(`^[A-Z][A-Z ]{5,30}$`)
	endpointRe       = regexp.MustCompile(`(?i)(primary|secondary|exploratory)\s+endpoints?:\s*([^.]{10,200})`)
	completedTerms   = []string{"completed", "finished", "concluded"}
	ongoingTerms     = []string{"ongoing", "recruiting"}
	terminatedTerms  = []string{"terminated", "discontinued", "suspended"}
	maxSections      = 20
	maxTitleLength   = 200
	maxFieldLength   = 100
	unknownCompound  = "Unknown Compound"
	unknownIndic     = "Unknown Indication"
	unknownSponsor   = "Unknown Sponsor"
	unknownStudyType = "Unknown Design"
)

// Completion statuses derived from the text.
const (
	StatusCompleted  = "completed"
	StatusOngoing    = "ongoing"
	StatusTerminated = "terminated"
	StatusUnknown    = "unknown"
)

// ParseMetadata decodes a YAML sidecar.
func ParseMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.CodeDocumentUnparseable, "invalid document metadata")
	}
	return &m, nil
}

// Parse builds a Record from raw text and optional sidecar metadata. Texts
// shorter than MinTextLength are rejected with CodeDocumentUnparseable.
func Parse(id, text string, meta *Metadata) (*Record, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < MinTextLength {
		return nil, errors.Newf(errors.CodeDocumentUnparseable, "document %s too short (%d chars)", id, len(trimmed))
	}
	if meta == nil {
		meta = &Metadata{}
	}

	r := &Record{
		ID:               id,
		Title:            pick(meta.Title, extractTitle(text)),
		Phase:            pick(meta.Phase, vote(text, phaseIndicators, PhaseUnknown)),
		TherapeuticArea:  pick(meta.TherapeuticArea, vote(text, areaIndicators, AreaGeneral)),
		Compound:         pick(meta.Compound, firstMatch(text, compoundRes, unknownCompound)),
		Indication:       pick(meta.Indication, firstMatch(text, indicationRes, unknownIndic)),
		StudyType:        pick(meta.StudyType, studyType(text)),
		Sponsor:          pick(meta.Sponsor, firstMatch(text, sponsorRes, unknownSponsor)),
		ApprovalStatus:   strings.ToLower(strings.TrimSpace(meta.ApprovalStatus)),
		CompletionStatus: completionStatus(text),
		Version:          pick(meta.Version, extractVersion(text)),
		TextLength:       len(text),
		Sections:         extractSections(text),
		Endpoints:        extractEndpoints(text),
		text:             text,
	}

	original, current := extractDates(text)
	if t, ok := parseDate(meta.OriginalDate); ok {
		original = &t
	}
	if t, ok := parseDate(meta.CurrentDate); ok {
		current = &t
	}
	r.OriginalDate, r.CurrentDate = original, current

	switch {
	case len(meta.Amendments) > 0:
		r.Amendments = append([]Amendment{}, meta.Amendments...)
	default:
		r.Amendments = extractAmendments(text)
	}
	switch {
	case meta.AmendmentCount != nil:
		r.AmendmentCount = *meta.AmendmentCount
	case len(r.Amendments) > 0:
		r.AmendmentCount = len(r.Amendments)
	default:
		r.AmendmentCount = countAny(text, amendmentIndicators)
	}
	return r, nil
}

func pick(override, extracted string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return extracted
}

func extractTitle(text string) string {
	if m := officialTitleRe.FindStringSubmatch(text); m != nil {
		return truncate(strings.TrimSpace(m[1]), maxTitleLength)
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, maxTitleLength)
		}
	}
	return ""
}

// vote returns the set with the most indicator occurrences. Ties keep the
// earlier set; no hits returns fallback.
func vote(text string, sets []indicatorSet, fallback string) string {
	best, bestScore := fallback, 0
	for _, s := range sets {
		if n := countAny(text, s.terms); n > bestScore {
			best, bestScore = s.name, n
		}
	}
	return best
}

func countAny(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		n += lexical.Count(text, t)
	}
	return n
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if lexical.Contains(text, t) {
			return true
		}
	}
	return false
}

func firstMatch(text string, res []*regexp.Regexp, fallback string) string {
	for _, re := range res {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := strings.TrimSpace(m[1])
			if len(v) > 2 && len(v) <= maxFieldLength {
				return v
			}
		}
	}
	return fallback
}

func studyType(text string) string {
	switch {
	case lexical.Contains(text, "randomized") && lexical.Contains(text, "controlled"):
		return "Randomized Controlled Trial"
	case lexical.Contains(text, "randomized"):
		return "Randomized Trial"
	case containsAny(text, []string{"open label", "open-label"}):
		return "Open-Label"
	case containsAny(text, []string{"double blind", "double-blind"}):
		return "Double-Blind"
	case lexical.Contains(text, "single arm"):
		return "Single-Arm"
	case lexical.Contains(text, "dose escalation"):
		return "Dose Escalation"
	}
	return unknownStudyType
}

func completionStatus(text string) string {
	switch {
	case containsAny(text, completedTerms):
		return StatusCompleted
	case containsAny(text, terminatedTerms):
		return StatusTerminated
	case containsAny(text, ongoingTerms):
		return StatusOngoing
	}
	return StatusUnknown
}

func extractVersion(text string) string {
	if m := versionRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return "1.0"
}

func extractAmendments(text string) []Amendment {
	var out []Amendment
	seen := make(map[string]bool)
	for _, m := range amendmentRe.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		desc := strings.TrimSpace(m[2])
		scope := "unknown"
		switch lower := strings.ToLower(desc); {
		case strings.Contains(lower, "global"):
			scope = "global"
		case strings.Contains(lower, "local"):
			scope = "local"
		}
		out = append(out, Amendment{Number: m[1], Description: desc, Scope: scope})
	}
	return out
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// extractDates returns the earliest and latest parseable dates in text.
func extractDates(text string) (*time.Time, *time.Time) {
	var found []time.Time
	for _, re := range dateRes {
		for _, m := range re.FindAllString(text, -1) {
			if t, ok := parseDate(m); ok {
				found = append(found, t)
			}
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Before(found[j]) })
	first, last := found[0], found[len(found)-1]
	return &first, &last
}

func extractSections(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 5 || len(line) >= maxFieldLength {
			continue
		}
		if numberedHeadRe.MatchString(line) || upperHeadRe.MatchString(line) {
			out = append(out, line)
			if len(out) == maxSections {
				break
			}
		}
	}
	return out
}

func extractEndpoints(text string) []string {
	var out []string
	for _, m := range endpointRe.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.ToLower(m[1])+": "+truncate(strings.TrimSpace(m[2]), maxFieldLength))
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}

// ClassifyArea returns the therapeutic area with the most indicator hits in
// text, AreaGeneral when none match.
func ClassifyArea(text string) string { return vote(text, areaIndicators, AreaGeneral) }

// ClassifyPhase returns the trial phase with the most indicator hits in text,
// PhaseUnknown when none match.
func ClassifyPhase(text string) string { return vote(text, phaseIndicators, PhaseUnknown) }
