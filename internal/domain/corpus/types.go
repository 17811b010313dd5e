// Package corpus models historical protocol documents: parsing raw text into
// a ProtocolRecord, scoring how successful the protocol was, and the Success
// Patterns mined from high-scoring documents.
package corpus

import (
	"context"
	"io"
	"time"
)

// Fallback classifications.
const (
	AreaGeneral  = "general"
	PhaseUnknown = "Unknown Phase"
	PhaseGeneral = "general"
)

// MinTextLength is the shortest document the parser accepts.
const MinTextLength = 200

// Amendment is one entry of a protocol's amendment history.
type Amendment struct {
	Number      string `yaml:"number" json:"number"`
	Description string `yaml:"description" json:"description"`
	Scope       string `yaml:"scope" json:"scope"` // global, local or unknown
}

// Metadata is the optional sidecar describing a document. Set fields override
// what the parser extracts from the text.
type Metadata struct {
	Title           string      `yaml:"title"`
	Phase           string      `yaml:"phase"`
	TherapeuticArea string      `yaml:"therapeutic_area"`
	Compound        string      `yaml:"compound"`
	Indication      string      `yaml:"indication"`
	StudyType       string      `yaml:"study_type"`
	Sponsor         string      `yaml:"sponsor"`
	ApprovalStatus  string      `yaml:"approval_status"`
	Version         string      `yaml:"version"`
	OriginalDate    string      `yaml:"original_date"`
	CurrentDate     string      `yaml:"current_date"`
	Amendments      []Amendment `yaml:"amendments"`
	AmendmentCount  *int        `yaml:"amendment_count"`
}

// Record is a parsed protocol document. It is immutable after Parse.
type Record struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Phase            string      `json:"phase"`
	TherapeuticArea  string      `json:"therapeutic_area"`
	Compound         string      `json:"compound"`
	Indication       string      `json:"indication"`
	StudyType        string      `json:"study_type"`
	Sponsor          string      `json:"sponsor"`
	ApprovalStatus   string      `json:"approval_status,omitempty"`
	CompletionStatus string      `json:"completion_status"`
	OriginalDate     *time.Time  `json:"original_date,omitempty"`
	CurrentDate      *time.Time  `json:"current_date,omitempty"`
	Version          string      `json:"version"`
	Amendments       []Amendment `json:"amendments"`
	AmendmentCount   int         `json:"amendment_count"`
	TextLength       int         `json:"text_length"`
	Sections         []string    `json:"sections"`
	Endpoints        []string    `json:"endpoints"`

	text string
}

// Text returns the raw document text.
func (r *Record) Text() string { return r.text }

// DevelopmentDuration is the span between the original and current dates,
// zero when either is unknown.
func (r *Record) DevelopmentDuration() time.Duration {
	if r.OriginalDate == nil || r.CurrentDate == nil {
		return 0
	}
	return r.CurrentDate.Sub(*r.OriginalDate)
}

// PatternType distinguishes wording patterns from design patterns.
type PatternType string

const (
	PatternLanguage   PatternType = "language"
	PatternStructural PatternType = "structural"
)

// SuccessPattern is a phrase or design trait correlated with successful
// protocols.
type SuccessPattern struct {
	ID              string      `json:"id"`
	Type            PatternType `json:"type"`
	Text            string      `json:"text"`
	Correlation     float64     `json:"success_correlation"`
	TherapeuticArea string      `json:"therapeutic_area"`
	Phase           string      `json:"phase"`
	Frequency       int         `json:"frequency"`
	Confidence      float64     `json:"confidence"`
	Examples        []string    `json:"examples"`
}

// Source enumerates and opens corpus documents.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
}

// MetadataSource is implemented by sources that can serve sidecar metadata.
// Metadata returns (nil, nil) when a document has none.
type MetadataSource interface {
	Metadata(ctx context.Context, id string) (*Metadata, error)
}

// PatternStore persists consolidated success patterns.
type PatternStore interface {
	SavePatterns(ctx context.Context, patterns []SuccessPattern) error
	ListPatterns(ctx context.Context) ([]SuccessPattern, error)
}
