// Package profile implements the per-user preference model: the profile
// record, its incremental update rule, the personalization score consumed by
// the suggestion scorer, and the record-store port used to persist it.
package profile

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// ActionType is what a user did with a suggestion.
type ActionType string

const (
	ActionAccept ActionType = "accept"
	ActionReject ActionType = "reject"
	ActionModify ActionType = "modify"
	ActionIgnore ActionType = "ignore"
)

// Valid reports whether a is a known action type.
func (a ActionType) Valid() bool {
	switch a {
	case ActionAccept, ActionReject, ActionModify, ActionIgnore:
		return true
	}
	return false
}

// ActionEvent is one observed user action. Events are append-only.
type ActionEvent struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Action        ActionType `json:"action"`
	OriginalText  string     `json:"original_text"`
	SuggestedText string     `json:"suggested_text"`
	FinalText     string     `json:"final_text,omitempty"`
	Context       string     `json:"context"`
	Category      string     `json:"category,omitempty"`
	Confidence    float64    `json:"confidence"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Validate checks the fields every action needs.
func (e ActionEvent) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return errors.New(errors.CodeInvalidAction, "action event has no user id")
	}
	if !e.Action.Valid() {
		return errors.Newf(errors.CodeInvalidAction, "unknown action type %q", e.Action)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return errors.Newf(errors.CodeInvalidAction, "confidence %.3f outside [0,1]", e.Confidence)
	}
	return nil
}

// Activity is the compact trace of an action kept on the profile.
type Activity struct {
	Action    ActionType `json:"action"`
	Context   string     `json:"context,omitempty"`
	Category  string     `json:"category,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// PhraseSet is a set of normalized phrases, serialized as a sorted array.
type PhraseSet map[string]struct{}

// NewPhraseSet builds a set from phrases.
func NewPhraseSet(phrases ...string) PhraseSet {
	s := make(PhraseSet, len(phrases))
	for _, p := range phrases {
		s.Add(p)
	}
	return s
}

// Add inserts the normalized phrase. Blank phrases are ignored.
func (s PhraseSet) Add(p string) {
	if p = normalize(p); p != "" {
		s[p] = struct{}{}
	}
}

// Remove deletes the normalized phrase.
func (s PhraseSet) Remove(p string) { delete(s, normalize(p)) }

// Has reports membership of the normalized phrase.
func (s PhraseSet) Has(p string) bool {
	_, ok := s[normalize(p)]
	return ok
}

// Sorted returns the members in lexical order.
func (s PhraseSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s PhraseSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array into the set.
func (s *PhraseSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewPhraseSet(list...)
	return nil
}

func normalize(p string) string {
	return strings.Join(strings.Fields(strings.ToLower(p)), " ")
}

// Profile is a user's learned writing preferences. Scalars stay in [0,1].
type Profile struct {
	UserID              string             `json:"user_id"`
	PreferredComplexity float64            `json:"preferred_complexity"`
	PreferredFormality  float64            `json:"preferred_formality"`
	DomainExpertise     map[string]float64 `json:"domain_expertise"`
	CommonPhrases       PhraseSet          `json:"common_phrases"`
	AvoidedPhrases      PhraseSet          `json:"avoided_phrases"`
	CorrectionPatterns  map[string]int     `json:"correction_patterns"`
	ModifiedCategories  map[string]int     `json:"modified_categories"`
	OverallAcceptance   float64            `json:"overall_acceptance"`
	ContextAcceptance   map[string]float64 `json:"context_acceptance"`
	ActionCount         int                `json:"action_count"`
	Recent              []Activity         `json:"recent"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// Defaults for a freshly created profile.
const (
	DefaultComplexity = 0.5
	DefaultFormality  = 0.5
	DefaultAcceptance = 0.7
	DefaultExpertise  = 0.5
)

// New creates an empty profile for userID.
func New(userID string, now time.Time) *Profile {
	now = now.UTC()
	return &Profile{
		UserID:              userID,
		PreferredComplexity: DefaultComplexity,
		PreferredFormality:  DefaultFormality,
		DomainExpertise:     map[string]float64{},
		CommonPhrases:       PhraseSet{},
		AvoidedPhrases:      PhraseSet{},
		CorrectionPatterns:  map[string]int{},
		ModifiedCategories:  map[string]int{},
		OverallAcceptance:   DefaultAcceptance,
		ContextAcceptance:   map[string]float64{},
		Recent:              []Activity{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.DomainExpertise = make(map[string]float64, len(p.DomainExpertise))
	for k, v := range p.DomainExpertise {
		c.DomainExpertise[k] = v
	}
	c.CommonPhrases = NewPhraseSet(p.CommonPhrases.Sorted()...)
	c.AvoidedPhrases = NewPhraseSet(p.AvoidedPhrases.Sorted()...)
	c.CorrectionPatterns = make(map[string]int, len(p.CorrectionPatterns))
	for k, v := range p.CorrectionPatterns {
		c.CorrectionPatterns[k] = v
	}
	c.ModifiedCategories = make(map[string]int, len(p.ModifiedCategories))
	for k, v := range p.ModifiedCategories {
		c.ModifiedCategories[k] = v
	}
	c.ContextAcceptance = make(map[string]float64, len(p.ContextAcceptance))
	for k, v := range p.ContextAcceptance {
		c.ContextAcceptance[k] = v
	}
	c.Recent = append([]Activity{}, p.Recent...)
	return &c
}

// ensureMaps fills nil collections left by partial decoding.
func (p *Profile) ensureMaps() {
	if p.DomainExpertise == nil {
		p.DomainExpertise = map[string]float64{}
	}
	if p.CommonPhrases == nil {
		p.CommonPhrases = PhraseSet{}
	}
	if p.AvoidedPhrases == nil {
		p.AvoidedPhrases = PhraseSet{}
	}
	if p.CorrectionPatterns == nil {
		p.CorrectionPatterns = map[string]int{}
	}
	if p.ModifiedCategories == nil {
		p.ModifiedCategories = map[string]int{}
	}
	if p.ContextAcceptance == nil {
		p.ContextAcceptance = map[string]float64{}
	}
	if p.Recent == nil {
		p.Recent = []Activity{}
	}
}

// Encode serializes the profile for a record store.
func Encode(p *Profile) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode profile")
	}
	return data, nil
}

// Decode parses a stored profile.
func Decode(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, errors.CodeProfileDecodeFailed, "failed to decode profile")
	}
	p.ensureMaps()
	return &p, nil
}

// Stage is the lifecycle stage of a profile.
type Stage string

const (
	StageUnseen Stage = "unseen"
	StageCold   Stage = "cold"
	StageWarm   Stage = "warm"
)

// StageOf classifies p against the warm threshold.
func StageOf(p *Profile, warmThreshold int) Stage {
	switch {
	case p == nil:
		return StageUnseen
	case p.ActionCount >= warmThreshold:
		return StageWarm
	default:
		return StageCold
	}
}

// RecordStore persists profiles and the action log. Get returns (nil, nil)
// for an unknown user.
type RecordStore interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Put(ctx context.Context, userID string, p *Profile) error
	AppendEvent(ctx context.Context, e ActionEvent) error
}
