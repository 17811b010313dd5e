// Package protocoliq is the entry point callers use: it wires context
// detection, suggestion generation, preference learning and corpus mining
// into the operations the CLI and worker expose.
package protocoliq

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/ProtocolIQ/internal/application/mining"
	"github.com/turtacn/ProtocolIQ/internal/application/preference"
	"github.com/turtacn/ProtocolIQ/internal/application/suggestion"
	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/contextdetect"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// DefaultHintFloor is the score a caller-supplied context hint is raised to.
const DefaultHintFloor = 0.5

var _ suggestion.EvidenceSource = (*mining.Miner)(nil)

// Metrics receives request counters. A nil Metrics disables them.
type Metrics interface {
	SuggestionsServed(contextName string, n int)
	ObserveSuggestionLatency(d time.Duration)
}

// Request asks for suggestions on one span of protocol text.
type Request struct {
	Text        string `json:"text"`
	ContextHint string `json:"context_hint,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// Response carries the ranked suggestions and the scores they were ranked on.
type Response struct {
	Suggestions []suggestion.Suggestion     `json:"suggestions"`
	Scores      contextdetect.ContextScores `json:"context_scores"`
	Primary     string                      `json:"primary_context"`
}

type Service struct {
	detector  *contextdetect.Detector
	generator *suggestion.Generator
	prefs     *preference.Service
	miner     *mining.Miner
	metrics   Metrics
	logger    logging.Logger
	hintFloor float64
}

type Option func(*Service)

func WithMetrics(m Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l logging.Logger) Option { return func(s *Service) { s.logger = l } }

// WithHintFloor overrides DefaultHintFloor.
func WithHintFloor(f float64) Option { return func(s *Service) { s.hintFloor = f } }

// New assembles the service. The miner may be nil when corpus operations
// are not needed.
func New(detector *contextdetect.Detector, generator *suggestion.Generator, prefs *preference.Service, miner *mining.Miner, opts ...Option) *Service {
	s := &Service{
		detector:  detector,
		generator: generator,
		prefs:     prefs,
		miner:     miner,
		hintFloor: DefaultHintFloor,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	s.logger = s.logger.Named("protocoliq")
	return s
}

// GetSuggestions detects the text's context and returns ranked suggestions,
// personalized when the user has a profile. Blank text yields an empty list.
func (s *Service) GetSuggestions(ctx context.Context, req Request) Response {
	start := time.Now()
	scores := s.detector.Detect(ctx, req.Text)
	if hint := strings.ToLower(strings.TrimSpace(req.ContextHint)); hint != "" {
		scores = scores.Boost(hint, s.hintFloor)
	}

	var p *profile.Profile
	if req.UserID != "" {
		p, _ = s.prefs.Profile(ctx, req.UserID)
	}
	out := s.generator.Generate(req.Text, scores, p)
	primary, _ := scores.Primary()

	for _, sg := range out {
		s.prefs.RecordShown(sg.Context, string(sg.Kind))
	}
	if s.metrics != nil {
		s.metrics.SuggestionsServed(primary, len(out))
		s.metrics.ObserveSuggestionLatency(time.Since(start))
	}
	s.logger.Debug("suggestions generated",
		logging.UserID(req.UserID),
		logging.ContextName(primary),
		logging.Int("count", len(out)))
	return Response{Suggestions: out, Scores: scores, Primary: primary}
}

// RecordAction feeds a user's response to a suggestion into their profile.
func (s *Service) RecordAction(ctx context.Context, e profile.ActionEvent) error {
	return s.prefs.RecordAction(ctx, e)
}

func (s *Service) GetUserInsights(ctx context.Context, userID string) (*profile.Insights, error) {
	return s.prefs.Insights(ctx, userID)
}

// RunCorpusAnalysis mines src and returns the run summary.
func (s *Service) RunCorpusAnalysis(ctx context.Context, src corpus.Source, sampleSize int) (*mining.Summary, error) {
	if s.miner == nil {
		return nil, errors.New(errors.ErrCodeNotImplemented, "corpus mining is not configured")
	}
	res, err := s.miner.AnalyzeCorpus(ctx, src, sampleSize)
	if err != nil {
		return nil, err
	}
	return &res.Summary, nil
}

// Recommend lists high-correlation patterns for an area and phase that text
// does not already use.
func (s *Service) Recommend(area, phase, text string, limit int) []corpus.SuccessPattern {
	if s.miner == nil {
		return []corpus.SuccessPattern{}
	}
	return s.miner.Recommend(area, phase, text, limit)
}

// Performance reports per-category suggestion outcomes.
func (s *Service) Performance() []preference.CategoryPerformance {
	return s.prefs.Performance()
}
