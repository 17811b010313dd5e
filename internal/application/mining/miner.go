// Package mining runs the corpus success analysis: it parses and scores every
// protocol in a corpus, consolidates the wording and design traits of the
// best performers into Success Patterns and answers pattern recommendation
// queries.
package mining

import (
	"context"
	"crypto/rand"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/lexical"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/batch"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// Config tunes analysis and recommendation.
type Config struct {
	BatchSize          int                 `mapstructure:"batch_size" yaml:"batch_size"`
	MaxConcurrency     int                 `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	ItemTimeout        time.Duration       `mapstructure:"item_timeout" yaml:"item_timeout"`
	InitialConfidence  float64             `mapstructure:"initial_confidence" yaml:"initial_confidence"`
	ConfidenceStep     float64             `mapstructure:"confidence_step" yaml:"confidence_step"`
	MaxConfidence      float64             `mapstructure:"max_confidence" yaml:"max_confidence"`
	MaxExamples        int                 `mapstructure:"max_examples" yaml:"max_examples"`
	RecommendThreshold float64             `mapstructure:"recommend_threshold" yaml:"recommend_threshold"`
	RecommendLimit     int                 `mapstructure:"recommend_limit" yaml:"recommend_limit"`
	Weights            corpus.ScoreWeights `mapstructure:"weights" yaml:"weights"`
}

func DefaultConfig() Config {
	return Config{
		BatchSize:          100,
		MaxConcurrency:     8,
		ItemTimeout:        30 * time.Second,
		InitialConfidence:  0.8,
		ConfidenceStep:     0.05,
		MaxConfidence:      0.95,
		MaxExamples:        3,
		RecommendThreshold: 0.7,
		RecommendLimit:     5,
		Weights:            corpus.DefaultScoreWeights(),
	}
}

// Locker guards a run across processes. A redis DistributedLock satisfies it.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Metrics receives analysis counters. A nil Metrics disables them.
type Metrics interface {
	DocumentsProcessed(n int)
	DocumentsSkipped(n int)
	ObserveSuccessScore(score float64)
	ObserveAnalysis(d time.Duration)
}

// GroupStats is the count and mean success score of a group of documents.
type GroupStats struct {
	Count     int     `json:"count"`
	MeanScore float64 `json:"mean_score"`
}

// Summary aggregates one analysis run.
type Summary struct {
	Processed      int                   `json:"processed"`
	Skipped        int                   `json:"skipped"`
	HighPerformers int                   `json:"high_performers"`
	LowPerformers  int                   `json:"low_performers"`
	MeanScore      float64               `json:"mean_score"`
	Patterns       int                   `json:"patterns"`
	ByArea         map[string]GroupStats `json:"by_area"`
	ByPhase        map[string]GroupStats `json:"by_phase"`
	RiskFactors    map[string]int        `json:"risk_factors"`
	StartedAt      time.Time             `json:"started_at"`
	Duration       time.Duration         `json:"duration"`
}

// SkippedDocument names a document that could not be analyzed.
type SkippedDocument struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Result is the full output of AnalyzeCorpus.
type Result struct {
	Assessments []corpus.Assessment     `json:"assessments"`
	Patterns    []corpus.SuccessPattern `json:"patterns"`
	Skipped     []SkippedDocument       `json:"skipped"`
	Summary     Summary                 `json:"summary"`
}

// Miner is safe for concurrent use; only one analysis runs at a time.
type Miner struct {
	cfg      Config
	store    corpus.PatternStore
	lock     Locker
	metrics  Metrics
	observer batch.Observer
	logger   logging.Logger
	now      func() time.Time

	running atomic.Bool

	mu       sync.RWMutex
	patterns []corpus.SuccessPattern
}

type Option func(*Miner)

func WithConfig(c Config) Option { return func(m *Miner) { m.cfg = c } }

// WithPatternStore persists patterns after each run and seeds Load.
func WithPatternStore(s corpus.PatternStore) Option { return func(m *Miner) { m.store = s } }

// WithLocker adds a cross-process run guard.
func WithLocker(l Locker) Option { return func(m *Miner) { m.lock = l } }

func WithMetrics(mt Metrics) Option { return func(m *Miner) { m.metrics = mt } }

// WithBatchObserver reports each document batch.
func WithBatchObserver(o batch.Observer) Option { return func(m *Miner) { m.observer = o } }

func WithLogger(l logging.Logger) Option { return func(m *Miner) { m.logger = l } }

func WithClock(now func() time.Time) Option { return func(m *Miner) { m.now = now } }

func NewMiner(opts ...Option) *Miner {
	m := &Miner{cfg: DefaultConfig(), now: time.Now}
	for _, o := range opts {
		o(m)
	}
	d := DefaultConfig()
	if m.cfg.BatchSize <= 0 {
		m.cfg.BatchSize = d.BatchSize
	}
	if m.cfg.MaxConcurrency <= 0 {
		m.cfg.MaxConcurrency = d.MaxConcurrency
	}
	if m.cfg.ItemTimeout <= 0 {
		m.cfg.ItemTimeout = d.ItemTimeout
	}
	if m.cfg.MaxExamples <= 0 {
		m.cfg.MaxExamples = d.MaxExamples
	}
	if m.cfg.RecommendLimit <= 0 {
		m.cfg.RecommendLimit = d.RecommendLimit
	}
	if m.logger == nil {
		m.logger = logging.NewNopLogger()
	}
	m.logger = m.logger.Named("miner")
	return m
}

// Load seeds the in-memory pattern table from the pattern store.
func (m *Miner) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	patterns, err := m.store.ListPatterns(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to load success patterns")
	}
	m.setPatterns(patterns)
	m.logger.Info("success patterns loaded", logging.Int("count", len(patterns)))
	return nil
}

// Patterns returns a snapshot of the current Success Pattern table.
func (m *Miner) Patterns() []corpus.SuccessPattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]corpus.SuccessPattern(nil), m.patterns...)
}

func (m *Miner) setPatterns(p []corpus.SuccessPattern) {
	m.mu.Lock()
	m.patterns = append([]corpus.SuccessPattern(nil), p...)
	m.mu.Unlock()
}

// AnalyzeCorpus scores every document in src (the first sampleSize ids in
// order when sampleSize > 0) and replaces the Success Pattern table with
// the consolidated patterns. Unparseable documents are skipped and counted.
func (m *Miner) AnalyzeCorpus(ctx context.Context, src corpus.Source, sampleSize int) (*Result, error) {
	if src == nil {
		return nil, errors.InvalidParam("corpus source is required")
	}
	if !m.running.CompareAndSwap(false, true) {
		return nil, errors.New(errors.CodeAnalysisInProgress, "corpus analysis already running")
	}
	defer m.running.Store(false)

	if m.lock != nil {
		ok, err := m.lock.TryLock(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreError, "failed to acquire analysis lock")
		}
		if !ok {
			return nil, errors.New(errors.CodeAnalysisInProgress, "corpus analysis running elsewhere")
		}
		defer func() {
			if err := m.lock.Unlock(context.Background()); err != nil {
				m.logger.Warn("failed to release analysis lock", logging.Err(err))
			}
		}()
	}

	start := m.now()
	ids, err := src.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCorpusUnavailable, "failed to list corpus")
	}
	sort.Strings(ids)
	if sampleSize > 0 && sampleSize < len(ids) {
		ids = ids[:sampleSize]
	}
	m.logger.Info("corpus analysis started", logging.Int("documents", len(ids)))

	proc := batch.New[string, corpus.Assessment](
		batch.WithName("corpus"),
		batch.WithMaxConcurrency(m.cfg.MaxConcurrency),
		batch.WithItemTimeout(m.cfg.ItemTimeout),
		batch.WithBatchTimeout(time.Duration(m.cfg.BatchSize)*m.cfg.ItemTimeout),
		batch.WithObserver(m.observer),
		batch.WithLogger(m.logger),
	)
	defer proc.Shutdown(context.Background())

	res := &Result{Assessments: []corpus.Assessment{}, Skipped: []SkippedDocument{}}
	for lo := 0; lo < len(ids); lo += m.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "corpus analysis cancelled")
		}
		hi := lo + m.cfg.BatchSize
		if hi > len(ids) {
			hi = len(ids)
		}
		chunk := ids[lo:hi]
		br, err := proc.Process(ctx, chunk, func(ctx context.Context, id string) (corpus.Assessment, error) {
			return m.assess(ctx, src, id)
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "corpus batch failed")
		}
		for _, ir := range br.Results {
			if ir.Error != nil {
				res.Skipped = append(res.Skipped, SkippedDocument{ID: chunk[ir.Index], Reason: ir.Error.Error()})
				m.logger.Warn("document skipped", logging.String("document", chunk[ir.Index]), logging.Err(ir.Error))
				continue
			}
			res.Assessments = append(res.Assessments, ir.Result)
		}
	}

	res.Patterns = m.consolidate(res.Assessments)
	res.Summary = summarize(res.Assessments, len(res.Skipped))
	res.Summary.Patterns = len(res.Patterns)
	res.Summary.StartedAt = start
	res.Summary.Duration = m.now().Sub(start)

	m.setPatterns(res.Patterns)
	if m.store != nil {
		if err := m.store.SavePatterns(ctx, res.Patterns); err != nil {
			return res, errors.Wrap(err, errors.CodeStoreError, "failed to save success patterns")
		}
	}
	if m.metrics != nil {
		m.metrics.DocumentsProcessed(res.Summary.Processed)
		m.metrics.DocumentsSkipped(res.Summary.Skipped)
		for _, a := range res.Assessments {
			m.metrics.ObserveSuccessScore(a.Score.Total)
		}
		m.metrics.ObserveAnalysis(res.Summary.Duration)
	}
	m.logger.Info("corpus analysis finished",
		logging.Int("processed", res.Summary.Processed),
		logging.Int("skipped", res.Summary.Skipped),
		logging.Int("patterns", res.Summary.Patterns),
		logging.Float64("mean_score", res.Summary.MeanScore))
	return res, nil
}

func (m *Miner) assess(ctx context.Context, src corpus.Source, id string) (corpus.Assessment, error) {
	rc, err := src.Open(ctx, id)
	if err != nil {
		return corpus.Assessment{}, errors.Wrap(err, errors.CodeDocumentUnparseable, "failed to open document")
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return corpus.Assessment{}, errors.Wrap(err, errors.CodeDocumentUnparseable, "failed to read document")
	}

	var meta *corpus.Metadata
	if ms, ok := src.(corpus.MetadataSource); ok {
		if meta, err = ms.Metadata(ctx, id); err != nil {
			return corpus.Assessment{}, err
		}
	}
	rec, err := corpus.Parse(id, string(data), meta)
	if err != nil {
		return corpus.Assessment{}, err
	}
	return corpus.Assess(rec, m.cfg.Weights), nil
}

type candidate struct {
	typ     corpus.PatternType
	text    string
	example string
}

func candidates(a corpus.Assessment) []candidate {
	var out []candidate
	sentences := lexical.Sentences(a.Record.Text())
	for _, phrase := range a.ClearLanguage {
		ex := ""
		for _, s := range sentences {
			if lexical.Contains(s, phrase) {
				ex = s
				break
			}
		}
		out = append(out, candidate{typ: corpus.PatternLanguage, text: phrase, example: ex})
	}
	for _, f := range a.SuccessFactors {
		ex := a.Record.Title
		if ex == "" {
			ex = a.Record.ID
		}
		out = append(out, candidate{typ: corpus.PatternStructural, text: f, example: ex})
	}
	return out
}

type accumulator struct {
	pattern  corpus.SuccessPattern
	scoreSum float64
}

// scope narrows the pattern's area and phase to those of a supporting
// document. Disagreeing documents widen the field to general.
func (acc *accumulator) scope(area, phase string) {
	if acc.pattern.TherapeuticArea != area {
		acc.pattern.TherapeuticArea = corpus.AreaGeneral
	}
	if acc.pattern.Phase != phase {
		acc.pattern.Phase = corpus.PhaseGeneral
	}
}

func scopeOf(r *corpus.Record) (area, phase string) {
	area, phase = strings.ToLower(strings.TrimSpace(r.TherapeuticArea)), r.Phase
	if area == "" {
		area = corpus.AreaGeneral
	}
	if phase == "" || phase == corpus.PhaseUnknown {
		phase = corpus.PhaseGeneral
	}
	return area, phase
}

// consolidate merges the candidates of every high performer into one
// pattern per type and normalized text. It runs on a single goroutine after
// all batches.
func (m *Miner) consolidate(assessments []corpus.Assessment) []corpus.SuccessPattern {
	entropy := ulid.Monotonic(rand.Reader, 0)
	stamp := ulid.Timestamp(m.now())

	byKey := make(map[string]*accumulator)
	var order []string
	for _, a := range assessments {
		if !a.HighPerformer() {
			continue
		}
		area, phase := scopeOf(a.Record)
		for _, c := range candidates(a) {
			text := strings.ToLower(strings.TrimSpace(c.text))
			key := string(c.typ) + "|" + text
			acc, ok := byKey[key]
			if !ok {
				acc = &accumulator{pattern: corpus.SuccessPattern{
					ID:              ulid.MustNew(stamp, entropy).String(),
					Type:            c.typ,
					Text:            text,
					TherapeuticArea: area,
					Phase:           phase,
					Confidence:      m.cfg.InitialConfidence,
				}}
				byKey[key] = acc
				order = append(order, key)
			} else {
				acc.scope(area, phase)
				acc.pattern.Confidence += m.cfg.ConfidenceStep
				if acc.pattern.Confidence > m.cfg.MaxConfidence {
					acc.pattern.Confidence = m.cfg.MaxConfidence
				}
			}
			acc.pattern.Frequency++
			acc.scoreSum += a.Score.Total
			acc.pattern.Correlation = acc.scoreSum / float64(acc.pattern.Frequency)
			if c.example != "" && len(acc.pattern.Examples) < m.cfg.MaxExamples && !contains(acc.pattern.Examples, c.example) {
				acc.pattern.Examples = append(acc.pattern.Examples, c.example)
			}
		}
	}

	out := make([]corpus.SuccessPattern, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k].pattern)
	}
	sortPatterns(out)
	return out
}

func sortPatterns(p []corpus.SuccessPattern) {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Correlation != p[j].Correlation {
			return p[i].Correlation > p[j].Correlation
		}
		if p[i].Frequency != p[j].Frequency {
			return p[i].Frequency > p[j].Frequency
		}
		return p[i].Text < p[j].Text
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func summarize(assessments []corpus.Assessment, skipped int) Summary {
	s := Summary{
		Processed:   len(assessments),
		Skipped:     skipped,
		ByArea:      map[string]GroupStats{},
		ByPhase:     map[string]GroupStats{},
		RiskFactors: map[string]int{},
	}
	var total float64
	for _, a := range assessments {
		v := a.Score.Total
		total += v
		if a.HighPerformer() {
			s.HighPerformers++
		}
		if a.LowPerformer() {
			s.LowPerformers++
		}
		for _, f := range a.RiskFactors {
			s.RiskFactors[f]++
		}
		s.ByArea[a.Record.TherapeuticArea] = addScore(s.ByArea[a.Record.TherapeuticArea], v)
		s.ByPhase[a.Record.Phase] = addScore(s.ByPhase[a.Record.Phase], v)
	}
	if s.Processed > 0 {
		s.MeanScore = total / float64(s.Processed)
	}
	return s
}

func addScore(g GroupStats, v float64) GroupStats {
	g.MeanScore = (g.MeanScore*float64(g.Count) + v) / float64(g.Count+1)
	g.Count++
	return g
}

// SetRecommendation changes the recommendation threshold and default limit
// of a running miner. Non-positive values leave the current setting.
func (m *Miner) SetRecommendation(threshold float64, limit int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if threshold > 0 {
		m.cfg.RecommendThreshold = threshold
	}
	if limit > 0 {
		m.cfg.RecommendLimit = limit
	}
}

// Recommend returns up to limit patterns for the area and phase (or general)
// above the recommendation threshold that text does not already contain.
// A limit of zero or less uses the configured default.
func (m *Miner) Recommend(area, phase, text string, limit int) []corpus.SuccessPattern {
	m.mu.RLock()
	threshold := m.cfg.RecommendThreshold
	if limit <= 0 {
		limit = m.cfg.RecommendLimit
	}
	m.mu.RUnlock()
	area = strings.ToLower(strings.TrimSpace(area))
	out := []corpus.SuccessPattern{}
	for _, p := range m.Patterns() {
		if p.Correlation <= threshold {
			continue
		}
		if area != "" && p.TherapeuticArea != area && p.TherapeuticArea != corpus.AreaGeneral {
			continue
		}
		if phase != "" && !strings.EqualFold(p.Phase, phase) && p.Phase != corpus.PhaseGeneral {
			continue
		}
		if p.Type == corpus.PatternLanguage && text != "" && lexical.Contains(text, p.Text) {
			continue
		}
		out = append(out, p)
	}
	sortPatterns(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
