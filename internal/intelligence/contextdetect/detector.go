// Package contextdetect scores a span of protocol text against every context
// in the pattern library. Scores blend seed-phrase hits, lexicon density and,
// when a non-degraded similarity strategy is configured, similarity to each
// context's templates.
package contextdetect

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/ProtocolIQ/internal/domain/lexical"
	"github.com/turtacn/ProtocolIQ/internal/domain/pattern"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/embedding"
)

// Weights are the blend coefficients. Semantic* apply when the semantic
// signal is available, Keyword* otherwise.
type Weights struct {
	SemanticPattern float64 `mapstructure:"semantic_pattern" yaml:"semantic_pattern"`
	SemanticLexicon float64 `mapstructure:"semantic_lexicon" yaml:"semantic_lexicon"`
	Semantic        float64 `mapstructure:"semantic" yaml:"semantic"`
	KeywordPattern  float64 `mapstructure:"keyword_pattern" yaml:"keyword_pattern"`
	KeywordLexicon  float64 `mapstructure:"keyword_lexicon" yaml:"keyword_lexicon"`
	LexiconCeiling  float64 `mapstructure:"lexicon_ceiling" yaml:"lexicon_ceiling"`
}

// DefaultWeights returns the standard blend.
func DefaultWeights() Weights {
	return Weights{
		SemanticPattern: 0.3,
		SemanticLexicon: 0.3,
		Semantic:        0.4,
		KeywordPattern:  0.6,
		KeywordLexicon:  0.4,
		LexiconCeiling:  0.3,
	}
}

// ContextScores maps every known context to a score in [0,1].
type ContextScores map[string]float64

// Primary returns the highest-scoring context. Ties go to the
// lexicographically first name. An empty map returns ("", 0).
func (s ContextScores) Primary() (string, float64) {
	best, bestScore := "", -1.0
	for _, name := range s.Names() {
		if v := s[name]; v > bestScore {
			best, bestScore = name, v
		}
	}
	if best == "" {
		return "", 0
	}
	return best, bestScore
}

// Names returns the context names in lexical order.
func (s ContextScores) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Boost raises name to at least floor, returning a new map. Unknown names are
// ignored.
func (s ContextScores) Boost(name string, floor float64) ContextScores {
	out := make(ContextScores, len(s))
	for k, v := range s {
		out[k] = v
	}
	if v, ok := out[name]; ok && v < floor {
		out[name] = floor
	}
	return out
}

// Detector is safe for concurrent use once constructed.
type Detector struct {
	lib        *pattern.Library
	weights    Weights
	sim        embedding.Similarity
	timeout    time.Duration
	extra      map[string][]string
	logger     logging.Logger
	onFallback func()

	mu        sync.RWMutex
	ready     bool
	centroids map[string][]float32
}

// Option configures a Detector.
type Option func(*Detector)

// WithSimilarity sets the similarity strategy behind the semantic signal.
// Each lookup is bounded by timeout. A degraded strategy keeps the keyword
// blend.
func WithSimilarity(s embedding.Similarity, timeout time.Duration) Option {
	return func(d *Detector) {
		d.sim = s
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithEmbedder is WithSimilarity over cosine similarity of e's vectors.
func WithEmbedder(e embedding.Embedder, timeout time.Duration) Option {
	return WithSimilarity(embedding.NewEmbeddingSimilarity(e), timeout)
}

// WithWeights overrides the blend coefficients.
func WithWeights(w Weights) Option {
	return func(d *Detector) { d.weights = w }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithFallbackHook is called whenever a semantic lookup fails and the detector
// answers with the keyword blend.
func WithFallbackHook(fn func()) Option {
	return func(d *Detector) { d.onFallback = fn }
}

// WithTemplates adds example texts per context to the semantic references, for
// instance high-correlation success patterns.
func WithTemplates(extra map[string][]string) Option {
	return func(d *Detector) { d.extra = extra }
}

// New builds a detector over lib.
func New(lib *pattern.Library, opts ...Option) *Detector {
	d := &Detector{
		lib:     lib,
		weights: DefaultWeights(),
		timeout: 500 * time.Millisecond,
		logger:  logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(d)
	}
	d.logger = d.logger.Named("contextdetect")
	return d
}

// Warm prepares the semantic references. A strategy that is also an Embedder
// gets one centroid per context; any other strategy is checked against every
// template, filling its cache on the way. A missing or degraded strategy does
// nothing. On failure the semantic signal stays off and the error is returned
// for logging.
func (d *Detector) Warm(ctx context.Context) error {
	if !d.semanticCapable() {
		return nil
	}
	emb, vectors := d.sim.(embedding.Embedder)
	centroids := make(map[string][]float32)
	n := 0
	for _, name := range d.lib.ContextNames() {
		var vecs [][]float32
		for _, t := range d.templates(name) {
			callCtx, cancel := context.WithTimeout(ctx, d.timeout)
			var err error
			if vectors {
				var v []float32
				if v, err = emb.Embed(callCtx, t); err == nil {
					vecs = append(vecs, v)
				}
			} else {
				_, err = d.sim.Similarity(callCtx, t, t)
			}
			cancel()
			if err != nil {
				d.logger.Warn("template warm-up failed, semantic signal disabled",
					logging.ContextName(name), logging.Err(err))
				return err
			}
			n++
		}
		if c := embedding.Centroid(vecs); c != nil {
			centroids[name] = c
		}
	}
	d.mu.Lock()
	d.ready = true
	if vectors {
		d.centroids = centroids
	}
	d.mu.Unlock()
	d.logger.Info("semantic templates ready", logging.Int("templates", n), logging.Int("centroids", len(centroids)))
	return nil
}

// SemanticEnabled reports whether Warm succeeded with a non-degraded strategy.
func (d *Detector) SemanticEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

func (d *Detector) semanticCapable() bool {
	return d.sim != nil && !d.sim.Degraded()
}

func (d *Detector) templates(name string) []string {
	def, _ := d.lib.Context(name)
	return append(append([]string{}, def.Templates...), d.extra[name]...)
}

// Detect scores text against every context. Blank text yields all zeros.
func (d *Detector) Detect(ctx context.Context, text string) ContextScores {
	names := d.lib.ContextNames()
	scores := make(ContextScores, len(names))
	if strings.TrimSpace(text) == "" {
		for _, n := range names {
			scores[n] = 0
		}
		return scores
	}

	tokens := lexical.Tokenize(text)
	lexShares := d.lexiconShares(tokens)
	semantic := d.semantic(ctx, text)

	w := d.weights
	for _, name := range names {
		def, _ := d.lib.Context(name)
		p := patternScore(text, def.Seeds)
		l := keywordFraction(tokens, def.Keywords) + lexShares[name]
		if l > w.LexiconCeiling {
			l = w.LexiconCeiling
		}
		var s float64
		if semantic != nil {
			s = w.SemanticPattern*p + w.SemanticLexicon*l + w.Semantic*semantic[name]
		} else {
			s = w.KeywordPattern*p + w.KeywordLexicon*l
		}
		scores[name] = clamp01(s)
	}
	return scores
}

// semantic scores text against each context: cosine to the centroid when one
// exists, otherwise the mean similarity to the templates. Any failed lookup
// drops the whole signal so one request never mixes the two blends.
func (d *Detector) semantic(ctx context.Context, text string) map[string]float64 {
	if !d.semanticCapable() {
		return nil
	}
	d.mu.RLock()
	ready, centroids := d.ready, d.centroids
	d.mu.RUnlock()
	if !ready {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var out map[string]float64
	var err error
	if emb, ok := d.sim.(embedding.Embedder); ok && len(centroids) > 0 {
		out, err = centroidScores(callCtx, emb, text, centroids)
	} else {
		out, err = d.templateScores(callCtx, text)
	}
	if err != nil {
		d.logger.Debug("semantic signal unavailable, using keyword blend", logging.Err(err))
		if d.onFallback != nil {
			d.onFallback()
		}
		return nil
	}
	return out
}

func centroidScores(ctx context.Context, emb embedding.Embedder, text string, centroids map[string][]float32) (map[string]float64, error) {
	vec, err := emb.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(centroids))
	for name, c := range centroids {
		out[name] = embedding.Cosine(vec, c)
	}
	return out, nil
}

func (d *Detector) templateScores(ctx context.Context, text string) (map[string]float64, error) {
	names := d.lib.ContextNames()
	out := make(map[string]float64, len(names))
	for _, name := range names {
		tmpls := d.templates(name)
		if len(tmpls) == 0 {
			continue
		}
		var sum float64
		for _, t := range tmpls {
			v, err := d.sim.Similarity(ctx, text, t)
			if err != nil {
				return nil, err
			}
			sum += v
		}
		out[name] = sum / float64(len(tmpls))
	}
	return out, nil
}

// lexiconShares spreads each lexicon's capped density over its contexts.
func (d *Detector) lexiconShares(tokens []string) map[string]float64 {
	shares := make(map[string]float64)
	for _, lex := range d.lib.Lexicons() {
		if len(lex.Contexts) == 0 {
			continue
		}
		frac := keywordFraction(tokens, lex.Terms)
		if frac > d.weights.LexiconCeiling {
			frac = d.weights.LexiconCeiling
		}
		if frac == 0 {
			continue
		}
		per := frac / float64(len(lex.Contexts))
		for _, c := range lex.Contexts {
			shares[c] += per
		}
	}
	return shares
}

// patternScore sums the weight of every seed occurrence, normalized by the
// number of seeds.
func patternScore(text string, seeds []pattern.SeedPattern) float64 {
	if len(seeds) == 0 {
		return 0
	}
	var sum float64
	for _, s := range seeds {
		sum += s.Weight * float64(lexical.Count(text, s.Phrase))
	}
	return clamp01(sum / float64(len(seeds)))
}

// keywordFraction is the share of tokens matching any term.
func keywordFraction(tokens, terms []string) float64 {
	if len(tokens) == 0 || len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range tokens {
		for _, term := range terms {
			if lexical.MatchesTerm(tok, term) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(tokens))
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
