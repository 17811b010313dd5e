// Package batch runs a function over a slice of items with bounded
// concurrency, per-item timeouts and optional retries. Results keep the
// input order.
package batch

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

var (
	ErrShutdown     = stdliberrors.New("batch processor is shutting down")
	ErrBackpressure = stdliberrors.New("backpressure threshold exceeded")
)

// ItemStatus is the outcome of a single item.
type ItemStatus int

const (
	ItemStatusSuccess ItemStatus = iota
	ItemStatusFailed
	ItemStatusTimeout
	ItemStatusCancelled
)

func (s ItemStatus) String() string {
	switch s {
	case ItemStatusSuccess:
		return "SUCCESS"
	case ItemStatusFailed:
		return "FAILED"
	case ItemStatusTimeout:
		return "TIMEOUT"
	case ItemStatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ProcessFunc processes one item.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// ItemResult holds the outcome of one item.
type ItemResult[R any] struct {
	Index      int        `json:"index"`
	Result     R          `json:"result"`
	Error      error      `json:"error,omitempty"`
	DurationMs float64    `json:"duration_ms"`
	Status     ItemStatus `json:"status"`
}

// Result aggregates a run. Results is ordered by input index.
type Result[R any] struct {
	Results           []*ItemResult[R] `json:"results"`
	TotalCount        int              `json:"total_count"`
	SuccessCount      int              `json:"success_count"`
	FailureCount      int              `json:"failure_count"`
	TotalDurationMs   float64          `json:"total_duration_ms"`
	AvgItemDurationMs float64          `json:"avg_item_duration_ms"`
}

// Observer receives one call per completed batch.
type Observer interface {
	ObserveBatch(name string, total, succeeded, failed int, duration time.Duration)
}

// Processor is a reusable batch engine.
type Processor[T, R any] interface {
	Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*Result[R], error)
	// Shutdown stops accepting batches and waits for in-flight ones.
	Shutdown(ctx context.Context) error
}

// RetryPolicy governs how failed items are retried.
type RetryPolicy struct {
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
	// RetryableErrors limits retries to errors matching one of these; empty
	// retries everything except unparseable documents.
	RetryableErrors []error `mapstructure:"-" yaml:"-"`
}

func shouldRetry(err error, policy *RetryPolicy) bool {
	if policy == nil || err == nil {
		return false
	}
	// a bad document stays bad
	if errors.IsCode(err, errors.CodeDocumentUnparseable) {
		return false
	}
	if len(policy.RetryableErrors) == 0 {
		return true
	}
	for _, re := range policy.RetryableErrors {
		if stdliberrors.Is(err, re) {
			return true
		}
	}
	return false
}

// calculateBackoff applies exponential backoff with ±25% jitter, capped at
// MaxBackoff.
func calculateBackoff(attempt int, policy *RetryPolicy) time.Duration {
	if policy == nil || policy.InitialBackoff <= 0 {
		return 0
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	base := float64(policy.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if policy.MaxBackoff > 0 && base > float64(policy.MaxBackoff) {
		base = float64(policy.MaxBackoff)
	}
	jitter := base * 0.25 * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

type config struct {
	name                  string
	maxConcurrency        int
	itemTimeout           time.Duration
	batchTimeout          time.Duration
	retryPolicy           *RetryPolicy
	backpressureThreshold int
	observer              Observer
	logger                logging.Logger
}

func defaultConfig() *config {
	return &config{
		name:           "batch",
		maxConcurrency: runtime.NumCPU(),
		itemTimeout:    30 * time.Second,
		batchTimeout:   5 * time.Minute,
	}
}

// Option configures a Processor.
type Option func(*config)

// WithName labels the processor in logs and observations.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

func WithMaxConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

func WithItemTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

func WithBatchTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

// WithRetryPolicy retries failed items up to maxRetries times.
func WithRetryPolicy(maxRetries int, backoff time.Duration) Option {
	return func(c *config) {
		if maxRetries > 0 {
			c.retryPolicy = &RetryPolicy{
				MaxRetries:        maxRetries,
				InitialBackoff:    backoff,
				MaxBackoff:        backoff * 16,
				BackoffMultiplier: 2.0,
			}
		}
	}
}

// WithBackpressureThreshold rejects a batch when the pending item count would
// exceed n. Zero disables the check.
func WithBackpressureThreshold(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.backpressureThreshold = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}

func WithLogger(l logging.Logger) Option {
	return func(c *config) { c.logger = l }
}

type processor[T, R any] struct {
	cfg    *config
	logger logging.Logger

	shutdownOnce sync.Once
	isShutdown   atomic.Bool
	activeWg     sync.WaitGroup
	pendingCount atomic.Int64
}

// New creates a Processor.
func New[T, R any](opts ...Option) Processor[T, R] {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNopLogger()
	}
	return &processor[T, R]{cfg: cfg, logger: cfg.logger.Named(cfg.name)}
}

func (p *processor[T, R]) Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*Result[R], error) {
	if fn == nil {
		return nil, errors.InvalidParam("process function must not be nil")
	}
	if p.isShutdown.Load() {
		return nil, ErrShutdown
	}
	n := len(items)
	if n == 0 {
		return &Result[R]{Results: []*ItemResult[R]{}}, nil
	}

	if p.cfg.backpressureThreshold > 0 {
		if p.pendingCount.Load()+int64(n) > int64(p.cfg.backpressureThreshold) {
			return nil, ErrBackpressure
		}
	}
	p.pendingCount.Add(int64(n))
	defer p.pendingCount.Add(-int64(n))

	p.activeWg.Add(1)
	defer p.activeWg.Done()

	start := time.Now()
	batchCtx, cancel := context.WithTimeout(ctx, p.cfg.batchTimeout)
	defer cancel()

	resultCh := make(chan *ItemResult[R], n)
	sem := make(chan struct{}, p.cfg.maxConcurrency)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int, item T) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-batchCtx.Done():
				resultCh <- &ItemResult[R]{
					Index:  idx,
					Error:  batchCtx.Err(),
					Status: classifyCtxError(batchCtx.Err()),
				}
				return
			}
			resultCh <- p.processOne(batchCtx, idx, item, fn)
		}(i, items[i])
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]*ItemResult[R], 0, n)
	for ir := range resultCh {
		results = append(results, ir)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	elapsed := time.Since(start)
	br := buildResult(results, elapsed)
	if p.cfg.observer != nil {
		p.cfg.observer.ObserveBatch(p.cfg.name, br.TotalCount, br.SuccessCount, br.FailureCount, elapsed)
	}
	p.logger.Debug("batch finished",
		logging.Int("total", br.TotalCount),
		logging.Int("failed", br.FailureCount),
		logging.Duration("elapsed", elapsed))
	return br, nil
}

func (p *processor[T, R]) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() { p.isShutdown.Store(true) })

	done := make(chan struct{})
	go func() {
		p.activeWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (p *processor[T, R]) processOne(batchCtx context.Context, idx int, item T, fn ProcessFunc[T, R]) *ItemResult[R] {
	itemStart := time.Now()

	maxAttempts := 1
	if p.cfg.retryPolicy != nil && p.cfg.retryPolicy.MaxRetries > 0 {
		maxAttempts = 1 + p.cfg.retryPolicy.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if delay := calculateBackoff(attempt-1, p.cfg.retryPolicy); delay > 0 {
				select {
				case <-batchCtx.Done():
					return &ItemResult[R]{
						Index:      idx,
						Error:      batchCtx.Err(),
						Status:     classifyCtxError(batchCtx.Err()),
						DurationMs: msSince(itemStart),
					}
				case <-time.After(delay):
				}
			}
		}

		itemCtx, itemCancel := context.WithTimeout(batchCtx, p.cfg.itemTimeout)
		result, err := fn(itemCtx, item)
		itemCancel()

		if err == nil {
			return &ItemResult[R]{Index: idx, Result: result, Status: ItemStatusSuccess, DurationMs: msSince(itemStart)}
		}
		lastErr = err
		if attempt < maxAttempts-1 && shouldRetry(err, p.cfg.retryPolicy) {
			continue
		}
		break
	}

	return &ItemResult[R]{
		Index:      idx,
		Error:      lastErr,
		Status:     classifyError(batchCtx, lastErr),
		DurationMs: msSince(itemStart),
	}
}

func buildResult[R any](results []*ItemResult[R], elapsed time.Duration) *Result[R] {
	br := &Result[R]{
		Results:         results,
		TotalCount:      len(results),
		TotalDurationMs: float64(elapsed.Microseconds()) / 1000.0,
	}
	var sum float64
	for _, r := range results {
		if r.Status == ItemStatusSuccess {
			br.SuccessCount++
		} else {
			br.FailureCount++
		}
		sum += r.DurationMs
	}
	if br.TotalCount > 0 {
		br.AvgItemDurationMs = sum / float64(br.TotalCount)
	}
	return br
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func classifyCtxError(err error) ItemStatus {
	switch {
	case err == nil:
		return ItemStatusSuccess
	case stdliberrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	}
	return ItemStatusCancelled
}

func classifyError(batchCtx context.Context, err error) ItemStatus {
	switch {
	case err == nil:
		return ItemStatusSuccess
	case stdliberrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	case stdliberrors.Is(err, context.Canceled):
		return ItemStatusCancelled
	}
	switch batchCtx.Err() {
	case context.DeadlineExceeded:
		return ItemStatusTimeout
	case context.Canceled:
		return ItemStatusCancelled
	}
	return ItemStatusFailed
}
