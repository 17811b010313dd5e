// Package preference records user actions against suggestions, keeps each
// user's profile current in memory and persists it off the request path.
package preference

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// Publisher forwards recorded actions to an event stream.
type Publisher interface {
	PublishAction(ctx context.Context, e profile.ActionEvent) error
}

// Metrics receives service counters. A nil Metrics disables them.
type Metrics interface {
	ActionRecorded(action string)
	PersistenceFailed(operation string)
}

// Config tunes the service.
type Config struct {
	Stripes      int           `mapstructure:"stripes" yaml:"stripes"`
	QueueSize    int           `mapstructure:"queue_size" yaml:"queue_size"`
	Workers      int           `mapstructure:"workers" yaml:"workers"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Stripes:      64,
		QueueSize:    1024,
		Workers:      2,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Stripes <= 0 {
		c.Stripes = d.Stripes
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}

// CategoryPerformance aggregates outcomes for one suggestion category in one
// context.
type CategoryPerformance struct {
	Category       string  `json:"category"`
	Context        string  `json:"context"`
	Shown          int     `json:"shown"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	Modified       int     `json:"modified"`
	Ignored        int     `json:"ignored"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

func (c *CategoryPerformance) decided() int {
	return c.Accepted + c.Rejected + c.Modified + c.Ignored
}

type persistJob struct {
	userID  string
	profile *profile.Profile
	event   profile.ActionEvent
}

// Service is safe for concurrent use. Updates for one user are serialized;
// different users proceed in parallel.
type Service struct {
	store      profile.RecordStore
	publisher  Publisher
	metrics    Metrics
	logger     logging.Logger
	cfg        Config
	profileCfg profile.Config
	now        func() time.Time

	stripes []sync.Mutex

	mu       sync.RWMutex
	profiles map[string]*profile.Profile

	perfMu sync.Mutex
	perf   map[string]*CategoryPerformance

	queue     chan persistJob
	workersWg sync.WaitGroup
	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
	stop      chan struct{}
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithMetrics(m Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l logging.Logger) Option { return func(s *Service) { s.logger = l } }

func WithConfig(c Config) Option { return func(s *Service) { s.cfg = c } }

func WithProfileConfig(c profile.Config) Option { return func(s *Service) { s.profileCfg = c } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService starts the persistence workers. Call Close to drain them.
func NewService(store profile.RecordStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		cfg:        DefaultConfig(),
		profileCfg: profile.DefaultConfig(),
		now:        time.Now,
		profiles:   make(map[string]*profile.Profile),
		perf:       make(map[string]*CategoryPerformance),
		stop:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	s.logger = s.logger.Named("preference")
	s.cfg = s.cfg.withDefaults()
	s.stripes = make([]sync.Mutex, s.cfg.Stripes)
	s.queue = make(chan persistJob, s.cfg.QueueSize)
	for i := 0; i < s.cfg.Workers; i++ {
		s.workersWg.Add(1)
		go s.writer()
	}
	return s
}

func (s *Service) stripe(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}

// RecordAction applies e to the user's profile. Only an invalid event is an
// error; persistence and publish failures are logged and counted.
func (s *Service) RecordAction(ctx context.Context, e profile.ActionEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}

	lock := s.stripe(e.UserID)
	lock.Lock()
	current := s.load(ctx, e.UserID)
	next := profile.ApplyAction(current, e, s.profileCfg)
	s.mu.Lock()
	s.profiles[e.UserID] = next
	s.mu.Unlock()
	lock.Unlock()

	s.updatePerformance(e)
	if s.metrics != nil {
		s.metrics.ActionRecorded(string(e.Action))
	}
	s.enqueue(ctx, persistJob{userID: e.UserID, profile: next, event: e})

	if s.publisher != nil {
		if err := s.publisher.PublishAction(ctx, e); err != nil {
			s.logger.Warn("failed to publish action", logging.UserID(e.UserID), logging.Err(err))
			s.countFailure("publish")
		}
	}
	return nil
}

// load returns the in-memory profile, falling back to the store. A store
// error is treated as an unseen user.
func (s *Service) load(ctx context.Context, userID string) *profile.Profile {
	s.mu.RLock()
	p, ok := s.profiles[userID]
	s.mu.RUnlock()
	if ok {
		return p
	}
	if s.store == nil {
		return nil
	}
	stored, err := s.store.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load profile, starting fresh", logging.UserID(userID), logging.Err(err))
		s.countFailure("get")
		return nil
	}
	return stored
}

// Profile returns the user's profile, or nil for an unseen user. The result
// must not be modified.
func (s *Service) Profile(ctx context.Context, userID string) (*profile.Profile, error) {
	if userID == "" {
		return nil, errors.InvalidParam("user id is required")
	}
	lock := s.stripe(userID)
	lock.Lock()
	defer lock.Unlock()
	p := s.load(ctx, userID)
	if p != nil {
		s.mu.Lock()
		if _, ok := s.profiles[userID]; !ok {
			s.profiles[userID] = p
		}
		s.mu.Unlock()
	}
	return p, nil
}

// Insights summarizes a user's profile. Unseen users get default insights.
func (s *Service) Insights(ctx context.Context, userID string) (*profile.Insights, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	in := profile.BuildInsights(userID, p, s.now(), s.profileCfg)
	return &in, nil
}

// RecordShown counts suggestions displayed to a user.
func (s *Service) RecordShown(contextName string, categories ...string) {
	s.perfMu.Lock()
	defer s.perfMu.Unlock()
	for _, c := range categories {
		s.perfEntry(c, contextName).Shown++
	}
}

func (s *Service) perfEntry(category, contextName string) *CategoryPerformance {
	key := category + "|" + contextName
	cp, ok := s.perf[key]
	if !ok {
		cp = &CategoryPerformance{Category: category, Context: contextName}
		s.perf[key] = cp
	}
	return cp
}

func (s *Service) updatePerformance(e profile.ActionEvent) {
	if e.Category == "" {
		return
	}
	s.perfMu.Lock()
	defer s.perfMu.Unlock()
	cp := s.perfEntry(e.Category, e.Context)
	prev := cp.decided()
	switch e.Action {
	case profile.ActionAccept:
		cp.Accepted++
	case profile.ActionReject:
		cp.Rejected++
	case profile.ActionModify:
		cp.Modified++
	case profile.ActionIgnore:
		cp.Ignored++
	}
	n := float64(cp.decided())
	cp.AcceptanceRate = float64(cp.Accepted) / n
	cp.AvgConfidence = (cp.AvgConfidence*float64(prev) + e.Confidence) / n
}

// Performance returns the aggregates sorted by category then context.
func (s *Service) Performance() []CategoryPerformance {
	s.perfMu.Lock()
	out := make([]CategoryPerformance, 0, len(s.perf))
	for _, cp := range s.perf {
		out = append(out, *cp)
	}
	s.perfMu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Context < out[j].Context
	})
	return out
}

func (s *Service) enqueue(ctx context.Context, job persistJob) {
	if s.store == nil {
		return
	}
	// Close cannot stop the writers while a send is in flight.
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		s.logger.Warn("service closed, persisting inline", logging.UserID(job.userID))
		s.persist(job)
		return
	}
	defer s.closeMu.RUnlock()
	select {
	case s.queue <- job:
	case <-ctx.Done():
		s.logger.Warn("persistence enqueue abandoned", logging.UserID(job.userID), logging.Err(ctx.Err()))
		s.countFailure("enqueue")
	}
}

func (s *Service) writer() {
	defer s.workersWg.Done()
	for {
		select {
		case job := <-s.queue:
			s.persist(job)
		case <-s.stop:
			// drain what is left
			for {
				select {
				case job := <-s.queue:
					s.persist(job)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) persist(job persistJob) {
	if err := s.retry("put", func(ctx context.Context) error {
		return s.store.Put(ctx, job.userID, job.profile)
	}); err != nil {
		s.logger.Error("failed to persist profile", logging.UserID(job.userID), logging.Err(err))
		s.countFailure("put")
	}
	if err := s.retry("append_event", func(ctx context.Context) error {
		return s.store.AppendEvent(ctx, job.event)
	}); err != nil {
		s.logger.Error("failed to append action event", logging.UserID(job.userID), logging.Err(err))
		s.countFailure("append_event")
	}
}

func (s *Service) retry(op string, fn func(ctx context.Context) error) error {
	var err error
	backoff := s.cfg.RetryBackoff
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		err = fn(ctx)
		cancel()
		if err == nil {
			return nil
		}
		s.logger.Debug("store write failed", logging.String("operation", op), logging.Int("attempt", attempt+1), logging.Err(err))
	}
	return err
}

func (s *Service) countFailure(op string) {
	if s.metrics != nil {
		s.metrics.PersistenceFailed(op)
	}
}

// Close stops the writers after draining queued writes, or when ctx expires.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		close(s.stop)
		s.closeMu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		s.workersWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "preference writer did not drain")
	}
}
