package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-movies/config"
	"github.com/aluiziolira/go-scrape-movies/models"
	"github.com/aluiziolira/go-scrape-movies/pipeline"
)

// Scraper crawls the configured categories and hands each batch to a pipeline.
type Scraper struct {
	cfg       *config.Config
	opener    SessionOpener
	transport http.RoundTripper
	Metrics   *Metrics

	stats *runStats
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithSessionOpener replaces the session factory selected by cfg.Source.
func WithSessionOpener(opener SessionOpener) Option {
	return func(s *Scraper) {
		s.opener = opener
	}
}

// WithTransport sets the HTTP transport used by static sessions.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Scraper) {
		s.transport = rt
	}
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, opts ...Option) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	metrics := NewMetrics()
	s := &Scraper{
		cfg:     cfg,
		Metrics: metrics,
		stats:   newRunStats(metrics),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.opener == nil {
		s.opener = s.openSession
	}
	return s, nil
}

func (s *Scraper) openSession(ctx context.Context) (Session, error) {
	switch s.cfg.Source {
	case config.SourceStatic:
		return newStaticSession(s.cfg, s.stats, s.transport)
	default:
		return newChromeSession(ctx, s.cfg, s.stats)
	}
}

// Run crawls every configured category. A failed category is recorded in the
// result and the run moves on; a session failure stops the run and is
// returned after every session has been closed. Category results keep the
// configured order.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	categories := s.cfg.Categories
	results := make([]*models.CategoryResult, len(categories))

	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	fail := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	workers := min(s.cfg.Parallelism, len(categories))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.work(ctx, worker, jobs, categories, results, p, fail)
		}(w)
	}

feed:
	for i := range categories {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	result := &models.ScraperResult{
		StartTime: start,
		EndTime:   time.Now(),
	}
	for i, r := range results {
		if r == nil {
			r = &models.CategoryResult{Category: categories[i], Err: fmt.Errorf("not attempted: %w", context.Cause(ctx))}
		}
		if r.Err != nil {
			s.stats.recordCategoryError(errorTypeLabel(r.Err))
		}
		result.TotalCount += r.Emitted
		result.Categories = append(result.Categories, r)
	}
	result.ErrorCount = s.stats.errorCount()
	result.ErrorsByType = s.stats.snapshotErrors()
	result.RetryCount = s.stats.retryCount()
	result.RequestCount = s.stats.requestCount()

	if fatalErr != nil {
		return result, fmt.Errorf("scrape aborted: %w", fatalErr)
	}
	if err := parent.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Scraper) work(
	ctx context.Context,
	worker int,
	jobs <-chan int,
	categories []models.Category,
	results []*models.CategoryResult,
	p *pipeline.Pipeline,
	fail func(error),
) {
	log := slog.With(slog.Int("worker", worker))

	session, err := s.opener(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("open session", slog.Any("error", err))
		fail(asSessionError(err))
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("close session", slog.Any("error", err))
		}
	}()

	cs := NewCategorySession(session, s.cfg, s.Metrics)
	for idx := range jobs {
		batch, result, err := cs.Scrape(ctx, categories[idx])
		results[idx] = result
		if err != nil {
			// Anything else returned here is a cancellation already in progress.
			if IsFatal(err) {
				log.Error("session failed", slog.String("category", categories[idx].String()), slog.Any("error", err))
				fail(err)
			}
			return
		}
		if batch == nil {
			continue
		}
		if err := p.Process(batch); err != nil {
			log.Error("pipeline process error",
				slog.String("category", categories[idx].String()),
				slog.Any("error", err),
			)
			result.Err = err
		}
	}
}

func asSessionError(err error) error {
	if IsFatal(err) {
		return err
	}
	return ErrSession{Err: err}
}

// runStats aggregates request-level counters across sessions.
type runStats struct {
	metrics *Metrics

	requests int64
	retries  int64
	errors   int64

	mu           sync.Mutex
	errorsByType map[string]int
}

func newRunStats(metrics *Metrics) *runStats {
	return &runStats{metrics: metrics, errorsByType: make(map[string]int)}
}

func (rs *runStats) incRequest() {
	atomic.AddInt64(&rs.requests, 1)
	rs.metrics.IncRequest("started")
}

func (rs *runStats) observeDuration(d time.Duration) {
	rs.metrics.ObserveDuration(d)
}

func (rs *runStats) incRetry() {
	atomic.AddInt64(&rs.retries, 1)
	rs.metrics.IncRetries()
}

// recordError counts a request-level failure.
func (rs *runStats) recordError(label string) {
	atomic.AddInt64(&rs.errors, 1)
	rs.mu.Lock()
	rs.errorsByType[label]++
	rs.mu.Unlock()
	rs.metrics.IncError(label)
}

// recordCategoryError counts a failed category. Its metric was emitted when
// the category finished.
func (rs *runStats) recordCategoryError(label string) {
	atomic.AddInt64(&rs.errors, 1)
	rs.mu.Lock()
	rs.errorsByType[label]++
	rs.mu.Unlock()
}

func (rs *runStats) requestCount() int {
	return int(atomic.LoadInt64(&rs.requests))
}

func (rs *runStats) retryCount() int {
	return int(atomic.LoadInt64(&rs.retries))
}

func (rs *runStats) errorCount() int {
	return int(atomic.LoadInt64(&rs.errors))
}

func (rs *runStats) snapshotErrors() map[string]int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[string]int, len(rs.errorsByType))
	for k, v := range rs.errorsByType {
		out[k] = v
	}
	return out
}
