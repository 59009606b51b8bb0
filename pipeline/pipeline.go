package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-movies/config"
	"github.com/aluiziolira/go-scrape-movies/models"
	"github.com/aluiziolira/go-scrape-movies/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when writers do not drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for in-flight writes.
var drainTimeout = 2 * time.Minute

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(ctx context.Context, batch *models.GenreBatch) error
	Close() error
	Validate() error
}

// ErrPersistence marks a category whose batch could not be written.
type ErrPersistence struct {
	Category models.Category
	Err      error
}

func (e ErrPersistence) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Category, e.Err)
}

func (e ErrPersistence) Unwrap() error {
	return e.Err
}

// Outcome is the persistence result for one category.
type Outcome struct {
	Category models.Category
	Records  int
	Dropped  int
	Err      error
}

// Pipeline validates, de-duplicates and writes category batches.
type Pipeline struct {
	ctx     context.Context
	writer  OutputWriter
	batchCh chan *models.GenreBatch

	wg sync.WaitGroup

	seen *lru.Cache[string, struct{}]

	metrics metrics

	outcomeMu sync.Mutex
	outcomes  []Outcome

	mu     sync.Mutex // guards closed
	closed bool

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline whose queue holds cfg.PipelineBuffer batches.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}
	buffer := cfg.PipelineBuffer
	if buffer <= 0 {
		buffer = 1
	}

	p := &Pipeline{
		ctx:      ctx,
		writer:   writer,
		batchCh:  make(chan *models.GenreBatch, buffer),
		metrics:  newMetrics(),
		shutdown: make(chan struct{}),
	}
	if cfg.DedupeMaxSize > 0 {
		seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
		if err != nil {
			slog.Warn("de-duplication disabled", slog.Any("error", err))
		} else {
			p.seen = seen
		}
	}
	return p
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues a category batch for writing.
func (p *Pipeline) Process(batch *models.GenreBatch) error {
	if batch == nil {
		return nil
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPipelineClosed
	}

	return p.enqueue(batch)
}

// Close stops accepting batches and waits for queued writes to finish.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.batchCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrPipelineCloseTimeout, drainTimeout)
	}
}

// Outcome returns the persistence result recorded for category.
func (p *Pipeline) Outcome(category models.Category) (Outcome, bool) {
	p.outcomeMu.Lock()
	defer p.outcomeMu.Unlock()
	for _, o := range p.outcomes {
		if o.Category == category {
			return o, true
		}
	}
	return Outcome{}, false
}

// Outcomes returns every recorded result in completion order.
func (p *Pipeline) Outcomes() []Outcome {
	p.outcomeMu.Lock()
	defer p.outcomeMu.Unlock()
	out := make([]Outcome, len(p.outcomes))
	copy(out, p.outcomes)
	return out
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				snapshot := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("persisted_records", snapshot["persisted_records"].(int64)),
					slog.Int64("failed_batches", snapshot["failed_batches"].(int64)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	// Writes outlive a cancelled run so that scraped batches are not half-written.
	writeCtx := context.WithoutCancel(p.ctx)

	for batch := range p.batchCh {
		prepared, dropped := p.prepare(batch)
		outcome := Outcome{Category: batch.Category, Records: prepared.Len(), Dropped: dropped}

		if err := p.writer.Write(writeCtx, prepared); err != nil {
			outcome.Err = ErrPersistence{Category: batch.Category, Err: err}
			p.metrics.addFailedBatch()
			slog.Error("persist batch",
				slog.String("category", batch.Category.String()),
				slog.Int("records", prepared.Len()),
				slog.Any("error", err),
			)
		} else {
			p.metrics.addPersisted(prepared.Len())
			slog.Debug("batch persisted",
				slog.String("category", batch.Category.String()),
				slog.Int("records", prepared.Len()),
				slog.Int("dropped", dropped),
			)
		}
		p.recordOutcome(outcome)
	}
}

// prepare keeps records that validate and have not been seen for the same
// category, preserving encounter order.
func (p *Pipeline) prepare(batch *models.GenreBatch) (*models.GenreBatch, int) {
	out := &models.GenreBatch{
		Category:  batch.Category,
		ScrapedAt: batch.ScrapedAt,
		Records:   make([]*models.MovieRecord, 0, len(batch.Records)),
	}
	dropped := 0
	for _, record := range batch.Records {
		if err := parser.ValidateRecord(record); err != nil {
			p.metrics.addValidation("invalid_record")
			dropped++
			continue
		}
		if record.Link != "" && p.seen != nil {
			key := batch.Category.Stem() + "|" + record.Link
			if found, _ := p.seen.ContainsOrAdd(key, struct{}{}); found {
				p.metrics.addValidation("duplicate_link")
				dropped++
				continue
			}
		}
		out.Records = append(out.Records, record)
	}
	return out, dropped
}

func (p *Pipeline) recordOutcome(o Outcome) {
	p.outcomeMu.Lock()
	p.outcomes = append(p.outcomes, o)
	p.outcomeMu.Unlock()
}

func (p *Pipeline) enqueue(batch *models.GenreBatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.batchCh <- batch:
		return nil
	}
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	persisted  int64
	failed     int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addPersisted(n int) {
	m.mu.Lock()
	m.persisted += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addFailedBatch() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"persisted_records": m.persisted,
		"failed_batches":    m.failed,
		"validation_errors": copyValidation,
	}
}
