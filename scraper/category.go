package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-movies/config"
	"github.com/aluiziolira/go-scrape-movies/models"
)

// CategorySession crawls one category at a time on an open Session.
type CategorySession struct {
	session Session
	cfg     *config.Config
	metrics *Metrics
}

// NewCategorySession binds a session to the crawl settings.
func NewCategorySession(session Session, cfg *config.Config, metrics *Metrics) *CategorySession {
	return &CategorySession{session: session, cfg: cfg, metrics: metrics}
}

// Scrape loads the category, extracts every entry in page order and returns
// the batch with its counters. Category-level failures are reported in
// CategoryResult.Err with a nil batch; the returned error is set only when the
// run must stop (session failure or cancellation).
//
// The category filter is reset on every exit path.
func (cs *CategorySession) Scrape(ctx context.Context, category models.Category) (*models.GenreBatch, *models.CategoryResult, error) {
	start := time.Now()
	result := &models.CategoryResult{Category: category}
	log := slog.With(slog.String("category", category.String()))

	defer func() {
		collapseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cs.collapseTimeout())
		defer cancel()
		if err := cs.session.Collapse(collapseCtx, category); err != nil {
			log.Warn("reset category filter", slog.Any("error", err))
		}
	}()

	defer func() {
		result.Duration = time.Since(start)
		status := models.StatusOK
		if result.Failed() {
			status = models.StatusFailed
		}
		cs.metrics.ObserveCategory(status, result.Duration)
	}()

	log.Info("category started")
	pagination, err := NewPaginator(cs.session, cs.cfg.MaxRevealRounds).Run(ctx, category)
	if pagination != nil {
		result.RevealRounds = pagination.Rounds
		result.Exhaustion = pagination.Exhaustion
		cs.metrics.AddRevealRounds(category.String(), pagination.Rounds)
	}
	if err != nil {
		result.Err = err
		cs.metrics.IncError(errorTypeLabel(err))
		if IsFatal(err) || ctx.Err() != nil {
			return nil, result, err
		}
		log.Error("category failed", slog.String("exhaustion", result.Exhaustion), slog.Any("error", err))
		return nil, result, nil
	}

	batch := &models.GenreBatch{
		Category:  category,
		Records:   make([]*models.MovieRecord, 0, len(pagination.Entries)),
		ScrapedAt: time.Now().UTC(),
	}
	for _, entry := range pagination.Entries {
		result.Attempted++
		ex, err := ExtractMovie(entry, cs.cfg.Selectors)
		if err != nil {
			result.Skipped++
			cs.metrics.IncSkipped(category.String())
			log.Debug("entry skipped", slog.Int("index", entry.Index), slog.Any("error", err))
			continue
		}
		for _, field := range ex.Absent {
			result.AbsentFields++
			cs.metrics.IncAbsent(field)
		}
		for _, field := range ex.ParseFailures {
			result.ParseFailures++
			cs.metrics.IncParseFailure(field)
		}
		batch.Records = append(batch.Records, ex.Record)
	}
	result.Emitted = batch.Len()
	cs.metrics.AddItems(category.String(), result.Emitted)

	log.Info("category scraped",
		slog.Int("entries", result.Attempted),
		slog.Int("records", result.Emitted),
		slog.Int("skipped", result.Skipped),
		slog.Int("parse_failures", result.ParseFailures),
		slog.Int("reveal_rounds", result.RevealRounds),
		slog.String("exhaustion", result.Exhaustion),
	)
	return batch, result, nil
}

func (cs *CategorySession) collapseTimeout() time.Duration {
	timeout := cs.cfg.NavigationTimeout + cs.cfg.SettleDelay
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return timeout
}
