package scraper

import (
	"context"
	"log/slog"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-movies/models"
)

// PaginationState is a step of the per-category interaction.
type PaginationState int

const (
	StateClosed PaginationState = iota
	StateExpanding
	StateLoading
	StateLoaded
	StateExhausted
)

func (s PaginationState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateExpanding:
		return "expanding"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Reasons a category stopped loading more results.
const (
	ExhaustedNoMore       = "no_more_results"
	ExhaustedRoundCap     = "round_cap"
	ExhaustedRevealFailed = "reveal_failed"
	ExhaustedExpandFailed = "expand_failed"
	ExhaustedSettleFailed = "settle_failed"
)

// Pagination is everything rendered for one category.
type Pagination struct {
	Entries    []*colly.HTMLElement
	Rounds     int
	Exhaustion string
}

// Paginator loads a category's results through a Session, revealing more
// results at most maxRounds times.
type Paginator struct {
	session   Session
	maxRounds int
	state     PaginationState
}

// NewPaginator returns a paginator in the Closed state.
func NewPaginator(session Session, maxRounds int) *Paginator {
	if maxRounds < 0 {
		maxRounds = 0
	}
	return &Paginator{session: session, maxRounds: maxRounds}
}

// State returns the current state.
func (p *Paginator) State() PaginationState {
	return p.state
}

// Run drives the category from Closed to Exhausted. A non-nil error with a
// non-nil Pagination means the category failed; callers check IsFatal to
// decide whether the session is still usable.
func (p *Paginator) Run(ctx context.Context, category models.Category) (*Pagination, error) {
	result := &Pagination{}
	log := slog.With(slog.String("category", category.String()))

	p.state = StateExpanding
	if err := p.session.Expand(ctx, category); err != nil {
		p.state = StateExhausted
		result.Exhaustion = ExhaustedExpandFailed
		return result, err
	}
	if err := p.session.Settle(ctx); err != nil {
		p.state = StateExhausted
		result.Exhaustion = ExhaustedSettleFailed
		return result, err
	}

	for {
		p.state = StateLoading
		if result.Rounds >= p.maxRounds {
			result.Exhaustion = ExhaustedRoundCap
			break
		}

		if err := p.session.ScrollToBottom(ctx); err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				p.state = StateExhausted
				return result, err
			}
			log.Debug("scroll failed", slog.Any("error", err))
		}

		found, err := p.session.RevealMore(ctx)
		if err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				p.state = StateExhausted
				return result, err
			}
			log.Warn("reveal more failed, keeping loaded results",
				slog.Int("round", result.Rounds+1),
				slog.Any("error", err),
			)
			result.Exhaustion = ExhaustedRevealFailed
			break
		}
		if !found {
			result.Exhaustion = ExhaustedNoMore
			break
		}

		result.Rounds++
		p.state = StateLoaded
		log.Debug("revealed more results", slog.Int("round", result.Rounds))
	}

	p.state = StateExhausted
	entries, err := p.session.Entries(ctx)
	if err != nil {
		return result, err
	}
	result.Entries = entries
	return result, nil
}
