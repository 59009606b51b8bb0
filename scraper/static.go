package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-movies/config"
	"github.com/aluiziolira/go-scrape-movies/models"
)

// staticSession reads server-rendered listing pages with colly. The category
// filter is a query parameter and "reveal more" follows the next-page link.
type staticSession struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	stats     *runStats
	base      *url.URL

	// Per-visit state, written by collector callbacks. Visits are synchronous.
	status   int
	listSeen bool
	next     string
	entries  []*colly.HTMLElement
}

func newStaticSession(cfg *config.Config, stats *runStats, transport http.RoundTripper) (*staticSession, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true

	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	collector.WithTransport(transport)

	s := &staticSession{
		cfg:       cfg,
		collector: collector,
		retry:     newRetryManager(cfg, stats),
		stats:     stats,
		base:      parsed,
	}
	s.configureHandlers()
	return s, nil
}

func (s *staticSession) configureHandlers() {
	s.collector.OnResponse(func(r *colly.Response) {
		s.status = r.StatusCode
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			s.status = r.StatusCode
		}
	})

	s.collector.OnHTML(s.cfg.Selectors.ResultList, func(*colly.HTMLElement) {
		s.listSeen = true
	})

	s.collector.OnHTML(s.cfg.Selectors.Entry, func(e *colly.HTMLElement) {
		s.entries = append(s.entries, e)
	})

	if s.cfg.Selectors.NextPage != "" {
		s.collector.OnHTML(s.cfg.Selectors.NextPage, func(e *colly.HTMLElement) {
			if s.next != "" {
				return
			}
			if href := e.Attr("href"); href != "" {
				s.next = e.Request.AbsoluteURL(href)
			}
		})
	}
}

// categoryURL sets the category query parameter on the base URL.
func (s *staticSession) categoryURL(category models.Category) string {
	u := *s.base
	q := u.Query()
	q.Set(s.cfg.CategoryParam, strings.ToLower(category.String()))
	u.RawQuery = q.Encode()
	return u.String()
}

// visit loads target, retrying transient failures with backoff. Connection
// failures that survive every retry make the session unusable.
func (s *staticSession) visit(ctx context.Context, target string) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.status = 0
		s.next = ""
		start := time.Now()
		s.stats.incRequest()
		err := s.collector.Visit(target)
		s.stats.observeDuration(time.Since(start))
		if err == nil && s.status < http.StatusBadRequest {
			return nil
		}

		classified := classifyError(err, s.status)
		if classified == nil {
			classified = fmt.Errorf("http status %d", s.status)
		}
		label := errorTypeLabel(classified)
		s.stats.recordError(label)
		slog.Warn("request error",
			slog.String("url", target),
			slog.String("category", label),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		if !retryable(classified) || !s.retry.Wait(ctx, attempt) {
			var conn ErrConnection
			if errors.As(classified, &conn) {
				return ErrSession{Err: classified}
			}
			return classified
		}
	}
}

func (s *staticSession) Expand(ctx context.Context, category models.Category) error {
	s.entries = nil
	s.listSeen = false
	target := s.categoryURL(category)
	if err := s.visit(ctx, target); err != nil {
		var notFound ErrNotFound
		if errors.As(err, &notFound) {
			return ErrElementNotFound{Step: "select category", Selector: target, Err: err}
		}
		return err
	}
	return nil
}

func (s *staticSession) Settle(context.Context) error {
	if !s.listSeen {
		return ErrElementNotFound{Step: "settle results", Selector: s.cfg.Selectors.ResultList}
	}
	return nil
}

func (s *staticSession) ScrollToBottom(context.Context) error {
	return nil
}

func (s *staticSession) RevealMore(ctx context.Context) (bool, error) {
	if s.next == "" {
		return false, nil
	}
	if err := s.visit(ctx, s.next); err != nil {
		var notFound ErrNotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *staticSession) Entries(context.Context) ([]*colly.HTMLElement, error) {
	out := make([]*colly.HTMLElement, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *staticSession) Collapse(context.Context, models.Category) error {
	s.entries = nil
	s.listSeen = false
	s.next = ""
	return nil
}

func (s *staticSession) Close() error {
	return nil
}

// retryManager paces retries with capped exponential backoff.
type retryManager struct {
	cfg   *config.Config
	stats *runStats
}

func newRetryManager(cfg *config.Config, stats *runStats) *retryManager {
	return &retryManager{cfg: cfg, stats: stats}
}

// Wait sleeps before retry number attempt and reports whether the retry
// should go ahead.
func (rm *retryManager) Wait(ctx context.Context, attempt int) bool {
	if attempt > rm.cfg.MaxRetries {
		return false
	}
	rm.stats.incRetry()

	timer := time.NewTimer(rm.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
