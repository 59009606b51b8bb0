package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-movies/config"
	"github.com/aluiziolira/go-scrape-movies/models"
)

const scrollScript = `window.scrollTo(0, document.body.scrollHeight);`

// clickScript clicks the first node matching an XPath expression and reports
// whether one was found.
const clickScript = `(() => {
	const node = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!node) { return false; }
	node.scrollIntoView();
	node.click();
	return true;
})()`

// chromeSession drives a live browser tab with chromedp.
type chromeSession struct {
	cfg   *config.Config
	stats *runStats

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	browserCtx    context.Context

	panelOpen bool
	opened    map[models.Category]bool
}

// newChromeSession starts a browser and loads the listing page.
func newChromeSession(ctx context.Context, cfg *config.Config, stats *runStats) (*chromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)

	// The browser lives until Close, independent of the run context, so that
	// filters can still be reset while shutting down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		cfg:           cfg,
		stats:         stats,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		browserCtx:    browserCtx,
		opened:        make(map[models.Category]bool),
	}

	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, ErrSession{Err: fmt.Errorf("start browser: %w", err)}
	}

	start := time.Now()
	s.stats.incRequest()
	err := s.run(ctx, cfg.NavigationTimeout,
		chromedp.Navigate(cfg.BaseURL),
		chromedp.WaitVisible(cfg.Selectors.ResultList, chromedp.ByQuery),
	)
	s.stats.observeDuration(time.Since(start))
	if err != nil {
		s.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrSession{Err: fmt.Errorf("load %s: %w", cfg.BaseURL, err)}
	}
	slog.Debug("browser session ready", slog.String("url", cfg.BaseURL))
	return s, nil
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// waitAndClick waits for an XPath match to become visible and clicks it
// through the page, which also works for controls covered by overlays.
func (s *chromeSession) waitAndClick(ctx context.Context, step, xpath string, timeout time.Duration) error {
	literal, err := json.Marshal(xpath)
	if err != nil {
		return fmt.Errorf("encode selector: %w", err)
	}

	var clicked bool
	err = s.run(ctx, timeout,
		chromedp.WaitVisible(xpath, chromedp.BySearch),
		chromedp.Evaluate(fmt.Sprintf(clickScript, literal), &clicked),
	)
	if err != nil {
		return s.classify(ctx, step, xpath, err)
	}
	if !clicked {
		return ErrElementNotFound{Step: step, Selector: xpath}
	}
	return nil
}

func (s *chromeSession) classify(ctx context.Context, step, selector string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrElementNotFound{Step: step, Selector: selector, Err: err}
	}
	return ErrSession{Err: fmt.Errorf("%s: %w", step, err)}
}

func (s *chromeSession) toggleSelector(category models.Category) string {
	return fmt.Sprintf(s.cfg.Selectors.FilterToggle, category)
}

func (s *chromeSession) Expand(ctx context.Context, category models.Category) error {
	if !s.panelOpen {
		if err := s.waitAndClick(ctx, "open filter panel", s.cfg.Selectors.FilterPanel, s.cfg.NavigationTimeout); err != nil {
			return err
		}
		s.panelOpen = true
	}
	if err := s.waitAndClick(ctx, "select category", s.toggleSelector(category), s.cfg.NavigationTimeout); err != nil {
		return err
	}
	s.opened[category] = true
	return nil
}

func (s *chromeSession) Settle(ctx context.Context) error {
	err := s.run(ctx, s.cfg.SettleDelay+s.cfg.NavigationTimeout,
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.WaitVisible(s.cfg.Selectors.ResultList, chromedp.ByQuery),
	)
	if err != nil {
		return s.classify(ctx, "settle results", s.cfg.Selectors.ResultList, err)
	}
	return nil
}

func (s *chromeSession) ScrollToBottom(ctx context.Context) error {
	err := s.run(ctx, s.cfg.ScrollDelay+s.cfg.NavigationTimeout,
		chromedp.Evaluate(scrollScript, nil),
		chromedp.Sleep(s.cfg.ScrollDelay),
	)
	if err != nil {
		return s.classify(ctx, "scroll", "window", err)
	}
	return nil
}

func (s *chromeSession) RevealMore(ctx context.Context) (bool, error) {
	err := s.waitAndClick(ctx, "reveal more", s.cfg.Selectors.RevealMore, s.cfg.RevealTimeout)
	var missing ErrElementNotFound
	if errors.As(err, &missing) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.stats.incRequest()
	if err := s.run(ctx, s.cfg.RevealDelay+s.cfg.NavigationTimeout, chromedp.Sleep(s.cfg.RevealDelay)); err != nil {
		return true, s.classify(ctx, "wait for results", s.cfg.Selectors.Entry, err)
	}
	return true, nil
}

func (s *chromeSession) Entries(ctx context.Context) ([]*colly.HTMLElement, error) {
	var (
		html     string
		location string
	)
	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, s.classify(ctx, "snapshot page", "html", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page snapshot: %w", err)
	}
	pageURL, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse page location: %w", err)
	}
	return elementsFromDocument(doc, s.cfg.Selectors.Entry, pageURL), nil
}

// Collapse deselects the category if this session selected it.
func (s *chromeSession) Collapse(ctx context.Context, category models.Category) error {
	if !s.opened[category] {
		return nil
	}
	if err := s.waitAndClick(ctx, "deselect category", s.toggleSelector(category), s.cfg.NavigationTimeout); err != nil {
		return err
	}
	delete(s.opened, category)
	return s.run(ctx, s.cfg.SettleDelay+s.cfg.NavigationTimeout, chromedp.Sleep(s.cfg.SettleDelay))
}

func (s *chromeSession) Close() error {
	s.browserCancel()
	s.allocCancel()
	return nil
}
