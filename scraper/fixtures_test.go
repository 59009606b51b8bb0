package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-movies/config"
	"github.com/aluiziolira/go-scrape-movies/models"
)

type entryFixture struct {
	Rank     int
	Title    string
	Link     string
	Rating   string
	Votes    string
	Metadata []string
}

func (f entryFixture) html() string {
	var b strings.Builder
	b.WriteString(`<li class="ipc-metadata-list-summary-item"><div class="sc-title">`)
	if f.Title != "" {
		fmt.Fprintf(&b, `<a class="ipc-title-link-wrapper" href="%s"><h3 class="ipc-title__text">%d. %s</h3></a>`, f.Link, f.Rank, f.Title)
	}
	b.WriteString(`<div class="dli-title-metadata">`)
	for _, m := range f.Metadata {
		fmt.Fprintf(&b, `<span class="sc-b189961a-8 dli-title-metadata-item">%s</span>`, m)
	}
	b.WriteString(`</div>`)
	if f.Rating != "" {
		fmt.Fprintf(&b, `<span class="ipc-rating-star--rating">%s</span>`, f.Rating)
	}
	if f.Votes != "" {
		fmt.Fprintf(&b, `<span class="ipc-rating-star--voteCount">&nbsp;%s</span>`, f.Votes)
	}
	b.WriteString(`</div></li>`)
	return b.String()
}

// listingPage renders a results page. next, when set, becomes the next-page link.
func listingPage(next string, entries ...entryFixture) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="ipc-metadata-list">`)
	for _, e := range entries {
		b.WriteString(e.html())
	}
	b.WriteString(`</ul>`)
	if next != "" {
		fmt.Fprintf(&b, `<a class="next-page" href="%s">50 more</a>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// comedyEntries is a page where the second entry has no title and the third
// has only a runtime.
var comedyEntries = []entryFixture{
	{Rank: 1, Title: "A", Link: "/title/tt0000001/?ref_=sr_t_1", Rating: "7.5", Votes: "(12K)", Metadata: []string{"2024", "1h 50m", "PG-13"}},
	{Rank: 2, Link: "/title/tt0000002/", Rating: "6.1", Votes: "(3.4K)", Metadata: []string{"2024", "1h 30m"}},
	{Rank: 3, Title: "C", Link: "/title/tt0000003/", Metadata: []string{"2024", "2h"}},
}

func mustElements(t *testing.T, html string) []*colly.HTMLElement {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	pageURL, _ := url.Parse("https://example.test/search?genres=comedy")
	return elementsFromDocument(doc, config.DefaultSelectors().Entry, pageURL)
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "https://example.test/search"
	cfg.Source = config.SourceStatic
	cfg.Categories = []models.Category{"Comedy"}
	cfg.MaxRetries = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 4 * time.Millisecond
	cfg.NavigationTimeout = time.Second
	cfg.RevealTimeout = time.Second
	cfg.SettleDelay = 0
	cfg.ScrollDelay = 0
	cfg.RevealDelay = 0
	return cfg
}

// fakeSession serves canned pages per category.
type fakeSession struct {
	t *testing.T

	pages      map[models.Category]string
	expandErr  map[models.Category]error
	settleErr  error
	reveals    int // reveals available per category; negative means unlimited
	revealErr  error
	entriesErr error

	mu           sync.Mutex
	current      models.Category
	revealed     int
	revealCalls  int
	expanded     []models.Category
	collapsed    []models.Category
	collapseCtxs []error
	closed       bool
}

func (f *fakeSession) Expand(_ context.Context, category models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expanded = append(f.expanded, category)
	f.revealed = 0
	if err := f.expandErr[category]; err != nil {
		return err
	}
	f.current = category
	return nil
}

func (f *fakeSession) Settle(context.Context) error {
	return f.settleErr
}

func (f *fakeSession) ScrollToBottom(context.Context) error {
	return nil
}

func (f *fakeSession) RevealMore(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revealCalls++
	if f.revealErr != nil {
		return false, f.revealErr
	}
	if f.reveals >= 0 && f.revealed >= f.reveals {
		return false, nil
	}
	f.revealed++
	return true, nil
}

func (f *fakeSession) Entries(context.Context) ([]*colly.HTMLElement, error) {
	if f.entriesErr != nil {
		return nil, f.entriesErr
	}
	f.mu.Lock()
	html := f.pages[f.current]
	f.mu.Unlock()
	if html == "" {
		return nil, nil
	}
	return mustElements(f.t, html), nil
}

func (f *fakeSession) Collapse(ctx context.Context, category models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collapsed = append(f.collapsed, category)
	f.collapseCtxs = append(f.collapseCtxs, ctx.Err())
	f.current = ""
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
