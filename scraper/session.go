package scraper

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-movies/models"
)

// Session drives one listing page. A session is owned by a single worker and
// is never shared.
//
// Expand and Settle return ErrElementNotFound when a required control does not
// appear in time. RevealMore reports found=false once there is nothing more to
// load. Any ErrSession is fatal for the run.
type Session interface {
	// Expand applies the category filter.
	Expand(ctx context.Context, category models.Category) error
	// Settle waits for the filtered results to render.
	Settle(ctx context.Context) error
	// ScrollToBottom brings lazily loaded content into view.
	ScrollToBottom(ctx context.Context) error
	// RevealMore activates the "more results" control once.
	RevealMore(ctx context.Context) (bool, error)
	// Entries returns every rendered entry in document order.
	Entries(ctx context.Context) ([]*colly.HTMLElement, error)
	// Collapse undoes whatever Expand applied for the category.
	Collapse(ctx context.Context, category models.Category) error
	Close() error
}

// SessionOpener creates a fresh session for a worker.
type SessionOpener func(ctx context.Context) (Session, error)

// elementsFromDocument wraps every entry match so that browser snapshots and
// static pages share the same extraction code.
func elementsFromDocument(doc *goquery.Document, entrySelector string, pageURL *url.URL) []*colly.HTMLElement {
	resp := &colly.Response{
		Request: &colly.Request{URL: pageURL, Ctx: colly.NewContext()},
		Ctx:     colly.NewContext(),
	}

	var out []*colly.HTMLElement
	doc.Find(entrySelector).Each(func(i int, s *goquery.Selection) {
		out = append(out, colly.NewHTMLElementFromSelectionNode(resp, s, s.Get(0), i))
	})
	return out
}
