package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-movies/config"
	"github.com/aluiziolira/go-scrape-movies/models"
	"github.com/aluiziolira/go-scrape-movies/parser"
)

// Field names used in Extraction and metric labels.
const (
	FieldRating   = "rating"
	FieldVotes    = "votes"
	FieldDuration = "duration"
)

var rankPrefix = regexp.MustCompile(`^\d+\.\s+`)

// Extraction is the outcome of reading one entry.
type Extraction struct {
	Record *models.MovieRecord
	// Absent lists optional fields that were not on the page.
	Absent []string
	// ParseFailures lists fields whose raw text could not be normalized.
	ParseFailures []string
}

// ExtractMovie reads one listing entry. Fields are read independently: a
// missing or malformed optional field never drops the record. Only a missing
// title does, with ErrMissingTitle.
func ExtractMovie(e *colly.HTMLElement, sel config.Selectors) (Extraction, error) {
	title := rankPrefix.ReplaceAllString(firstText(e.DOM, sel.Title), "")
	title = strings.TrimSpace(title)
	if title == "" {
		return Extraction{}, ErrMissingTitle
	}

	ex := Extraction{
		Record: &models.MovieRecord{
			Title: title,
			Link:  entryLink(e, sel.Link),
		},
	}
	record := ex.Record

	if raw := firstText(e.DOM, sel.Rating); raw != "" {
		record.RatingRaw = raw
		rating, err := parser.ParseRating(raw)
		if err != nil {
			ex.ParseFailures = append(ex.ParseFailures, FieldRating)
		}
		record.Rating = rating
	} else {
		record.RatingRaw = models.NotAvailable
		ex.Absent = append(ex.Absent, FieldRating)
	}

	if raw := stripParens(firstText(e.DOM, sel.Votes)); raw != "" {
		record.VotesRaw = raw
		votes, err := parser.ParseConvertedVotes(raw)
		if err != nil {
			ex.ParseFailures = append(ex.ParseFailures, FieldVotes)
		}
		record.ConvertedVotes = votes
	} else {
		record.VotesRaw = models.NotAvailable
		ex.Absent = append(ex.Absent, FieldVotes)
	}

	if raw := durationBadge(e.DOM, sel); raw != "" {
		record.DurationRaw = raw
		record.DurationMinutes = parser.ParseDurationMinutes(raw)
	} else {
		record.DurationRaw = models.NotAvailable
		ex.Absent = append(ex.Absent, FieldDuration)
	}

	return ex, nil
}

func firstText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func stripParens(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// durationBadge picks the runtime among the metadata badges (year, runtime,
// certificate, ...). The configured position wins when it looks like a
// duration; otherwise the first duration-shaped badge is used.
func durationBadge(s *goquery.Selection, sel config.Selectors) string {
	var badges []string
	s.Find(sel.Metadata).Each(func(_ int, b *goquery.Selection) {
		badges = append(badges, strings.TrimSpace(b.Text()))
	})

	if sel.DurationIndex < len(badges) && parser.IsDurationText(badges[sel.DurationIndex]) {
		return badges[sel.DurationIndex]
	}
	for _, badge := range badges {
		if parser.IsDurationText(badge) {
			return badge
		}
	}
	return ""
}

// entryLink returns the absolute title link without its tracking query.
func entryLink(e *colly.HTMLElement, selector string) string {
	if selector == "" {
		return ""
	}
	href, ok := e.DOM.Find(selector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}
	if e.Request != nil && e.Request.URL != nil {
		if abs := e.Request.AbsoluteURL(href); abs != "" {
			href = abs
		}
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
