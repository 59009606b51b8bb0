// Package models defines data structures for the scraper.
package models

import (
	"regexp"
	"strings"
	"time"
)

// NotAvailable marks an optional field that could not be read from the page.
const NotAvailable = "N/A"

// DefaultCategories is the genre set crawled when none is configured.
var DefaultCategories = []Category{"Action", "Comedy", "Drama", "Horror", "Family"}

var stemPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Category is a genre label as shown by the listing's filter panel.
type Category string

// Stem is the lowercase, underscore-separated form used for file and table names.
func (c Category) Stem() string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(c))), "-", "_")
}

// ValidStem reports whether the stem is safe to use as a table name.
func (c Category) ValidStem() bool {
	return stemPattern.MatchString(c.Stem())
}

// FileName returns the output file name for the category, e.g. imdb_movies_comedy.csv.
func (c Category) FileName(ext string) string {
	return "imdb_movies_" + c.Stem() + "." + strings.TrimPrefix(ext, ".")
}

func (c Category) String() string {
	return string(c)
}

// MovieRecord is one listing entry. Raw fields keep the text as read from the
// page (or NotAvailable); derived fields are nil when absent or unparseable.
type MovieRecord struct {
	Title           string   `json:"title"`
	Link            string   `json:"link,omitempty"`
	RatingRaw       string   `json:"rating_raw"`
	Rating          *float64 `json:"rating"`
	VotesRaw        string   `json:"votes_raw"`
	ConvertedVotes  *int64   `json:"converted_votes"`
	DurationRaw     string   `json:"duration_raw"`
	DurationMinutes *int     `json:"duration_minutes"`
}

// GenreBatch holds the records scraped for a single category, in encounter order.
type GenreBatch struct {
	Category  Category
	Records   []*MovieRecord
	ScrapedAt time.Time
}

// Len returns the number of records in the batch.
func (b *GenreBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// CategoryResult holds crawl counters for one category.
type CategoryResult struct {
	Category      Category
	Attempted     int
	Emitted       int
	Skipped       int
	AbsentFields  int
	ParseFailures int
	RevealRounds  int
	Exhaustion    string
	Duration      time.Duration
	Err           error
}

// Failed reports whether the category could not be crawled.
func (r *CategoryResult) Failed() bool {
	return r != nil && r.Err != nil
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	Categories   []*CategoryResult
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
}
