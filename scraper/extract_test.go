package scraper

import (
	"errors"
	"reflect"
	"testing"

	"github.com/aluiziolira/go-scrape-movies/config"
	"github.com/aluiziolira/go-scrape-movies/models"
)

func extractOne(t *testing.T, entry entryFixture, sel config.Selectors) (Extraction, error) {
	t.Helper()
	elements := mustElements(t, listingPage("", entry))
	if len(elements) != 1 {
		t.Fatalf("fixture produced %d entries, want 1", len(elements))
	}
	return ExtractMovie(elements[0], sel)
}

func TestExtractMovieFullEntry(t *testing.T) {
	ex, err := extractOne(t, comedyEntries[0], config.DefaultSelectors())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	r := ex.Record

	if r.Title != "A" {
		t.Fatalf("title = %q, want %q", r.Title, "A")
	}
	if r.Link != "https://example.test/title/tt0000001/" {
		t.Fatalf("link = %q", r.Link)
	}
	if r.RatingRaw != "7.5" || r.Rating == nil || *r.Rating != 7.5 {
		t.Fatalf("rating = %q/%v", r.RatingRaw, r.Rating)
	}
	if r.VotesRaw != "12K" || r.ConvertedVotes == nil || *r.ConvertedVotes != 12000 {
		t.Fatalf("votes = %q/%v", r.VotesRaw, r.ConvertedVotes)
	}
	if r.DurationRaw != "1h 50m" || r.DurationMinutes == nil || *r.DurationMinutes != 110 {
		t.Fatalf("duration = %q/%v", r.DurationRaw, r.DurationMinutes)
	}
	if len(ex.Absent) != 0 || len(ex.ParseFailures) != 0 {
		t.Fatalf("unexpected absent=%v failures=%v", ex.Absent, ex.ParseFailures)
	}
}

func TestExtractMovieAbsentFields(t *testing.T) {
	ex, err := extractOne(t, entryFixture{Rank: 7, Title: "Bare"}, config.DefaultSelectors())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	r := ex.Record

	if r.RatingRaw != models.NotAvailable || r.VotesRaw != models.NotAvailable || r.DurationRaw != models.NotAvailable {
		t.Fatalf("absent raw fields should be %q: %+v", models.NotAvailable, r)
	}
	if r.Rating != nil || r.ConvertedVotes != nil || r.DurationMinutes != nil {
		t.Fatalf("absent derived fields should be nil: %+v", r)
	}
	if want := []string{FieldRating, FieldVotes, FieldDuration}; !reflect.DeepEqual(ex.Absent, want) {
		t.Fatalf("absent = %v, want %v", ex.Absent, want)
	}
	if r.Link != "" {
		t.Fatalf("link = %q, want empty", r.Link)
	}
}

func TestExtractMovieMissingTitle(t *testing.T) {
	_, err := extractOne(t, comedyEntries[1], config.DefaultSelectors())
	if !errors.Is(err, ErrMissingTitle) {
		t.Fatalf("expected ErrMissingTitle, got %v", err)
	}
}

func TestExtractMovieUnparseableValuesKeepRaw(t *testing.T) {
	entry := entryFixture{Rank: 1, Title: "Odd", Rating: "great", Votes: "(lots)", Metadata: []string{"2024", "soon"}}
	ex, err := extractOne(t, entry, config.DefaultSelectors())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	r := ex.Record

	if r.RatingRaw != "great" || r.Rating != nil {
		t.Fatalf("rating = %q/%v", r.RatingRaw, r.Rating)
	}
	if r.VotesRaw != "lots" || r.ConvertedVotes != nil {
		t.Fatalf("votes = %q/%v", r.VotesRaw, r.ConvertedVotes)
	}
	if want := []string{FieldRating, FieldVotes}; !reflect.DeepEqual(ex.ParseFailures, want) {
		t.Fatalf("parse failures = %v, want %v", ex.ParseFailures, want)
	}
	if r.DurationRaw != models.NotAvailable {
		t.Fatalf("duration = %q, want %q", r.DurationRaw, models.NotAvailable)
	}
}

func TestExtractMovieDurationBadge(t *testing.T) {
	tests := []struct {
		name     string
		metadata []string
		index    int
		wantRaw  string
		wantMins int
	}{
		{name: "configured position", metadata: []string{"2024", "2h 5m", "R"}, index: 1, wantRaw: "2h 5m", wantMins: 125},
		{name: "shifted badges", metadata: []string{"2024", "PG-13", "45m"}, index: 1, wantRaw: "45m", wantMins: 45},
		{name: "missing year", metadata: []string{"1h 40m"}, index: 1, wantRaw: "1h 40m", wantMins: 100},
		{name: "hours only", metadata: []string{"2024", "3h"}, index: 1, wantRaw: "3h", wantMins: 180},
		{name: "no duration", metadata: []string{"2024", "TV-MA"}, index: 1, wantRaw: models.NotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := config.DefaultSelectors()
			sel.DurationIndex = tt.index
			ex, err := extractOne(t, entryFixture{Rank: 1, Title: "T", Metadata: tt.metadata}, sel)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			r := ex.Record
			if r.DurationRaw != tt.wantRaw {
				t.Fatalf("duration raw = %q, want %q", r.DurationRaw, tt.wantRaw)
			}
			if tt.wantRaw == models.NotAvailable {
				if r.DurationMinutes != nil {
					t.Fatalf("minutes = %d, want nil", *r.DurationMinutes)
				}
				return
			}
			if r.DurationMinutes == nil || *r.DurationMinutes != tt.wantMins {
				t.Fatalf("minutes = %v, want %d", r.DurationMinutes, tt.wantMins)
			}
		})
	}
}

func TestExtractMovieStripsRankPrefixOnly(t *testing.T) {
	ex, err := extractOne(t, entryFixture{Rank: 12, Title: "2001. A Space Odyssey"}, config.DefaultSelectors())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ex.Record.Title != "2001. A Space Odyssey" {
		t.Fatalf("title = %q", ex.Record.Title)
	}
}
