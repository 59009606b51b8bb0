package models

import "time"

const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// RunSummary is the user-visible outcome of a run, printed to stdout and
// optionally written as JSON.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Categories []CategorySummary `json:"categories"`
	Totals     SummaryTotals     `json:"totals"`
}

// CategorySummary reports one category's crawl and persistence outcome.
type CategorySummary struct {
	Category      string `json:"category"`
	Attempted     int    `json:"attempted"`
	Skipped       int    `json:"skipped"`
	ParseFailures int    `json:"parse_failures"`
	Records       int    `json:"records"`
	RevealRounds  int    `json:"reveal_rounds"`
	CrawlStatus   string `json:"crawl_status"`
	Persistence   string `json:"persistence"`
	Error         string `json:"error,omitempty"`
}

type SummaryTotals struct {
	Categories    int `json:"categories"`
	Failed        int `json:"failed"`
	Attempted     int `json:"attempted"`
	Skipped       int `json:"skipped"`
	ParseFailures int `json:"parse_failures"`
	Records       int `json:"records"`
}

// Finalize normalises timestamps to UTC and recomputes the totals from the
// per-category entries.
func (s *RunSummary) Finalize() {
	s.StartedAt = s.StartedAt.UTC()
	s.FinishedAt = s.FinishedAt.UTC()

	var t SummaryTotals
	for _, c := range s.Categories {
		t.Categories++
		if c.CrawlStatus == StatusFailed || c.Persistence == StatusFailed {
			t.Failed++
		}
		t.Attempted += c.Attempted
		t.Skipped += c.Skipped
		t.ParseFailures += c.ParseFailures
		t.Records += c.Records
	}
	s.Totals = t
}
