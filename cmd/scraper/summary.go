package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/go-scrape-movies/models"
	"github.com/aluiziolira/go-scrape-movies/pipeline"
)

// buildSummary joins crawl results with persistence outcomes, in category order.
func buildSummary(runID string, result *models.ScraperResult, outcomes []pipeline.Outcome) *models.RunSummary {
	byCategory := make(map[models.Category]pipeline.Outcome, len(outcomes))
	for _, o := range outcomes {
		byCategory[o.Category] = o
	}

	summary := &models.RunSummary{
		RunID:      runID,
		StartedAt:  result.StartTime,
		FinishedAt: result.EndTime,
	}
	for _, r := range result.Categories {
		cs := models.CategorySummary{
			Category:      r.Category.String(),
			Attempted:     r.Attempted,
			Skipped:       r.Skipped,
			ParseFailures: r.ParseFailures,
			RevealRounds:  r.RevealRounds,
			CrawlStatus:   models.StatusOK,
			Persistence:   models.StatusOK,
		}

		outcome, persisted := byCategory[r.Category]
		switch {
		case r.Failed():
			cs.CrawlStatus = models.StatusFailed
			cs.Persistence = models.StatusSkipped
			cs.Error = r.Err.Error()
		case !persisted:
			cs.Persistence = models.StatusFailed
			cs.Error = "batch was not persisted"
		case outcome.Err != nil:
			cs.Persistence = models.StatusFailed
			cs.Error = outcome.Err.Error()
		}
		if persisted {
			cs.Records = outcome.Records
		}
		summary.Categories = append(summary.Categories, cs)
	}
	summary.Finalize()
	return summary
}

func printSummary(w io.Writer, s *models.RunSummary, outputDir string, metrics map[string]interface{}) {
	separator := strings.Repeat("-", 78)
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintf(w, "Scrape complete (run %s)\n", s.RunID)
	fmt.Fprintf(w, "  %-10s %9s %8s %7s %8s %7s  %-7s %-8s\n",
		"Category", "Attempted", "Skipped", "Parse", "Records", "Rounds", "Crawl", "Persist")
	for _, c := range s.Categories {
		fmt.Fprintf(w, "  %-10s %9d %8d %7d %8d %7d  %-7s %-8s\n",
			c.Category, c.Attempted, c.Skipped, c.ParseFailures, c.Records, c.RevealRounds, c.CrawlStatus, c.Persistence)
		if c.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", c.Error)
		}
	}
	fmt.Fprintf(w, "  Totals: %d categories, %d failed, %d records, %d skipped, %d parse failures\n",
		s.Totals.Categories, s.Totals.Failed, s.Totals.Records, s.Totals.Skipped, s.Totals.ParseFailures)
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(w, "  Validation: %v\n", valErrors)
	}
	fmt.Fprintf(w, "  Duration:   %v\n", s.FinishedAt.Sub(s.StartedAt))
	fmt.Fprintf(w, "  Output dir: %s\n", outputDir)
	fmt.Fprintln(w, separator)
}

func writeReport(path string, s *models.RunSummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
