package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-movies/models"
)

const (
	SourceBrowser = "browser"
	SourceStatic  = "static"
)

// Selectors locate the interactive controls (XPath) and the entry fields (CSS)
// on the listing page. FilterToggle is a format string taking the category label.
type Selectors struct {
	FilterPanel   string `yaml:"filter_panel"`
	FilterToggle  string `yaml:"filter_toggle"`
	ResultList    string `yaml:"result_list"`
	RevealMore    string `yaml:"reveal_more"`
	Entry         string `yaml:"entry"`
	Title         string `yaml:"title"`
	Link          string `yaml:"link"`
	Rating        string `yaml:"rating"`
	Votes         string `yaml:"votes"`
	Metadata      string `yaml:"metadata"`
	DurationIndex int    `yaml:"duration_index"`
	NextPage      string `yaml:"next_page"`
}

// Config holds scraper configuration.
type Config struct {
	BaseURL           string            `yaml:"base_url"`
	Source            string            `yaml:"source"` // browser or static
	Categories        []models.Category `yaml:"categories"`
	CategoryParam     string            `yaml:"category_param"`
	MaxRevealRounds   int               `yaml:"max_reveal_rounds"`
	NavigationTimeout time.Duration     `yaml:"navigation_timeout"`
	RevealTimeout     time.Duration     `yaml:"reveal_timeout"`
	SettleDelay       time.Duration     `yaml:"settle_delay"`
	ScrollDelay       time.Duration     `yaml:"scroll_delay"`
	RevealDelay       time.Duration     `yaml:"reveal_delay"`
	Headless          bool              `yaml:"headless"`
	Parallelism       int               `yaml:"parallelism"`
	Timeout           time.Duration     `yaml:"timeout"`
	MaxRetries        int               `yaml:"max_retries"`
	RetryBackoff      time.Duration     `yaml:"retry_backoff"`
	RetryBackoffMax   time.Duration     `yaml:"retry_backoff_max"`
	OutputDir         string            `yaml:"output_dir"`
	OutputFormat      string            `yaml:"output_format"` // csv, json, or dual
	DBDSN             string            `yaml:"db_dsn"`
	InsertBatchSize   int               `yaml:"insert_batch_size"`
	PipelineBuffer    int               `yaml:"pipeline_buffer_size"`
	DedupeMaxSize     int               `yaml:"dedupe_max_size"`
	UserAgent         string            `yaml:"user_agent"`
	MetricsAddr       string            `yaml:"metrics_addr"`
	ReportFile        string            `yaml:"report_file"`
	Verbose           bool              `yaml:"verbose"`
	Selectors         Selectors         `yaml:"selectors"`
}

// DefaultSelectors returns selectors for the IMDb advanced title search page.
func DefaultSelectors() Selectors {
	return Selectors{
		FilterPanel:   `//div[@data-testid='accordion-item-genreAccordion']//span[contains(@class, 'ipc-accordion__item__chevron')]`,
		FilterToggle:  `//button[@data-testid='test-chip-id-%s']`,
		ResultList:    `ul.ipc-metadata-list`,
		RevealMore:    `//span[contains(text(), '50 more')]/ancestor::button`,
		Entry:         `li.ipc-metadata-list-summary-item`,
		Title:         `h3.ipc-title__text`,
		Link:          `a.ipc-title-link-wrapper`,
		Rating:        `span.ipc-rating-star--rating`,
		Votes:         `span.ipc-rating-star--voteCount`,
		Metadata:      `span.dli-title-metadata-item`,
		DurationIndex: 1,
		NextPage:      `a.next-page`,
	}
}

// DefaultConfig returns the settings used by the original single-session run.
func DefaultConfig() *Config {
	categories := make([]models.Category, len(models.DefaultCategories))
	copy(categories, models.DefaultCategories)

	return &Config{
		BaseURL:           "https://www.imdb.com/search/title/?title_type=feature&release_date=2024-01-01,2024-12-31",
		Source:            SourceBrowser,
		Categories:        categories,
		CategoryParam:     "genres",
		MaxRevealRounds:   3,
		NavigationTimeout: 10 * time.Second,
		RevealTimeout:     5 * time.Second,
		SettleDelay:       3 * time.Second,
		ScrollDelay:       2 * time.Second,
		RevealDelay:       5 * time.Second,
		Headless:          true,
		Parallelism:       1,
		Timeout:           10 * time.Second,
		MaxRetries:        2,
		RetryBackoff:      200 * time.Millisecond,
		RetryBackoffMax:   2 * time.Second,
		OutputDir:         "output",
		OutputFormat:      "csv",
		DBDSN:             "",
		InsertBatchSize:   500,
		PipelineBuffer:    16,
		DedupeMaxSize:     100000,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		Verbose:           false,
		Selectors:         DefaultSelectors(),
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Source != SourceBrowser && c.Source != SourceStatic {
		return fmt.Errorf("source must be browser or static")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	seen := make(map[string]struct{}, len(c.Categories))
	for _, category := range c.Categories {
		if !category.ValidStem() {
			return fmt.Errorf("category %q does not produce a valid table name", category)
		}
		if _, dup := seen[category.Stem()]; dup {
			return fmt.Errorf("category %q is listed twice", category)
		}
		seen[category.Stem()] = struct{}{}
	}
	if c.Source == SourceStatic && c.CategoryParam == "" {
		return fmt.Errorf("category param cannot be empty for the static source")
	}

	if c.MaxRevealRounds < 0 {
		return fmt.Errorf("max reveal rounds cannot be negative")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.RevealTimeout <= 0 {
		return fmt.Errorf("reveal timeout must be positive")
	}
	if c.SettleDelay < 0 || c.ScrollDelay < 0 || c.RevealDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.InsertBatchSize <= 0 {
		return fmt.Errorf("insert batch size must be positive")
	}
	if c.PipelineBuffer <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return c.Selectors.validate()
}

func (s Selectors) validate() error {
	required := map[string]string{
		"filter_panel":  s.FilterPanel,
		"filter_toggle": s.FilterToggle,
		"result_list":   s.ResultList,
		"reveal_more":   s.RevealMore,
		"entry":         s.Entry,
		"title":         s.Title,
		"rating":        s.Rating,
		"votes":         s.Votes,
		"metadata":      s.Metadata,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("selector %s cannot be empty", name)
		}
	}
	if !strings.Contains(s.FilterToggle, "%s") {
		return fmt.Errorf("selector filter_toggle must contain %%s for the category")
	}
	if s.DurationIndex < 0 {
		return fmt.Errorf("selector duration_index cannot be negative")
	}
	return nil
}
