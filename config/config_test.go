package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-movies/models"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "negative reveal rounds",
			mutate: func(cfg *Config) {
				cfg.MaxRevealRounds = -1
			},
			wantErr: "reveal rounds",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "zero navigation timeout",
			mutate: func(cfg *Config) {
				cfg.NavigationTimeout = 0
			},
			wantErr: "navigation timeout",
		},
		{
			name: "negative reveal timeout",
			mutate: func(cfg *Config) {
				cfg.RevealTimeout = -1 * time.Second
			},
			wantErr: "reveal timeout",
		},
		{
			name: "unknown source",
			mutate: func(cfg *Config) {
				cfg.Source = "selenium"
			},
			wantErr: "source",
		},
		{
			name: "no categories",
			mutate: func(cfg *Config) {
				cfg.Categories = nil
			},
			wantErr: "category",
		},
		{
			name: "unsafe category",
			mutate: func(cfg *Config) {
				cfg.Categories = []models.Category{"Action", "Drop Table"}
			},
			wantErr: "table name",
		},
		{
			name: "duplicate category stem",
			mutate: func(cfg *Config) {
				cfg.Categories = []models.Category{"Sci-Fi", "sci_fi"}
			},
			wantErr: "twice",
		},
		{
			name: "bad output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "parquet"
			},
			wantErr: "output format",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "toggle without placeholder",
			mutate: func(cfg *Config) {
				cfg.Selectors.FilterToggle = "//button"
			},
			wantErr: "filter_toggle",
		},
		{
			name: "empty title selector",
			mutate: func(cfg *Config) {
				cfg.Selectors.Title = " "
			},
			wantErr: "title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.MaxRevealRounds != 3 {
		t.Fatalf("max reveal rounds = %d, want 3", cfg.MaxRevealRounds)
	}
	if len(cfg.Categories) != 5 {
		t.Fatalf("categories = %v, want the five default genres", cfg.Categories)
	}
}

func TestDefaultConfigDoesNotShareCategories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Categories[0] = "Western"
	if models.DefaultCategories[0] != "Action" {
		t.Fatalf("default categories mutated through config")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv("TEST_SCRAPER_DSN", "sqlite://movies.db")

	path := filepath.Join(t.TempDir(), "scraper.yaml")
	content := `
categories: [Comedy, Sci-Fi]
max_reveal_rounds: 5
navigation_timeout: 15s
db_dsn: ${TEST_SCRAPER_DSN}
selectors:
  duration_index: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[1] != "Sci-Fi" {
		t.Fatalf("categories = %v", cfg.Categories)
	}
	if cfg.MaxRevealRounds != 5 {
		t.Fatalf("max reveal rounds = %d, want 5", cfg.MaxRevealRounds)
	}
	if cfg.NavigationTimeout != 15*time.Second {
		t.Fatalf("navigation timeout = %v, want 15s", cfg.NavigationTimeout)
	}
	if cfg.RevealTimeout != 5*time.Second {
		t.Fatalf("reveal timeout should keep default, got %v", cfg.RevealTimeout)
	}
	if cfg.DBDSN != "sqlite://movies.db" {
		t.Fatalf("db dsn = %q", cfg.DBDSN)
	}
	if cfg.Selectors.DurationIndex != 2 {
		t.Fatalf("duration index = %d, want 2", cfg.Selectors.DurationIndex)
	}
	if cfg.Selectors.Entry != DefaultSelectors().Entry {
		t.Fatalf("entry selector should keep default, got %q", cfg.Selectors.Entry)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SCRAPER_CATEGORIES", "Drama, ,Horror")
	t.Setenv("SCRAPER_MAX_REVEAL_ROUNDS", "1")
	t.Setenv("SCRAPER_REVEAL_TIMEOUT", "750ms")
	t.Setenv("SCRAPER_SOURCE", "STATIC")

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[0] != "Drama" || cfg.Categories[1] != "Horror" {
		t.Fatalf("categories = %v", cfg.Categories)
	}
	if cfg.MaxRevealRounds != 1 {
		t.Fatalf("max reveal rounds = %d", cfg.MaxRevealRounds)
	}
	if cfg.RevealTimeout != 750*time.Millisecond {
		t.Fatalf("reveal timeout = %v", cfg.RevealTimeout)
	}
	if cfg.Source != SourceStatic {
		t.Fatalf("source = %q", cfg.Source)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("SCRAPER_PARALLEL", "many")
	if err := ApplyEnv(DefaultConfig()); err == nil || !strings.Contains(err.Error(), "SCRAPER_PARALLEL") {
		t.Fatalf("expected SCRAPER_PARALLEL error, got %v", err)
	}
}
