package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-movies/models"
	"gopkg.in/yaml.v3"
)

// Load overlays the YAML file at path onto the defaults. Keys missing from the
// file keep their default value; ${VAR} references are expanded first.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with SCRAPER_* environment variables that are set.
func ApplyEnv(cfg *Config) error {
	if value, ok := EnvString("SCRAPER_BASE_URL"); ok {
		cfg.BaseURL = value
	}
	if value, ok := EnvString("SCRAPER_SOURCE"); ok {
		cfg.Source = strings.ToLower(value)
	}
	if value, ok := EnvString("SCRAPER_CATEGORIES"); ok {
		cfg.Categories = ParseCategories(value)
	}
	if value, ok, err := EnvInt("SCRAPER_MAX_REVEAL_ROUNDS"); err != nil {
		return fmt.Errorf("invalid SCRAPER_MAX_REVEAL_ROUNDS: %w", err)
	} else if ok {
		cfg.MaxRevealRounds = value
	}
	if value, ok, err := EnvDuration("SCRAPER_NAVIGATION_TIMEOUT"); err != nil {
		return fmt.Errorf("invalid SCRAPER_NAVIGATION_TIMEOUT: %w", err)
	} else if ok {
		cfg.NavigationTimeout = value
	}
	if value, ok, err := EnvDuration("SCRAPER_REVEAL_TIMEOUT"); err != nil {
		return fmt.Errorf("invalid SCRAPER_REVEAL_TIMEOUT: %w", err)
	} else if ok {
		cfg.RevealTimeout = value
	}
	if value, ok, err := EnvInt("SCRAPER_PARALLEL"); err != nil {
		return fmt.Errorf("invalid SCRAPER_PARALLEL: %w", err)
	} else if ok {
		cfg.Parallelism = value
	}
	if value, ok := EnvString("SCRAPER_OUTPUT_DIR"); ok {
		cfg.OutputDir = value
	}
	if value, ok := EnvString("SCRAPER_DB_DSN"); ok {
		cfg.DBDSN = value
	}
	if value, ok := EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}

// ParseCategories splits a comma separated category list, dropping blanks.
func ParseCategories(value string) []models.Category {
	var out []models.Category
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, models.Category(part))
	}
	return out
}

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// EnvDuration parses key as a time.Duration when it is set.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, err
	}
	return d, true, nil
}
