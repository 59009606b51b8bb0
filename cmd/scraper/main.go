package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-movies/config"
	"github.com/aluiziolira/go-scrape-movies/pipeline"
	"github.com/aluiziolira/go-scrape-movies/scraper"
	"github.com/aluiziolira/go-scrape-movies/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("scrape failed", slog.Any("error", err))
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath        *string
	source            *string
	baseURL           *string
	categories        *string
	maxRevealRounds   *int
	navigationTimeout *time.Duration
	revealTimeout     *time.Duration
	headless          *bool
	parallelism       *int
	maxRetries        *int
	retryBackoff      *time.Duration
	retryBackoffMax   *time.Duration
	outputDir         *string
	outputFormat      *string
	dbDSN             *string
	metricsAddr       *string
	reportFile        *string
	verbose           *bool
}

func defineFlags(defaults *config.Config) *cliFlags {
	configDefault, _ := config.EnvString("SCRAPER_CONFIG")
	return &cliFlags{
		configPath:        flag.String("config", configDefault, "YAML config file"),
		source:            flag.String("source", defaults.Source, "Page source: browser or static"),
		baseURL:           flag.String("base-url", defaults.BaseURL, "Listing page URL"),
		categories:        flag.String("categories", "", "Comma-separated genre categories (default: config)"),
		maxRevealRounds:   flag.Int("max-reveal-rounds", defaults.MaxRevealRounds, "Maximum \"more results\" activations per category"),
		navigationTimeout: flag.Duration("navigation-timeout", defaults.NavigationTimeout, "Wait for filter controls and results"),
		revealTimeout:     flag.Duration("reveal-timeout", defaults.RevealTimeout, "Wait for the \"more results\" control"),
		headless:          flag.Bool("headless", defaults.Headless, "Run the browser without a window"),
		parallelism:       flag.Int("parallel", defaults.Parallelism, "Number of concurrent sessions"),
		maxRetries:        flag.Int("max-retries", defaults.MaxRetries, "Maximum retry attempts per page (static source)"),
		retryBackoff:      flag.Duration("retry-backoff", defaults.RetryBackoff, "Initial retry backoff"),
		retryBackoffMax:   flag.Duration("retry-backoff-max", defaults.RetryBackoffMax, "Maximum retry backoff"),
		outputDir:         flag.String("output-dir", defaults.OutputDir, "Directory for per-genre files"),
		outputFormat:      flag.String("format", defaults.OutputFormat, "Output format: csv, json, or dual"),
		dbDSN:             flag.String("db", "", "Database DSN (mysql://, postgres://, sqlite://); empty disables tables"),
		metricsAddr:       flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)"),
		reportFile:        flag.String("report", "", "Write the run summary as JSON to this file"),
		verbose:           flag.Bool("v", false, "Enable verbose logging"),
	}
}

// apply copies explicitly set flags onto cfg, so flags win over the config
// file and the environment.
func (f *cliFlags) apply(cfg *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "source":
			cfg.Source = strings.ToLower(*f.source)
		case "base-url":
			cfg.BaseURL = *f.baseURL
		case "categories":
			cfg.Categories = config.ParseCategories(*f.categories)
		case "max-reveal-rounds":
			cfg.MaxRevealRounds = *f.maxRevealRounds
		case "navigation-timeout":
			cfg.NavigationTimeout = *f.navigationTimeout
		case "reveal-timeout":
			cfg.RevealTimeout = *f.revealTimeout
		case "headless":
			cfg.Headless = *f.headless
		case "parallel":
			cfg.Parallelism = *f.parallelism
		case "max-retries":
			cfg.MaxRetries = *f.maxRetries
		case "retry-backoff":
			cfg.RetryBackoff = *f.retryBackoff
		case "retry-backoff-max":
			cfg.RetryBackoffMax = *f.retryBackoffMax
		case "output-dir":
			cfg.OutputDir = *f.outputDir
		case "format":
			cfg.OutputFormat = strings.ToLower(*f.outputFormat)
		case "db":
			cfg.DBDSN = *f.dbDSN
		case "metrics-addr":
			cfg.MetricsAddr = *f.metricsAddr
		case "report":
			cfg.ReportFile = *f.reportFile
		case "v":
			cfg.Verbose = *f.verbose
		}
	})
}

func run() error {
	// A missing .env file is normal.
	_ = godotenv.Load()

	flags := defineFlags(config.DefaultConfig())
	flag.Parse()

	cfg, err := config.Load(*flags.configPath)
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return err
	}
	flags.apply(cfg)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()
	slog.Info("starting scrape",
		slog.String("run_id", runID),
		slog.String("source", cfg.Source),
		slog.String("base_url", cfg.BaseURL),
		slog.Int("categories", len(cfg.Categories)),
		slog.Int("max_reveal_rounds", cfg.MaxRevealRounds),
		slog.Int("workers", cfg.Parallelism),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var db *storage.DB
	if cfg.DBDSN != "" {
		db, err = storage.Open(ctx, cfg.DBDSN, cfg.InsertBatchSize)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				slog.Error("close database", slog.Any("error", err))
			}
		}()
		slog.Info("table sink enabled", slog.String("dialect", string(db.Dialect())))
	}

	writer, err := createWriter(cfg, db)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	// One writer goroutine keeps table inserts and file rewrites serialized.
	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, runErr := s.Run(ctx, p)

	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", err)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
	}

	if result != nil {
		summary := buildSummary(runID, result, p.Outcomes())
		printSummary(os.Stdout, summary, cfg.OutputDir, p.GetMetrics())
		if cfg.ReportFile != "" {
			if err := writeReport(cfg.ReportFile, summary); err != nil {
				slog.Error("write report", slog.String("path", cfg.ReportFile), slog.Any("error", err))
			}
		}
		if summary.Totals.Failed > 0 {
			slog.Warn("some categories failed", slog.Int("failed", summary.Totals.Failed))
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func createWriter(cfg *config.Config, db *storage.DB) (*pipeline.MultiWriter, error) {
	mw := pipeline.NewMultiWriter()

	if cfg.OutputFormat == "csv" || cfg.OutputFormat == "dual" {
		w, err := pipeline.NewCSVWriter(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		mw.Add("csv", w)
	}
	if cfg.OutputFormat == "json" || cfg.OutputFormat == "dual" {
		w, err := pipeline.NewJSONWriter(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		mw.Add("json", w)
	}
	if mw.Len() == 0 {
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
	if db != nil {
		mw.Add("sql", pipeline.NewSQLWriter(db))
	}
	return mw, nil
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
