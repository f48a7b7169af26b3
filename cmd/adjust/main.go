// Package main provides the batch forward-adjustment entry point.
// Executes: discovery → load → factors → merge → adjust → validate → persist → report
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
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"tick-adjust-lab/internal/config"
	"tick-adjust-lab/internal/factors"
	"tick-adjust-lab/internal/logging"
	"tick-adjust-lab/internal/observability"
	"tick-adjust-lab/internal/orchestrator"
	"tick-adjust-lab/internal/pipeline"
	"tick-adjust-lab/internal/storage"
	chstore "tick-adjust-lab/internal/storage/clickhouse"
	"tick-adjust-lab/internal/storage/migrations"
	pgstore "tick-adjust-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file (optional; ADJUST_* env vars apply either way)")
	rawDir := flag.String("raw-dir", "", "Directory of tick files, one per security")
	factorDir := flag.String("factor-dir", "", "Directory of daily factor files")
	outputDir := flag.String("output-dir", "", "Output directory for artifacts and batch report")
	pattern := flag.String("pattern", "", "Glob for tick files within raw-dir")
	maxFiles := flag.Int("max-files", 0, "Maximum number of files to process (0 = all)")
	delay := flag.Duration("delay", 0, "Pause after each security")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (enables outcome ledger and factor archive)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (enables adjusted tick and factor sinks)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty = disabled)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Explicit flags override file and environment values
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "raw-dir":
			cfg.Paths.RawDir = *rawDir
		case "factor-dir":
			cfg.Paths.FactorDir = *factorDir
		case "output-dir":
			cfg.Paths.OutputDir = *outputDir
		case "pattern":
			cfg.Paths.Pattern = *pattern
		case "max-files":
			cfg.Batch.MaxFiles = *maxFiles
		case "delay":
			cfg.Batch.Delay = delay
		case "postgres-dsn":
			cfg.Sinks.Postgres.DSN = *postgresDSN
		case "clickhouse-dsn":
			cfg.Sinks.Clickhouse.DSN = *clickhouseDSN
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Create context with cancellation for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := run(ctx, cfg, logger)
	stop()
	closer.Close()
	os.Exit(code)
}

// run executes one batch and returns the process exit code:
// 0 when at least one security succeeded, 1 otherwise.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	sinks, closeSinks, err := openSinks(ctx, cfg.Sinks, logger)
	if err != nil {
		logger.Error("open sinks", "error", err)
		return 1
	}
	defer closeSinks()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(observability.DefaultNamespace, reg)
	if cfg.Metrics.Addr != "" {
		srv := startMetricsServer(cfg.Metrics, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runID := uuid.NewString()
	store := factors.NewStore(factors.Options{Dir: cfg.Paths.FactorDir, Logger: logger})
	proc := pipeline.NewProcessor(store, cfg.Paths.OutputDir, logger).
		WithSinks(sinks).
		WithMetrics(metrics).
		WithRunID(runID)

	batch, err := orchestrator.New(orchestrator.Options{
		Processor: proc,
		RawDir:    cfg.Paths.RawDir,
		Pattern:   cfg.Paths.Pattern,
		MaxFiles:  cfg.Batch.MaxFiles,
		Delay:     cfg.Batch.DelayOrDefault(),
		ReportDir: cfg.Paths.OutputDir,
		RunID:     runID,
		Cache:     store.Cache(),
		Metrics:   metrics,
		Logger:    logger,
	}).Run(ctx)
	if err != nil {
		logger.Error("batch failed", "error", err)
		if batch == nil {
			return 1
		}
	}

	fmt.Println("======================================================================")
	fmt.Println("Level-2 forward adjustment batch finished")
	fmt.Println("======================================================================")
	fmt.Printf("Run ID:       %s\n", batch.RunID)
	fmt.Printf("Total:        %d\n", batch.Total)
	fmt.Printf("Succeeded:    %d\n", batch.Succeeded)
	fmt.Printf("Failed:       %d\n", batch.Failed)
	fmt.Printf("Success rate: %.1f%%\n", batch.SuccessRate()*100)
	fmt.Printf("Precision:    2 decimals\n")
	fmt.Printf("Output dir:   %s\n", cfg.Paths.OutputDir)
	for _, r := range batch.Reports {
		fmt.Printf("  - %s\n", r)
	}
	fmt.Println("======================================================================")

	if batch.Succeeded == 0 {
		return 1
	}
	return 0
}

// openSinks connects the configured stores and applies their migrations.
func openSinks(ctx context.Context, cfg config.SinksConfig, logger *slog.Logger) (storage.Sinks, func(), error) {
	var (
		sinks   storage.Sinks
		factorStores storage.FactorSeriesStores
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if dsn := cfg.Postgres.DSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return storage.Sinks{}, func() {}, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			closeAll()
			return storage.Sinks{}, func() {}, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info("postgres sink ready", "migrations", applied)

		sinks.Outcomes = pgstore.NewOutcomeStore(pool)
		factorStores = append(factorStores, pgstore.NewFactorSeriesStore(pool))
	}

	if dsn := cfg.Clickhouse.DSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			closeAll()
			return storage.Sinks{}, func() {}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		logger.Info("clickhouse sink ready")

		sinks.Ticks = chstore.NewAdjustedTickStore(conn)
		factorStores = append(factorStores, chstore.NewDailyFactorStore(conn))
	}

	if len(factorStores) > 0 {
		sinks.Factors = factorStores
	}
	return sinks, closeAll, nil
}

// startMetricsServer serves /health and the metrics endpoint in the background.
func startMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle(cfg.Path, observability.HandlerFor(reg))

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics server listening", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	return srv
}
