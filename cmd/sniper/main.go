// Package main runs the unified trading engine: market-data feed ->
// viability scoring -> risk admission -> execution -> position lifecycle,
// with Prometheus metrics and journaling to Postgres/ClickHouse.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"token-sniper/internal/config"
	"token-sniper/internal/engine"
	"token-sniper/internal/execution"
	"token-sniper/internal/feed"
	"token-sniper/internal/feed/stub"
	"token-sniper/internal/journal"
	chjournal "token-sniper/internal/journal/clickhouse"
	"token-sniper/internal/journal/memory"
	"token-sniper/internal/journal/migrations"
	pgjournal "token-sniper/internal/journal/postgres"
	"token-sniper/internal/observability"
	"token-sniper/internal/risk"
)

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when empty)")
	dryRun := flag.Bool("dry-run", false, "Paper fills and in-memory journals, no capital at stake")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)

	if cfg.Feed.Endpoint == "" && !*dryRun {
		logger.Fatal().Msg("feed endpoint is required (set feed.endpoint or FEED_ENDPOINT, or pass --dry-run)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("token_sniper")

	stores, cleanup, err := buildJournals(ctx, cfg.Journal, *dryRun, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("journal setup failed")
	}
	defer cleanup()

	candidates, ticks, closeFeed, err := buildFeed(ctx, cfg.Feed, *dryRun, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("feed setup failed")
	}
	defer closeFeed()

	governor := risk.NewGovernor(risk.GovernorOptions{
		Config:  cfg.Risk,
		Metrics: metrics,
		Logger:  logger,
	})
	coordinator := execution.NewCoordinator(execution.CoordinatorOptions{
		Config:    cfg.Execution,
		Providers: buildProviders(cfg.Execution, *dryRun, logger),
		Reporter:  governor,
		Metrics:   metrics,
		Logger:    logger,
	})

	eng := engine.New(engine.Options{
		Config:      cfg,
		Candidates:  candidates,
		Ticks:       ticks,
		Executor:    coordinator,
		Assessments: stores.assessments,
		Positions:   stores.positions,
		Executions:  stores.executions,
		TickJournal: stores.ticks,
		Governor:    governor,
		Metrics:     metrics,
		Logger:      logger,
	})

	go serveMetrics(*metricsAddr, metrics, coordinator, logger)

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down, open positions stay journaled")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Error().Str("signal", sig.String()).Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = eng.Run(ctx)
	done <- err

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("engine error")
	}
	logger.Info().Msg("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newLogger builds the process logger from the log config.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// journalStores groups the four journal sinks the engine writes to.
type journalStores struct {
	assessments journal.AssessmentStore
	positions   journal.PositionStore
	executions  journal.ExecutionStore
	ticks       journal.TickStore
}

// buildJournals connects the configured backends and applies migrations.
// Missing DSNs (or --dry-run) fall back to the in-memory journal.
func buildJournals(ctx context.Context, cfg config.JournalConfig, dryRun bool, logger zerolog.Logger) (*journalStores, func(), error) {
	stores := &journalStores{}
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	mem := memory.New()
	stores.assessments = mem
	stores.positions = mem
	stores.executions = mem
	stores.ticks = mem

	if dryRun {
		logger.Info().Msg("dry run: journaling in memory")
		return stores, cleanup, nil
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgjournal.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.assessments = pgjournal.NewAssessmentStore(pool)
		stores.positions = pgjournal.NewPositionStore(pool)
	} else {
		logger.Warn().Msg("no postgres DSN, positions and assessments journal in memory only")
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := chjournal.NewConn(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		cleanups = append(cleanups, func() { _ = conn.Close() })

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.ticks = chjournal.NewTickStore(conn)
		stores.executions = chjournal.NewExecutionStore(conn)
	} else {
		logger.Warn().Msg("no clickhouse DSN, ticks and executions journal in memory only")
	}

	return stores, cleanup, nil
}

// buildFeed connects the websocket feed, or the stub when dry-running
// without an endpoint.
func buildFeed(ctx context.Context, cfg config.FeedConfig, dryRun bool, logger zerolog.Logger) (feed.CandidateSource, feed.TickSource, func(), error) {
	if cfg.Endpoint == "" {
		if !dryRun {
			return nil, nil, nil, errors.New("no feed endpoint configured")
		}
		logger.Warn().Msg("dry run without a feed endpoint: stub feed produces no candidates")
		src := stub.New()
		return src, src, src.Close, nil
	}

	client, err := feed.NewClient(ctx, cfg.Endpoint, nil, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect feed %s: %w", cfg.Endpoint, err)
	}
	return client, client, func() { _ = client.Close() }, nil
}

// buildProviders constructs the submission pool in config order.
func buildProviders(cfg config.ExecutionConfig, dryRun bool, logger zerolog.Logger) []execution.Provider {
	if dryRun || len(cfg.Providers) == 0 {
		if !dryRun {
			logger.Warn().Msg("no execution providers configured, using paper fills")
		}
		return []execution.Provider{execution.NewPaperProvider("paper")}
	}

	providers := make([]execution.Provider, 0, len(cfg.Providers))
	for _, ep := range cfg.Providers {
		providers = append(providers, execution.NewHTTPProvider(ep.Name, ep.URL))
		logger.Info().Str("provider", ep.Name).Str("url", ep.URL).Msg("execution provider registered")
	}
	return providers
}

// serveMetrics exposes /metrics, /health and a provider-health snapshot.
func serveMetrics(addr string, metrics *observability.Metrics, coordinator *execution.Coordinator, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/providers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coordinator.Health())
	})

	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
