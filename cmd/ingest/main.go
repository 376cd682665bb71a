package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/config"
	"perp-feature-lab/internal/feature"
	"perp-feature-lab/internal/feed"
	"perp-feature-lab/internal/ingest"
	"perp-feature-lab/internal/observability"
	"perp-feature-lab/internal/predict"
	"perp-feature-lab/internal/storage"
	chstore "perp-feature-lab/internal/storage/clickhouse"
	"perp-feature-lab/internal/storage/memory"
	"perp-feature-lab/internal/storage/migrations"
	pgstore "perp-feature-lab/internal/storage/postgres"
)

// stores bundles the raw-table and feature-table backends.
type stores struct {
	klines       storage.KlineStore
	marks        storage.MarkStore
	depths       storage.DepthStore
	liquidations storage.LiquidationStore
	tradeFlows   storage.TradeFlowStore
	features     storage.FeatureStore
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (overrides config)")
	baseURL := flag.String("base-url", "", "Websocket base URL (overrides config)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse analytics sink DSN (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", "", "Diagnostics HTTP address (overrides config)")
	predictURL := flag.String("predict-url", "", "Prediction endpoint URL (overrides config, empty disables)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := loadConfig(*configPath, *symbolsFlag, *baseURL, *postgresDSN, *clickhouseDSN, *useMemory, *metricsAddr, *predictURL, *logLevel)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	symbols := cfg.NormalizedSymbols()
	logger.Infof("starting ingest: symbols=%v storage=%s feed=%s", symbols, cfg.Storage.Driver, cfg.Feed.BaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("")
	health := feed.NewHealth()

	st, closeStores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("storage setup: %v", err)
	}
	defer closeStores()

	aggregator := ingest.NewTradeAggregator(st.tradeFlows, metrics, logger)
	snapshotter := ingest.NewDepthSnapshotter(st.depths, cfg.Depth.TopN, metrics, logger)

	pipeline := ingest.NewPipeline(ctx, ingest.PipelineOptions{
		Klines:       st.klines,
		Marks:        st.marks,
		Liquidations: st.liquidations,
		Aggregator:   aggregator,
		Snapshotter:  snapshotter,
		Metrics:      metrics,
		Logger:       logger,
	})

	client := feed.NewClient(feed.ClientConfig{
		BaseURL:          cfg.Feed.BaseURL,
		Symbols:          symbols,
		ReconnectDelay:   cfg.Feed.ReconnectDelay,
		HandshakeTimeout: cfg.Feed.HandshakeTimeout,
	}, pipeline, health, metrics, logger)

	supervisor := ingest.NewSupervisor(ingest.SupervisorOptions{
		Aggregator:         aggregator,
		Client:             client,
		Health:             health,
		Symbols:            symbols,
		Metrics:            metrics,
		Logger:             logger,
		FlushInterval:      cfg.Supervisor.FlushInterval,
		CheckInterval:      cfg.Supervisor.CheckInterval,
		StalenessThreshold: cfg.Supervisor.StalenessThreshold,
	})

	engine := feature.NewEngine(feature.EngineOptions{
		Klines:       st.klines,
		TradeFlows:   st.tradeFlows,
		Depths:       st.depths,
		Marks:        st.marks,
		Liquidations: st.liquidations,
		Features:     st.features,
		Metrics:      metrics,
		Logger:       logger,
	})
	featureRunner := feature.NewRunner(engine, symbols, logger)

	if cfg.Metrics.Addr != "" {
		go serveDiagnostics(cfg.Metrics.Addr, health, logger)
	}

	go snapshotter.Run(ctx)
	go supervisor.Run(ctx)
	go featureRunner.Run(ctx)

	if cfg.Predict.URL != "" {
		predictRunner := predict.NewRunner(
			predict.NewClient(cfg.Predict.URL, cfg.Predict.Timeout),
			st.features, symbols, logger,
		)
		go predictRunner.Run(ctx)
		logger.Infof("prediction forwarding enabled: %s", cfg.Predict.URL)
	}

	if err := client.Connect(); err != nil {
		// A failed first dial is retried by the reconnect schedule.
		logger.Warnf("initial connect failed, reconnect scheduled: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("received signal %v, shutting down", sig)

	cancel()
	client.Shutdown()

	// Force-flush pending buckets so accumulated volume is not discarded.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	aggregator.FlushAll(flushCtx)
	flushCancel()

	logger.Info("shutdown complete")
}

// loadConfig reads the YAML file, layers flag overrides on top and
// revalidates the result.
func loadConfig(path, symbols, baseURL, postgresDSN, clickhouseDSN string, useMemory bool, metricsAddr, predictURL, logLevel string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if symbols != "" {
		cfg.Feed.Symbols = strings.Split(symbols, ",")
	}
	if baseURL != "" {
		cfg.Feed.BaseURL = baseURL
	}
	if postgresDSN != "" {
		cfg.Storage.Driver = "postgres"
		cfg.Storage.PostgresDSN = postgresDSN
	}
	if clickhouseDSN != "" {
		cfg.Storage.ClickHouseDSN = clickhouseDSN
	}
	if useMemory {
		cfg.Storage.Driver = "memory"
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if predictURL != "" {
		cfg.Predict.URL = predictURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildStores wires the configured backend, runs migrations, and attaches
// the optional ClickHouse analytics sink to the feature store.
func buildStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*stores, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var st stores
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return nil, nil, err
		}
		logger.Info("postgres migrations applied")

		st = stores{
			klines:       pgstore.NewKlineStore(pool),
			marks:        pgstore.NewMarkStore(pool),
			depths:       pgstore.NewDepthStore(pool),
			liquidations: pgstore.NewLiquidationStore(pool),
			tradeFlows:   pgstore.NewTradeFlowStore(pool),
			features:     pgstore.NewFeatureStore(pool),
		}
	default:
		st = stores{
			klines:       memory.NewKlineStore(),
			marks:        memory.NewMarkStore(),
			depths:       memory.NewDepthStore(),
			liquidations: memory.NewLiquidationStore(),
			tradeFlows:   memory.NewTradeFlowStore(),
			features:     memory.NewFeatureStore(),
		}
	}

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { conn.Close() })
		logger.Info("clickhouse migrations applied")

		st.features = storage.NewFanoutFeatureStore(st.features, chstore.NewFeatureSink(conn), logger)
	}

	return &st, closeAll, nil
}

// serveDiagnostics exposes Prometheus metrics and the feed health snapshot.
func serveDiagnostics(addr string, health *feed.Health, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(health.Snapshot()); err != nil {
			logger.Errorf("health encode: %v", err)
		}
	})

	logger.Infof("diagnostics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Errorf("diagnostics server: %v", err)
	}
}
