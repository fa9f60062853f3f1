// Package main is the processing service: it consumes scrape tasks from the
// queue, runs classify-extract-dedupe-score-persist, and periodically
// reconciles raw messages the queue missed.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/jobscout/internal/adapter/docstore"
	"github.com/fairyhunter13/jobscout/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/jobscout/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/jobscout/internal/classify"
	"github.com/fairyhunter13/jobscout/internal/config"
	"github.com/fairyhunter13/jobscout/internal/extract"
	"github.com/fairyhunter13/jobscout/internal/observability"
	"github.com/fairyhunter13/jobscout/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("processor exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(observability.SetupLogger(cfg))
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Warn("tracing setup failed", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Refusing to start without a model is deliberate: rule fast-paths alone
	// would silently drop every borderline message.
	model, err := classify.LoadModel(cfg.ModelPath)
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := docstore.New(pool)
	jobs := postgres.NewJobRepo(pool)
	prefsRepo := postgres.NewPreferencesRepo(pool)

	prefs := pipeline.NewPrefsCache(prefsRepo, cfg.PrefsReloadEvery)
	if err := prefs.Reload(ctx); err != nil {
		slog.Warn("initial preferences load failed", slog.Any("error", err))
	}

	processor := pipeline.NewProcessor(store, jobs, classify.New(model), extract.New(), prefs, pipeline.Options{
		DedupWindow:    cfg.DedupWindow,
		MinQuality:     cfg.MinQuality,
		StorageRetries: cfg.StorageRetryMax,
		RetryInitial:   cfg.StorageRetryInitial,
	})

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.ConsumerConcurrency, processor.Process)
	if err != nil {
		return err
	}
	defer func() { _ = consumer.Close() }()

	producer, err := redpanda.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	defer func() { _ = producer.Close() }()

	sweeper := pipeline.NewSweeper(store, producer, 500)
	go func() {
		ticker := time.NewTicker(cfg.PendingSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := sweeper.Sweep(ctx); err != nil {
					slog.Error("pending sweep failed", slog.Any("error", err))
				}
			}
		}
	}()

	// Metrics endpoint for this process; the scraper owns the full ops API.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	slog.Info("processor running",
		slog.String("group", cfg.KafkaGroupID),
		slog.Int("workers", cfg.ConsumerConcurrency))
	// Start blocks until the context is cancelled.
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutting down")
	return nil
}
