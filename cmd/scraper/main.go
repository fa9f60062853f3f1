// Package main is the scraping service: scheduler-driven batch scrapes,
// channel joining, stale-run sweeping and an ops HTTP surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/jobscout/internal/adapter/docstore"
	"github.com/fairyhunter13/jobscout/internal/adapter/platform/fake"
	"github.com/fairyhunter13/jobscout/internal/adapter/platform/sessionfile"
	"github.com/fairyhunter13/jobscout/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/jobscout/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/jobscout/internal/app"
	"github.com/fairyhunter13/jobscout/internal/channelscore"
	"github.com/fairyhunter13/jobscout/internal/config"
	"github.com/fairyhunter13/jobscout/internal/observability"
	"github.com/fairyhunter13/jobscout/internal/scraper"
	"github.com/fairyhunter13/jobscout/internal/service/accountpool"
	"github.com/fairyhunter13/jobscout/internal/service/governor"
)

func main() {
	if err := run(); err != nil {
		slog.Error("scraper exited", slog.Any("error", err))
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

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()

	accounts := postgres.NewAccountRepo(pool)
	channels := postgres.NewChannelRepo(pool)
	runs := postgres.NewScrapeRunRepo(pool)
	jobs := postgres.NewJobRepo(pool)
	store := docstore.New(pool)

	sessions, err := sessionfile.New(cfg.SessionDir, cfg.SessionKey)
	if err != nil {
		return err
	}

	producer, err := redpanda.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	defer func() { _ = producer.Close() }()

	// The platform client is pluggable behind domain.PlatformClient; this
	// build ships the deterministic in-memory client. A network-backed
	// implementation drops in here without touching the pipeline.
	client := fake.New()

	accPool := accountpool.New(accounts, channels, rdb, cfg.AccountLeaseTTL, cfg.MaxJoinsPerDay, loc)
	gov := governor.New(cfg.MinOpInterval, cfg.FloodWaitCeiling, governor.NewBucket(rdb, cfg.GovernorBudgetPerMin))

	worker := scraper.NewWorker(accPool, gov, client, sessions, store, channels, producer,
		cfg.FirstFetchCap, cfg.IncrementalCap, cfg.PlatformCallTimeout)
	batcher := scraper.NewBatcher(runs, channels, accPool, worker, cfg.BatchSize)
	joiner := scraper.NewJoiner(accPool, gov, client, sessions, channels)
	watchdog := scraper.NewWatchdog(runs, cfg.StaleRunAge)
	scorer := channelscore.NewScorer(channels, jobs, channelscore.Options{
		WindowDays:         cfg.ScoreWindowDays,
		ProbationThreshold: cfg.ProbationThreshold,
		DemotionWindows:    cfg.DemotionWindows,
	})

	sched, err := scraper.NewScheduler(scraper.WorkingHours{
		Start: cfg.WorkHoursStart,
		End:   cfg.WorkHoursEnd,
		Loc:   loc,
	})
	if err != nil {
		return err
	}
	if err := sched.AddScrapeJob(ctx, cfg.ScrapeInterval, batcher, joiner, cfg.JoinLimit); err != nil {
		return err
	}
	if err := sched.AddWatchdogJob(ctx, cfg.StaleRunAge/2, watchdog); err != nil {
		return err
	}
	if err := sched.AddCronJob("channel-score-sweep", cfg.ScoreSweepCron, func() {
		if _, err := scorer.Sweep(ctx); err != nil {
			slog.Error("channel score sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return err
	}
	sched.Start()
	defer func() { _ = sched.Shutdown() }()

	handler := app.BuildRouter(cfg, runs, app.Checks{
		DB:    pool.Ping,
		Redis: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		Queue: producer.Ping,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("ops server listening", slog.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ops server error", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
