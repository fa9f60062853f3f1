package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/jobscout/internal/adapter/docstore"
	"github.com/fairyhunter13/jobscout/internal/adapter/platform/fake"
	"github.com/fairyhunter13/jobscout/internal/adapter/platform/sessionfile"
	"github.com/fairyhunter13/jobscout/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/jobscout/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/jobscout/internal/channelscore"
	"github.com/fairyhunter13/jobscout/internal/classify"
	"github.com/fairyhunter13/jobscout/internal/extract"
	"github.com/fairyhunter13/jobscout/internal/pipeline"
	"github.com/fairyhunter13/jobscout/internal/scraper"
	"github.com/fairyhunter13/jobscout/internal/service/accountpool"
	"github.com/fairyhunter13/jobscout/internal/service/governor"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(cfg.DBURL, cfg.MigrationsPath); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}

func batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Run one scrape batch now, ignoring the working-hours gate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := postgres.NewPool(ctx, cfg.DBURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer func() { _ = rdb.Close() }()
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			sessions, err := sessionfile.New(cfg.SessionDir, cfg.SessionKey)
			if err != nil {
				return err
			}
			producer, err := redpanda.NewProducer(cfg.KafkaBrokers)
			if err != nil {
				return err
			}
			defer func() { _ = producer.Close() }()

			accounts := postgres.NewAccountRepo(pool)
			channels := postgres.NewChannelRepo(pool)
			runs := postgres.NewScrapeRunRepo(pool)
			store := docstore.New(pool)

			accPool := accountpool.New(accounts, channels, rdb, cfg.AccountLeaseTTL, cfg.MaxJoinsPerDay, loc)
			gov := governor.New(cfg.MinOpInterval, cfg.FloodWaitCeiling, governor.NewBucket(rdb, cfg.GovernorBudgetPerMin))
			worker := scraper.NewWorker(accPool, gov, fake.New(), sessions, store, channels, producer,
				cfg.FirstFetchCap, cfg.IncrementalCap, cfg.PlatformCallTimeout)
			batcher := scraper.NewBatcher(runs, channels, accPool, worker, cfg.BatchSize)

			run, err := batcher.Run(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("run %s finished status=%s fetched=%d errors=%d\n",
				run.ID, run.Status, run.Counters.MessagesFetched, run.Counters.Errors)
			return nil
		},
	}
}

func processCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process pending raw messages synchronously, bypassing the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

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
			prefs := pipeline.NewPrefsCache(postgres.NewPreferencesRepo(pool), cfg.PrefsReloadEvery)
			processor := pipeline.NewProcessor(store, jobs, classify.New(model), extract.New(), prefs, pipeline.Options{
				DedupWindow:    cfg.DedupWindow,
				MinQuality:     cfg.MinQuality,
				StorageRetries: cfg.StorageRetryMax,
				RetryInitial:   cfg.StorageRetryInitial,
			})

			pending, err := store.ListPending(ctx, limit)
			if err != nil {
				return err
			}
			done := 0
			for _, m := range pending {
				task := processTask(m.ID, m.ChannelHandle, m.PlatformMessageID)
				if err := processor.Process(ctx, task); err != nil {
					return fmt.Errorf("message %s: %w", m.ID, err)
				}
				done++
			}
			cmd.Printf("processed %d messages\n", done)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum pending messages to process")
	return cmd
}

func scoreChannelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score-channels",
		Short: "Recompute channel health scores now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := postgres.NewPool(ctx, cfg.DBURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			scorer := channelscore.NewScorer(
				postgres.NewChannelRepo(pool),
				postgres.NewJobRepo(pool),
				channelscore.Options{
					WindowDays:         cfg.ScoreWindowDays,
					ProbationThreshold: cfg.ProbationThreshold,
					DemotionWindows:    cfg.DemotionWindows,
				})
			rep, err := scorer.Sweep(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("scored=%d demoted=%d promoted=%d deactivated=%d\n",
				rep.Scored, rep.Demoted, rep.Promoted, rep.Deactivated)
			return nil
		},
	}
}

func retrainCmd() *cobra.Command {
	var corpusPath, outPath string
	opts := classify.DefaultTrainOptions()
	cmd := &cobra.Command{
		Use:   "retrain",
		Short: "Refit the classifier model from a labeled JSONL corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = cfg.ModelPath
			}
			samples, err := classify.LoadCorpus(corpusPath)
			if err != nil {
				return err
			}
			model, err := classify.Train(samples, opts)
			if err != nil {
				return err
			}
			if err := model.Save(outPath); err != nil {
				return err
			}
			cmd.Printf("model trained on %d samples, vocab=%d, written to %s\n",
				len(samples), len(model.Vocabulary), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "training/corpus.jsonl", "labeled JSONL corpus path")
	cmd.Flags().StringVar(&outPath, "out", "", "output model path (defaults to MODEL_PATH)")
	cmd.Flags().IntVar(&opts.Epochs, "epochs", opts.Epochs, "training epochs")
	cmd.Flags().Float64Var(&opts.LearningRate, "lr", opts.LearningRate, "learning rate")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Report pipeline consistency anomalies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := postgres.NewPool(ctx, cfg.DBURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := runVerify(ctx, pool, cfg)
			if err != nil {
				return err
			}
			for _, line := range report {
				cmd.Println(line)
			}
			return nil
		},
	}
}
