package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/petmatch/internal/app"
	"github.com/briangreenhill/petmatch/internal/config"
	"github.com/briangreenhill/petmatch/internal/jobs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger := app.NewLogger(cfg)
	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("REDIS_ADDR is required for the worker")
	}

	if !app.SharedCache(cfg) {
		logger.Warn().
			Str("cache_backend", cfg.Cache.Backend).
			Msg("result cache may not be shared with the api; use CACHE_BACKEND=redis, or file with a CACHE_DIR both processes mount")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pf, err := app.NewPetfinder(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("petfinder setup")
	}
	defer pf.Close() //nolint:errcheck

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    4,
		StrictPriority: false,
		Queues: map[string]int{
			jobs.QueueWarm: 10, // higher priority
			"default":      5,
		},
		RetryDelayFunc: jobs.RetryDelay,
	})
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskWarmAnimals, &jobs.WarmHandler{
		Animals: pf.Client,
		Log:     logger.With().Str("component", "warm").Logger(),
	})

	// Enqueue the default search every WARM_INTERVAL
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	task, err := jobs.NewWarmTask(app.DefaultQuery(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("build warm task")
	}
	entryID, err := scheduler.Register(jobs.CronSpec(cfg.WarmInterval), task)
	if err != nil {
		logger.Fatal().Err(err).Msg("register warm schedule")
	}
	logger.Info().Str("entry_id", entryID).Dur("every", cfg.WarmInterval).Msg("warm schedule registered")

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}

	logger.Info().Msg("worker running")
	<-ctx.Done()

	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker stopped")
}
