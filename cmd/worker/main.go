package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/infra"
	"server/internal/ledger"
	"server/internal/providers/music"
	"server/internal/queue"
	"server/internal/storage"
	"server/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init artifact store")
	}

	generator, err := music.NewClient(music.Options{
		APIKey:  cfg.ModelAPIKey,
		BaseURL: cfg.ModelBaseURL,
		Model:   cfg.ModelName,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init music client")
	}
	if generator.Synthetic() {
		logger.Warn().Msg("no model credentials set, generating synthetic audio")
	}

	runner := infra.NewSQLRunner(dbpool, logger)
	jobLedger := ledger.NewPostgres(runner, cfg.RetentionWindow)
	jobQueue := queue.NewRedis(rdb, "")

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		w := worker.New(jobLedger, jobQueue, store, generator, logger.With().Int("worker", i).Logger())
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(ctx)
		}()
	}

	sweeper := worker.NewSweeper(jobLedger, jobQueue, store, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")
	<-ctx.Done()

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-waitCtx.Done():
		logger.Warn().Msg("shutdown timed out")
	}
	logger.Info().Msg("worker stopped")
}
