package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vessel-trajectory-service/internal/config"
	"vessel-trajectory-service/internal/infra/adapters/predictor"
	pg "vessel-trajectory-service/internal/infra/db/postgres"
	"vessel-trajectory-service/internal/infra/dispatch"
	"vessel-trajectory-service/internal/infra/logging"
	red "vessel-trajectory-service/internal/infra/redis"
	"vessel-trajectory-service/internal/infra/sched"
	"vessel-trajectory-service/internal/infra/web"
	"vessel-trajectory-service/internal/infra/worker"
	"vessel-trajectory-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (relaxed auth config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	jobRepo := pg.NewPostgresJobRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Queue and dispatch ----
	workerPool := worker.NewPool(cfg.Queue.Workers, logger)
	jobQueue := red.NewQueue(redisClient, cfg.Queue, workerPool, logger)

	predictorAdapter := predictor.NewHTTPPredictor(cfg.Predictor, logger)
	registry := usecase.NewProcessorRegistry(
		usecase.NewSessionJobProcessor(predictorAdapter, cfg.Pricing),
	)
	dispatcher := dispatch.NewDispatcher(jobQueue, registry, logger)

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, txManager, logger)
	jobUC := usecase.NewJobUseCase(jobRepo, userRepo, dispatcher, registry, txManager, logger)

	if err := jobQueue.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("queue start")
	}

	// ---- Stalled-job reaper ----
	reaper := sched.NewReaperWorker(cfg.Queue.ReapInterval, cfg.Queue.StalledAfter, jobUC, logger)
	go func() {
		if err := reaper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("reaper stopped")
		}
	}()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret)
	server := web.NewServer(jobUC, userUC, auth, cfg.Server, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	jobQueue.Stop()
	logger.Info().Msg("stopped")
}
