package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liezira/simutbk-backend/internal/config"
	"github.com/liezira/simutbk-backend/internal/database"
	"github.com/liezira/simutbk-backend/internal/handler"
	"github.com/liezira/simutbk-backend/internal/logger"
	"github.com/liezira/simutbk-backend/internal/repository"
	"github.com/liezira/simutbk-backend/internal/router"
	"github.com/liezira/simutbk-backend/internal/service"
	"github.com/liezira/simutbk-backend/internal/validator"
	"github.com/liezira/simutbk-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting SimUTBK Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	tokenRepo := repository.NewTokenRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, tokenRepo)
	poolService := service.NewPoolService(questionRepo, rdb, log)
	leaderboardService := service.NewLeaderboardService(cfg, rdb, tokenRepo, log)
	attemptService := service.NewAttemptService(cfg, rdb, authService, poolService, leaderboardService, log)

	// ─── Warm Caches ──────────────────────────────────────────────────
	// The question bank must be in memory BEFORE accepting traffic: an
	// attempt that starts against an empty battery cannot be repaired.
	if err := poolService.Warm(ctx); err != nil {
		log.Fatal().Err(err).Msg("Question pool warm failed")
	}
	if err := leaderboardService.Warm(ctx); err != nil {
		log.Warn().Err(err).Msg("Leaderboard warm failed")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt:     handler.NewAttemptHandler(attemptService),
		Leaderboard: handler.NewLeaderboardHandler(leaderboardService),
		WS:          handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		System:      handler.NewSystemHandler(rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	resultWorker := worker.NewResultWorker(pool, rdb, log)
	integrityWorker := worker.NewIntegrityWorker(pool, rdb, log)

	go resultWorker.Start(workerCtx)
	go integrityWorker.Start(workerCtx)
	go attemptService.StartJanitor(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
