package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/database"
	"github.com/stemsi/vocab-quiz/internal/handler"
	"github.com/stemsi/vocab-quiz/internal/logger"
	"github.com/stemsi/vocab-quiz/internal/middleware"
	"github.com/stemsi/vocab-quiz/internal/repository"
	"github.com/stemsi/vocab-quiz/internal/router"
	"github.com/stemsi/vocab-quiz/internal/service"
	"github.com/stemsi/vocab-quiz/internal/validator"
	"github.com/stemsi/vocab-quiz/internal/worker"
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
		Msg("Starting Vocab Quiz session engine")

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
	questionRepo := repository.NewQuestionRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	answerEventRepo := repository.NewAnswerEventRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	questionBank := service.NewQuestionBankService(questionRepo, testRepo, rdb, cfg.QuestionCacheTTL, log)
	configStore := service.NewSessionConfigStore(rdb, cfg.SessionConfigTTL)
	resultStore := service.NewResultStore(resultRepo, rdb, cfg.ResultCacheTTL, log)
	answerEvents := service.NewAnswerEventQueue(rdb)
	sessionService := service.NewSessionService(
		questionBank,
		configStore,
		resultStore,
		answerEvents,
		service.SessionServiceOptions{
			IdleTimeout:               cfg.SessionIdleTimeout,
			DefaultPerQuestionSeconds: cfg.DefaultPerQuestionSeconds,
			ResultWriteTimeout:        cfg.ResultWriteTimeout,
		},
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, log),
		Result:  handler.NewResultHandler(resultStore, log),
		Config:  handler.NewConfigHandler(configStore, questionBank, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(pool, rdb, sessionService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	resultWorker := worker.NewResultWorker(resultRepo, rdb, log)
	answerEventWorker := worker.NewAnswerEventWorker(answerEventRepo, rdb, log)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)

	workers.Add(4)
	go func() { defer workers.Done(); resultWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); answerEventWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); sessionService.Run(workerCtx, time.Minute) }()
	go func() { defer workers.Done(); limiter.Run(workerCtx) }()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, limiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// 2. Abandon running sessions. Drafts already submitted keep persisting.
	sessionCtx, sessionCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sessionCancel()
	if err := sessionService.Shutdown(sessionCtx); err != nil {
		log.Error().Err(err).Msg("Session shutdown timed out")
	}

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
