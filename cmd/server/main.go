package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/config"
	"github.com/tossconsultancy/assessment-backend/internal/database"
	"github.com/tossconsultancy/assessment-backend/internal/handler"
	"github.com/tossconsultancy/assessment-backend/internal/logger"
	"github.com/tossconsultancy/assessment-backend/internal/repository"
	"github.com/tossconsultancy/assessment-backend/internal/router"
	"github.com/tossconsultancy/assessment-backend/internal/service"
	"github.com/tossconsultancy/assessment-backend/internal/validator"
	"github.com/tossconsultancy/assessment-backend/internal/worker"
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
		Int("question_count", cfg.Quiz.QuestionCount).
		Dur("duration", cfg.Quiz.Duration).
		Dur("grace_window", cfg.Quiz.GraceWindow).
		Int("roles", len(cfg.Catalog.Roles)).
		Msg("Starting Assessment Backend")

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
	candidateRepo := repository.NewCandidateRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	activityQueue := worker.NewActivityQueue(rdb, log)
	questionProvider := service.NewCachedQuestionProvider(questionRepo, rdb, cfg.QuestionCacheTTL, log)

	sessionService := service.NewSessionService(cfg, rdb)
	timerService := service.NewTimerService(attemptRepo, activityQueue, cfg.Quiz, log)
	attemptService := service.NewAttemptService(
		candidateRepo,
		attemptRepo,
		answerRepo,
		submissionRepo,
		resultRepo,
		questionProvider,
		activityQueue,
		timerService,
		cfg.Quiz,
		log,
	)
	identityService := service.NewIdentityService(candidateRepo, attemptService, cfg.Catalog, log)
	resultService := service.NewResultService(candidateRepo, attemptRepo, resultRepo, resultRepo)
	adminService := service.NewAdminService(adminRepo, candidateRepo, sessionService, cfg.BcryptCost, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	secureCookie := cfg.GinMode == "release"
	handlers := &router.Handlers{
		Quiz: handler.NewQuizHandler(
			identityService,
			attemptService,
			timerService,
			resultService,
			sessionService,
			secureCookie,
			log,
		),
		Admin:  handler.NewAdminHandler(adminService, resultService, log),
		System: handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	activityWorker := worker.NewActivityWorker(pool, rdb, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		activityWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(sessionService, rdb, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 2. Stop the activity worker and wait for its queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Activity worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
