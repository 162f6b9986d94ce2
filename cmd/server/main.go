package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sekolahku/ujian-backend/internal/config"
	"github.com/sekolahku/ujian-backend/internal/database"
	"github.com/sekolahku/ujian-backend/internal/handler"
	"github.com/sekolahku/ujian-backend/internal/logger"
	"github.com/sekolahku/ujian-backend/internal/repository"
	"github.com/sekolahku/ujian-backend/internal/router"
	"github.com/sekolahku/ujian-backend/internal/scoring"
	"github.com/sekolahku/ujian-backend/internal/service"
	"github.com/sekolahku/ujian-backend/internal/validator"
	"github.com/sekolahku/ujian-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("similarity", cfg.SimilarityStrategy).
		Msg("Starting Ujian Backend")

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
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	enrollRepo := repository.NewEnrollmentRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)

	// ─── Select Similarity Strategy ────────────────────────────────────
	var strategy scoring.Similarity
	switch cfg.SimilarityStrategy {
	case "embedding":
		strategy = scoring.NewEmbeddingSimilarity(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
	default:
		strategy = scoring.LexicalSimilarity{}
	}
	corrector := scoring.NewCorrector(strategy)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	enrollmentService := service.NewEnrollmentService(enrollRepo, examRepo, questionRepo, answerRepo, rdb, log)
	correctionService := service.NewCorrectionService(answerRepo, questionRepo, enrollRepo, corrector, log)
	resultService := service.NewResultService(enrollRepo, questionRepo, answerRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Enrollment: handler.NewEnrollmentHandler(enrollmentService, resultService),
		Correction: handler.NewCorrectionHandler(correctionService, resultService),
		WS:         handler.NewWSHandler(enrollmentService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(pool, rdb, log)
	correctionWorker := worker.NewCorrectionWorker(correctionService, rdb, log)

	go autosaveWorker.Start(workerCtx)
	go correctionWorker.Start(workerCtx)

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
