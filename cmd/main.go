package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oakmind/oakmind-backend/internal/broker"
	"github.com/oakmind/oakmind-backend/internal/data/db"
	"github.com/oakmind/oakmind-backend/internal/data/repos"
	"github.com/oakmind/oakmind-backend/internal/dedup"
	"github.com/oakmind/oakmind-backend/internal/eligibility"
	"github.com/oakmind/oakmind-backend/internal/generation"
	"github.com/oakmind/oakmind-backend/internal/generation/prompts"
	oakhttp "github.com/oakmind/oakmind-backend/internal/http"
	"github.com/oakmind/oakmind-backend/internal/http/handlers"
	"github.com/oakmind/oakmind-backend/internal/http/middleware"
	"github.com/oakmind/oakmind-backend/internal/notify"
	"github.com/oakmind/oakmind-backend/internal/observability"
	"github.com/oakmind/oakmind-backend/internal/pkg/envutil"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
	"github.com/oakmind/oakmind-backend/internal/platform/redisx"
	"github.com/oakmind/oakmind-backend/internal/services"
	"github.com/oakmind/oakmind-backend/internal/sse"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	if shutdown := observability.InitTracing(ctx, log, observability.Config{
		ServiceName: "oakmind-backend",
		Environment: envutil.GetEnv("APP_ENV", "development", log),
		Version:     envutil.GetEnv("APP_VERSION", "", nil),
	}); shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Redis
	rdb, err := redisx.NewClient(log)
	if err != nil {
		log.Error("Redis init failed", "error", err)
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up repos...")
	itemRepo := repos.NewQuizItemRepo(thePG, log)
	sessionRepo := repos.NewReviewSessionRepo(thePG, log)
	analysisRepo := repos.NewAnalysisResultRepo(thePG, log)

	// SSE
	sseHub := sse.NewHub(log)
	failureNotifier := notify.NewSSEFailureNotifier(log, sseHub)
	batchNotifier := notify.NewSSEBatchNotifier(log, sseHub)

	// Generation pipeline
	log.Info("Setting up generation pipeline...")
	catalog, err := prompts.Load()
	if err != nil {
		log.Error("Could not load prompt catalog", "error", err)
		os.Exit(1)
	}
	generatorClient, err := generation.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init generator client", "error", err)
		os.Exit(1)
	}
	latestStore := generation.NewRedisLatestStore(rdb, log)
	eligibilityGate, err := eligibility.NewHTTPGate(log)
	if err != nil {
		log.Error("Could not init eligibility gate", "error", err)
		os.Exit(1)
	}
	dedupGate := dedup.NewGate(rdb, log)
	orchestrator := generation.NewOrchestrator(log, itemRepo, sessionRepo, analysisRepo, catalog, generatorClient, latestStore, batchNotifier)

	// Broker
	log.Info("Setting up request broker...")
	temporalClient, err := broker.NewTemporalClient(log)
	if err != nil {
		log.Error("Temporal init failed", "error", err)
		os.Exit(1)
	}
	if temporalClient == nil {
		log.Error("Request broker is required; set TEMPORAL_ADDRESS")
		os.Exit(1)
	}
	defer temporalClient.Close()

	publisher, err := broker.NewPublisher(log, temporalClient)
	if err != nil {
		log.Error("Could not init publisher", "error", err)
		os.Exit(1)
	}
	runner, err := broker.NewRunner(log, temporalClient, &broker.Activities{
		Log:         log,
		Eligibility: eligibilityGate,
		Gate:        dedupGate,
		Processor:   orchestrator,
		DLT:         rdb,
		Notify:      failureNotifier,
	})
	if err != nil {
		log.Error("Could not init broker worker", "error", err)
		os.Exit(1)
	}

	// Services
	quizService := services.NewQuizService(log, sessionRepo, itemRepo, dedupGate, publisher, latestStore)

	// HTTP
	log.Info("Setting up router...")
	jwtSecret := envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	server := oakhttp.NewServer(oakhttp.RouterConfig{
		AuthMiddleware:  middleware.NewAuthMiddleware(log, jwtSecret),
		QuizHandler:     handlers.NewQuizHandler(quizService),
		RealtimeHandler: handlers.NewRealtimeHandler(sseHub),
		HealthHandler:   handlers.NewHealthHandler(),
	})

	port := envutil.GetEnv("PORT", "8080", log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Start(gctx)
	})
	g.Go(func() error {
		log.Info("Server listening", "port", port)
		return server.Run(":" + port)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("Service exited", "error", err)
		os.Exit(1)
	}
}
