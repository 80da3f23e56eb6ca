// @title           animateVDO Backend API
// @version         1.0.0
// @description     Backend API for generating animated story videos from a topic. Runs a five stage pipeline (research, script, characters, audio, video) with per stage retries and automatic failure recovery.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"animatevdo-backend/internal/config"
	"animatevdo-backend/internal/database"
	"animatevdo-backend/internal/handlers"
	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/middleware"
	"animatevdo-backend/internal/providers/elevenlabs"
	"animatevdo-backend/internal/providers/mock"
	"animatevdo-backend/internal/providers/openai"
	"animatevdo-backend/internal/providers/render"
	"animatevdo-backend/internal/providers/tavily"
	"animatevdo-backend/internal/queue"
	"animatevdo-backend/internal/redislock"
	"animatevdo-backend/internal/services"
	"animatevdo-backend/internal/supabase"
)

func main() {
	// .env is a local development convenience; deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer log.Sync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database and migrations. The recovery queue lives in Postgres, so the
	// server does not start without it.
	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	defer dbClient.Close()

	migrator, err := database.NewMigrator(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to initialize migrator", "error", err)
	}
	if err := migrator.Run(); err != nil {
		migrator.Close()
		log.Fatal("migrations failed", "error", err)
	}
	migrator.Close()

	// Supabase clients for auth, storage and realtime events.
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatal("failed to initialize supabase client", "error", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatal("failed to initialize storage client", "error", err)
	}

	realtimeClient := supabase.NewRealtimeClient(supabaseClient.Supabase)

	// Redis backs both the per stage locks and the recovery queue broker.
	locker, err := redislock.New(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal("failed to connect to redis", "error", err)
	}
	defer locker.Close()

	queueClient := queue.NewClient(cfg.RedisAddr, cfg.RedisPassword, log)
	defer queueClient.Close()

	prov := buildProviders(cfg, log)

	usageService := services.NewUsageService(dbClient, log)
	billingService := services.NewBillingService(dbClient, cfg.FreeTierProjectLimit, log)
	pipelineService := services.NewPipelineService(dbClient, storageClient, locker, queueClient, realtimeClient, usageService, prov, cfg, log)
	recoveryService := services.NewRecoveryService(dbClient, pipelineService, queueClient, cfg, log)

	worker := queue.NewWorker(cfg.RedisAddr, cfg.RedisPassword, cfg.WorkerConcurrency, recoveryService, log)
	if err := worker.Start(); err != nil {
		log.Fatal("failed to start recovery worker", "error", err)
	}

	// Entries that were still pending when the previous process stopped
	// have no scheduled task anymore. Put them back on the queue.
	sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := recoveryService.RequeuePending(sweepCtx); err != nil {
		log.Warn("recovery requeue sweep failed", "error", err)
	}
	sweepCancel()

	projectsHandler := handlers.NewProjectsHandler(dbClient, storageClient, billingService, log)
	stagesHandler := handlers.NewStagesHandler(dbClient, pipelineService, log)
	usageHandler := handlers.NewUsageHandler(dbClient, log)
	stripeHandler := handlers.NewStripeWebhookHandler(dbClient, cfg.StripeWebhookSecret, log)

	router := gin.New()
	router.Use(middleware.RequestLogger(log))
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.AllowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// Stripe webhook (no auth, verified by signature)
	router.POST("/api/v1/webhooks/stripe", stripeHandler.HandleWebhook)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/projects", projectsHandler.CreateProject)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:id", projectsHandler.GetProject)
	api.DELETE("/projects/:id", projectsHandler.DeleteProject)

	api.POST("/projects/:id/stages/:stage/run", stagesHandler.RunStage)
	api.GET("/projects/:id/progress", stagesHandler.GetProgress)
	api.GET("/projects/:id/results", stagesHandler.ListStageResults)

	api.GET("/usage", usageHandler.GetUsageSummary)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.StageTimeout + time.Minute,
	}

	go func() {
		log.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	worker.Shutdown()
	log.Info("stopped")
}

// buildProviders wires the five external capabilities. With mock providers a
// single in-memory implementation serves all of them, which makes the whole
// pipeline runnable without any API keys.
func buildProviders(cfg *config.Config, log *logger.Logger) services.Providers {
	if cfg.UseMockProviders {
		log.Warn("using mock providers, no external APIs will be called")
		m := mock.New()
		return services.Providers{
			Research: m,
			Script:   m,
			Image:    m,
			Speech:   m,
			Video:    m,
		}
	}

	openaiClient := openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIScriptModel, cfg.OpenAIImageModel, log)

	return services.Providers{
		Research: tavily.NewClient(cfg.TavilyBaseURL, cfg.TavilyAPIKey, log),
		Script:   openaiClient,
		Image:    openaiClient,
		Speech:   elevenlabs.NewClient(cfg.ElevenLabsBaseURL, cfg.ElevenLabsAPIKey, log),
		Video:    render.NewClient(cfg.RenderBaseURL, cfg.RenderAPIKey, log),
	}
}
