package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scenario-service/internal/app"
	"scenario-service/internal/config"
	"scenario-service/internal/handler"
	"scenario-service/internal/middleware"
	"scenario-service/internal/notify"
	"scenario-service/internal/repository"
	"scenario-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Scenario Service...")

	configPath := os.Getenv("SCENARIO_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Pipeline components
	components, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", zap.Error(err))
	}
	defer components.Close()

	syncCtx, cancelSync := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := components.Pipeline.SyncCache(syncCtx); err != nil {
		logger.Warn("Could not load existing scenarios for deduplication", zap.Error(err))
	}
	cancelSync()

	// Initialize repository
	db, err := repository.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	repo := repository.NewJobRepository(db, logger)
	defer repo.Close()

	notifier, err := notify.New(cfg.Notify, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	// Initialize service
	var jobNotifier service.Notifier
	if notifier != nil {
		jobNotifier = notifier
	}
	jobs := service.NewJobService(components.Pipeline, repo, jobNotifier, logger)

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(jobs, components.Dataset, components.Deduplicator, components.Validator, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.Use(middleware.CORS())

	var auth gin.HandlerFunc
	if cfg.Auth.Enabled {
		auth = middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret), logger)
		logger.Info("JWT authentication enabled for /api/v1")
	}

	// Register routes
	apiHandler.RegisterRoutes(router, auth)

	// Retune the similarity threshold when the config file changes
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewThresholdWatcher(configPath, cfg.Dedup.Threshold, func(threshold float64) {
		if err := components.Deduplicator.AdjustThreshold(threshold); err != nil {
			logger.Warn("Ignoring similarity threshold from config", zap.Error(err))
		}
	}, logger)
	if err != nil {
		logger.Warn("Config watcher disabled", zap.Error(err))
	} else {
		watcher.Start(ctx)
		defer watcher.Close()
	}

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", zap.String("address", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := jobs.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Generation jobs still running at exit", zap.Error(err))
		}
		return nil
	})

	logger.Info("Scenario Service is running",
		zap.String("port", cfg.Server.Port),
		zap.Any("providers", components.ProvidersInfo()))

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	logger.Info("Server exited")
}
