package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/config"
	"github.com/ekaya-inc/ekaya-briefs/pkg/database"
	"github.com/ekaya-inc/ekaya-briefs/pkg/handlers"
	"github.com/ekaya-inc/ekaya-briefs/pkg/llm"
	"github.com/ekaya-inc/ekaya-briefs/pkg/logging"
	"github.com/ekaya-inc/ekaya-briefs/pkg/mcp"
	"github.com/ekaya-inc/ekaya-briefs/pkg/middleware"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/notify"
	"github.com/ekaya-inc/ekaya-briefs/pkg/repositories"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services/suggestions"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	}, nil, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	cacheFactory := services.MemoryCacheFactory()
	rdb, err := database.NewRedisClient(ctx, &cfg.Redis, logger)
	switch {
	case err != nil:
		logger.Warn("Redis unavailable, suggestions stay in memory", zap.String("error", logging.SanitizeError(err)))
	case rdb != nil:
		defer rdb.Close()
		cacheFactory = services.RedisCacheFactory(rdb, cfg.Suggestions.CacheTTL, logger)
	}

	llmClient, err := llm.NewClientFromConfig(&llm.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	logger.Info("Suggestion provider configured",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", llmClient.GetModel()),
		zap.String("endpoint", logging.SanitizeConnectionString(llmClient.GetEndpoint())))
	suggestionClient := llm.NewSuggestionClient(llmClient, llm.SuggestionConfig{
		Temperature: cfg.LLM.Temperature,
		CircuitBreaker: llm.CircuitBreakerConfig{
			Threshold:  cfg.Suggestions.BreakerThreshold,
			ResetAfter: cfg.Suggestions.BreakerReset,
		},
	}, logger)

	gateway := repositories.NewPostgresGateway(db, cfg.BaseURL)
	sink := notify.NewZapSink(logger)

	briefService := services.NewBriefService(gateway, sink, logger)
	registry := services.NewWizardRegistry(services.WizardDeps{
		Gateway:  gateway,
		Provider: suggestionClient,
		Catalog:  models.DefaultQuestionCatalog(),
		Notify:   sink,
		Pool:     llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: cfg.Suggestions.MaxConcurrentSaves}, logger),
		Logger:   logger,
	}, cacheFactory, suggestions.Config{Timeout: cfg.Suggestions.Timeout})
	revisions := services.NewRevisionManager(gateway, registry, sink, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).WithSuggestions(suggestionClient.Breaker()).RegisterRoutes(mux)
	handlers.NewBriefsHandler(briefService, logger).RegisterRoutes(mux)
	handlers.NewWizardHandler(registry, logger).RegisterRoutes(mux)
	handlers.NewRevisionHandler(revisions, logger).RegisterRoutes(mux)
	if cfg.MCP.Enabled {
		mcp.NewServer(cfg.Version, briefService, logger).RegisterRoutes(mux)
	}

	srv := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting ekaya-briefs",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	// Let in-flight suggestion fetches land in the cache before Redis closes.
	registry.Close()
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
