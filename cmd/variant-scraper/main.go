package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/variantlab/variant-scraper/internal/api"
	"github.com/variantlab/variant-scraper/internal/browser"
	"github.com/variantlab/variant-scraper/internal/config"
	"github.com/variantlab/variant-scraper/internal/database"
	"github.com/variantlab/variant-scraper/internal/events"
	"github.com/variantlab/variant-scraper/internal/jobs"
	"github.com/variantlab/variant-scraper/internal/llm"
	"github.com/variantlab/variant-scraper/internal/parser"
	"github.com/variantlab/variant-scraper/internal/queue"
	"github.com/variantlab/variant-scraper/internal/ratelimit"
	"github.com/variantlab/variant-scraper/internal/variants"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: 10,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	// The semantic verifier is optional; without an API key the pipeline
	// runs rule-based only.
	var verifier variants.Verifier
	if cfg.Verifier.APIKey != "" {
		v, err := llm.NewOpenAIVerifier(llm.Config{
			APIKey:  cfg.Verifier.APIKey,
			Model:   cfg.Verifier.Model,
			BaseURL: cfg.Verifier.BaseURL,
			Timeout: cfg.Verifier.Timeout,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize verifier", "error", err)
			os.Exit(1)
		}
		verifier = v
		logger.Info("semantic verifier enabled", "model", cfg.Verifier.Model)
	} else {
		logger.Info("semantic verifier disabled, using rule-based extraction only")
	}

	extractionCfg := variants.DefaultConfig()
	extractionCfg.MaxOptionLength = cfg.Extraction.MaxOptionLength
	extractionCfg.MaxInteractiveClicks = cfg.Extraction.MaxInteractiveClicks
	extractionCfg.ClickTimeout = cfg.Extraction.ClickTimeout
	extractionCfg.InteractiveBudget = cfg.Extraction.InteractiveBudget

	pipeline := variants.New(extractionCfg, verifier, logger)

	taskQueue := queue.NewInMemoryQueue()
	defer taskQueue.Close()

	manager := jobs.NewManager(jobs.ManagerOptions{
		Queue:     taskQueue,
		Fetcher:   jobs.NewBrowserFetcher(b, cfg.Scraper.MaxRetries),
		Parser:    parser.NewProductParser(),
		DB:        db,
		Store:     database.NewProductStore(db),
		Publisher: events.NewPublisher(db, logger),
		Pipeline:  pipeline,
		Limiter:   ratelimit.NewTokenBucketRateLimiter(cfg.Scraper.ConcurrentLimit, cfg.Scraper.RateLimitMin),
		Logger:    logger,
	})

	go manager.StartWorkers(ctx, cfg.Scraper.ConcurrentLimit)

	handlers := api.NewHandlers(manager, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", handlers.Extract)
		r.Post("/jobs", handlers.CreateJob)
		r.Get("/jobs", handlers.ListJobs)
		r.Get("/jobs/{jobID}", handlers.GetJob)
		r.Get("/products/{asin}", handlers.GetProduct)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
